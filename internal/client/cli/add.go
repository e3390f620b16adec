package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/envelope"
	"github.com/dmitrijs2005/keepr/internal/keeps"
)

// now is a test seam for unlock-time parsing.
var now = time.Now

var unlockLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

// parseUnlockTime accepts an absolute time in one of unlockLayouts, a Go
// duration such as "72h", or a day count such as "30d", both relative to ref.
func parseUnlockTime(s string, ref time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("unlock time is required")
	}

	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return ref.AddDate(0, 0, n), nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return ref.Add(d), nil
	}
	for _, layout := range unlockLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse unlock time %q (use e.g. 30d, 720h or 2030-01-02 15:04)", s)
}

// askTerms prompts for the parties, unlock time and notification emails.
func (a *App) askTerms() (keeps.AccessTerms, error) {
	var t keeps.AccessTerms
	var err error

	if t.Recipient, err = getSimpleText(a.reader, "Recipient address", a.out); err != nil {
		return t, err
	}
	if t.RecipientEmail, err = getSimpleText(a.reader, "Recipient email (optional)", a.out); err != nil {
		return t, err
	}
	if t.Fallback, err = getSimpleText(a.reader, "Fallback address (optional)", a.out); err != nil {
		return t, err
	}
	if t.Fallback != "" {
		if t.FallbackEmail, err = getSimpleText(a.reader, "Fallback email (optional)", a.out); err != nil {
			return t, err
		}
	}

	when, err := getSimpleText(a.reader, "Unlock at (30d, 720h or 2030-01-02 15:04)", a.out)
	if err != nil {
		return t, err
	}
	if t.UnlockTime, err = parseUnlockTime(when, now()); err != nil {
		return t, err
	}
	return t, nil
}

// Create seals a text message into a new Keep.
func (a *App) Create(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	description, err := getSimpleText(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Message", a.out)
	if err != nil {
		return err
	}
	if text == "" {
		return errors.New("message is empty")
	}

	terms, err := a.askTerms()
	if err != nil {
		return err
	}

	return a.createKeep(ctx, keeps.Draft{
		Payload: keeps.Payload{
			Type:        envelope.TypeText,
			Title:       title,
			Description: description,
			Data:        []byte(text),
			MimeType:    "text/plain; charset=utf-8",
		},
		Terms: terms,
	})
}

// CreateFile seals the content of a local file into a new Keep.
func (a *App) CreateFile(ctx context.Context) error {
	path, err := getSimpleText(a.reader, fmt.Sprintf("File path (up to %d bytes)", a.payloadLimit()), a.out)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > int64(a.payloadLimit()) {
		return fmt.Errorf("%w: %d bytes", common.ErrPayloadTooLarge, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	title, err := GetOptionalText(a.reader, "Title", name, a.out)
	if err != nil {
		return err
	}
	description, err := getSimpleText(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}

	terms, err := a.askTerms()
	if err != nil {
		return err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return a.createKeep(ctx, keeps.Draft{
		Payload: keeps.Payload{
			Type:        envelope.TypeFile,
			Title:       title,
			Description: description,
			Data:        data,
			FileName:    name,
			MimeType:    mimeType,
		},
		Terms: terms,
	})
}

func (a *App) createKeep(ctx context.Context, d keeps.Draft) error {
	receipt, err := a.session.Keeps().CreateKeep(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Keep #%d created, content %s, unlocks %s\n",
		receipt.KeepID, receipt.ContentAddress, d.Terms.UnlockTime.Format(time.RFC1123))
	return nil
}
