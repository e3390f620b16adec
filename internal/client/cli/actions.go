package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

func (a *App) keepID(args []string) (uint64, error) {
	raw := ""
	if len(args) > 0 {
		raw = args[0]
	} else {
		s, err := getSimpleText(a.reader, "Keep ID", a.out)
		if err != nil {
			return 0, err
		}
		raw = s
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid keep id %q", raw)
	}
	return id, nil
}

// Claim takes an unlocked keep as recipient or, after the claim window, as
// fallback.
func (a *App) Claim(ctx context.Context, args []string) error {
	id, err := a.keepID(args)
	if err != nil {
		return err
	}
	if err := a.session.Keeps().Claim(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Keep #%d claimed.\n", id)
	return nil
}

func (a *App) Cancel(ctx context.Context, args []string) error {
	id, err := a.keepID(args)
	if err != nil {
		return err
	}
	if err := a.session.Keeps().Cancel(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Keep #%d cancelled.\n", id)
	return nil
}

// Recipient moves the claim right to another address. The envelope is not
// re-encrypted, so the new recipient can claim but not decrypt.
func (a *App) Recipient(ctx context.Context, args []string) error {
	id, err := a.keepID(args)
	if err != nil {
		return err
	}

	var next string
	if len(args) > 1 {
		next = args[1]
	} else if next, err = getSimpleText(a.reader, "New recipient address", a.out); err != nil {
		return err
	}
	if next == "" {
		return errors.New("new recipient is required")
	}

	if err := a.session.Keeps().ChangeRecipient(ctx, id, next); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Keep #%d now goes to %s.\n", id, next)
	fmt.Fprintln(a.out, "The content stays encrypted for the original parties; share it again if the new recipient must read it.")
	return nil
}

// Fallback hands an unclaimed keep to its fallback once the claim window
// has passed.
func (a *App) Fallback(ctx context.Context, args []string) error {
	id, err := a.keepID(args)
	if err != nil {
		return err
	}
	if err := a.session.Keeps().ActivateFallback(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Fallback activated for keep #%d.\n", id)
	return nil
}
