package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/envelope"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

func (a *App) wallet() (ethcommon.Address, error) {
	addr, ok := a.session.Wallet()
	if !ok {
		return ethcommon.Address{}, common.ErrNoWalletProvider
	}
	return addr, nil
}

// List prints the keeps the connected wallet created, receives, or backs up
// as fallback.
func (a *App) List(ctx context.Context) error {
	addr, err := a.wallet()
	if err != nil {
		return err
	}

	found, err := a.session.Keeps().Discover(ctx, addr)
	if err != nil {
		return err
	}

	sections := []struct {
		name  string
		keeps []*chain.Keep
	}{
		{"Created", found.Created},
		{"Received", found.Received},
		{"Fallback", found.Fallback},
	}

	for _, sec := range sections {
		fmt.Fprintf(a.out, "%s (%d)\n", sec.name, len(sec.keeps))
		if len(sec.keeps) == 0 {
			continue
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  ID\tSTATUS\tUNLOCKS\tTITLE\tCONTENT")
		for _, k := range sec.keeps {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n",
				k.ID, k.Status, k.UnlockTime.Local().Format("2006-01-02 15:04"), k.Title, k.ContentAddress)
		}
		_ = tw.Flush()
	}
	return nil
}

// Reveal decrypts a keep for the connected wallet. Text is printed; files are
// written to a path the user confirms.
func (a *App) Reveal(ctx context.Context, args []string) error {
	addr, err := a.wallet()
	if err != nil {
		return err
	}

	var cid string
	if len(args) > 0 {
		cid = args[0]
	} else if cid, err = getSimpleText(a.reader, "Content address", a.out); err != nil {
		return err
	}

	r, err := a.session.Keeps().UnsealContent(ctx, cid, addr)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(r.Data)

	fmt.Fprintf(a.out, "Keep #%d: %s (you are %s)\n", r.Keep.ID, r.Meta.Title, r.Role)
	if r.Meta.Description != "" {
		fmt.Fprintln(a.out, r.Meta.Description)
	}
	if r.Keep.Status == chain.StatusActive && now().Before(r.Keep.UnlockTime) && r.Role != envelope.RoleCreator {
		fmt.Fprintf(a.out, "Note: unlocks %s; it can be claimed only after that.\n", r.Keep.UnlockTime.Local().Format(time.RFC1123))
	}

	if r.Meta.Type != envelope.TypeFile {
		fmt.Fprintln(a.out, "---")
		fmt.Fprintln(a.out, string(r.Data))
		return nil
	}

	name := filepath.Base(r.Meta.FileName)
	if name == "." || name == string(filepath.Separator) {
		name = fmt.Sprintf("keep-%d.bin", r.Keep.ID)
	}
	dest, err := GetOptionalText(a.reader, "Save to", name, a.out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, r.Data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %d bytes to %s\n", len(r.Data), dest)
	return nil
}
