package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	s := ""
	if a.session != nil {
		if addr, ok := a.session.Wallet(); ok {
			hex := addr.Hex()
			s = hex[:6] + "…" + hex[len(hex)-4:] + " "
		}
	}
	if mode := a.getMode(); mode != "" {
		s += string(mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root unlocks the vault, starts the connectivity watcher and runs the REPL
// until the user exits.
func (a *App) Root(ctx context.Context) error {
	fmt.Fprintln(a.out, "Welcome to Keepr CLI (type 'help' for commands)")

	if err := a.Unlock(ctx); err != nil {
		return err
	}

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

// Run blocks in Root and closes the app afterwards.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	return a.Root(ctx)
}
