package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keepr/internal/client/services"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/keys"
)

// getSimpleText and getSecret are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getSecret     = GetSecret
)

const maxUnlockAttempts = 3

// Unlock asks for the vault passphrase and opens the wallet session. A fresh
// vault takes the first passphrase entered, confirmed once.
func (a *App) Unlock(ctx context.Context) error {
	initialized, err := a.vault.Initialized(ctx)
	if err != nil {
		return err
	}

	if !initialized {
		fmt.Fprintln(a.out, "Choose a passphrase to protect cached keys on this machine.")
	}

	for attempt := 0; attempt < maxUnlockAttempts; attempt++ {
		passphrase, err := getSecret("Vault passphrase", a.out)
		if err != nil {
			return err
		}

		if !initialized {
			confirm, err := getSecret("Repeat passphrase", a.out)
			if err != nil {
				common.WipeByteArray(passphrase)
				return err
			}
			same := string(confirm) == string(passphrase)
			common.WipeByteArray(confirm)
			if !same {
				common.WipeByteArray(passphrase)
				fmt.Fprintln(a.out, "Passphrases do not match.")
				continue
			}
		}

		masterKey, err := a.vault.Unlock(ctx, passphrase)
		common.WipeByteArray(passphrase)
		if errors.Is(err, services.ErrWrongPassphrase) {
			fmt.Fprintln(a.out, "Wrong passphrase.")
			continue
		}
		if err != nil {
			return err
		}
		return a.openSession(ctx, masterKey)
	}
	return services.ErrWrongPassphrase
}

// Connect imports a wallet private key from a hidden prompt. The key stays in
// memory only; what is cached is the derived encryption key pair.
func (a *App) Connect(ctx context.Context) error {
	if last, ok, err := a.vault.LastWallet(ctx); err == nil && ok {
		fmt.Fprintf(a.out, "Last connected wallet: %s\n", last.Hex())
	}

	raw, err := getSecret("Wallet private key (hex)", a.out)
	if err != nil {
		return err
	}
	signer, err := keys.ParseWalletKey(string(raw))
	common.WipeByteArray(raw)
	if err != nil {
		return err
	}

	if err := a.session.Connect(ctx, signer); err != nil {
		return err
	}
	if err := a.vault.RememberWallet(ctx, signer.Address()); err != nil {
		a.logger.Warn(ctx, "could not remember wallet", "error", err)
	}

	if a.session.Online() {
		a.setMode(ModeOnline)
		fmt.Fprintf(a.out, "Connected %s, encryption key published.\n", signer.Address().Hex())
	} else {
		a.setMode(ModeOffline)
		fmt.Fprintf(a.out, "Connected %s offline; others cannot look up your key until you connect online.\n", signer.Address().Hex())
	}
	return nil
}

func (a *App) Disconnect(ctx context.Context) error {
	if err := a.session.Disconnect(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Wallet disconnected.")
	return nil
}

// Forget removes the connected wallet's cached key pair. The pair is derived
// again from the wallet on next use.
func (a *App) Forget(ctx context.Context) error {
	if err := a.session.ForgetKey(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Cached key removed.")
	return nil
}
