package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/keepr/internal/client/client"
	"github.com/dmitrijs2005/keepr/internal/common"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it.
type execIface interface {
	isConnected() bool
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Forget(ctx context.Context) error
	Create(ctx context.Context) error
	CreateFile(ctx context.Context) error
	List(ctx context.Context) error
	Reveal(ctx context.Context, args []string) error
	Claim(ctx context.Context, args []string) error
	Cancel(ctx context.Context, args []string) error
	Recipient(ctx context.Context, args []string) error
	Fallback(ctx context.Context, args []string) error
	ShowConfig(ctx context.Context) error
}

const (
	helpDisconnected = "Available commands: connect, config, help, exit"
	helpConnected    = "Available commands: create, createfile, (l)ist, reveal <cid>, claim <id>, cancel <id>, " +
		"recipient <id> <address>, fallback <id>, forget, disconnect, config, help, exit"
)

// runREPL reads commands from reader and dispatches them to a until EOF or
// "exit"/"quit". Command prompts read from the same reader, so input typed
// ahead is not lost. Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("keepr %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		err = nil
		switch cmd {
		case "help":
			if a.isConnected() {
				printlnFn(helpConnected)
			} else {
				printlnFn(helpDisconnected)
			}
		case "connect":
			err = a.Connect(ctx)
		case "disconnect":
			err = a.Disconnect(ctx)
		case "forget":
			err = a.Forget(ctx)
		case "create":
			err = a.Create(ctx)
		case "createfile":
			err = a.CreateFile(ctx)
		case "l", "list":
			err = a.List(ctx)
		case "reveal":
			err = a.Reveal(ctx, args)
		case "claim":
			err = a.Claim(ctx, args)
		case "cancel":
			err = a.Cancel(ctx, args)
		case "recipient":
			err = a.Recipient(ctx, args)
		case "fallback":
			err = a.Fallback(ctx, args)
		case "config":
			err = a.ShowConfig(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", describeError(err))
		}
	}
}

// describeError adds a hint for errors the user can act on.
func describeError(err error) string {
	var txErr *common.ChainTxError
	switch {
	case errors.Is(err, common.ErrNoWalletProvider):
		return err.Error() + " (run 'connect' first)"
	case errors.Is(err, common.ErrEncryptionKeyUnavailable):
		return err.Error() + " (the address must connect to Keepr once to publish its key)"
	case errors.As(err, &txErr) && txErr.ContentAddress != "":
		return err.Error() + "; the envelope is already stored, only the chain step needs a retry"
	case errors.Is(err, client.ErrUnavailable):
		return err.Error() + " (working offline)"
	}
	return err.Error()
}
