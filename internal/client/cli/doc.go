// Package cli provides the interactive Keepr command-line client.
//
// It wires configuration, the local vault, the content store, the chain
// registry and the server connection into a REPL. Typical flow: unlock the
// vault with a passphrase, connect a wallet, then create, list, reveal and
// manage Keeps.
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
