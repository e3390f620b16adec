// Package client contains the CLI's connection to the Keepr server and its
// local database bootstrap.
//
// # Overview
//
//  1. The Client interface: wallet sign-in, Ping, the public-key directory
//     (PublishKey/LookupKey) and the contact registry (RegisterContacts).
//  2. GRPCClient, the JSON-over-gRPC implementation. It attaches the access
//     token through an interceptor, signs in again when the token expires,
//     and maps gRPC status codes to sentinel errors.
//  3. InitDatabase and RunMigrations, which open the local SQLite file and
//     apply the embedded goose migrations.
//
// # Error Handling
//
// Callers match ErrUnavailable, ErrUnauthorized, ErrRejected and
// ErrInvalidResponse with errors.Is. A missing directory entry surfaces as
// common.ErrEncryptionKeyUnavailable.
package client
