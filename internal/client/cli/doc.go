// Package cli provides the interactive parcelsync command-line client.
//
// It wires configuration, local storage, the API transport, the auth session
// and the upload queue, then runs a REPL. A background connectivity monitor
// feeds the queue so captures made offline sync once the backend is back.
//
// Commands:
//   - login / logout
//   - enqueue <path> <collectionId> [remarks=.. recipient=.. tracking=.. mobile=..]
//   - list, retry <id>, status
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
