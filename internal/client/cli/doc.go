// Package cli provides the interactive drive command-line client.
//
// It unlocks the local session vault with a passphrase, restores or
// provisions a session with the configured identity and then runs a REPL
// over the drive provider:
//
//   - provision / logout: manage the vault session
//   - drive / peer: select the target drive and optional remote identity
//   - query / more / header: browse file headers, decrypting their content
//   - upload / update / payload: write files and download payload bytes
//   - stream: play a segmented video payload into a local file
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
