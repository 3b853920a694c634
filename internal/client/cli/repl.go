package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App satisfies
// it; tests use a stub.
type execIface interface {
	hasSession() bool
	Provision(ctx context.Context) error
	Logout(ctx context.Context) error
	SelectDrive(ctx context.Context, args []string) error
	SelectPeer(ctx context.Context, args []string) error
	Query(ctx context.Context, args []string) error
	More(ctx context.Context) error
	Header(ctx context.Context, args []string) error
	Payload(ctx context.Context, args []string) error
	Upload(ctx context.Context, args []string) error
	Update(ctx context.Context, args []string) error
	Stream(ctx context.Context, args []string) error
}

const (
	helpNoSession = "Available commands: provision, help, exit"
	helpSession   = "Available commands: drive <alias> <type>, peer [identity], query [fileType...], more, " +
		"header <fileId>, payload <fileId> <key> [start length], upload <path> [segments.json], " +
		"update <fileId>, stream <fileId> <key> [rate], provision, logout, help, exit"
)

// runREPL reads commands from in until EOF, "exit" or "quit" and dispatches
// them to a. A command's error is reported and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("dk%s> ", statusFn()))
		line, err := in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.hasSession() {
				printlnFn(helpSession)
			} else {
				printlnFn(helpNoSession)
			}
		case "provision":
			cmdErr = a.Provision(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "drive":
			cmdErr = a.SelectDrive(ctx, args)
		case "peer":
			cmdErr = a.SelectPeer(ctx, args)
		case "query", "q":
			cmdErr = a.Query(ctx, args)
		case "more":
			cmdErr = a.More(ctx)
		case "header":
			cmdErr = a.Header(ctx, args)
		case "payload":
			cmdErr = a.Payload(ctx, args)
		case "upload":
			cmdErr = a.Upload(ctx, args)
		case "update":
			cmdErr = a.Update(ctx, args)
		case "stream":
			cmdErr = a.Stream(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
