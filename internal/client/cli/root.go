package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
)

func (a *App) getStatus() string {
	if a.session == nil {
		return ""
	}
	s := a.session.Identity
	if a.remote != "" {
		s += " -> " + a.remote
	}
	if a.drive.Validate() == nil {
		s += " " + a.drive.String()
	}
	return fmt.Sprintf(" (%s)", s)
}

// unlock asks for the passphrase and derives the vault key.
func (a *App) unlock(ctx context.Context) error {
	pass, err := GetPassphrase(a.out)
	if err != nil {
		return err
	}
	defer cryptox.WipeByteArray(pass)

	key, err := a.sessions.Unlock(ctx, pass)
	if err != nil {
		return err
	}
	cryptox.WipeByteArray(a.vaultKey)
	a.vaultKey = key
	return nil
}

// restore loads the stored session of the configured identity, if any.
func (a *App) restore(ctx context.Context) error {
	s, err := a.sessions.Load(ctx, a.vaultKey, a.config.Identity, a.audience)
	if errors.Is(err, common.ErrNotFound) {
		a.printf("No session for %s (%s); run 'provision'\n", a.config.Identity, a.audience.Path())
		if last, err := a.sessions.LastIdentity(ctx); err == nil && last != "" && last != a.config.Identity {
			a.printf("Last session was for %s; start with -i %s to use it\n", last, last)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.connect(s); err != nil {
		return err
	}
	a.printf("Session restored for %s (%s)\n", s.Identity, s.Audience.Path())
	return nil
}

func (a *App) Root(ctx context.Context) {
	a.printf("Welcome to the drive CLI (type 'help' for commands)\n")

	if err := a.unlock(ctx); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			a.printf("Wrong passphrase\n")
		} else {
			a.printf("Unlock failed: %v\n", err)
		}
		return
	}

	if err := a.restore(ctx); err != nil {
		a.logger.Warn(ctx, "session restore failed", "error", err)
		a.printf("Stored session is unusable; run 'provision'\n")
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}
