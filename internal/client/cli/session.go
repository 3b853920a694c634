package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
)

var (
	errNoSession = errors.New("no session; run 'provision'")
	errNoDrive   = errors.New("no drive selected; run 'drive <alias> <type>'")
	errUsage     = errors.New("usage")
)

// Provision asks the configured host for a new session and seals it into
// the vault, replacing any previous one.
func (a *App) Provision(ctx context.Context) error {
	s, err := apiclient.Provision(ctx, a.config.Identity, a.audience,
		apiclient.WithScheme(a.config.Scheme),
		apiclient.WithLogger(a.logger.With("module", "apiclient")),
	)
	if err != nil {
		return err
	}
	if err := a.sessions.Save(ctx, a.vaultKey, s); err != nil {
		s.Close()
		return err
	}
	if err := a.connect(s); err != nil {
		return err
	}
	a.printf("Provisioned %s (%s)\n", s.Identity, s.Audience.Path())
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if !a.hasSession() {
		return errNoSession
	}
	if err := a.sessions.Logout(ctx, a.session.Identity, a.session.Audience); err != nil {
		return err
	}
	a.dropSession()
	a.printf("Logged out\n")
	return nil
}

func (a *App) requireDrive() error {
	if !a.hasSession() {
		return errNoSession
	}
	if err := a.drive.Validate(); err != nil {
		return errNoDrive
	}
	return nil
}
