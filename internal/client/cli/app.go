package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/drivekeeper/internal/client/config"
	"github.com/dmitrijs2005/drivekeeper/internal/client/services"
	"github.com/dmitrijs2005/drivekeeper/internal/client/vault"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/drive"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/dmitrijs2005/drivekeeper/internal/filex"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
)

type App struct {
	config   *config.Config
	audience endpoint.Audience
	logger   logging.Logger
	db       *sql.DB
	sessions services.SessionService
	reader   *bufio.Reader
	out      io.Writer

	vaultKey []byte
	session  *apiclient.Session
	provider *drive.Provider

	drive  drive.TargetDrive
	remote string
	query  *drive.QueryParams
	cursor string
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	aud, err := c.ParsedAudience()
	if err != nil {
		return nil, err
	}

	if c.DownloadDir, err = filex.EnsureDir(c.DownloadDir); err != nil {
		return nil, err
	}

	db, err := vault.Open(ctx, c.VaultPath)
	if err != nil {
		return nil, fmt.Errorf("error opening vault: %w", err)
	}

	return &App{
		config:   c,
		audience: aud,
		logger:   logging.New(c.LogLevel, c.LogFormat),
		db:       db,
		sessions: services.NewSessionService(db),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}, nil
}

// Run unlocks the vault and serves the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.close()
	a.Root(ctx)
}

func (a *App) close() {
	a.dropSession()
	cryptox.WipeByteArray(a.vaultKey)
	a.vaultKey = nil
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error(context.Background(), "vault close error", "error", err)
		}
	}
}

func (a *App) hasSession() bool {
	return a.provider != nil
}

// connect makes s the active session. The App owns s from here on.
func (a *App) connect(s *apiclient.Session) error {
	api, err := apiclient.New(s,
		apiclient.WithScheme(a.config.Scheme),
		apiclient.WithLogger(a.logger.With("module", "apiclient")),
	)
	if err != nil {
		s.Close()
		return err
	}
	a.dropSession()
	a.session = s
	a.provider = drive.NewProvider(api, a.logger.With("module", "drive"))
	return nil
}

func (a *App) dropSession() {
	a.session.Close()
	a.session = nil
	a.provider = nil
	a.query = nil
	a.cursor = ""
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
