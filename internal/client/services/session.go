// Package services contains application services for the drive CLI.
// This file defines the session service: unlocking the local vault with a
// passphrase and keeping provisioned sessions in it.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/drivekeeper/internal/client/repositories/sessions"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/dbx"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
)

const saltSize = 16

// SessionService defines vault operations for the CLI.
//
// Contract:
//   - Unlock: derive the vault key from a passphrase. The first call
//     initializes the vault; later calls reject a wrong passphrase with
//     common.ErrUnauthorized.
//   - Save / Load: seal and open a session under the vault key.
//   - Logout: forget the session of one identity and audience. The last
//     identity marker is dropped when it names that identity.
//   - LastIdentity: the identity of the most recently saved session.
type SessionService interface {
	Unlock(ctx context.Context, passphrase []byte) ([]byte, error)
	Save(ctx context.Context, key []byte, s *apiclient.Session) error
	Load(ctx context.Context, key []byte, identity string, audience endpoint.Audience) (*apiclient.Session, error)
	Logout(ctx context.Context, identity string, audience endpoint.Audience) error
	LastIdentity(ctx context.Context) (string, error)
}

type sessionService struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionService constructs a SessionService over an opened vault.
func NewSessionService(db *sql.DB) SessionService {
	return &sessionService{db: db, now: time.Now}
}

func (s *sessionService) Unlock(ctx context.Context, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", common.ErrBadRequest)
	}
	meta := metadata.NewSQLiteRepository(s.db)

	salt, err := meta.Get(ctx, metadata.KeySalt)
	if err != nil {
		return nil, err
	}

	if salt == nil {
		salt = cryptox.GenerateRandByteArray(saltSize)
		key := cryptox.DeriveVaultKey(passphrase, salt)

		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			m := metadata.NewSQLiteRepository(tx)
			if err := m.Set(ctx, metadata.KeySalt, salt); err != nil {
				return err
			}
			return m.Set(ctx, metadata.KeyVerifier, cryptox.MakeVerifier(key))
		})
		if err != nil {
			cryptox.WipeByteArray(key)
			return nil, fmt.Errorf("initialize vault: %w", err)
		}
		return key, nil
	}

	verifier, err := meta.Get(ctx, metadata.KeyVerifier)
	if err != nil {
		return nil, err
	}

	key := cryptox.DeriveVaultKey(passphrase, salt)
	if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(key)) == 0 {
		cryptox.WipeByteArray(key)
		return nil, common.ErrUnauthorized
	}
	return key, nil
}

// sealedSession is the plaintext stored under the vault key.
type sealedSession struct {
	Token        string `json:"token"`
	SharedSecret []byte `json:"sharedSecret,omitempty"`
}

func (s *sessionService) Save(ctx context.Context, key []byte, sess *apiclient.Session) error {
	plain, err := json.Marshal(sealedSession{Token: sess.Token, SharedSecret: sess.SharedSecret})
	if err != nil {
		return err
	}
	defer cryptox.WipeByteArray(plain)

	iv, ct, err := cryptox.Encrypt(plain, key)
	if err != nil {
		return err
	}

	stored := &models.StoredSession{
		Identity:   sess.Identity,
		Audience:   sess.Audience.Path(),
		IV:         iv,
		Ciphertext: ct,
		UpdatedAt:  s.now().UTC(),
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := sessions.NewSQLiteRepository(tx).Put(ctx, stored); err != nil {
			return err
		}
		return metadata.NewSQLiteRepository(tx).Set(ctx, metadata.KeyLastIdentity, []byte(sess.Identity))
	})
}

func (s *sessionService) Load(ctx context.Context, key []byte, identity string, audience endpoint.Audience) (*apiclient.Session, error) {
	stored, err := sessions.NewSQLiteRepository(s.db).Get(ctx, identity, audience.Path())
	if err != nil {
		return nil, err
	}

	plain, err := cryptox.Decrypt(stored.IV, stored.Ciphertext, key)
	if err != nil {
		if errors.Is(err, cryptox.ErrCrypto) {
			return nil, fmt.Errorf("%w: stored session: %v", common.ErrUnauthorized, err)
		}
		return nil, err
	}
	defer cryptox.WipeByteArray(plain)

	var ss sealedSession
	if err := json.Unmarshal(plain, &ss); err != nil {
		return nil, fmt.Errorf("%w: stored session: %v", common.ErrUnauthorized, err)
	}
	defer cryptox.WipeByteArray(ss.SharedSecret)

	return apiclient.NewSession(identity, audience, ss.SharedSecret, ss.Token)
}

func (s *sessionService) Logout(ctx context.Context, identity string, audience endpoint.Audience) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := sessions.NewSQLiteRepository(tx).Delete(ctx, identity, audience.Path()); err != nil {
			return err
		}
		meta := metadata.NewSQLiteRepository(tx)
		last, err := meta.Get(ctx, metadata.KeyLastIdentity)
		if err != nil {
			return err
		}
		if string(last) != identity {
			return nil
		}
		return meta.Delete(ctx, metadata.KeyLastIdentity)
	})
}

func (s *sessionService) LastIdentity(ctx context.Context) (string, error) {
	v, err := metadata.NewSQLiteRepository(s.db).Get(ctx, metadata.KeyLastIdentity)
	if err != nil {
		return "", err
	}
	return string(v), nil
}
