package drive

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/google/uuid"
)

// The OverPeer variants read a remote identity's drive through the Peer
// audience. Decoding and decryption follow the local calls exactly.

func (p *Provider) GetFileHeaderOverPeer(ctx context.Context, remoteIdentity string, drive TargetDrive, fileID uuid.UUID) (*FileHeader, error) {
	r, err := remote(remoteIdentity)
	if err != nil {
		return nil, err
	}
	return p.getFileHeader(ctx, r, drive, fileID)
}

func (p *Provider) GetPayloadBytesOverPeer(ctx context.Context, remoteIdentity string, drive TargetDrive, fileID uuid.UUID, key string, rng *apiclient.ByteRange) ([]byte, error) {
	r, err := remote(remoteIdentity)
	if err != nil {
		return nil, err
	}
	return p.getPayloadBytes(ctx, r, drive, fileID, key, rng)
}

func (p *Provider) QueryBatchOverPeer(ctx context.Context, remoteIdentity string, drive TargetDrive, q QueryParams, cursor string) (*QueryBatchResult, error) {
	r, err := remote(remoteIdentity)
	if err != nil {
		return nil, err
	}
	return p.queryBatch(ctx, r, drive, q, cursor)
}

func (p *Provider) QueryBatchDecryptedOverPeer(ctx context.Context, remoteIdentity string, drive TargetDrive, q QueryParams, cursor string) ([]DecryptedFile, string, error) {
	r, err := remote(remoteIdentity)
	if err != nil {
		return nil, "", err
	}
	return p.queryBatchDecrypted(ctx, r, drive, q, cursor)
}

func remote(identity string) (route, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return route{}, endpoint.ErrMissingIdentity
	}
	return peerRoute(identity), nil
}
