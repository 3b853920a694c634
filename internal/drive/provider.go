package drive

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
	"github.com/google/uuid"
)

// API is the part of apiclient.Client the provider needs.
type API interface {
	Get(ctx context.Context, path string, params url.Values, opts ...apiclient.CallOption) (*apiclient.Response, error)
	Post(ctx context.Context, path string, body any, opts ...apiclient.CallOption) (*apiclient.Response, error)
	GetRange(ctx context.Context, path string, params url.Values, r *apiclient.ByteRange, opts ...apiclient.CallOption) (*apiclient.RangeResponse, error)
	Session() *apiclient.Session
}

// Provider reads and writes one identity's drives. It keeps no per-call
// state; cursors are owned by the caller.
type Provider struct {
	api    API
	logger logging.Logger
}

func NewProvider(api API, logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provider{api: api, logger: logger}
}

// route selects the owner or transit flavour of the read calls.
type route struct {
	header, payload, batch string
	params                 url.Values
	opts                   []apiclient.CallOption
}

var localRoute = route{header: PathFileHeader, payload: PathFilePayload, batch: PathQueryBatch}

func peerRoute(remoteIdentity string) route {
	return route{
		header:  PathTransitHeader,
		payload: PathTransitPayload,
		batch:   PathTransitBatch,
		params:  url.Values{ParamOdinID: {remoteIdentity}},
		opts:    []apiclient.CallOption{apiclient.WithAudience(endpoint.Peer)},
	}
}

func (r route) values(drive TargetDrive) url.Values {
	v := drive.params()
	for k, vs := range r.params {
		v[k] = append([]string(nil), vs...)
	}
	return v
}

// GetFileHeader fetches one file header.
func (p *Provider) GetFileHeader(ctx context.Context, drive TargetDrive, fileID uuid.UUID) (*FileHeader, error) {
	return p.getFileHeader(ctx, localRoute, drive, fileID)
}

func (p *Provider) getFileHeader(ctx context.Context, r route, drive TargetDrive, fileID uuid.UUID) (*FileHeader, error) {
	if err := drive.Validate(); err != nil {
		return nil, err
	}
	v := r.values(drive)
	v.Set(ParamFileID, fileID.String())

	resp, err := p.api.Get(ctx, r.header, v, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("get file header %s: %w", fileID, err)
	}
	var h FileHeader
	if err := resp.Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

// DecryptKeyHeader unwraps the header's per-file key with the session secret.
// Unencrypted files have no key header and yield (nil, nil).
func (p *Provider) DecryptKeyHeader(h *FileHeader) (*cryptox.KeyHeader, error) {
	if !h.FileMetadata.IsEncrypted {
		return nil, nil
	}
	if h.SharedSecretEncryptedKeyHeader == nil {
		return nil, cryptox.ErrMissingKeyHeader
	}
	secret := p.api.Session().SharedSecret
	if secret == nil {
		return nil, fmt.Errorf("%w: session has no shared secret", cryptox.ErrMissingKeyHeader)
	}
	return cryptox.UnwrapKeyHeader(h.SharedSecretEncryptedKeyHeader, secret)
}

// DecryptJSONContent returns the plaintext JSON content of a file. An
// encrypted file without a key header fails with cryptox.ErrMissingKeyHeader.
func DecryptJSONContent(md *FileMetadata, kh *cryptox.KeyHeader) ([]byte, error) {
	if !md.IsEncrypted {
		return []byte(md.AppData.Content), nil
	}
	if kh == nil {
		return nil, cryptox.ErrMissingKeyHeader
	}
	if md.AppData.Content == "" {
		return nil, nil
	}
	ct, err := base64.StdEncoding.DecodeString(md.AppData.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: content is not base64: %v", cryptox.ErrLengthMismatch, err)
	}
	return kh.DecryptContent(ct)
}

func encryptJSONContent(content string, kh *cryptox.KeyHeader) (string, error) {
	if content == "" {
		return "", nil
	}
	ct, err := kh.EncryptContent([]byte(content))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// decryptHeader is the per-file half of a decrypted query.
func (p *Provider) decryptHeader(h *FileHeader) ([]byte, error) {
	kh, err := p.DecryptKeyHeader(h)
	if err != nil {
		return nil, err
	}
	defer kh.Wipe()
	return DecryptJSONContent(&h.FileMetadata, kh)
}
