package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/stream"
	"github.com/google/uuid"
)

// VideoSource feeds one video payload to a stream.Engine. The payload
// descriptor's DescriptorContent holds the stream.VideoMetadata JSON.
type VideoSource struct {
	p     *Provider
	rt    route
	drive TargetDrive
	file  uuid.UUID
	key   string

	mu   sync.Mutex
	desc *PayloadDescriptor
	kh   *cryptox.KeyHeader
}

func NewVideoSource(p *Provider, drive TargetDrive, fileID uuid.UUID, payloadKey string) *VideoSource {
	return &VideoSource{p: p, rt: localRoute, drive: drive, file: fileID, key: payloadKey}
}

// NewPeerVideoSource streams a video from a remote identity's drive.
func NewPeerVideoSource(p *Provider, remoteIdentity string, drive TargetDrive, fileID uuid.UUID, payloadKey string) (*VideoSource, error) {
	rt, err := remote(remoteIdentity)
	if err != nil {
		return nil, err
	}
	return &VideoSource{p: p, rt: rt, drive: drive, file: fileID, key: payloadKey}, nil
}

func (v *VideoSource) load(ctx context.Context) (*PayloadDescriptor, *cryptox.KeyHeader, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.desc != nil {
		return v.desc, v.kh, nil
	}

	h, err := v.p.getFileHeader(ctx, v.rt, v.drive, v.file)
	if err != nil {
		return nil, nil, err
	}
	desc, err := h.FileMetadata.Payload(v.key)
	if err != nil {
		return nil, nil, err
	}
	var kh *cryptox.KeyHeader
	if desc.IsEncrypted {
		if kh, err = v.p.DecryptKeyHeader(h); err != nil {
			return nil, nil, err
		}
		if kh == nil {
			return nil, nil, cryptox.ErrMissingKeyHeader
		}
	}
	v.desc, v.kh = desc, kh
	return desc, kh, nil
}

// VideoMetadata implements stream.MetadataSource.
func (v *VideoSource) VideoMetadata(ctx context.Context) (*stream.VideoMetadata, error) {
	desc, _, err := v.load(ctx)
	if err != nil {
		return nil, err
	}
	if desc.DescriptorContent == "" {
		return nil, fmt.Errorf("%w: payload %q has no segment map", stream.ErrInvalidMetadata, v.key)
	}

	var meta stream.VideoMetadata
	if err := json.Unmarshal([]byte(desc.DescriptorContent), &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", stream.ErrInvalidMetadata, err)
	}
	if meta.TotalLength == 0 {
		meta.TotalLength = desc.BytesWritten
	}
	if meta.MimeType == "" {
		meta.MimeType = desc.ContentType
	}
	return &meta, nil
}

// FetchRange implements stream.RangeFetcher; [start, end) are plaintext offsets.
func (v *VideoSource) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	desc, kh, err := v.load(ctx)
	if err != nil {
		return nil, err
	}

	params := v.rt.values(v.drive)
	params.Set(ParamFileID, v.file.String())
	params.Set(ParamPayloadKey, v.key)
	r := &apiclient.ByteRange{Start: start, Length: end - start}

	if !desc.IsEncrypted {
		rr, err := v.p.api.GetRange(ctx, v.rt.payload, params, r, v.rt.opts...)
		if err != nil {
			return nil, err
		}
		return rr.Body, nil
	}
	return v.p.fetchDecrypted(ctx, v.rt, params, desc, kh, r)
}

// Close wipes the cached file key.
func (v *VideoSource) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.kh.Wipe()
	v.kh, v.desc = nil, nil
}

// VideoDescriptor renders metadata for PayloadInput.DescriptorContent.
func VideoDescriptor(meta *stream.VideoMetadata) (string, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
