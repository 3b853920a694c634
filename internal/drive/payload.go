package drive

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/google/uuid"
)

// GetPayloadBytes returns the plaintext bytes of a payload, optionally
// restricted to r (plaintext offsets).
//
// Encrypted payloads are AES-CBC, so a range is widened to whole 16-byte
// blocks and the ciphertext block before it is fetched to serve as IV.
// Padding is stripped only when the fetched range reaches the final block.
func (p *Provider) GetPayloadBytes(ctx context.Context, drive TargetDrive, fileID uuid.UUID, key string, r *apiclient.ByteRange) ([]byte, error) {
	return p.getPayloadBytes(ctx, localRoute, drive, fileID, key, r)
}

func (p *Provider) getPayloadBytes(ctx context.Context, rt route, drive TargetDrive, fileID uuid.UUID, key string, r *apiclient.ByteRange) ([]byte, error) {
	h, err := p.getFileHeader(ctx, rt, drive, fileID)
	if err != nil {
		return nil, err
	}
	desc, err := h.FileMetadata.Payload(key)
	if err != nil {
		return nil, err
	}

	v := rt.values(drive)
	v.Set(ParamFileID, fileID.String())
	v.Set(ParamPayloadKey, key)

	if !desc.IsEncrypted {
		rr, err := p.api.GetRange(ctx, rt.payload, v, r, rt.opts...)
		if err != nil {
			return nil, fmt.Errorf("get payload %s/%s: %w", fileID, key, err)
		}
		return rr.Body, nil
	}

	kh, err := p.DecryptKeyHeader(h)
	if err != nil {
		return nil, err
	}
	if kh == nil {
		return nil, cryptox.ErrMissingKeyHeader
	}
	defer kh.Wipe()

	return p.fetchDecrypted(ctx, rt, v, desc, kh, r)
}

// blockRange maps a plaintext range onto the ciphertext range to fetch. The
// fetched range starts one block early when the IV is a ciphertext block.
func blockRange(r *apiclient.ByteRange) (fetch *apiclient.ByteRange, firstBlock int64) {
	bs := int64(cryptox.IVSize)
	firstBlock = r.Start / bs * bs

	start := firstBlock
	if start > 0 {
		start -= bs
	}
	if r.Length <= 0 {
		return &apiclient.ByteRange{Start: start}, firstBlock
	}
	lastBlockEnd := (r.End()/bs)*bs + bs
	return &apiclient.ByteRange{Start: start, Length: lastBlockEnd - start}, firstBlock
}

func (p *Provider) fetchDecrypted(ctx context.Context, rt route, v url.Values, desc *PayloadDescriptor, kh *cryptox.KeyHeader, r *apiclient.ByteRange) ([]byte, error) {
	if r == nil {
		rr, err := p.api.GetRange(ctx, rt.payload, v, nil, rt.opts...)
		if err != nil {
			return nil, fmt.Errorf("get payload %s: %w", desc.Key, err)
		}
		return cryptox.Decrypt(desc.IV, rr.Body, kh.AesKey)
	}

	fetch, firstBlock := blockRange(r)
	rr, err := p.api.GetRange(ctx, rt.payload, v, fetch, rt.opts...)
	if err != nil {
		return nil, fmt.Errorf("get payload %s range %s: %w", desc.Key, fetch.Header(), err)
	}

	if !rr.Partial {
		// host ignored the Range header and sent the whole payload
		plain, err := cryptox.Decrypt(desc.IV, rr.Body, kh.AesKey)
		if err != nil {
			return nil, err
		}
		return sliceRange(plain, r.Start, r.Length), nil
	}

	body := rr.Body
	iv := desc.IV
	if firstBlock > 0 {
		if len(body) < cryptox.IVSize {
			return nil, fmt.Errorf("%w: short range response", cryptox.ErrLengthMismatch)
		}
		iv, body = body[:cryptox.IVSize], body[cryptox.IVSize:]
	}
	if len(body) == 0 {
		return []byte{}, nil
	}

	plain, err := cryptox.DecryptBlocks(iv, body, kh.AesKey)
	if err != nil {
		return nil, err
	}
	if rr.Total >= 0 && rr.End+1 >= rr.Total {
		if plain, err = cryptox.Unpad(plain, cryptox.IVSize); err != nil {
			return nil, err
		}
	}

	return sliceRange(plain, r.Start-firstBlock, r.Length), nil
}

func sliceRange(b []byte, from, length int64) []byte {
	if from >= int64(len(b)) {
		return []byte{}
	}
	to := int64(len(b))
	if length > 0 && from+length < to {
		to = from + length
	}
	return b[from:to]
}
