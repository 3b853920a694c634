package drive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/google/uuid"
)

var ErrInvalidUpload = errors.New("invalid upload")

// PayloadInput is a plaintext payload to upload.
type PayloadInput struct {
	Key               string
	ContentType       string
	Data              []byte
	Thumbnails        []ThumbDescriptor
	DescriptorContent string
}

// UploadRequest describes a new file. AppData.Content is plaintext JSON; it
// and every payload are encrypted when Encrypt is set.
type UploadRequest struct {
	Drive    TargetDrive
	ACL      *AccessControlList
	AppData  AppData
	Payloads []PayloadInput
	Encrypt  bool
}

// UploadResult carries the new ids. KeyHeader is the per-file key of an
// encrypted upload; the caller owns it and should Wipe it when done.
type UploadResult struct {
	FileID          uuid.UUID
	GlobalTransitID *uuid.UUID
	VersionTag      string
	KeyHeader       *cryptox.KeyHeader
}

// UploadFile stores a new file. With Encrypt a fresh per-file KeyHeader is
// generated, content and payloads are encrypted under it, and the header is
// wrapped under the session secret before it leaves the process.
func (p *Provider) UploadFile(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := req.Drive.Validate(); err != nil {
		return nil, err
	}
	acl := OwnerOnly
	if req.ACL != nil {
		acl = *req.ACL
	}
	if !acl.RequiredSecurityGroup.Valid() {
		return nil, fmt.Errorf("%w: security group %q", ErrInvalidUpload, acl.RequiredSecurityGroup)
	}

	now := time.Now().UnixMilli()
	ins := UploadInstructions{
		TargetDrive:       req.Drive,
		AccessControlList: acl,
		FileMetadata: FileMetadata{
			IsEncrypted: req.Encrypt,
			AppData:     req.AppData,
			Created:     now,
			Updated:     now,
		},
	}

	var kh *cryptox.KeyHeader
	if req.Encrypt {
		secret := p.api.Session().SharedSecret
		if secret == nil {
			return nil, fmt.Errorf("%w: encrypted upload needs a shared secret", cryptox.ErrMissingKeyHeader)
		}
		kh = cryptox.NewKeyHeader()

		content, err := encryptJSONContent(req.AppData.Content, kh)
		if err != nil {
			kh.Wipe()
			return nil, err
		}
		ins.FileMetadata.AppData.Content = content

		ekh, err := cryptox.WrapKeyHeader(kh, secret)
		if err != nil {
			kh.Wipe()
			return nil, err
		}
		ins.EncryptedKeyHeader = ekh
	}

	seen := make(map[string]struct{}, len(req.Payloads))
	for _, in := range req.Payloads {
		if in.Key == "" {
			kh.Wipe()
			return nil, fmt.Errorf("%w: payload key is empty", ErrInvalidUpload)
		}
		if _, dup := seen[in.Key]; dup {
			kh.Wipe()
			return nil, fmt.Errorf("%w: duplicate payload key %q", ErrInvalidUpload, in.Key)
		}
		seen[in.Key] = struct{}{}

		pu, err := preparePayload(in, kh, now)
		if err != nil {
			kh.Wipe()
			return nil, err
		}
		ins.FileMetadata.Payloads = append(ins.FileMetadata.Payloads, pu.Descriptor)
		ins.Payloads = append(ins.Payloads, pu)
	}

	resp, err := p.api.Post(ctx, PathUpload, ins)
	if err != nil {
		kh.Wipe()
		return nil, fmt.Errorf("upload file: %w", err)
	}
	var out UploadResponse
	if err := resp.Decode(&out); err != nil {
		kh.Wipe()
		return nil, err
	}

	p.logger.Info(ctx, "file uploaded", "fileId", out.FileID, "drive", req.Drive.String(), "encrypted", req.Encrypt, "payloads", len(ins.Payloads))

	return &UploadResult{
		FileID:          out.FileID,
		GlobalTransitID: out.GlobalTransitID,
		VersionTag:      out.NewVersionTag,
		KeyHeader:       kh,
	}, nil
}

func preparePayload(in PayloadInput, kh *cryptox.KeyHeader, now int64) (PayloadUpload, error) {
	desc := PayloadDescriptor{
		Key:               in.Key,
		ContentType:       in.ContentType,
		BytesWritten:      int64(len(in.Data)),
		LastModified:      now,
		Thumbnails:        in.Thumbnails,
		DescriptorContent: in.DescriptorContent,
	}
	if kh == nil {
		return PayloadUpload{Descriptor: desc, Data: in.Data}, nil
	}

	iv := cryptox.GenerateRandByteArray(cryptox.IVSize)
	ct, err := kh.EncryptContentWithIV(in.Data, iv)
	if err != nil {
		return PayloadUpload{}, err
	}
	desc.IsEncrypted = true
	desc.IV = iv
	return PayloadUpload{Descriptor: desc, Data: ct}, nil
}

// UpdateRequest replaces the AppData of an existing file. VersionTag must be
// the tag last read; a stale tag fails with common.ErrVersionConflict and
// nothing is written. KeyHeader is required for encrypted files.
type UpdateRequest struct {
	Drive      TargetDrive
	FileID     uuid.UUID
	VersionTag string
	AppData    AppData
	ACL        *AccessControlList
	Encrypted  bool
	KeyHeader  *cryptox.KeyHeader
}

// UpdateFileHeader writes new metadata and returns the new version tag.
// Encrypted content is sealed under a fresh content IV, and the re-wrapped key
// header travels with the update, so payload IVs stay valid.
func (p *Provider) UpdateFileHeader(ctx context.Context, req UpdateRequest) (string, error) {
	if err := req.Drive.Validate(); err != nil {
		return "", err
	}
	if req.VersionTag == "" {
		return "", fmt.Errorf("%w: version tag is required", ErrInvalidUpload)
	}

	ins := UpdateInstructions{
		TargetDrive:       req.Drive,
		FileID:            req.FileID,
		VersionTag:        req.VersionTag,
		AppData:           req.AppData,
		AccessControlList: req.ACL,
	}

	if req.Encrypted {
		if req.KeyHeader == nil {
			return "", cryptox.ErrMissingKeyHeader
		}
		secret := p.api.Session().SharedSecret
		if secret == nil {
			return "", fmt.Errorf("%w: encrypted update needs a shared secret", cryptox.ErrMissingKeyHeader)
		}

		kh := &cryptox.KeyHeader{
			IV:     cryptox.GenerateRandByteArray(cryptox.IVSize),
			AesKey: append([]byte(nil), req.KeyHeader.AesKey...),
		}
		defer kh.Wipe()

		content, err := encryptJSONContent(req.AppData.Content, kh)
		if err != nil {
			return "", err
		}
		ins.AppData.Content = content

		ekh, err := cryptox.WrapKeyHeader(kh, secret)
		if err != nil {
			return "", err
		}
		ins.EncryptedKeyHeader = ekh
	}

	resp, err := p.api.Post(ctx, PathUpdate, ins)
	if err != nil {
		return "", fmt.Errorf("update file %s: %w", req.FileID, err)
	}
	var out UpdateResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	return out.NewVersionTag, nil
}
