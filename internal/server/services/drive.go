package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/drive"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/dmitrijs2005/drivekeeper/internal/server/payloads"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/files"
	"github.com/google/uuid"
)

// DriveService implements the drive and transit operations of the host.
//
// Key headers arrive wrapped under the caller's session secret. They are
// re-wrapped under the storage key before they are stored and re-wrapped
// under the reader's secret when a header is served.
type DriveService struct {
	files      files.Repository
	payloads   payloads.Store
	storageKey []byte
	identity   string
	logger     logging.Logger
	now        func() time.Time
}

func NewDriveService(repo files.Repository, store payloads.Store, storageKey []byte, identity string, logger logging.Logger) *DriveService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DriveService{
		files:      repo,
		payloads:   store,
		storageKey: storageKey,
		identity:   identity,
		logger:     logger,
		now:        time.Now,
	}
}

// ServesIdentity reports whether transit calls naming odinID are answered here.
func (s *DriveService) ServesIdentity(odinID string) bool {
	return strings.EqualFold(strings.TrimSpace(odinID), s.identity)
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrBadRequest, fmt.Sprintf(format, args...))
}

func newVersionTag() string {
	return uuid.NewString()
}

// Upload stores a new file and its payloads.
func (s *DriveService) Upload(ctx context.Context, p *Principal, ins *drive.UploadInstructions) (*drive.UploadResponse, error) {
	if err := ins.TargetDrive.Validate(); err != nil {
		return nil, badRequest("%v", err)
	}
	if !ins.AccessControlList.RequiredSecurityGroup.Valid() {
		return nil, badRequest("unknown security group %q", ins.AccessControlList.RequiredSecurityGroup)
	}

	md := ins.FileMetadata
	if md.IsEncrypted && ins.EncryptedKeyHeader == nil {
		return nil, badRequest("encrypted file without key header")
	}

	seen := map[string]bool{}
	for _, pl := range ins.Payloads {
		k := strings.ToLower(pl.Descriptor.Key)
		if k == "" || seen[k] {
			return nil, badRequest("empty or duplicate payload key %q", pl.Descriptor.Key)
		}
		seen[k] = true
	}

	var keyHeader json.RawMessage
	if md.IsEncrypted {
		var err error
		if keyHeader, err = s.sealKeyHeader(ins.EncryptedKeyHeader, p.Secret); err != nil {
			return nil, err
		}
	}

	fileID := uuid.New()
	gtid := uuid.New()

	descriptors := make([]drive.PayloadDescriptor, 0, len(ins.Payloads))
	for _, pl := range ins.Payloads {
		if err := s.payloads.Put(ctx, payloads.Key(ins.TargetDrive.Alias, fileID, pl.Descriptor.Key), pl.Data); err != nil {
			return nil, fmt.Errorf("store payload %s: %w", pl.Descriptor.Key, err)
		}
		descriptors = append(descriptors, pl.Descriptor)
	}

	now := s.now().UnixMilli()
	md.VersionTag = newVersionTag()
	md.Created = now
	md.Updated = now
	md.Payloads = descriptors

	file := &models.File{
		FileID:          fileID,
		GlobalTransitID: gtid,
		DriveAlias:      ins.TargetDrive.Alias,
		DriveType:       ins.TargetDrive.Type,
		State:           models.StateActive,
		KeyHeader:       keyHeader,
		Created:         now,
	}
	if err := fillIndexed(file, &md, &ins.AccessControlList); err != nil {
		return nil, err
	}

	if err := s.files.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	s.logger.Info(ctx, "file stored", "fileId", fileID, "drive", ins.TargetDrive.String(), "payloads", len(descriptors))
	return &drive.UploadResponse{FileID: fileID, GlobalTransitID: &gtid, NewVersionTag: md.VersionTag}, nil
}

// Update replaces a file's AppData when ins.VersionTag is current. A stale
// tag fails with common.ErrVersionConflict and nothing is written.
func (s *DriveService) Update(ctx context.Context, p *Principal, ins *drive.UpdateInstructions) (*drive.UpdateResponse, error) {
	if err := ins.TargetDrive.Validate(); err != nil {
		return nil, badRequest("%v", err)
	}

	file, err := s.files.Get(ctx, ins.TargetDrive.Alias, ins.TargetDrive.Type, ins.FileID)
	if err != nil {
		return nil, err
	}
	if file.VersionTag != ins.VersionTag {
		return nil, fmt.Errorf("%w: have %s", common.ErrVersionConflict, file.VersionTag)
	}

	var md drive.FileMetadata
	if err := json.Unmarshal(file.Metadata, &md); err != nil {
		return nil, fmt.Errorf("%w: stored metadata: %v", common.ErrInternal, err)
	}
	var acl drive.AccessControlList
	if err := json.Unmarshal(file.ACL, &acl); err != nil {
		return nil, fmt.Errorf("%w: stored acl: %v", common.ErrInternal, err)
	}

	if ins.AccessControlList != nil {
		if !ins.AccessControlList.RequiredSecurityGroup.Valid() {
			return nil, badRequest("unknown security group %q", ins.AccessControlList.RequiredSecurityGroup)
		}
		acl = *ins.AccessControlList
	}

	updated := file.Clone()
	if ins.EncryptedKeyHeader != nil {
		if !md.IsEncrypted {
			return nil, badRequest("key header on a plaintext file")
		}
		if updated.KeyHeader, err = s.sealKeyHeader(ins.EncryptedKeyHeader, p.Secret); err != nil {
			return nil, err
		}
	}

	md.AppData = ins.AppData
	md.VersionTag = newVersionTag()
	md.Updated = s.now().UnixMilli()
	updated.Updated = md.Updated

	if err := fillIndexed(updated, &md, &acl); err != nil {
		return nil, err
	}
	if err := s.files.UpdateMetadata(ctx, updated, ins.VersionTag); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file updated", "fileId", ins.FileID, "versionTag", md.VersionTag)
	return &drive.UpdateResponse{NewVersionTag: md.VersionTag}, nil
}

// Header returns one file header with its key header wrapped for p.
// Peer reads never see owner-only files.
func (s *DriveService) Header(ctx context.Context, p *Principal, td drive.TargetDrive, fileID uuid.UUID, peer bool) (*drive.FileHeader, error) {
	file, err := s.get(ctx, td, fileID, peer)
	if err != nil {
		return nil, err
	}
	return s.toHeader(file, p.Secret)
}

// Payload returns payload bytes, optionally a byte range of them. Ranges
// address the stored bytes, which are ciphertext for encrypted files.
func (s *DriveService) Payload(ctx context.Context, td drive.TargetDrive, fileID uuid.UUID, key string, r *payloads.Range, peer bool) (*payloads.Object, error) {
	file, err := s.get(ctx, td, fileID, peer)
	if err != nil {
		return nil, err
	}

	var md drive.FileMetadata
	if err := json.Unmarshal(file.Metadata, &md); err != nil {
		return nil, fmt.Errorf("%w: stored metadata: %v", common.ErrInternal, err)
	}
	if _, err := md.Payload(key); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNotFound, err)
	}

	return s.payloads.Get(ctx, payloads.Key(td.Alias, fileID, key), r)
}

type cursorState struct {
	Seq int64 `json:"seq"`
}

func encodeCursor(seq int64) string {
	b, _ := json.Marshal(cursorState{Seq: seq})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, badRequest("cursor: %v", err)
	}
	var c cursorState
	if err := json.Unmarshal(b, &c); err != nil {
		return 0, badRequest("cursor: %v", err)
	}
	return c.Seq, nil
}

// Query returns one page of headers after cursor. An exhausted cursor
// yields an empty page and the same cursor back.
func (s *DriveService) Query(ctx context.Context, p *Principal, td drive.TargetDrive, q drive.QueryParams, cursor string, peer bool) (*drive.QueryBatchResult, error) {
	if err := td.Validate(); err != nil {
		return nil, badRequest("%v", err)
	}
	afterSeq, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	filter := models.Filter{FileTypes: q.FileTypes, DataTypes: q.DataTypes}
	for _, t := range q.Tags {
		filter.Tags = append(filter.Tags, t.String())
	}
	if peer {
		filter.ExcludeGroup = string(drive.SecurityGroupOwner)
	}

	limit := q.MaxRecords
	if limit <= 0 {
		limit = drive.DefaultMaxRecords
	}

	found, err := s.files.Query(ctx, td.Alias, td.Type, filter, afterSeq, limit)
	if err != nil {
		return nil, err
	}

	res := &drive.QueryBatchResult{Results: make([]drive.FileHeader, 0, len(found)), CursorState: cursor}
	for _, f := range found {
		h, err := s.toHeader(f, p.Secret)
		if err != nil {
			return nil, err
		}
		res.Results = append(res.Results, *h)
		res.CursorState = encodeCursor(f.Seq)
	}
	return res, nil
}

func (s *DriveService) get(ctx context.Context, td drive.TargetDrive, fileID uuid.UUID, peer bool) (*models.File, error) {
	if err := td.Validate(); err != nil {
		return nil, badRequest("%v", err)
	}
	file, err := s.files.Get(ctx, td.Alias, td.Type, fileID)
	if err != nil {
		return nil, err
	}
	if peer && file.SecurityGroup == string(drive.SecurityGroupOwner) {
		return nil, common.ErrNotFound
	}
	return file, nil
}

func (s *DriveService) sealKeyHeader(ekh *cryptox.EncryptedKeyHeader, secret []byte) (json.RawMessage, error) {
	if secret == nil {
		return nil, badRequest("session has no shared secret")
	}
	stored, err := cryptox.RewrapKeyHeader(ekh, secret, s.storageKey)
	if err != nil {
		return nil, badRequest("key header: %v", err)
	}
	return json.Marshal(stored)
}

func (s *DriveService) toHeader(file *models.File, secret []byte) (*drive.FileHeader, error) {
	var md drive.FileMetadata
	if err := json.Unmarshal(file.Metadata, &md); err != nil {
		return nil, fmt.Errorf("%w: stored metadata: %v", common.ErrInternal, err)
	}
	var acl drive.AccessControlList
	if err := json.Unmarshal(file.ACL, &acl); err != nil {
		return nil, fmt.Errorf("%w: stored acl: %v", common.ErrInternal, err)
	}
	md.VersionTag = file.VersionTag

	gtid := file.GlobalTransitID
	h := &drive.FileHeader{
		FileID:          file.FileID,
		GlobalTransitID: &gtid,
		FileState:       drive.FileState(file.State),
		FileMetadata:    md,
		ServerMetadata:  &drive.ServerMetadata{AccessControlList: acl},
	}

	if len(file.KeyHeader) == 0 || secret == nil {
		return h, nil
	}
	var stored cryptox.EncryptedKeyHeader
	if err := json.Unmarshal(file.KeyHeader, &stored); err != nil {
		return nil, fmt.Errorf("%w: stored key header: %v", common.ErrInternal, err)
	}
	ekh, err := cryptox.RewrapKeyHeader(&stored, s.storageKey, secret)
	if err != nil {
		if errors.Is(err, cryptox.ErrCrypto) {
			return nil, fmt.Errorf("%w: key header: %v", common.ErrInternal, err)
		}
		return nil, err
	}
	h.SharedSecretEncryptedKeyHeader = ekh
	return h, nil
}

// fillIndexed copies the queryable fields of md and acl onto file and
// stores both documents.
func fillIndexed(file *models.File, md *drive.FileMetadata, acl *drive.AccessControlList) error {
	file.VersionTag = md.VersionTag
	file.FileType = md.AppData.FileType
	file.DataType = md.AppData.DataType
	file.Tags = file.Tags[:0]
	for _, t := range md.AppData.Tags {
		file.Tags = append(file.Tags, t.String())
	}
	file.SecurityGroup = string(acl.RequiredSecurityGroup)

	var err error
	if file.Metadata, err = json.Marshal(md); err != nil {
		return err
	}
	file.ACL, err = json.Marshal(acl)
	return err
}
