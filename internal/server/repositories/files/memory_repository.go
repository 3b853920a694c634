package files

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository implements Repository in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	seq   int64
	files []*models.File
	byID  map[uuid.UUID]*models.File
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[uuid.UUID]*models.File{}}
}

func (r *MemoryRepository) Create(_ context.Context, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	file.Seq = r.seq
	stored := file.Clone()
	r.files = append(r.files, stored)
	r.byID[file.FileID] = stored
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, alias, driveType, fileID uuid.UUID) (*models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.byID[fileID]
	if !ok || f.DriveAlias != alias || f.DriveType != driveType {
		return nil, common.ErrNotFound
	}
	return f.Clone(), nil
}

func (r *MemoryRepository) UpdateMetadata(_ context.Context, file *models.File, expectedVersion string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.byID[file.FileID]
	if !ok || f.DriveAlias != file.DriveAlias || f.DriveType != file.DriveType {
		return common.ErrNotFound
	}
	if f.VersionTag != expectedVersion {
		return common.ErrVersionConflict
	}

	u := file.Clone()
	f.VersionTag = u.VersionTag
	f.FileType = u.FileType
	f.DataType = u.DataType
	f.Tags = u.Tags
	f.SecurityGroup = u.SecurityGroup
	f.Metadata = u.Metadata
	f.ACL = u.ACL
	f.KeyHeader = u.KeyHeader
	f.Updated = u.Updated
	return nil
}

func (r *MemoryRepository) Query(_ context.Context, alias, driveType uuid.UUID, filter models.Filter, afterSeq int64, limit int) ([]*models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.File
	for _, f := range r.files {
		if len(out) >= limit {
			break
		}
		if f.Seq <= afterSeq || f.DriveAlias != alias || f.DriveType != driveType || f.State != models.StateActive {
			continue
		}
		if !filter.Match(f) {
			continue
		}
		out = append(out, f.Clone())
	}
	return out, nil
}
