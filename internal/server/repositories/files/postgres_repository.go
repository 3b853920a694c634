package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/dbx"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/google/uuid"
)

const fileColumns = `seq, file_id, global_transit_id, drive_alias, drive_type, state, version_tag,
	file_type, data_type, tags, security_group, metadata, acl, key_header, created, updated`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts file and sets file.Seq from the generated sequence.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	tags, err := json.Marshal(nonNil(file.Tags))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO files (file_id, global_transit_id, drive_alias, drive_type, state, version_tag,
			file_type, data_type, tags, security_group, metadata, acl, key_header, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING seq`

	err = r.db.QueryRowContext(ctx, query,
		file.FileID, file.GlobalTransitID, file.DriveAlias, file.DriveType, file.State, file.VersionTag,
		file.FileType, file.DataType, string(tags), file.SecurityGroup,
		string(file.Metadata), string(file.ACL), nullableJSON(file.KeyHeader),
		file.Created, file.Updated,
	).Scan(&file.Seq)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns one file of a drive.
func (r *PostgresRepository) Get(ctx context.Context, alias, driveType, fileID uuid.UUID) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE drive_alias = $1 AND drive_type = $2 AND file_id = $3`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, alias, driveType, fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// UpdateMetadata replaces the mutable columns when the stored version tag
// matches expectedVersion.
func (r *PostgresRepository) UpdateMetadata(ctx context.Context, file *models.File, expectedVersion string) error {
	tags, err := json.Marshal(nonNil(file.Tags))
	if err != nil {
		return err
	}

	query := `
		UPDATE files SET version_tag = $1, file_type = $2, data_type = $3, tags = $4,
			security_group = $5, metadata = $6, acl = $7, key_header = $8, updated = $9
		WHERE drive_alias = $10 AND drive_type = $11 AND file_id = $12 AND version_tag = $13`

	res, err := r.db.ExecContext(ctx, query,
		file.VersionTag, file.FileType, file.DataType, string(tags),
		file.SecurityGroup, string(file.Metadata), string(file.ACL), nullableJSON(file.KeyHeader), file.Updated,
		file.DriveAlias, file.DriveType, file.FileID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return r.missOrConflict(ctx, file)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) missOrConflict(ctx context.Context, file *models.File) error {
	query := `SELECT EXISTS (SELECT 1 FROM files WHERE drive_alias = $1 AND drive_type = $2 AND file_id = $3)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, file.DriveAlias, file.DriveType, file.FileID).Scan(&exists); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return common.ErrNotFound
	}
	return common.ErrVersionConflict
}

// Query returns up to limit active files of a drive with seq > afterSeq,
// ordered by seq.
func (r *PostgresRepository) Query(ctx context.Context, alias, driveType uuid.UUID, filter models.Filter, afterSeq int64, limit int) ([]*models.File, error) {
	args := []any{alias, driveType, afterSeq}
	conds := []string{"drive_alias = $1", "drive_type = $2", "seq > $3", "state = 'active'"}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(filter.FileTypes) > 0 {
		add("file_type IN (SELECT jsonb_array_elements_text($%d::jsonb)::int)", jsonList(filter.FileTypes))
	}
	if len(filter.DataTypes) > 0 {
		add("data_type IN (SELECT jsonb_array_elements_text($%d::jsonb)::int)", jsonList(filter.DataTypes))
	}
	if len(filter.Tags) > 0 {
		add("tags ?| ARRAY(SELECT jsonb_array_elements_text($%d::jsonb))", jsonList(filter.Tags))
	}
	if filter.ExcludeGroup != "" {
		add("security_group <> $%d", filter.ExcludeGroup)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM files WHERE %s ORDER BY seq LIMIT $%d`,
		fileColumns, strings.Join(conds, " AND "), len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	var (
		f         models.File
		tags      string
		metadata  string
		acl       string
		keyHeader sql.NullString
	)
	err := s.Scan(&f.Seq, &f.FileID, &f.GlobalTransitID, &f.DriveAlias, &f.DriveType, &f.State, &f.VersionTag,
		&f.FileType, &f.DataType, &tags, &f.SecurityGroup, &metadata, &acl, &keyHeader, &f.Created, &f.Updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &f.Tags); err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	f.Metadata = json.RawMessage(metadata)
	f.ACL = json.RawMessage(acl)
	if keyHeader.Valid {
		f.KeyHeader = json.RawMessage(keyHeader.String)
	}
	return &f, nil
}

func nullableJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func jsonList[T any](v []T) string {
	b, _ := json.Marshal(v)
	return string(b)
}
