package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alias  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	typ    = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	fileID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	gtid   = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock, db
}

func sampleFile() *models.File {
	return &models.File{
		FileID:          fileID,
		GlobalTransitID: gtid,
		DriveAlias:      alias,
		DriveType:       typ,
		State:           models.StateActive,
		VersionTag:      "v1",
		FileType:        1,
		DataType:        2,
		Tags:            []string{"t1"},
		SecurityGroup:   "owner",
		Metadata:        []byte(`{"versionTag":"v1"}`),
		ACL:             []byte(`{"requiredSecurityGroup":"owner"}`),
		Created:         100,
		Updated:         100,
	}
}

func fileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"seq", "file_id", "global_transit_id", "drive_alias", "drive_type", "state", "version_tag",
		"file_type", "data_type", "tags", "security_group", "metadata", "acl", "key_header", "created", "updated"})
}

func addRow(rows *sqlmock.Rows, seq int64, keyHeader any) *sqlmock.Rows {
	return rows.AddRow(seq, fileID.String(), gtid.String(), alias.String(), typ.String(), "active", "v1",
		int64(1), int64(2), `["t1"]`, "owner", `{"versionTag":"v1"}`, `{"requiredSecurityGroup":"owner"}`, keyHeader, int64(100), int64(100))
}

func TestCreate_SetsSeq(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+files\b.*RETURNING\s+seq$`).
		WithArgs(fileID, gtid, alias, typ, "active", "v1", 1, 2, `["t1"]`, "owner",
			`{"versionTag":"v1"}`, `{"requiredSecurityGroup":"owner"}`, nil, int64(100), int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	f := sampleFile()
	require.NoError(t, repo.Create(context.Background(), f))
	assert.Equal(t, int64(7), f.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+files`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), sampleFile())
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestGet_Found(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM files\s+WHERE drive_alias = \$1 AND drive_type = \$2 AND file_id = \$3`).
		WithArgs(alias, typ, fileID).
		WillReturnRows(addRow(fileRows(), 3, `{"type":11}`))

	f, err := repo.Get(context.Background(), alias, typ, fileID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.Seq)
	assert.Equal(t, fileID, f.FileID)
	assert.Equal(t, []string{"t1"}, f.Tags)
	assert.JSONEq(t, `{"type":11}`, string(f.KeyHeader))
}

func TestGet_NullKeyHeader(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT`).WillReturnRows(addRow(fileRows(), 3, nil))

	f, err := repo.Get(context.Background(), alias, typ, fileID)
	require.NoError(t, err)
	assert.Nil(t, f.KeyHeader)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), alias, typ, fileID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

const updateQuery = `(?s)^\s*UPDATE files SET .*\s+WHERE drive_alias = \$10 AND drive_type = \$11 AND file_id = \$12 AND version_tag = \$13$`

func TestUpdateMetadata_Success(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	f := sampleFile()
	f.VersionTag = "v2"

	mock.ExpectExec(updateQuery).
		WithArgs("v2", 1, 2, `["t1"]`, "owner", `{"versionTag":"v1"}`, `{"requiredSecurityGroup":"owner"}`, nil, int64(100),
			alias, typ, fileID, "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateMetadata(context.Background(), f, "v1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMetadata_StaleVersion(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(updateQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs(alias, typ, fileID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateMetadata(context.Background(), sampleFile(), "stale")
	require.ErrorIs(t, err, common.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMetadata_Missing(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(updateQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.UpdateMetadata(context.Background(), sampleFile(), "v1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateMetadata_RowsAffectedErr(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(updateQuery).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	err := repo.UpdateMetadata(context.Background(), sampleFile(), "v1")
	require.Error(t, err)
	assert.Regexp(t, `rows affected error: .*rows-err`, err.Error())
}

func TestQuery_NoFilter(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE drive_alias = $1 AND drive_type = $2 AND seq > $3 AND state = 'active' ORDER BY seq LIMIT $4`)).
		WithArgs(alias, typ, int64(5), 10).
		WillReturnRows(addRow(addRow(fileRows(), 6, nil), 9, nil))

	got, err := repo.Query(context.Background(), alias, typ, models.Filter{}, 5, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(6), got[0].Seq)
	assert.Equal(t, int64(9), got[1].Seq)
}

func TestQuery_AllFilters(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`state = 'active' AND file_type IN (SELECT jsonb_array_elements_text($4::jsonb)::int)`+
			` AND data_type IN (SELECT jsonb_array_elements_text($5::jsonb)::int)`+
			` AND tags ?| ARRAY(SELECT jsonb_array_elements_text($6::jsonb))`+
			` AND security_group <> $7 ORDER BY seq LIMIT $8`)).
		WithArgs(alias, typ, int64(0), `[1,2]`, `[3]`, `["a"]`, "owner", 100).
		WillReturnRows(fileRows())

	got, err := repo.Query(context.Background(), alias, typ, models.Filter{
		FileTypes:    []int{1, 2},
		DataTypes:    []int{3},
		Tags:         []string{"a"},
		ExcludeGroup: "owner",
	}, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("boom"))

	_, err := repo.Query(context.Background(), alias, typ, models.Filter{}, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select files")
}
