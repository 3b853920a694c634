package drive

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef")

func testDrive() TargetDrive {
	return TargetDrive{Alias: uuid.MustParse("6a3c4f1e-8e43-4bd2-9b0c-6f2f3e1c0a01"), Type: uuid.MustParse("2d8b3a9c-1f6e-4c2a-8d7b-5e4f3a2b1c0d")}
}

func newTestProvider() (*Provider, *fakeAPI) {
	api := newFakeAPI(secret)
	return NewProvider(api, nil), api
}

func mustContent(t *testing.T, c Content) string {
	t.Helper()
	s, err := WrapContent(c)
	require.NoError(t, err)
	return s
}

func TestUploadFile_EncryptedRoundTrip(t *testing.T) {
	p, api := newTestProvider()
	ctx := context.Background()
	content := mustContent(t, Post{Caption: "holiday"})

	res, err := p.UploadFile(ctx, UploadRequest{
		Drive:   testDrive(),
		AppData: AppData{FileType: 101, DataType: 7, Content: content},
		Payloads: []PayloadInput{
			{Key: "pst_mdi0", ContentType: "image/jpeg", Data: []byte("jpeg bytes")},
		},
		Encrypt: true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.KeyHeader)
	require.Equal(t, "v1", res.VersionTag)
	defer res.KeyHeader.Wipe()

	stored := api.files[0]
	require.NotContains(t, stored.header.FileMetadata.AppData.Content, "holiday")
	require.False(t, bytes.Equal([]byte("jpeg bytes"), stored.payloads["pst_mdi0"]))
	require.NotNil(t, stored.header.SharedSecretEncryptedKeyHeader)
	require.Equal(t, OwnerOnly, stored.header.ServerMetadata.AccessControlList)

	h, err := p.GetFileHeader(ctx, testDrive(), res.FileID)
	require.NoError(t, err)
	require.True(t, h.FileMetadata.IsEncrypted)

	kh, err := p.DecryptKeyHeader(h)
	require.NoError(t, err)
	require.Equal(t, res.KeyHeader.AesKey, kh.AesKey)

	plain, err := DecryptJSONContent(&h.FileMetadata, kh)
	require.NoError(t, err)
	c, err := ParseContent(plain)
	require.NoError(t, err)
	require.Equal(t, Post{Caption: "holiday"}, c)

	payload, err := p.GetPayloadBytes(ctx, testDrive(), res.FileID, "pst_mdi0", nil)
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg bytes"), payload)
}

func TestUploadFile_Plain(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()
	acl := AccessControlList{RequiredSecurityGroup: SecurityGroupAnonymous}

	res, err := p.UploadFile(ctx, UploadRequest{
		Drive:    testDrive(),
		ACL:      &acl,
		AppData:  AppData{FileType: 1, Content: `{"kind":"post","data":{"caption":"hi"}}`},
		Payloads: []PayloadInput{{Key: "txt", ContentType: "text/plain", Data: []byte("hello")}},
	})
	require.NoError(t, err)
	require.Nil(t, res.KeyHeader)

	h, err := p.GetFileHeader(ctx, testDrive(), res.FileID)
	require.NoError(t, err)

	kh, err := p.DecryptKeyHeader(h)
	require.NoError(t, err)
	require.Nil(t, kh)

	plain, err := DecryptJSONContent(&h.FileMetadata, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"post","data":{"caption":"hi"}}`, string(plain))

	b, err := p.GetPayloadBytes(ctx, testDrive(), res.FileID, "txt", &apiclient.ByteRange{Start: 1, Length: 3})
	require.NoError(t, err)
	require.Equal(t, []byte("ell"), b)
}

func TestUploadFile_Validation(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	_, err := p.UploadFile(ctx, UploadRequest{})
	require.ErrorIs(t, err, ErrInvalidDrive)

	bad := AccessControlList{RequiredSecurityGroup: "friends"}
	_, err = p.UploadFile(ctx, UploadRequest{Drive: testDrive(), ACL: &bad})
	require.ErrorIs(t, err, ErrInvalidUpload)

	_, err = p.UploadFile(ctx, UploadRequest{Drive: testDrive(), Payloads: []PayloadInput{{Key: "a"}, {Key: "a"}}})
	require.ErrorIs(t, err, ErrInvalidUpload)

	noSecret := newFakeAPI(nil)
	_, err = NewProvider(noSecret, nil).UploadFile(ctx, UploadRequest{Drive: testDrive(), Encrypt: true})
	require.ErrorIs(t, err, cryptox.ErrCrypto)
}

func TestDecryptJSONContent_EncryptedWithoutKeyHeader(t *testing.T) {
	md := &FileMetadata{IsEncrypted: true, AppData: AppData{Content: base64.StdEncoding.EncodeToString(make([]byte, 16))}}

	_, err := DecryptJSONContent(md, nil)
	require.ErrorIs(t, err, cryptox.ErrMissingKeyHeader)
	require.ErrorIs(t, err, cryptox.ErrCrypto)

	p, _ := newTestProvider()
	_, err = p.DecryptKeyHeader(&FileHeader{FileMetadata: *md})
	require.ErrorIs(t, err, cryptox.ErrMissingKeyHeader)
}

func TestGetPayloadBytes_EncryptedRanges(t *testing.T) {
	p, api := newTestProvider()
	ctx := context.Background()

	plain := make([]byte, 100)
	for i := range plain {
		plain[i] = byte(i)
	}
	res, err := p.UploadFile(ctx, UploadRequest{
		Drive:    testDrive(),
		Payloads: []PayloadInput{{Key: "vid", ContentType: "video/mp4", Data: plain}},
		Encrypt:  true,
	})
	require.NoError(t, err)
	require.Len(t, api.files[0].payloads["vid"], 112)

	tests := []struct {
		start, length int64
	}{
		{0, 1}, {0, 16}, {0, 17}, {15, 2}, {16, 16}, {17, 30},
		{31, 1}, {40, 60}, {90, 10}, {95, 50}, {96, 4}, {99, 1}, {33, 0}, {0, 0},
	}
	for _, tc := range tests {
		got, err := p.GetPayloadBytes(ctx, testDrive(), res.FileID, "vid", &apiclient.ByteRange{Start: tc.start, Length: tc.length})
		require.NoError(t, err, "range %d+%d", tc.start, tc.length)

		end := int64(len(plain))
		if tc.length > 0 && tc.start+tc.length < end {
			end = tc.start + tc.length
		}
		require.Equal(t, plain[tc.start:end], got, "range %d+%d", tc.start, tc.length)
	}

	// ciphertext ranges are block aligned and start one block early for the IV
	require.Contains(t, api.ranges, "bytes=0-15")
	require.Contains(t, api.ranges, "bytes=0-47")
	require.Contains(t, api.ranges, "bytes=16-111")
	require.Contains(t, api.ranges, "bytes=16-")

	api.ignoreRange = true
	got, err := p.GetPayloadBytes(ctx, testDrive(), res.FileID, "vid", &apiclient.ByteRange{Start: 17, Length: 30})
	require.NoError(t, err)
	require.Equal(t, plain[17:47], got)
}

func TestGetPayloadBytes_MissingPayload(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	res, err := p.UploadFile(ctx, UploadRequest{Drive: testDrive(), AppData: AppData{Content: "{}"}})
	require.NoError(t, err)

	_, err = p.GetPayloadBytes(ctx, testDrive(), res.FileID, "nope", nil)
	require.ErrorIs(t, err, ErrPayloadAbsent)

	_, err = p.GetFileHeader(ctx, testDrive(), uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestQueryBatch_CursorWalkVisitsEachFileOnce(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	want := map[uuid.UUID]bool{}
	for i := 0; i < 7; i++ {
		res, err := p.UploadFile(ctx, UploadRequest{Drive: testDrive(), AppData: AppData{FileType: i, Content: "{}"}})
		require.NoError(t, err)
		want[res.FileID] = true
	}

	seen := map[uuid.UUID]int{}
	cursor := ""
	pages := 0
	for {
		res, err := p.QueryBatch(ctx, testDrive(), QueryParams{MaxRecords: 3}, cursor)
		require.NoError(t, err)
		if len(res.Results) == 0 {
			break
		}
		pages++
		for _, h := range res.Results {
			seen[h.FileID]++
		}
		cursor = res.CursorState
	}

	require.Equal(t, 3, pages)
	require.Len(t, seen, len(want))
	for id, n := range seen {
		require.True(t, want[id])
		require.Equal(t, 1, n)
	}

	count := 0
	require.NoError(t, p.QueryAll(ctx, testDrive(), QueryParams{MaxRecords: 2}, func(FileHeader) error {
		count++
		return nil
	}))
	require.Equal(t, 7, count)
}

func TestQueryBatchDecrypted_IsolatesBadEntry(t *testing.T) {
	p, api := newTestProvider()
	ctx := context.Background()

	for _, caption := range []string{"one", "two", "three"} {
		_, err := p.UploadFile(ctx, UploadRequest{Drive: testDrive(), AppData: AppData{Content: mustContent(t, Post{Caption: caption})}, Encrypt: true})
		require.NoError(t, err)
	}

	// wrap the second file's key under a different secret
	other, err := cryptox.WrapKeyHeader(cryptox.NewKeyHeader(), []byte("fedcba9876543210"))
	require.NoError(t, err)
	api.files[1].header.SharedSecretEncryptedKeyHeader = other

	files, cursor, err := p.QueryBatchDecrypted(ctx, testDrive(), QueryParams{}, "")
	require.NoError(t, err)
	require.Len(t, files, 3)
	require.NotEmpty(t, cursor)

	require.NoError(t, files[0].Err)
	require.Error(t, files[1].Err)
	require.NoError(t, files[2].Err)

	c, err := ParseContent(files[2].Content)
	require.NoError(t, err)
	require.Equal(t, Post{Caption: "three"}, c)
}

func TestUpdateFileHeader_StaleVersionWritesNothing(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	res, err := p.UploadFile(ctx, UploadRequest{Drive: testDrive(), AppData: AppData{Content: mustContent(t, Post{Caption: "v1"})}, Encrypt: true})
	require.NoError(t, err)

	newTag, err := p.UpdateFileHeader(ctx, UpdateRequest{
		Drive: testDrive(), FileID: res.FileID, VersionTag: res.VersionTag,
		AppData: AppData{Content: mustContent(t, Post{Caption: "v2"})}, Encrypted: true, KeyHeader: res.KeyHeader,
	})
	require.NoError(t, err)
	require.NotEqual(t, res.VersionTag, newTag)

	_, err = p.UpdateFileHeader(ctx, UpdateRequest{
		Drive: testDrive(), FileID: res.FileID, VersionTag: res.VersionTag,
		AppData: AppData{Content: mustContent(t, Post{Caption: "stale"})}, Encrypted: true, KeyHeader: res.KeyHeader,
	})
	require.ErrorIs(t, err, common.ErrVersionConflict)

	h, err := p.GetFileHeader(ctx, testDrive(), res.FileID)
	require.NoError(t, err)
	require.Equal(t, newTag, h.FileMetadata.VersionTag)

	kh, err := p.DecryptKeyHeader(h)
	require.NoError(t, err)
	plain, err := DecryptJSONContent(&h.FileMetadata, kh)
	require.NoError(t, err)
	c, err := ParseContent(plain)
	require.NoError(t, err)
	require.Equal(t, Post{Caption: "v2"}, c)

	_, err = p.UpdateFileHeader(ctx, UpdateRequest{Drive: testDrive(), FileID: res.FileID, VersionTag: newTag, Encrypted: true})
	require.ErrorIs(t, err, cryptox.ErrMissingKeyHeader)

	_, err = p.UpdateFileHeader(ctx, UpdateRequest{Drive: testDrive(), FileID: res.FileID})
	require.ErrorIs(t, err, ErrInvalidUpload)
}

func TestTransit_RoutesThroughPeerWithOdinID(t *testing.T) {
	p, api := newTestProvider()
	ctx := context.Background()

	acl := AccessControlList{RequiredSecurityGroup: SecurityGroupConnected}
	res, err := p.UploadFile(ctx, UploadRequest{Drive: testDrive(), ACL: &acl, AppData: AppData{Content: mustContent(t, Article{Title: "t", Body: "b"})}, Encrypt: true})
	require.NoError(t, err)

	h, err := p.GetFileHeaderOverPeer(ctx, "sam.dotyou.cloud", testDrive(), res.FileID)
	require.NoError(t, err)
	require.Equal(t, res.FileID, h.FileID)
	require.Equal(t, "sam.dotyou.cloud", api.last.Get(ParamOdinID))
	require.Equal(t, 1, api.calls[PathTransitHeader])

	files, _, err := p.QueryBatchDecryptedOverPeer(ctx, "sam.dotyou.cloud", testDrive(), QueryParams{}, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, files[0].Err)
	require.Equal(t, 1, api.calls[PathTransitBatch])

	_, err = p.QueryBatchOverPeer(ctx, " ", testDrive(), QueryParams{}, "")
	require.ErrorIs(t, err, endpoint.ErrMissingIdentity)
}

func TestParseTargetDriveAndQueryParams(t *testing.T) {
	d := testDrive()
	got, err := ParseTargetDrive(d.params())
	require.NoError(t, err)
	require.Equal(t, d, got)

	_, err = ParseTargetDrive(nil)
	require.ErrorIs(t, err, ErrInvalidDrive)

	tag := uuid.New()
	q := QueryParams{FileTypes: []int{1, 2}, DataTypes: []int{3}, Tags: []uuid.UUID{tag}, MaxRecords: 5}
	v := d.params()
	q.encode(v)
	back, err := ParseQueryParams(v)
	require.NoError(t, err)
	require.Equal(t, q, back)
}
