package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/drivekeeper/internal/drive"
	"github.com/dmitrijs2005/drivekeeper/internal/stream"
	"github.com/google/uuid"
)

const queryPageSize = 20

func (a *App) SelectDrive(_ context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: drive <alias> <type>", errUsage)
	}
	alias, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("alias: %w", err)
	}
	typ, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("type: %w", err)
	}
	d := drive.TargetDrive{Alias: alias, Type: typ}
	if err := d.Validate(); err != nil {
		return err
	}
	a.drive = d
	a.query = nil
	a.cursor = ""
	a.printf("Drive %s selected\n", d)
	return nil
}

// SelectPeer routes reads to a remote identity's drive. No argument goes
// back to the own drive.
func (a *App) SelectPeer(_ context.Context, args []string) error {
	switch len(args) {
	case 0:
		a.remote = ""
		a.printf("Reading own drive\n")
	case 1:
		a.remote = args[0]
		a.printf("Reading %s over transit\n", a.remote)
	default:
		return fmt.Errorf("%w: peer [identity]", errUsage)
	}
	a.query = nil
	a.cursor = ""
	return nil
}

// Query starts a new paged query filtered by file types.
func (a *App) Query(ctx context.Context, args []string) error {
	if err := a.requireDrive(); err != nil {
		return err
	}
	q := drive.QueryParams{MaxRecords: queryPageSize}
	for _, s := range args {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("file type %q: %w", s, err)
		}
		q.FileTypes = append(q.FileTypes, n)
	}
	a.query = &q
	a.cursor = ""
	return a.page(ctx)
}

// More prints the next page of the last query.
func (a *App) More(ctx context.Context) error {
	if err := a.requireDrive(); err != nil {
		return err
	}
	if a.query == nil {
		return fmt.Errorf("%w: run 'query' first", errUsage)
	}
	return a.page(ctx)
}

func (a *App) page(ctx context.Context) error {
	var (
		files  []drive.DecryptedFile
		cursor string
		err    error
	)
	if a.remote != "" {
		files, cursor, err = a.provider.QueryBatchDecryptedOverPeer(ctx, a.remote, a.drive, *a.query, a.cursor)
	} else {
		files, cursor, err = a.provider.QueryBatchDecrypted(ctx, a.drive, *a.query, a.cursor)
	}
	if err != nil {
		return err
	}
	a.cursor = cursor

	if len(files) == 0 {
		a.printf("No more results\n")
		return nil
	}
	for _, f := range files {
		a.printFile(f.Header, f.Content, f.Err)
	}
	return nil
}

func (a *App) printFile(h drive.FileHeader, content []byte, contentErr error) {
	md := h.FileMetadata
	a.printf("%s  type=%d version=%s encrypted=%t\n", h.FileID, md.AppData.FileType, md.VersionTag, md.IsEncrypted)
	for _, p := range md.Payloads {
		a.printf("    payload %-16s %-24s %d bytes\n", p.Key, p.ContentType, p.BytesWritten)
	}
	switch {
	case contentErr != nil:
		a.printf("    content: <unreadable: %v>\n", contentErr)
	case len(content) > 0:
		a.printf("    content: %s\n", describeContent(content))
	}
}

func describeContent(raw []byte) string {
	c, err := drive.ParseContent(raw)
	if err != nil {
		return string(raw)
	}
	switch v := c.(type) {
	case drive.Post:
		return fmt.Sprintf("post %q media=%v", v.Caption, v.Media)
	case drive.Article:
		return fmt.Sprintf("article %q", v.Title)
	case drive.ProfileAttribute:
		return fmt.Sprintf("attribute %s", v.AttributeType)
	}
	return string(raw)
}

func parseFileID(args []string, n int, usage string) (uuid.UUID, error) {
	if len(args) < n {
		return uuid.Nil, fmt.Errorf("%w: %s", errUsage, usage)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("file id: %w", err)
	}
	return id, nil
}

func (a *App) fetchHeader(ctx context.Context, id uuid.UUID) (*drive.FileHeader, error) {
	if a.remote != "" {
		return a.provider.GetFileHeaderOverPeer(ctx, a.remote, a.drive, id)
	}
	return a.provider.GetFileHeader(ctx, a.drive, id)
}

// Header prints one file header with its decrypted content.
func (a *App) Header(ctx context.Context, args []string) error {
	if err := a.requireDrive(); err != nil {
		return err
	}
	id, err := parseFileID(args, 1, "header <fileId>")
	if err != nil {
		return err
	}
	h, err := a.fetchHeader(ctx, id)
	if err != nil {
		return err
	}

	kh, err := a.provider.DecryptKeyHeader(h)
	if err != nil {
		a.printFile(*h, nil, err)
		return nil
	}
	defer kh.Wipe()
	content, err := drive.DecryptJSONContent(&h.FileMetadata, kh)
	a.printFile(*h, content, err)
	return nil
}

// Payload downloads a payload, or a byte range of it, into DownloadDir.
func (a *App) Payload(ctx context.Context, args []string) error {
	if err := a.requireDrive(); err != nil {
		return err
	}
	const usage = "payload <fileId> <key> [start length]"
	id, err := parseFileID(args, 2, usage)
	if err != nil {
		return err
	}
	key := args[1]

	var rng *apiclient.ByteRange
	switch len(args) {
	case 2:
	case 4:
		start, err1 := strconv.ParseInt(args[2], 10, 64)
		length, err2 := strconv.ParseInt(args[3], 10, 64)
		if err1 != nil || err2 != nil {
			return fmt.Errorf("%w: %s", errUsage, usage)
		}
		rng = &apiclient.ByteRange{Start: start, Length: length}
	default:
		return fmt.Errorf("%w: %s", errUsage, usage)
	}

	var data []byte
	if a.remote != "" {
		data, err = a.provider.GetPayloadBytesOverPeer(ctx, a.remote, a.drive, id, key, rng)
	} else {
		data, err = a.provider.GetPayloadBytes(ctx, a.drive, id, key, rng)
	}
	if err != nil {
		return err
	}

	path := a.outputPath(id, key)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	a.printf("Wrote %d bytes to %s\n", len(data), path)
	return nil
}

func (a *App) outputPath(id uuid.UUID, key string) string {
	return filepath.Join(a.config.DownloadDir, id.String()+"-"+filepath.Base(key))
}

// Upload stores a local file as an encrypted single-payload post. An
// optional JSON file with stream.VideoMetadata marks the payload as a
// segmented video.
func (a *App) Upload(ctx context.Context, args []string) error {
	if err := a.requireDrive(); err != nil {
		return err
	}
	if a.remote != "" {
		return fmt.Errorf("%w: uploads go to the own drive; run 'peer' first", errUsage)
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: upload <path> [segments.json]", errUsage)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	key := strings.ToLower(filepath.Base(args[0]))
	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	in := drive.PayloadInput{Key: key, ContentType: ct, Data: data}
	if len(args) == 2 {
		if in.DescriptorContent, err = videoDescriptor(args[1], ct, len(data)); err != nil {
			return err
		}
	}

	ftText, err := GetSimpleText(a.reader, "File type (number)", a.out)
	if err != nil {
		return err
	}
	fileType, err := strconv.Atoi(ftText)
	if err != nil {
		return fmt.Errorf("file type %q: %w", ftText, err)
	}
	caption, err := GetMultiline(a.reader, "Caption", a.out)
	if err != nil {
		return err
	}
	content, err := drive.WrapContent(drive.Post{Caption: caption, Media: []string{key}})
	if err != nil {
		return err
	}

	res, err := a.provider.UploadFile(ctx, drive.UploadRequest{
		Drive:    a.drive,
		AppData:  drive.AppData{FileType: fileType, Content: content},
		Payloads: []drive.PayloadInput{in},
		Encrypt:  true,
	})
	if err != nil {
		return err
	}
	res.KeyHeader.Wipe()

	a.printf("Uploaded %s (payload %q, version %s)\n", res.FileID, key, res.VersionTag)
	return nil
}

func videoDescriptor(path, contentType string, size int) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var meta stream.VideoMetadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if meta.TotalLength == 0 {
		meta.TotalLength = int64(size)
	}
	if meta.MimeType == "" {
		meta.MimeType = contentType
	}
	if _, err := stream.Partition(&meta); err != nil {
		return "", err
	}
	return drive.VideoDescriptor(&meta)
}

// Update replaces the caption of a post, keeping its file type and payloads.
func (a *App) Update(ctx context.Context, args []string) error {
	if err := a.requireDrive(); err != nil {
		return err
	}
	if a.remote != "" {
		return fmt.Errorf("%w: updates go to the own drive; run 'peer' first", errUsage)
	}
	id, err := parseFileID(args, 1, "update <fileId>")
	if err != nil {
		return err
	}

	h, err := a.provider.GetFileHeader(ctx, a.drive, id)
	if err != nil {
		return err
	}
	kh, err := a.provider.DecryptKeyHeader(h)
	if err != nil {
		return err
	}
	defer kh.Wipe()

	var media []string
	for _, p := range h.FileMetadata.Payloads {
		media = append(media, p.Key)
	}
	caption, err := GetMultiline(a.reader, "New caption", a.out)
	if err != nil {
		return err
	}
	content, err := drive.WrapContent(drive.Post{Caption: caption, Media: media})
	if err != nil {
		return err
	}

	appData := h.FileMetadata.AppData
	appData.Content = content
	tag, err := a.provider.UpdateFileHeader(ctx, drive.UpdateRequest{
		Drive:      a.drive,
		FileID:     id,
		VersionTag: h.FileMetadata.VersionTag,
		AppData:    appData,
		Encrypted:  h.FileMetadata.IsEncrypted,
		KeyHeader:  kh,
	})
	if err != nil {
		return err
	}
	a.printf("Updated %s (version %s)\n", id, tag)
	return nil
}
