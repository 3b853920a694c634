package drive

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/google/uuid"
)

var (
	ErrInvalidDrive  = errors.New("invalid target drive")
	ErrPayloadAbsent = errors.New("payload not found in header")
)

// TargetDrive identifies a logical collection of files. Alias and Type are
// unique together per identity.
type TargetDrive struct {
	Alias uuid.UUID `json:"alias"`
	Type  uuid.UUID `json:"type"`
}

func (d TargetDrive) Validate() error {
	if d.Alias == uuid.Nil || d.Type == uuid.Nil {
		return ErrInvalidDrive
	}
	return nil
}

func (d TargetDrive) String() string {
	return d.Alias.String() + "/" + d.Type.String()
}

func (d TargetDrive) params() url.Values {
	return url.Values{
		"alias": {d.Alias.String()},
		"type":  {d.Type.String()},
	}
}

// ParseTargetDrive reads a drive from alias and type query parameters.
func ParseTargetDrive(v url.Values) (TargetDrive, error) {
	alias, err := uuid.Parse(v.Get("alias"))
	if err != nil {
		return TargetDrive{}, fmt.Errorf("%w: alias: %v", ErrInvalidDrive, err)
	}
	typ, err := uuid.Parse(v.Get("type"))
	if err != nil {
		return TargetDrive{}, fmt.Errorf("%w: type: %v", ErrInvalidDrive, err)
	}
	d := TargetDrive{Alias: alias, Type: typ}
	return d, d.Validate()
}

// SecurityGroup is the minimum relationship a caller needs to read a file.
type SecurityGroup string

const (
	SecurityGroupAnonymous     SecurityGroup = "anonymous"
	SecurityGroupAuthenticated SecurityGroup = "authenticated"
	SecurityGroupConnected     SecurityGroup = "connected"
	SecurityGroupOwner         SecurityGroup = "owner"
)

func (g SecurityGroup) Valid() bool {
	switch g {
	case SecurityGroupAnonymous, SecurityGroupAuthenticated, SecurityGroupConnected, SecurityGroupOwner:
		return true
	}
	return false
}

// AccessControlList restricts who may read a file.
type AccessControlList struct {
	RequiredSecurityGroup SecurityGroup `json:"requiredSecurityGroup"`
	CircleIDs             []uuid.UUID   `json:"circleIdList,omitempty"`
	OdinIDs               []string      `json:"odinIdList,omitempty"`
}

// OwnerOnly is the ACL applied when none is given.
var OwnerOnly = AccessControlList{RequiredSecurityGroup: SecurityGroupOwner}

type FileState string

const (
	FileStateActive  FileState = "active"
	FileStateDeleted FileState = "deleted"
)

// AppData is the application-defined part of a file's metadata. Content is
// JSON text, or base64 ciphertext when the file is encrypted.
type AppData struct {
	UniqueID *uuid.UUID  `json:"uniqueId,omitempty"`
	FileType int         `json:"fileType"`
	DataType int         `json:"dataType"`
	Tags     []uuid.UUID `json:"tags,omitempty"`
	Content  string      `json:"content,omitempty"`
}

// ThumbDescriptor describes one thumbnail rendition of a payload.
type ThumbDescriptor struct {
	PixelWidth   int    `json:"pixelWidth"`
	PixelHeight  int    `json:"pixelHeight"`
	ContentType  string `json:"contentType"`
	BytesWritten int64  `json:"bytesWritten"`
}

// PayloadDescriptor points at one binary payload of a file. BytesWritten is
// the plaintext length; encrypted payloads carry their own IV.
type PayloadDescriptor struct {
	Key               string            `json:"key"`
	ContentType       string            `json:"contentType"`
	BytesWritten      int64             `json:"bytesWritten"`
	IsEncrypted       bool              `json:"isEncrypted"`
	IV                []byte            `json:"iv,omitempty"`
	LastModified      int64             `json:"lastModified"`
	Thumbnails        []ThumbDescriptor `json:"thumbnails,omitempty"`
	DescriptorContent string            `json:"descriptorContent,omitempty"`
}

type FileMetadata struct {
	VersionTag  string              `json:"versionTag"`
	IsEncrypted bool                `json:"isEncrypted"`
	AppData     AppData             `json:"appData"`
	Payloads    []PayloadDescriptor `json:"payloads,omitempty"`
	Created     int64               `json:"created"`
	Updated     int64               `json:"updated"`
}

// Payload returns the descriptor with the given key.
func (m *FileMetadata) Payload(key string) (*PayloadDescriptor, error) {
	for i := range m.Payloads {
		if m.Payloads[i].Key == key {
			return &m.Payloads[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPayloadAbsent, key)
}

type ServerMetadata struct {
	AccessControlList AccessControlList `json:"accessControlList"`
	AllowDistribution bool              `json:"allowDistribution"`
}

// FileHeader is the server record describing one stored file.
type FileHeader struct {
	FileID                         uuid.UUID                   `json:"fileId"`
	GlobalTransitID                *uuid.UUID                  `json:"globalTransitId,omitempty"`
	FileState                      FileState                   `json:"fileState"`
	FileMetadata                   FileMetadata                `json:"fileMetadata"`
	SharedSecretEncryptedKeyHeader *cryptox.EncryptedKeyHeader `json:"sharedSecretEncryptedKeyHeader,omitempty"`
	ServerMetadata                 *ServerMetadata             `json:"serverMetadata,omitempty"`
}

// QueryParams selects files within a drive. Empty slices match everything.
type QueryParams struct {
	FileTypes  []int
	DataTypes  []int
	Tags       []uuid.UUID
	MaxRecords int
}

// DefaultMaxRecords is the page size used when QueryParams.MaxRecords is zero.
const DefaultMaxRecords = 100

func (q QueryParams) encode(v url.Values) {
	for _, ft := range q.FileTypes {
		v.Add("fileType", strconv.Itoa(ft))
	}
	for _, dt := range q.DataTypes {
		v.Add("dataType", strconv.Itoa(dt))
	}
	for _, t := range q.Tags {
		v.Add("tag", t.String())
	}
	n := q.MaxRecords
	if n <= 0 {
		n = DefaultMaxRecords
	}
	v.Set("maxRecords", strconv.Itoa(n))
}

// ParseQueryParams is the inverse of the query encoding used by QueryBatch.
func ParseQueryParams(v url.Values) (QueryParams, error) {
	var q QueryParams
	for _, s := range v["fileType"] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("fileType %q: %w", s, err)
		}
		q.FileTypes = append(q.FileTypes, n)
	}
	for _, s := range v["dataType"] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("dataType %q: %w", s, err)
		}
		q.DataTypes = append(q.DataTypes, n)
	}
	for _, s := range v["tag"] {
		id, err := uuid.Parse(s)
		if err != nil {
			return q, fmt.Errorf("tag %q: %w", s, err)
		}
		q.Tags = append(q.Tags, id)
	}
	q.MaxRecords = DefaultMaxRecords
	if s := v.Get("maxRecords"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return q, fmt.Errorf("maxRecords %q: invalid", s)
		}
		q.MaxRecords = n
	}
	return q, nil
}

// QueryBatchResult is one page of a query. CursorState is opaque; pass it
// back to get the next page. An empty page means the cursor is exhausted.
type QueryBatchResult struct {
	Results     []FileHeader `json:"searchResults"`
	CursorState string       `json:"cursorState"`
}

// DecryptedFile is a query result with its content decrypted. Err is set
// when only this entry failed; the rest of the page is still usable.
type DecryptedFile struct {
	Header  FileHeader
	Content []byte
	Err     error
}
