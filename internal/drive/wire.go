package drive

import (
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/google/uuid"
)

// Routes relative to the audience endpoint.
const (
	PathFileHeader     = "/drive/files/header"
	PathFilePayload    = "/drive/files/payload"
	PathQueryBatch     = "/drive/query/batch"
	PathUpload         = "/drive/files/upload"
	PathUpdate         = "/drive/files/update"
	PathTransitHeader  = "/transit/query/header"
	PathTransitPayload = "/transit/query/payload"
	PathTransitBatch   = "/transit/query/batch"
)

// Query parameter names.
const (
	ParamFileID      = "fileId"
	ParamPayloadKey  = "key"
	ParamCursorState = "cursorState"
	ParamOdinID      = "odinId"
)

// PayloadUpload is one payload of an upload, already encrypted when the
// file is.
type PayloadUpload struct {
	Descriptor PayloadDescriptor `json:"descriptor"`
	Data       []byte            `json:"data"`
}

// UploadInstructions is the body of an upload call.
type UploadInstructions struct {
	TargetDrive        TargetDrive                 `json:"targetDrive"`
	AccessControlList  AccessControlList           `json:"accessControlList"`
	FileMetadata       FileMetadata                `json:"fileMetadata"`
	EncryptedKeyHeader *cryptox.EncryptedKeyHeader `json:"encryptedKeyHeader,omitempty"`
	Payloads           []PayloadUpload             `json:"payloads,omitempty"`
}

type UploadResponse struct {
	FileID          uuid.UUID  `json:"fileId"`
	GlobalTransitID *uuid.UUID `json:"globalTransitId,omitempty"`
	NewVersionTag   string     `json:"newVersionTag"`
}

// UpdateInstructions replaces a file's AppData (and optionally its ACL) when
// VersionTag matches the stored one.
type UpdateInstructions struct {
	TargetDrive        TargetDrive                 `json:"targetDrive"`
	FileID             uuid.UUID                   `json:"fileId"`
	VersionTag         string                      `json:"versionTag"`
	AppData            AppData                     `json:"appData"`
	AccessControlList  *AccessControlList          `json:"accessControlList,omitempty"`
	EncryptedKeyHeader *cryptox.EncryptedKeyHeader `json:"encryptedKeyHeader,omitempty"`
}

type UpdateResponse struct {
	NewVersionTag string `json:"newVersionTag"`
}
