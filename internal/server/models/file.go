// Package models defines host-side records persisted by the file repository.
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// StateActive is the state of every live file.
const StateActive = "active"

// File is one drive file as the host stores it. Metadata and ACL are the
// client's JSON documents; the indexed columns beside them are derived
// from those documents when the file is written.
type File struct {
	// Seq is the insertion sequence assigned by the repository. Query
	// cursors are expressed in Seq.
	Seq int64

	FileID          uuid.UUID
	GlobalTransitID uuid.UUID
	DriveAlias      uuid.UUID
	DriveType       uuid.UUID
	State           string
	VersionTag      string

	FileType      int
	DataType      int
	Tags          []string
	SecurityGroup string

	Metadata json.RawMessage
	ACL      json.RawMessage

	// KeyHeader is the file's EncryptedKeyHeader sealed under the host
	// storage key, or nil for plaintext files.
	KeyHeader json.RawMessage

	Created int64
	Updated int64
}

// Clone returns a deep copy.
func (f *File) Clone() *File {
	c := *f
	c.Tags = append([]string(nil), f.Tags...)
	c.Metadata = cloneRaw(f.Metadata)
	c.ACL = cloneRaw(f.ACL)
	c.KeyHeader = cloneRaw(f.KeyHeader)
	return &c
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

// Filter narrows a drive query. Empty slices match everything. Matching
// any one listed value is enough.
type Filter struct {
	FileTypes []int
	DataTypes []int
	Tags      []string

	// ExcludeGroup hides files whose required security group equals it.
	ExcludeGroup string
}

// Match applies the filter in memory.
func (f Filter) Match(file *File) bool {
	if f.ExcludeGroup != "" && file.SecurityGroup == f.ExcludeGroup {
		return false
	}
	if len(f.FileTypes) > 0 && !containsInt(f.FileTypes, file.FileType) {
		return false
	}
	if len(f.DataTypes) > 0 && !containsInt(f.DataTypes, file.DataType) {
		return false
	}
	if len(f.Tags) > 0 {
		for _, t := range file.Tags {
			for _, want := range f.Tags {
				if t == want {
					return true
				}
			}
		}
		return false
	}
	return true
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
