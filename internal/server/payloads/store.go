// Package payloads stores payload bytes for the drive host: an S3-compatible
// implementation on aws-sdk-go-v2 and an in-memory one.
package payloads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrRangeNotSatisfiable is returned when a range starts past the object end.
var ErrRangeNotSatisfiable = errors.New("range not satisfiable")

// Range is an inclusive byte range. End < 0 means "to the end".
type Range struct {
	Start int64
	End   int64
}

// Object is a stored payload or a slice of one.
type Object struct {
	Body []byte
	// Start and End are the inclusive offsets of Body within the object.
	Start, End int64
	// Size is the full object length.
	Size    int64
	Partial bool
}

// Store keeps payload bytes by key. Get with a nil range returns the whole
// object. Missing keys yield common.ErrNotFound.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string, r *Range) (*Object, error)
}

// Key returns the object key of one payload of a file.
func Key(alias, fileID uuid.UUID, payloadKey string) string {
	return fmt.Sprintf("drives/%s/%s/%s", alias, fileID, strings.ToLower(payloadKey))
}

// clamp resolves r against size.
func clamp(r Range, size int64) (start, end int64, err error) {
	if r.Start < 0 || r.Start >= size {
		return 0, 0, fmt.Errorf("%w: start %d of %d", ErrRangeNotSatisfiable, r.Start, size)
	}
	end = r.End
	if end < 0 || end >= size {
		end = size - 1
	}
	if end < r.Start {
		return 0, 0, fmt.Errorf("%w: end %d before start %d", ErrRangeNotSatisfiable, end, r.Start)
	}
	return r.Start, end, nil
}
