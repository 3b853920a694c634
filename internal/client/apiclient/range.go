package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var ErrInvalidRange = errors.New("invalid byte range")

// ByteRange selects Length bytes starting at Start. Length <= 0 means "to the
// end of the resource".
type ByteRange struct {
	Start  int64
	Length int64
}

func (r *ByteRange) validate() error {
	if r.Start < 0 {
		return fmt.Errorf("%w: start %d", ErrInvalidRange, r.Start)
	}
	return nil
}

// End returns the inclusive last byte, or -1 for an open range.
func (r *ByteRange) End() int64 {
	if r.Length <= 0 {
		return -1
	}
	return r.Start + r.Length - 1
}

// Header renders the HTTP Range value (inclusive bounds).
func (r *ByteRange) Header() string {
	if r.Length <= 0 {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End())
}

// RangeResponse is the raw body of a ranged GET.
type RangeResponse struct {
	Body []byte
	// Start and End are the inclusive bounds the host returned.
	Start, End int64
	// Total is the full resource length, or -1 when the host did not say.
	Total   int64
	Partial bool
	Header  http.Header
}

func newRangeResponse(resp *Response) (*RangeResponse, error) {
	rr := &RangeResponse{
		Body:    resp.Body,
		Start:   0,
		End:     int64(len(resp.Body)) - 1,
		Total:   int64(len(resp.Body)),
		Partial: resp.StatusCode == http.StatusPartialContent,
		Header:  resp.Header,
	}
	if !rr.Partial {
		return rr, nil
	}

	cr := resp.Header.Get("Content-Range")
	if cr == "" {
		rr.Total = -1
		return rr, nil
	}
	start, end, total, err := ParseContentRange(cr)
	if err != nil {
		return nil, err
	}
	rr.Start, rr.End, rr.Total = start, end, total
	return rr, nil
}

// ParseContentRange parses "bytes start-end/total". total is -1 for "*".
func ParseContentRange(v string) (start, end, total int64, err error) {
	unit, spec, ok := strings.Cut(strings.TrimSpace(v), " ")
	if !ok || unit != "bytes" {
		return 0, 0, 0, fmt.Errorf("%w: content-range %q", ErrInvalidRange, v)
	}
	rng, size, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: content-range %q", ErrInvalidRange, v)
	}

	total = -1
	if size != "*" {
		if total, err = strconv.ParseInt(size, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("%w: content-range %q", ErrInvalidRange, v)
		}
	}

	s, e, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: content-range %q", ErrInvalidRange, v)
	}
	if start, err = strconv.ParseInt(s, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: content-range %q", ErrInvalidRange, v)
	}
	if end, err = strconv.ParseInt(e, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: content-range %q", ErrInvalidRange, v)
	}
	if end < start {
		return 0, 0, 0, fmt.Errorf("%w: content-range %q", ErrInvalidRange, v)
	}
	return start, end, total, nil
}
