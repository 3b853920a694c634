package stream

import (
	"fmt"
	"sort"
)

// SegmentMapEntry says where one encoded segment starts and how many
// presentation samples it holds.
type SegmentMapEntry struct {
	Offset  int64 `json:"offset"`
	Samples int64 `json:"samples"`
}

// VideoMetadata is immutable once fetched for a file version. Duration is in
// seconds.
type VideoMetadata struct {
	Duration    float64           `json:"duration"`
	TotalLength int64             `json:"totalLength"`
	MimeType    string            `json:"mimeType"`
	SegmentMap  []SegmentMapEntry `json:"segmentMap"`
}

// Segment is a derived, in-memory playback segment covering [Start, End).
// Cumulative is the sample count of this and every earlier segment.
type Segment struct {
	Sequence   int
	Start      int64
	End        int64
	Samples    int64
	Cumulative int64
	Requested  bool
}

func (s Segment) Len() int64 { return s.End - s.Start }

// Partition sorts the segment map by offset and derives one segment per
// entry: [offset[i], offset[i+1]), the last ending at TotalLength.
func Partition(meta *VideoMetadata) ([]Segment, error) {
	if meta == nil || len(meta.SegmentMap) == 0 {
		return nil, fmt.Errorf("%w: empty segment map", ErrInvalidMetadata)
	}
	if meta.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration %v", ErrInvalidMetadata, meta.Duration)
	}

	entries := make([]SegmentMapEntry, len(meta.SegmentMap))
	copy(entries, meta.SegmentMap)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })

	segs := make([]Segment, len(entries))
	var cum int64
	for i, e := range entries {
		end := meta.TotalLength
		if i+1 < len(entries) {
			end = entries[i+1].Offset
		}
		if e.Offset < 0 || e.Samples < 0 {
			return nil, fmt.Errorf("%w: entry %d has offset %d samples %d", ErrInvalidMetadata, i, e.Offset, e.Samples)
		}
		if end <= e.Offset {
			return nil, fmt.Errorf("%w: segment %d is empty [%d, %d)", ErrInvalidMetadata, i, e.Offset, end)
		}
		cum += e.Samples
		segs[i] = Segment{Sequence: i, Start: e.Offset, End: end, Samples: e.Samples, Cumulative: cum}
	}
	if cum == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidMetadata)
	}
	return segs, nil
}
