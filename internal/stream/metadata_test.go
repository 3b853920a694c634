package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testMeta is an init segment followed by n media segments of 100 bytes and
// 10 samples each, one sample per 0.125s.
func testMeta(n int) *VideoMetadata {
	m := &VideoMetadata{
		Duration:    float64(n) * 1.25,
		MimeType:    `video/mp4; codecs="avc1.64001F"`,
		TotalLength: 64 + int64(n)*100,
		SegmentMap:  []SegmentMapEntry{{Offset: 0, Samples: 0}},
	}
	for i := 0; i < n; i++ {
		m.SegmentMap = append(m.SegmentMap, SegmentMapEntry{Offset: 64 + int64(i)*100, Samples: 10})
	}
	return m
}

func segStart(i int) int64 {
	if i == 0 {
		return 0
	}
	return 64 + int64(i-1)*100
}

func TestPartition_ContiguousAndSorted(t *testing.T) {
	meta := &VideoMetadata{
		Duration:    3,
		TotalLength: 1000,
		SegmentMap: []SegmentMapEntry{
			{Offset: 600, Samples: 30},
			{Offset: 0, Samples: 0},
			{Offset: 200, Samples: 20},
			{Offset: 64, Samples: 10},
		},
	}

	segs, err := Partition(meta)
	require.NoError(t, err)
	require.Len(t, segs, len(meta.SegmentMap))

	for i := 0; i+1 < len(segs); i++ {
		require.Equal(t, segs[i].End, segs[i+1].Start, "segment %d", i)
		require.Equal(t, i, segs[i].Sequence)
		require.False(t, segs[i].Requested)
	}
	require.Equal(t, int64(0), segs[0].Start)
	require.Equal(t, meta.TotalLength, segs[len(segs)-1].End)
	require.Equal(t, []int64{0, 10, 30, 60}, []int64{segs[0].Cumulative, segs[1].Cumulative, segs[2].Cumulative, segs[3].Cumulative})

	// the input is not reordered
	require.Equal(t, int64(600), meta.SegmentMap[0].Offset)
}

func TestPartition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		meta *VideoMetadata
	}{
		{"nil", nil},
		{"empty map", &VideoMetadata{Duration: 1, TotalLength: 10}},
		{"no duration", &VideoMetadata{TotalLength: 10, SegmentMap: []SegmentMapEntry{{Offset: 0, Samples: 1}}}},
		{"duplicate offset", &VideoMetadata{Duration: 1, TotalLength: 10, SegmentMap: []SegmentMapEntry{{Offset: 0, Samples: 1}, {Offset: 0, Samples: 1}}}},
		{"offset past end", &VideoMetadata{Duration: 1, TotalLength: 10, SegmentMap: []SegmentMapEntry{{Offset: 0, Samples: 1}, {Offset: 10, Samples: 1}}}},
		{"no samples", &VideoMetadata{Duration: 1, TotalLength: 10, SegmentMap: []SegmentMapEntry{{Offset: 0}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Partition(tc.meta)
			require.ErrorIs(t, err, ErrInvalidMetadata)
		})
	}
}
