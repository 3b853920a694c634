package stream

import "math"

// DefaultThreshold is the share of the current segment's samples that must
// be consumed before the next segment is prefetched.
const DefaultThreshold = 0.6

// Policy decides which segments to fetch for a playback position.
type Policy struct {
	Threshold float64
}

func (p Policy) threshold() float64 {
	if p.Threshold <= 0 || p.Threshold >= 1 {
		return DefaultThreshold
	}
	return p.Threshold
}

// Locate maps a playback time to the current segment and the fraction of its
// samples already consumed. The current sample is ceil(t / sampleDuration)
// with sampleDuration = duration / total samples; the current segment is the
// first whose cumulative count exceeds it.
func (p Policy) Locate(segs []Segment, t, duration float64) (int, float64) {
	if len(segs) == 0 {
		return -1, 0
	}
	total := segs[len(segs)-1].Cumulative
	if total <= 0 || duration <= 0 {
		return 0, 0
	}
	if t < 0 {
		t = 0
	}

	sampleDuration := duration / float64(total)
	current := int64(math.Ceil(t / sampleDuration))

	idx := len(segs) - 1
	for i, s := range segs {
		if s.Cumulative > current {
			idx = i
			break
		}
	}

	s := segs[idx]
	if s.Samples == 0 {
		return idx, 0
	}
	consumed := current - (s.Cumulative - s.Samples)
	frac := float64(consumed) / float64(s.Samples)
	if frac > 1 {
		frac = 1
	}
	return idx, frac
}

// Next returns the segments to fetch now. busy reports segments already in
// flight or awaiting append. An unrequested current segment (after a seek)
// is fetched out of order; otherwise the next segment is prefetched once
// more than Threshold of the current one has been consumed.
func (p Policy) Next(segs []Segment, busy func(int) bool, t, duration float64) []int {
	idx, frac := p.Locate(segs, t, duration)
	if idx < 0 {
		return nil
	}

	var out []int
	if !segs[idx].Requested && !busy(idx) {
		out = append(out, idx)
	}

	next := idx + 1
	if next < len(segs) && frac > p.threshold() && !segs[next].Requested && !busy(next) {
		out = append(out, next)
	}
	return out
}
