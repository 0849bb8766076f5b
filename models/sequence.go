package models

import (
	"fmt"
	"math"
)

// SequenceStatus classifies a last_update_id against the one observed before it.
type SequenceStatus int

const (
	SequenceFirst SequenceStatus = iota
	SequenceContiguous
	SequenceDuplicate
	SequenceGap
	SequenceRegression
)

func (s SequenceStatus) String() string {
	switch s {
	case SequenceFirst:
		return "first"
	case SequenceContiguous:
		return "contiguous"
	case SequenceDuplicate:
		return "duplicate"
	case SequenceGap:
		return "gap"
	case SequenceRegression:
		return "regression"
	default:
		return fmt.Sprintf("SequenceStatus(%d)", int(s))
	}
}

// Broken reports whether the consumer missed or reordered updates and needs
// to resynchronise.
func (s SequenceStatus) Broken() bool {
	return s == SequenceGap || s == SequenceRegression
}

// SequenceTracker follows the last_update_id of one currency pair. It is not
// safe for concurrent use.
type SequenceTracker struct {
	last uint64
	seen bool
}

// Observe records id and classifies it against the previous one. Gaps and
// regressions are reported, never repaired.
func (t *SequenceTracker) Observe(id uint64) SequenceStatus {
	prev, seen := t.last, t.seen
	t.last, t.seen = id, true
	if !seen {
		return SequenceFirst
	}
	return classify(prev, id)
}

// Last returns the most recent id and whether one has been observed.
func (t *SequenceTracker) Last() (uint64, bool) {
	return t.last, t.seen
}

// Reset forgets the previous id, e.g. after a resubscribe.
func (t *SequenceTracker) Reset() {
	t.last, t.seen = 0, false
}

func classify(prev, next uint64) SequenceStatus {
	switch {
	case prev != math.MaxUint64 && next == prev+1:
		return SequenceContiguous
	case next == prev:
		return SequenceDuplicate
	case next > prev:
		return SequenceGap
	default:
		return SequenceRegression
	}
}

// Gap is a transition between two consecutive ids that does not follow.
type Gap struct {
	Prev   uint64
	Next   uint64
	Status SequenceStatus
}

// Missing is the number of ids skipped over, zero for regressions.
func (g Gap) Missing() uint64 {
	if g.Next <= g.Prev {
		return 0
	}
	return g.Next - g.Prev - 1
}

// DetectGaps returns every broken transition in ids.
func DetectGaps(ids []uint64) []Gap {
	var gaps []Gap
	for i := 1; i < len(ids); i++ {
		if status := classify(ids[i-1], ids[i]); status.Broken() {
			gaps = append(gaps, Gap{Prev: ids[i-1], Next: ids[i], Status: status})
		}
	}
	return gaps
}
