package patch

import (
	"errors"
)

// ErrEmptyTotal is returned when progress is requested for a zero-byte run.
var ErrEmptyTotal = errors.New("progress total must be positive")

// ByteCounter exposes a level read of downloaded bytes.
type ByteCounter interface {
	Downloaded() int64
}

// Progress is the aggregate state of a run after one tick.
type Progress struct {
	Downloaded int64 `json:"downloaded"`
	Total      int64 `json:"total"`
	Percent    int   `json:"percent"`
}

// ProgressAggregator turns per-group byte counts into a run percentage. It
// keeps no timer; callers decide when to Tick.
type ProgressAggregator struct {
	total int64
}

func NewProgressAggregator(total int64) (*ProgressAggregator, error) {
	if total <= 0 {
		return nil, ErrEmptyTotal
	}

	return &ProgressAggregator{total: total}, nil
}

// Tick sums the current count of every source and reports whether the sum
// has reached the total.
func (a *ProgressAggregator) Tick(sources []ByteCounter) (Progress, bool) {
	var sum int64

	for _, src := range sources {
		sum += src.Downloaded()
	}

	sum = min(max(sum, 0), a.total)

	return Progress{
		Downloaded: sum,
		Total:      a.total,
		Percent:    int(sum * 100 / a.total),
	}, sum == a.total
}
