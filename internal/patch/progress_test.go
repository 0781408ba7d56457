package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter int64

func (c counter) Downloaded() int64 { return int64(c) }

func TestNewProgressAggregator_RejectsEmptyTotal(t *testing.T) {
	for _, total := range []int64{0, -1} {
		agg, err := NewProgressAggregator(total)
		assert.ErrorIs(t, err, ErrEmptyTotal)
		assert.Nil(t, agg)
	}
}

func TestProgressAggregator_Tick(t *testing.T) {
	agg, err := NewProgressAggregator(1000)
	require.NoError(t, err)

	tests := []struct {
		name      string
		sources   []ByteCounter
		want      Progress
		completed bool
	}{
		{"nothing yet", []ByteCounter{counter(0), counter(0)}, Progress{0, 1000, 0}, false},
		{"percent is floored", []ByteCounter{counter(333), counter(333)}, Progress{666, 1000, 66}, false},
		{"one group ahead", []ByteCounter{counter(500), counter(200)}, Progress{700, 1000, 70}, false},
		{"just short", []ByteCounter{counter(500), counter(499)}, Progress{999, 1000, 99}, false},
		{"complete", []ByteCounter{counter(500), counter(500)}, Progress{1000, 1000, 100}, true},
		{"overshoot is clamped", []ByteCounter{counter(900), counter(900)}, Progress{1000, 1000, 100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, completed := agg.Tick(tt.sources)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.completed, completed)
		})
	}
}

func TestProgressAggregator_LevelRead(t *testing.T) {
	agg, err := NewProgressAggregator(100)
	require.NoError(t, err)

	sources := []ByteCounter{counter(40)}

	first, _ := agg.Tick(sources)
	second, _ := agg.Tick(sources)

	assert.Equal(t, first, second)
	assert.Equal(t, 40, second.Percent)
}
