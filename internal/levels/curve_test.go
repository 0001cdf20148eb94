package levels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtLevelMatchesStepSums(t *testing.T) {
	sum := 0
	for level := 0; level <= 60; level++ {
		require.Equalf(t, sum, AtLevel(level), "level %d", level)
		sum += ToNext(level)
	}
}

func TestAtLevelBreakpoints(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{level: 0, want: 0},
		{level: 1, want: 7},
		{level: 16, want: 352},
		{level: 17, want: 394},
		{level: 31, want: 1507},
		{level: 32, want: 1628},
	}
	for _, tc := range tests {
		assert.Equalf(t, tc.want, AtLevel(tc.level), "level %d", tc.level)
	}
}

func TestTotalRoundTrip(t *testing.T) {
	for _, total := range []int{0, 1, 6, 7, 100, 351, 352, 353, 1507, 1628, 5000, 123456} {
		level, progress := FromTotal(total)
		assert.Equalf(t, total, Total(level, progress), "total %d", total)
		assert.GreaterOrEqual(t, progress, 0.0)
		assert.Less(t, progress, 1.0)
	}
}

func TestTotalWithProgress(t *testing.T) {
	// level 5 needs 17 to advance.
	assert.Equal(t, AtLevel(5)+9, Total(5, 0.5))
	assert.Equal(t, AtLevel(5), Total(5, -1))
}
