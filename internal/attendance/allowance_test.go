package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyCompute(t *testing.T) {
	tests := []struct {
		name          string
		typ           SubjectType
		total, missed int
		wantMax       int
		wantRemaining int
	}{
		{name: "practical 20", typ: Practical, total: 20, missed: 2, wantMax: 6, wantRemaining: 4},
		{name: "theoretical 20", typ: Theoretical, total: 20, missed: 2, wantMax: 4, wantRemaining: 2},
		{name: "theoretical floors", typ: Theoretical, total: 7, missed: 0, wantMax: 1, wantRemaining: 1},
		{name: "practical floors", typ: Practical, total: 10, missed: 3, wantMax: 3, wantRemaining: 0},
		{name: "exceeded", typ: Theoretical, total: 10, missed: 5, wantMax: 2, wantRemaining: -3},
		{name: "no lessons", typ: Practical, total: 0, missed: 0, wantMax: 0, wantRemaining: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := SubjectKey{Name: "Anatomy", Type: tt.typ}
			got := DefaultPolicy.Compute(General, key, tt.total, tt.missed)
			assert.Equal(t, tt.wantMax, got.MaxAbsent)
			assert.Equal(t, tt.wantRemaining, got.Remaining)
			assert.Equal(t, tt.wantRemaining < 0, got.Exceeded())
			assert.Equal(t, key, got.Subject)
		})
	}
}

func TestMaxAbsentIsExactFloor(t *testing.T) {
	// 0.30 * 10 must be 3, not 2 from a float rounding below the integer.
	for total := 0; total <= 200; total++ {
		assert.Equal(t, total*3/10, DefaultPolicy.MaxAbsent(total, Practical), "total %d", total)
		assert.Equal(t, total*2/10, DefaultPolicy.MaxAbsent(total, Theoretical), "total %d", total)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name        string
		done, total int
		wantFilled  int
	}{
		{name: "none", done: 0, total: 10, wantFilled: 0},
		{name: "all", done: 10, total: 10, wantFilled: 10},
		{name: "three", done: 3, total: 10, wantFilled: 3},
		{name: "zero total", done: 4, total: 0, wantFilled: 0},
		{name: "floors", done: 2, total: 3, wantFilled: 6},
		{name: "over", done: 8, total: 4, wantFilled: 10},
		{name: "negative", done: -1, total: 4, wantFilled: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ProgressBar(tt.done, tt.total)
			assert.Equal(t, tt.wantFilled, b.Filled)
			assert.Equal(t, BarSegments-tt.wantFilled, b.Unfilled())
		})
	}
}

func TestBarRender(t *testing.T) {
	assert.Equal(t, "###-------", ProgressBar(3, 10).Render("#", "-"))
	assert.Equal(t, "----------", ProgressBar(7, 0).Render("#", "-"))
}

func TestSubjectSummary(t *testing.T) {
	s := SubjectSummary{Subject: "Physiology", Occurred: 3, Attended: 2}
	assert.Equal(t, "66.7", s.Percent().String())
	assert.True(t, s.Low())
	assert.Equal(t, 6, s.RateBar().Filled)

	full := SubjectSummary{Subject: "Biochemistry", Occurred: 4, Attended: 3}
	assert.Equal(t, "75", full.Percent().String())
	assert.False(t, full.Low())

	assert.True(t, SubjectSummary{}.Percent().IsZero())
}

func TestAllowanceUsageBar(t *testing.T) {
	a := DefaultPolicy.Compute(General, SubjectKey{Name: "Histology (P)", Type: Practical}, 20, 3)
	// 3 of 6 allowed absences used
	assert.Equal(t, 5, a.UsageBar().Filled)
}
