package attendance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BarSegments is the resolution of progress bars.
const BarSegments = 10

// AttendanceWarnPercent flags subjects whose attendance rate is below it.
var AttendanceWarnPercent = decimal.NewFromInt(75)

// Policy holds the maximum allowed absence fraction per subject type.
type Policy struct {
	Theoretical decimal.Decimal
	Practical   decimal.Decimal
}

// DefaultPolicy allows 20% absences for theoretical and 30% for practical subjects.
var DefaultPolicy = Policy{
	Theoretical: decimal.RequireFromString("0.20"),
	Practical:   decimal.RequireFromString("0.30"),
}

// Limit returns the absence ratio for t.
func (p Policy) Limit(t SubjectType) decimal.Decimal {
	if t == Practical {
		return p.Practical
	}
	return p.Theoretical
}

// MaxAbsent is floor(total * limit).
func (p Policy) MaxAbsent(total int, t SubjectType) int {
	if total <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(total)).Mul(p.Limit(t)).Floor().IntPart())
}

// Compute builds the allowance figure for a subject given its total scheduled
// sessions and the user's recorded absences.
func (p Policy) Compute(c Category, key SubjectKey, total, missed int) Allowance {
	maxAbsent := p.MaxAbsent(total, key.Type)
	return Allowance{
		Category:  c,
		Subject:   key,
		Limit:     p.Limit(key.Type),
		Total:     total,
		Missed:    missed,
		MaxAbsent: maxAbsent,
		Remaining: maxAbsent - missed,
	}
}

// Allowance is a user's absence budget for one subject.
type Allowance struct {
	Category  Category
	Subject   SubjectKey
	Limit     decimal.Decimal
	Total     int
	Missed    int
	MaxAbsent int
	// Remaining goes negative once the limit is exceeded.
	Remaining int
}

// Exceeded reports whether the user has missed more than allowed.
func (a Allowance) Exceeded() bool { return a.Remaining < 0 }

// UsageBar shows how much of the allowance is used: done is the missed
// count, total is the maximum allowed.
func (a Allowance) UsageBar() Bar { return ProgressBar(a.Missed, a.MaxAbsent) }

// SubjectSummary is one row of the profile report.
type SubjectSummary struct {
	Subject  string
	Occurred int
	Attended int
}

// Percent is the attendance rate rounded to one decimal place.
func (s SubjectSummary) Percent() decimal.Decimal {
	if s.Occurred <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.Attended)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(s.Occurred))).
		Round(1)
}

// Low reports an attendance rate under AttendanceWarnPercent.
func (s SubjectSummary) Low() bool { return s.Percent().LessThan(AttendanceWarnPercent) }

// RateBar shows the attendance rate: done is the present count, total is the
// number of lessons that already took place.
func (s SubjectSummary) RateBar() Bar { return ProgressBar(s.Attended, s.Occurred) }

// Bar is a quantized progress bar of BarSegments segments.
type Bar struct {
	Filled int
}

// ProgressBar fills floor(done/total*BarSegments) segments, clamped to the bar.
// A zero total yields an empty bar.
func ProgressBar(done, total int) Bar {
	if total <= 0 || done <= 0 {
		return Bar{}
	}
	filled := done * BarSegments / total
	if filled > BarSegments {
		filled = BarSegments
	}
	return Bar{Filled: filled}
}

// Unfilled is the number of remaining segments.
func (b Bar) Unfilled() int { return BarSegments - b.Filled }

// Render draws the bar with the given segment glyphs.
func (b Bar) Render(filled, unfilled string) string {
	return strings.Repeat(filled, b.Filled) + strings.Repeat(unfilled, b.Unfilled())
}
