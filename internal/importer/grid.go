// Package importer turns the faculty timetable workbook, or an already
// normalized CSV export of it, into lesson rows.
package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"lectureflow/internal/attendance"
)

// panelCommittee is the committee panel sessions belong to.
const panelCommittee = 5

// Only these columns can carry a weekday; column 0 holds the time slot.
const (
	firstDayColumn = 1
	lastDayColumn  = 6
)

var (
	ErrNoDateRow = errors.New("no date row found")

	isoDate     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	dottedDate  = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
	timeSlot    = regexp.MustCompile(`\d{2}:\d{2}-\d{2}:\d{2}`)
	multiSpace  = regexp.MustCompile(`\s{2,}`)
	committee   = regexp.MustCompile(`(?i)(KOM[İIıi]TE|COMMITTEE)\s*-*\s*(\d+)`)
	committeeIn = regexp.MustCompile(`(?i)(KOM[İIıi]TE|COMMITTEE)\s*-*\s*\d+\s*/\s*`)
	openP       = regexp.MustCompile(`\([Pp]$`)
	openT       = regexp.MustCompile(`\([Tt]$`)
	practicalAt = regexp.MustCompile(`\([Pp]\)?$`)
)

var skippedSheets = []string{"SINAV", "GÖZLEM", "SORUMLU", "TATIL"}

// fold upper-cases with Turkish rules and then drops the dot of İ so that
// "Tatil", "TATİL" and "TATIL" compare equal.
func fold(s string) string {
	return strings.ReplaceAll(strings.ToUpperSpecial(unicode.TurkishCase, s), "İ", "I")
}

// SkipSheet reports whether a sheet holds exams, duty rosters or holidays
// rather than lessons.
func SkipSheet(name string) bool {
	up := fold(name)
	for _, k := range skippedSheets {
		if strings.Contains(up, k) {
			return true
		}
	}
	return false
}

// DetectType classifies a timetable cell.
func DetectType(cell string) attendance.SubjectType {
	up := fold(cell)
	for _, k := range []string{"(P)", "LAB", "PRATIK", "FANTOM"} {
		if strings.Contains(up, k) {
			return attendance.Practical
		}
	}
	return attendance.Theoretical
}

// NormalizeName extracts the category and the subject name from a cell. Only
// the first line up to a wide gap is considered.
func NormalizeName(cell string) (attendance.Category, string) {
	first := strings.TrimSpace(strings.SplitN(cell, "\n", 2)[0])
	clean := strings.TrimSpace(multiSpace.Split(first, 2)[0])

	c := attendance.General
	if m := committee.FindStringSubmatch(clean); m != nil {
		if id, err := strconv.ParseInt(m[2], 10, 64); err == nil {
			c = attendance.Committee(id)
		}
	}

	name := clean
	switch {
	case strings.Contains(strings.ToUpper(clean), "PANEL:"):
		c = attendance.Committee(panelCommittee)
		if i := strings.LastIndex(clean, "/"); i >= 0 {
			name = strings.TrimSpace(clean[i+1:])
		}
	case c.Valid:
		name = strings.TrimSpace(committeeIn.ReplaceAllString(clean, ""))
	}
	name = openP.ReplaceAllString(name, "(P)")
	name = openT.ReplaceAllString(name, "(T)")
	return c, name
}

// SubjectName finalizes a name for its type: practical subjects always end in
// " (P)".
func SubjectName(name string, t attendance.SubjectType) string {
	name = strings.TrimSpace(name)
	if t != attendance.Practical {
		return name
	}
	if practicalAt.MatchString(name) {
		return practicalAt.ReplaceAllString(name, "(P)")
	}
	return name + " (P)"
}

// LessonFromCell builds a lesson from a raw timetable cell.
func LessonFromCell(date time.Time, slot, cell string) (attendance.Lesson, error) {
	t := DetectType(cell)
	c, name := NormalizeName(cell)
	if name == "" {
		return attendance.Lesson{}, fmt.Errorf("empty subject in cell %q", cell)
	}
	return attendance.Lesson{Date: date, Time: slot, Category: c, Subject: SubjectName(name, t), Type: t}, nil
}

func extractDate(cell string) (time.Time, bool) {
	if s := isoDate.FindString(cell); s != "" {
		if d, err := time.Parse(attendance.DateLayout, s); err == nil {
			return d, true
		}
	}
	if m := dottedDate.FindStringSubmatch(cell); m != nil {
		if d, err := time.Parse(attendance.DateLayout, m[3]+"-"+m[2]+"-"+m[1]); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isBreak(v string) bool {
	return v == "" || strings.Contains(strings.ToLower(v), "öğle")
}

// ParseGrid reads one timetable sheet. The first row holding dates names the
// day columns. Every later row whose first cell is a time slot yields one
// lesson per day column; an empty cell continues the lesson above it, and a
// break row ends every running lesson.
func ParseGrid(sheet string, rows [][]string) ([]attendance.Lesson, error) {
	dateRow := -1
	days := map[int]time.Time{}
	for i, row := range rows {
		for col := firstDayColumn; col <= lastDayColumn; col++ {
			if d, ok := extractDate(cellAt(row, col)); ok {
				days[col] = d
			}
		}
		if len(days) > 0 {
			dateRow = i
			break
		}
	}
	if dateRow < 0 {
		return nil, fmt.Errorf("sheet %q: %w", sheet, ErrNoDateRow)
	}

	var lessons []attendance.Lesson
	running := map[int]string{}
	for i := dateRow + 1; i < len(rows); i++ {
		row := rows[i]
		slot := timeSlot.FindString(cellAt(row, 0))
		if slot == "" {
			continue
		}

		breakRow := true
		for col := range days {
			if !isBreak(cellAt(row, col)) {
				breakRow = false
				break
			}
		}
		if breakRow {
			running = map[int]string{}
			continue
		}

		for col := firstDayColumn; col <= lastDayColumn; col++ {
			date, ok := days[col]
			if !ok {
				continue
			}
			if v := cellAt(row, col); v != "" {
				if isBreak(v) {
					delete(running, col)
				} else {
					running[col] = v
				}
			}
			cell, ok := running[col]
			if !ok {
				continue
			}
			l, err := LessonFromCell(date, slot, cell)
			if err != nil {
				return nil, fmt.Errorf("sheet %q row %d: %w", sheet, i+1, err)
			}
			lessons = append(lessons, l)
		}
	}
	return lessons, nil
}
