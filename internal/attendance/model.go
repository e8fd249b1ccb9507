package attendance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the storage and wire format of lesson dates.
const DateLayout = "2006-01-02"

var (
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrBadCategory     = errors.New("invalid category")
	ErrBadSubjectType  = errors.New("invalid subject type")
	ErrBadStatus       = errors.New("invalid attendance status")
)

// Category is the optional committee tag of a lesson. The zero value is the
// general (ungrouped) category.
type Category struct {
	ID    int64
	Valid bool
}

// General selects lessons without a committee.
var General = Category{}

// Committee returns the category for committee id.
func Committee(id int64) Category { return Category{ID: id, Valid: true} }

// String is the payload form: "general" or the committee number.
func (c Category) String() string {
	if !c.Valid {
		return "general"
	}
	return strconv.FormatInt(c.ID, 10)
}

// Label is the human readable name.
func (c Category) Label() string {
	if !c.Valid {
		return "General Courses"
	}
	return fmt.Sprintf("Committee %d", c.ID)
}

// ParseCategory accepts "general", "none", "" or a committee number.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "general", "none":
		return General, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 0 {
		return Category{}, fmt.Errorf("%w: %q", ErrBadCategory, s)
	}
	return Committee(id), nil
}

// SubjectType decides the absence limit of a subject.
type SubjectType string

const (
	Theoretical SubjectType = "Theoretical"
	Practical   SubjectType = "Practical"
)

// Code is the single-letter payload form.
func (t SubjectType) Code() string {
	if t == Practical {
		return "P"
	}
	return "T"
}

// ParseSubjectType accepts the full name or the single-letter code.
func ParseSubjectType(s string) (SubjectType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "theoretical":
		return Theoretical, nil
	case "p", "practical":
		return Practical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadSubjectType, s)
}

// Status is what a user reported for a lesson.
type Status int

const (
	Absent  Status = 0
	Present Status = 1
)

// ParseStatus accepts the stored numeric form.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "0":
		return Absent, nil
	case "1":
		return Present, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadStatus, s)
}

// Mark is the query-side view of a (user, lesson) pair. Unreported means no
// record exists, which is not the same as Absent.
type Mark int

const (
	Unreported Mark = iota
	MarkedPresent
	MarkedAbsent
)

func markOf(s Status) Mark {
	if s == Present {
		return MarkedPresent
	}
	return MarkedAbsent
}

func (m Mark) String() string {
	switch m {
	case MarkedPresent:
		return "present"
	case MarkedAbsent:
		return "absent"
	}
	return "unreported"
}

// Lesson is one scheduled class session.
type Lesson struct {
	ID       int64
	Date     time.Time
	Time     string
	Category Category
	Subject  string
	Type     SubjectType
}

// Key returns the accounting key of the lesson's subject.
func (l Lesson) Key() SubjectKey { return SubjectKey{Name: l.Subject, Type: l.Type} }

// DateString formats the lesson date in DateLayout.
func (l Lesson) DateString() string { return l.Date.Format(DateLayout) }

// SubjectKey identifies a subject. Lessons sharing name and type are the same
// subject.
type SubjectKey struct {
	Name string      `json:"name"`
	Type SubjectType `json:"type"`
}

// Subject is a distinct subject within a category. RefLessonID is the lowest
// lesson id of the subject and identifies it in button payloads.
type Subject struct {
	SubjectKey
	RefLessonID int64 `json:"ref_lesson_id"`
}

// User is a known platform identity.
type User struct {
	ID              int64
	Handle          string
	CurrentCategory *Category
}

// LessonStatus pairs a lesson with a user's mark for it.
type LessonStatus struct {
	Lesson Lesson
	Mark   Mark
}

// ParseDate parses a DateLayout date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}
