package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lectureflow/internal/attendance"
)

// Callback actions.
const (
	ActionMark     = "att"
	ActionCategory = "cat"
	ActionCalc     = "calc"
	ActionDay      = "day"
)

// maxPayload is Telegram's limit on callback_data.
const maxPayload = 64

var ErrBadPayload = errors.New("malformed callback payload")

// Payload is a decoded inline button press.
type Payload struct {
	Action      string
	LessonID    int64
	Status      attendance.Status
	Category    attendance.Category
	RefLessonID int64
	Type        attendance.SubjectType
	Day         string
}

// MarkPayload encodes an attendance mark button.
func MarkPayload(lessonID int64, status attendance.Status) string {
	return fmt.Sprintf("%s:%d:%d", ActionMark, lessonID, status)
}

// CategoryPayload encodes a category selection button.
func CategoryPayload(c attendance.Category) string {
	return ActionCategory + ":" + c.String()
}

// CalcPayload encodes a subject selection button. The subject is identified by
// its reference lesson so long names fit the payload limit.
func CalcPayload(c attendance.Category, s attendance.Subject) string {
	return fmt.Sprintf("%s:%s:%d:%s", ActionCalc, c.String(), s.RefLessonID, s.Type.Code())
}

// DayPayload encodes a date picker button.
func DayPayload(day time.Time) string {
	return ActionDay + ":" + day.Format(attendance.DateLayout)
}

// DecodePayload parses callback data produced by the *Payload helpers.
func DecodePayload(data string) (Payload, error) {
	if data == "" || len(data) > maxPayload {
		return Payload{}, ErrBadPayload
	}
	parts := strings.Split(data, ":")
	bad := func() (Payload, error) { return Payload{}, fmt.Errorf("%w: %q", ErrBadPayload, data) }

	switch parts[0] {
	case ActionMark:
		if len(parts) != 3 {
			return bad()
		}
		id, err := parseID(parts[1])
		if err != nil {
			return bad()
		}
		status, err := attendance.ParseStatus(parts[2])
		if err != nil {
			return bad()
		}
		return Payload{Action: ActionMark, LessonID: id, Status: status}, nil

	case ActionCategory:
		if len(parts) != 2 || parts[1] == "" {
			return bad()
		}
		c, err := attendance.ParseCategory(parts[1])
		if err != nil {
			return bad()
		}
		return Payload{Action: ActionCategory, Category: c}, nil

	case ActionCalc:
		if len(parts) != 4 || parts[1] == "" {
			return bad()
		}
		c, err := attendance.ParseCategory(parts[1])
		if err != nil {
			return bad()
		}
		ref, err := parseID(parts[2])
		if err != nil {
			return bad()
		}
		if parts[3] != "T" && parts[3] != "P" {
			return bad()
		}
		t, _ := attendance.ParseSubjectType(parts[3])
		return Payload{Action: ActionCalc, Category: c, RefLessonID: ref, Type: t}, nil

	case ActionDay:
		if len(parts) != 2 {
			return bad()
		}
		if _, err := time.Parse(attendance.DateLayout, parts[1]); err != nil {
			return bad()
		}
		return Payload{Action: ActionDay, Day: parts[1]}, nil
	}
	return bad()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadPayload
	}
	return id, nil
}
