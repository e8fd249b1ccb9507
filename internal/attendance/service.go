package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ScheduleStore is the read side of the lesson schedule.
type ScheduleStore interface {
	LessonsOnDate(ctx context.Context, date time.Time) ([]Lesson, error)
	LessonsInCategory(ctx context.Context, c Category) ([]Lesson, error)
	Lesson(ctx context.Context, id int64) (Lesson, error)
	DistinctSubjects(ctx context.Context, c Category) ([]Subject, error)
	Categories(ctx context.Context) ([]Category, error)
	CountSubjectLessons(ctx context.Context, c Category, key SubjectKey) (int, error)
}

// Ledger stores and aggregates attendance records.
type Ledger interface {
	RecordStatus(ctx context.Context, userID, lessonID int64, status Status) error
	CountSubjectAbsences(ctx context.Context, userID int64, c Category, key SubjectKey) (int, error)
	AttendanceSummary(ctx context.Context, userID int64, asOf time.Time) ([]SubjectSummary, error)
	CountFilledAndTotal(ctx context.Context, userID int64, date time.Time) (total, filled int, err error)
	DayStatuses(ctx context.Context, userID int64, date time.Time) ([]LessonStatus, error)
}

// UserDirectory tracks known users.
type UserDirectory interface {
	UpsertUser(ctx context.Context, u User) error
	SetCurrentCategory(ctx context.Context, userID int64, c Category) error
	UserIDs(ctx context.Context) ([]int64, error)
}

// Service answers attendance questions on top of the schedule and the ledger.
type Service struct {
	schedule ScheduleStore
	ledger   Ledger
	users    UserDirectory
	policy   Policy
}

// NewService creates a service using DefaultPolicy.
func NewService(schedule ScheduleStore, ledger Ledger, users UserDirectory) *Service {
	return &Service{schedule: schedule, ledger: ledger, users: users, policy: DefaultPolicy}
}

// Register records a user on first contact; repeated calls are harmless.
func (s *Service) Register(ctx context.Context, userID int64, handle string) error {
	if userID == 0 {
		return errors.New("user id required")
	}
	return s.users.UpsertUser(ctx, User{ID: userID, Handle: handle})
}

// Schedule returns the lessons of a day in time order.
func (s *Service) Schedule(ctx context.Context, date time.Time) ([]Lesson, error) {
	return s.schedule.LessonsOnDate(ctx, date)
}

// DaySheet returns the lessons of a day with the user's marks.
func (s *Service) DaySheet(ctx context.Context, userID int64, date time.Time) ([]LessonStatus, error) {
	return s.ledger.DayStatuses(ctx, userID, date)
}

// Mark records the user's status for a lesson and returns the lesson.
func (s *Service) Mark(ctx context.Context, userID, lessonID int64, status Status) (Lesson, error) {
	if status != Present && status != Absent {
		return Lesson{}, fmt.Errorf("%w: %d", ErrBadStatus, status)
	}
	lesson, err := s.schedule.Lesson(ctx, lessonID)
	if err != nil {
		return Lesson{}, err
	}
	if err := s.ledger.RecordStatus(ctx, userID, lessonID, status); err != nil {
		return Lesson{}, fmt.Errorf("record lesson %d for user %d: %w", lessonID, userID, err)
	}
	return lesson, nil
}

// Categories lists the committees that have lessons.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.schedule.Categories(ctx)
}

// Subjects lists the subjects of a category.
func (s *Service) Subjects(ctx context.Context, c Category) ([]Subject, error) {
	return s.schedule.DistinctSubjects(ctx, c)
}

// SelectCategory remembers the user's choice and lists its subjects.
func (s *Service) SelectCategory(ctx context.Context, userID int64, c Category) ([]Subject, error) {
	if err := s.users.SetCurrentCategory(ctx, userID, c); err != nil {
		return nil, fmt.Errorf("set category for user %d: %w", userID, err)
	}
	return s.schedule.DistinctSubjects(ctx, c)
}

// Allowance computes the remaining absence allowance of a subject.
func (s *Service) Allowance(ctx context.Context, userID int64, c Category, key SubjectKey) (Allowance, error) {
	total, err := s.schedule.CountSubjectLessons(ctx, c, key)
	if err != nil {
		return Allowance{}, fmt.Errorf("count lessons of %q: %w", key.Name, err)
	}
	if total == 0 {
		return Allowance{}, ErrSubjectNotFound
	}
	missed, err := s.ledger.CountSubjectAbsences(ctx, userID, c, key)
	if err != nil {
		return Allowance{}, fmt.Errorf("count absences of %q: %w", key.Name, err)
	}
	return s.policy.Compute(c, key, total, missed), nil
}

// AllowanceByRef resolves a subject from its reference lesson and computes the
// allowance. The lesson must belong to category c and have type t.
func (s *Service) AllowanceByRef(ctx context.Context, userID int64, c Category, refLessonID int64, t SubjectType) (Allowance, error) {
	ref, err := s.schedule.Lesson(ctx, refLessonID)
	if err != nil {
		if errors.Is(err, ErrLessonNotFound) {
			return Allowance{}, ErrSubjectNotFound
		}
		return Allowance{}, err
	}
	if ref.Category != c || ref.Type != t {
		return Allowance{}, ErrSubjectNotFound
	}
	return s.Allowance(ctx, userID, c, ref.Key())
}

// Profile summarizes attendance per subject for lessons up to asOf.
func (s *Service) Profile(ctx context.Context, userID int64, asOf time.Time) ([]SubjectSummary, error) {
	return s.ledger.AttendanceSummary(ctx, userID, asOf)
}
