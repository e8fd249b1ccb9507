package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"lectureflow/internal/attendance"
	"lectureflow/internal/metrics"
)

// Job names.
const (
	JobEvening = "evening"
	JobSweep   = "sweep"
)

// EveningText is broadcast on days with lessons.
const EveningText = "⏰ <b>Attendance time:</b> don't forget to mark today's lessons!"

var ErrUnknownJob = errors.New("unknown reminder job")

// LateText warns a user about lessons left unreported today.
func LateText(gap int) string {
	return fmt.Sprintf("🚨 <b>LAST CALL!</b>\n\n"+
		"You still have <b>%d</b> lesson(s) without attendance today.\n"+
		"Please fill them in now so nothing gets lost! ⏳", gap)
}

// Store is what the sweep reads.
type Store interface {
	LessonsOnDate(ctx context.Context, date time.Time) ([]attendance.Lesson, error)
	UserIDs(ctx context.Context) ([]int64, error)
	CountFilledAndTotal(ctx context.Context, userID int64, date time.Time) (total, filled int, err error)
}

// Notifier delivers a text to one user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Report summarizes one run. Failed counts undelivered notifications;
// LookupErrors counts users whose state could not be read and who were skipped.
type Report struct {
	Job          string `json:"job"`
	Date         string `json:"date"`
	Recipients   int    `json:"recipients"`
	Sent         int    `json:"sent"`
	Failed       int    `json:"failed"`
	LookupErrors int    `json:"lookup_errors"`
}

// Sweeper runs the daily reminder jobs.
type Sweeper struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

// NewSweeper creates a sweeper evaluating "today" in loc.
func NewSweeper(store Store, notifier Notifier, loc *time.Location) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{store: store, notifier: notifier, loc: loc, now: time.Now}
}

func (s *Sweeper) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

// Run executes the named job.
func (s *Sweeper) Run(ctx context.Context, job string) (Report, error) {
	switch job {
	case JobEvening:
		return s.EveningReminder(ctx)
	case JobSweep:
		return s.LateSweep(ctx)
	}
	return Report{}, fmt.Errorf("%w: %q", ErrUnknownJob, job)
}

// EveningReminder broadcasts a generic reminder to every user when today has
// at least one lesson.
func (s *Sweeper) EveningReminder(ctx context.Context) (Report, error) {
	today := s.today()
	rep := Report{Job: JobEvening, Date: today.Format(attendance.DateLayout)}

	lessons, err := s.store.LessonsOnDate(ctx, today)
	if err != nil {
		return rep, fmt.Errorf("lessons on %s: %w", rep.Date, err)
	}
	if len(lessons) == 0 {
		log.Printf("reminder %s: no lessons on %s, skipping", JobEvening, rep.Date)
		return rep, nil
	}

	users, err := s.store.UserIDs(ctx)
	if err != nil {
		return rep, fmt.Errorf("list users: %w", err)
	}
	for _, uid := range users {
		rep.Recipients++
		s.deliver(ctx, &rep, uid, EveningText)
	}
	log.Printf("reminder %s %s: sent %d, failed %d", JobEvening, rep.Date, rep.Sent, rep.Failed)
	return rep, nil
}

// LateSweep warns every user who left lessons of today unreported.
func (s *Sweeper) LateSweep(ctx context.Context) (Report, error) {
	today := s.today()
	rep := Report{Job: JobSweep, Date: today.Format(attendance.DateLayout)}

	users, err := s.store.UserIDs(ctx)
	if err != nil {
		return rep, fmt.Errorf("list users: %w", err)
	}
	for _, uid := range users {
		total, filled, err := s.store.CountFilledAndTotal(ctx, uid, today)
		if err != nil {
			log.Printf("reminder %s: count for user %d failed: %v", JobSweep, uid, err)
			rep.LookupErrors++
			continue
		}
		if total == 0 || filled >= total {
			continue
		}
		rep.Recipients++
		s.deliver(ctx, &rep, uid, LateText(total-filled))
	}
	log.Printf("reminder %s %s: sent %d, failed %d, lookup errors %d", JobSweep, rep.Date, rep.Sent, rep.Failed, rep.LookupErrors)
	return rep, nil
}

// deliver sends one notification; a failure is logged and counted, never returned.
func (s *Sweeper) deliver(ctx context.Context, rep *Report, userID int64, text string) {
	if err := s.notifier.Notify(ctx, userID, text); err != nil {
		log.Printf("reminder %s: user %d unreachable: %v", rep.Job, userID, err)
		metrics.Reminders.WithLabelValues(rep.Job, "failed").Inc()
		rep.Failed++
		return
	}
	metrics.Reminders.WithLabelValues(rep.Job, "sent").Inc()
	rep.Sent++
}
