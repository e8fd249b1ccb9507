package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectureflow/internal/attendance"
)

type fakeStore struct {
	lessons map[string][]attendance.Lesson
	users   []int64
	// counts maps user id to {total, filled} for any date
	counts   map[int64][2]int
	countErr map[int64]error
}

func (f *fakeStore) LessonsOnDate(_ context.Context, date time.Time) ([]attendance.Lesson, error) {
	return f.lessons[date.Format(attendance.DateLayout)], nil
}

func (f *fakeStore) UserIDs(context.Context) ([]int64, error) { return f.users, nil }

func (f *fakeStore) CountFilledAndTotal(_ context.Context, userID int64, _ time.Time) (int, int, error) {
	if err := f.countErr[userID]; err != nil {
		return 0, 0, err
	}
	c := f.counts[userID]
	return c[0], c[1], nil
}

type sent struct {
	userID int64
	text   string
}

type fakeNotifier struct {
	mu      sync.Mutex
	fail    map[int64]bool
	outbox  []sent
	attempt int
}

func (f *fakeNotifier) Notify(_ context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempt++
	if f.fail[userID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.outbox = append(f.outbox, sent{userID: userID, text: text})
	return nil
}

var istanbul = time.FixedZone("TRT", 3*60*60)

func fixedSweeper(store Store, n Notifier, now time.Time) *Sweeper {
	s := NewSweeper(store, n, istanbul)
	s.now = func() time.Time { return now }
	return s
}

func TestEveningReminderSkipsDaysWithoutLessons(t *testing.T) {
	store := &fakeStore{users: []int64{1, 2, 3}}
	n := &fakeNotifier{}
	rep, err := fixedSweeper(store, n, time.Date(2026, 3, 2, 18, 30, 0, 0, istanbul)).EveningReminder(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n.attempt)
	assert.Equal(t, Report{Job: JobEvening, Date: "2026-03-02"}, rep)
}

func TestEveningReminderIsolatesFailures(t *testing.T) {
	store := &fakeStore{
		users:   []int64{1, 2, 3},
		lessons: map[string][]attendance.Lesson{"2026-03-02": {{ID: 1, Subject: "Anatomy"}}},
	}
	n := &fakeNotifier{fail: map[int64]bool{2: true}}
	rep, err := fixedSweeper(store, n, time.Date(2026, 3, 2, 18, 30, 0, 0, istanbul)).EveningReminder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n.attempt)
	assert.Equal(t, []sent{{1, EveningText}, {3, EveningText}}, n.outbox)
	assert.Equal(t, 3, rep.Recipients)
	assert.Equal(t, 2, rep.Sent)
	assert.Equal(t, 1, rep.Failed)
}

func TestEveningReminderUsesLocalDate(t *testing.T) {
	store := &fakeStore{
		users:   []int64{1},
		lessons: map[string][]attendance.Lesson{"2026-03-03": {{ID: 1}}},
	}
	n := &fakeNotifier{}
	// 22:30 UTC on the 2nd is already the 3rd in Istanbul
	now := time.Date(2026, 3, 2, 22, 30, 0, 0, time.UTC)
	rep, err := fixedSweeper(store, n, now).EveningReminder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", rep.Date)
	assert.Equal(t, 1, rep.Sent)
}

func TestLateSweep(t *testing.T) {
	store := &fakeStore{
		users: []int64{1, 2, 3, 4, 5},
		counts: map[int64][2]int{
			1: {3, 1}, // gap 2
			2: {3, 3}, // complete
			3: {0, 0}, // nothing scheduled
			4: {3, 0}, // gap 3, unreachable
			5: {2, 1}, // gap 1
		},
	}
	n := &fakeNotifier{fail: map[int64]bool{4: true}}
	rep, err := fixedSweeper(store, n, time.Date(2026, 3, 2, 23, 0, 0, 0, istanbul)).LateSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []sent{{1, LateText(2)}, {5, LateText(1)}}, n.outbox)
	assert.Equal(t, 3, rep.Recipients)
	assert.Equal(t, 2, rep.Sent)
	assert.Equal(t, 1, rep.Failed)
	assert.Contains(t, LateText(2), "<b>2</b>")
}

func TestLateSweepContinuesAfterCountError(t *testing.T) {
	store := &fakeStore{
		users:    []int64{1, 2},
		counts:   map[int64][2]int{2: {1, 0}},
		countErr: map[int64]error{1: errors.New("db gone")},
	}
	n := &fakeNotifier{}
	rep, err := fixedSweeper(store, n, time.Date(2026, 3, 2, 23, 0, 0, 0, istanbul)).LateSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []sent{{2, LateText(1)}}, n.outbox)
	assert.Equal(t, Report{Job: JobSweep, Date: "2026-03-02", Recipients: 1, Sent: 1, LookupErrors: 1}, rep)
	assert.LessOrEqual(t, rep.Failed, rep.Recipients)
}

func TestRunUnknownJob(t *testing.T) {
	_, err := NewSweeper(&fakeStore{}, &fakeNotifier{}, nil).Run(context.Background(), "weekly")
	assert.ErrorIs(t, err, ErrUnknownJob)
}
