package reminder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// lockTTL outlives a day so a job cannot fire twice for the same date.
const lockTTL = 26 * time.Hour

// Locker grants a key to exactly one caller until the ttl expires.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker shares run locks between worker replicas using SETNX.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker builds a locker namespaced by prefix.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "lectureflow:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire sets the key if it is absent.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// LocalLocker is an in-process Locker for single-replica deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocalLocker creates an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

// Acquire grants key unless an unexpired grant exists.
func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

// Scheduler fires the reminder jobs on cron.
type Scheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	sweeper *Sweeper
	locker  Locker
	timeout time.Duration
}

// NewScheduler creates a scheduler whose cron expressions are evaluated in loc.
// A job still running when its next tick arrives is skipped.
func NewScheduler(sweeper *Sweeper, locker Locker, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		entries: make(map[string]cron.EntryID),
		sweeper: sweeper,
		locker:  locker,
		timeout: 10 * time.Minute,
	}
}

// Schedule registers the evening reminder and the late sweep.
func (s *Scheduler) Schedule(eveningSpec, sweepSpec string) error {
	for _, j := range []struct{ job, spec string }{{JobEvening, eveningSpec}, {JobSweep, sweepSpec}} {
		job := j.job
		id, err := s.cron.AddFunc(j.spec, func() { s.runOnce(job) })
		if err != nil {
			return fmt.Errorf("schedule %s %q: %w", job, j.spec, err)
		}
		s.entries[job] = id
	}
	return nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	log.Printf("reminder scheduler started with %d jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop halts the cron loop and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		log.Println("reminder scheduler stopped")
	case <-ctx.Done():
		log.Println("reminder scheduler stop timed out")
	}
}

// runOnce executes job unless another replica already did today.
func (s *Scheduler) runOnce(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := "reminder:" + job + ":" + s.sweeper.today().Format("2006-01-02")
	ok, err := s.locker.Acquire(ctx, key, lockTTL)
	if err != nil {
		log.Printf("reminder %s: lock %s failed, running anyway: %v", job, key, err)
	} else if !ok {
		log.Printf("reminder %s: already ran (%s)", job, key)
		return
	}

	if _, err := s.sweeper.Run(ctx, job); err != nil {
		log.Printf("reminder %s failed: %v", job, err)
	}
}
