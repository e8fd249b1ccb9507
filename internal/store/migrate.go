package store

import (
	"context"
	"fmt"
)

// Open connects to the store and migrates it. Any failure closes the handle,
// so callers never serve against an unreachable or unmigrated schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	db, err := NewDB(driver, dsn)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the lessons, users and attendance tables if missing.
func Migrate(ctx context.Context, d *DB) error {
	lessonID := "BIGSERIAL PRIMARY KEY"
	if d.Driver == DriverSQLite {
		lessonID = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lessons (
			id           ` + lessonID + `,
			lesson_date  TEXT NOT NULL,
			lesson_time  TEXT NOT NULL,
			category     BIGINT,
			subject_name TEXT NOT NULL,
			subject_type TEXT NOT NULL CHECK (subject_type IN ('Theoretical', 'Practical'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_date ON lessons(lesson_date, lesson_time)`,
		// one row per session; a category of NULL compares equal here
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_lessons_session
			ON lessons(lesson_date, lesson_time, COALESCE(category, -1), subject_name, subject_type)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_subject ON lessons(category, subject_name, subject_type)`,
		`CREATE TABLE IF NOT EXISTS users (
			id               BIGINT PRIMARY KEY,
			handle           TEXT NOT NULL DEFAULT '',
			current_category BIGINT,
			created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			user_id    BIGINT NOT NULL,
			lesson_id  BIGINT NOT NULL REFERENCES lessons(id),
			status     SMALLINT NOT NULL CHECK (status IN (0, 1)),
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, lesson_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_lesson ON attendance(lesson_id)`,
	}
	for i, stmt := range stmts {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
