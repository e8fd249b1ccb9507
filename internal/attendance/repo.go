package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Repository persists lessons, users and attendance records. The SQL is shared
// by Postgres and SQLite; placeholders are numbered in order of appearance.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// params collects positional query arguments.
type params []any

func (p *params) add(v any) string {
	*p = append(*p, v)
	return "$" + strconv.Itoa(len(*p))
}

// categoryIs is the single category predicate used by every query.
func categoryIs(col string, c Category, p *params) string {
	if !c.Valid {
		return col + " IS NULL"
	}
	return col + " = " + p.add(c.ID)
}

const lessonColumns = `l.id, l.lesson_date, l.lesson_time, l.category, l.subject_name, l.subject_type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLesson(row rowScanner, extra ...any) (Lesson, error) {
	var (
		l        Lesson
		date     string
		category sql.NullInt64
		typ      string
	)
	dest := append([]any{&l.ID, &date, &l.Time, &category, &l.Subject, &typ}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Lesson{}, err
	}
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return Lesson{}, fmt.Errorf("lesson %d: bad date %q: %w", l.ID, date, err)
	}
	l.Date = d
	l.Category = Category{ID: category.Int64, Valid: category.Valid}
	l.Type = SubjectType(typ)
	return l, nil
}

func (r *Repository) queryLessons(ctx context.Context, query string, args ...any) ([]Lesson, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// LessonsOnDate returns the lessons of a day ordered by time of day.
func (r *Repository) LessonsOnDate(ctx context.Context, date time.Time) ([]Lesson, error) {
	return r.queryLessons(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons l
		WHERE l.lesson_date = $1
		ORDER BY l.lesson_time ASC, l.id ASC
	`, date.Format(DateLayout))
}

// LessonsInCategory returns every lesson of a category in calendar order.
func (r *Repository) LessonsInCategory(ctx context.Context, c Category) ([]Lesson, error) {
	var p params
	query := `SELECT ` + lessonColumns + ` FROM lessons l WHERE ` + categoryIs("l.category", c, &p) +
		` ORDER BY l.lesson_date, l.lesson_time, l.id`
	return r.queryLessons(ctx, query, p...)
}

// Lesson returns a single lesson by id.
func (r *Repository) Lesson(ctx context.Context, id int64) (Lesson, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons l WHERE l.id = $1`, id)
	l, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lesson{}, ErrLessonNotFound
	}
	return l, err
}

// DistinctSubjects lists the subjects of a category that have at least one session.
func (r *Repository) DistinctSubjects(ctx context.Context, c Category) ([]Subject, error) {
	var p params
	query := `
		SELECT l.subject_name, l.subject_type, MIN(l.id)
		FROM lessons l
		WHERE ` + categoryIs("l.category", c, &p) + `
		GROUP BY l.subject_name, l.subject_type
		ORDER BY l.subject_name, l.subject_type`
	rows, err := r.db.QueryContext(ctx, query, p...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Subject
	for rows.Next() {
		var (
			s   Subject
			typ string
		)
		if err := rows.Scan(&s.Name, &typ, &s.RefLessonID); err != nil {
			return nil, err
		}
		s.Type = SubjectType(typ)
		res = append(res, s)
	}
	return res, rows.Err()
}

// Categories returns the committees present in the schedule, ascending.
func (r *Repository) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM lessons
		WHERE category IS NOT NULL
		ORDER BY category
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Category
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, Committee(id))
	}
	return res, rows.Err()
}

// CountSubjectLessons counts all scheduled sessions of a subject, past and future.
func (r *Repository) CountSubjectLessons(ctx context.Context, c Category, key SubjectKey) (int, error) {
	var p params
	query := `SELECT COUNT(*) FROM lessons l WHERE ` + categoryIs("l.category", c, &p) +
		` AND l.subject_name = ` + p.add(key.Name) +
		` AND l.subject_type = ` + p.add(string(key.Type))
	var n int
	err := r.db.QueryRowContext(ctx, query, p...).Scan(&n)
	return n, err
}

// InsertLessons stores a batch of lessons in one transaction; either all rows
// are written or none. Sessions already in the schedule are skipped, so the
// returned count is the number of new rows.
func (r *Repository) InsertLessons(ctx context.Context, lessons []Lesson) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lessons (lesson_date, lesson_time, category, subject_name, subject_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for i, l := range lessons {
		category := sql.NullInt64{Int64: l.Category.ID, Valid: l.Category.Valid}
		res, err := stmt.ExecContext(ctx, l.DateString(), l.Time, category, l.Subject, string(l.Type))
		if err != nil {
			return 0, fmt.Errorf("insert lesson %d (%s %s): %w", i+1, l.DateString(), l.Subject, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// RecordStatus upserts a user's status for a lesson; the last write wins.
func (r *Repository) RecordStatus(ctx context.Context, userID, lessonID int64, status Status) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (user_id, lesson_id, status, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = CURRENT_TIMESTAMP
	`, userID, lessonID, int(status))
	return err
}

// CountSubjectAbsences counts the user's Absent records for a subject.
func (r *Repository) CountSubjectAbsences(ctx context.Context, userID int64, c Category, key SubjectKey) (int, error) {
	var p params
	query := `
		SELECT COUNT(*)
		FROM attendance a
		JOIN lessons l ON a.lesson_id = l.id
		WHERE a.user_id = ` + p.add(userID) + `
		AND ` + categoryIs("l.category", c, &p) + `
		AND l.subject_name = ` + p.add(key.Name) + `
		AND l.subject_type = ` + p.add(string(key.Type)) + `
		AND a.status = ` + p.add(int(Absent))
	var n int
	err := r.db.QueryRowContext(ctx, query, p...).Scan(&n)
	return n, err
}

// AttendanceSummary returns, per subject with at least one lesson on or before
// asOf, the number of lessons that took place and how many the user attended.
func (r *Repository) AttendanceSummary(ctx context.Context, userID int64, asOf time.Time) ([]SubjectSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			l.subject_name,
			COUNT(l.id),
			COALESCE(SUM(CASE WHEN a.status = $1 THEN 1 ELSE 0 END), 0)
		FROM lessons l
		LEFT JOIN attendance a ON a.lesson_id = l.id AND a.user_id = $2
		WHERE l.lesson_date <= $3
		GROUP BY l.subject_name
		ORDER BY l.subject_name ASC
	`, int(Present), userID, asOf.Format(DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []SubjectSummary
	for rows.Next() {
		var s SubjectSummary
		if err := rows.Scan(&s.Subject, &s.Occurred, &s.Attended); err != nil {
			return nil, err
		}
		if s.Occurred > 0 {
			res = append(res, s)
		}
	}
	return res, rows.Err()
}

// CountFilledAndTotal returns the lessons scheduled on date and how many of
// them have any record for the user.
func (r *Repository) CountFilledAndTotal(ctx context.Context, userID int64, date time.Time) (total, filled int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(l.id), COUNT(a.lesson_id)
		FROM lessons l
		LEFT JOIN attendance a ON a.lesson_id = l.id AND a.user_id = $1
		WHERE l.lesson_date = $2
	`, userID, date.Format(DateLayout)).Scan(&total, &filled)
	return total, filled, err
}

// DayStatuses returns the lessons of a day with the user's mark for each.
func (r *Repository) DayStatuses(ctx context.Context, userID int64, date time.Time) ([]LessonStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+lessonColumns+`, a.status
		FROM lessons l
		LEFT JOIN attendance a ON a.lesson_id = l.id AND a.user_id = $1
		WHERE l.lesson_date = $2
		ORDER BY l.lesson_time ASC, l.id ASC
	`, userID, date.Format(DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []LessonStatus
	for rows.Next() {
		var status sql.NullInt64
		l, err := scanLesson(rows, &status)
		if err != nil {
			return nil, err
		}
		ls := LessonStatus{Lesson: l, Mark: Unreported}
		if status.Valid {
			ls.Mark = markOf(Status(status.Int64))
		}
		res = append(res, ls)
	}
	return res, rows.Err()
}

// UpsertUser registers a user or refreshes the handle of a known one.
func (r *Repository) UpsertUser(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, handle)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET handle = EXCLUDED.handle
	`, u.ID, u.Handle)
	return err
}

// SetCurrentCategory remembers the category a user last browsed.
func (r *Repository) SetCurrentCategory(ctx context.Context, userID int64, c Category) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET current_category = $1 WHERE id = $2`,
		sql.NullInt64{Int64: c.ID, Valid: c.Valid}, userID)
	return err
}

// GetUser returns a user or nil when unknown.
func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	var (
		u        User
		category sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, handle, current_category FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Handle, &category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if category.Valid {
		c := Committee(category.Int64)
		u.CurrentCategory = &c
	}
	return &u, nil
}

// UserIDs lists every known user.
func (r *Repository) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}
