package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"lectureflow/internal/attendance"
)

// Sink stores parsed lessons atomically.
type Sink interface {
	InsertLessons(ctx context.Context, lessons []attendance.Lesson) (int, error)
}

var ErrEmpty = errors.New("no lessons found")

// ReadWorkbook parses every lesson sheet of an xlsx timetable.
func ReadWorkbook(r io.Reader) ([]attendance.Lesson, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var all []attendance.Lesson
	for _, sheet := range f.GetSheetList() {
		if SkipSheet(sheet) {
			log.Printf("skipping sheet %q", sheet)
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		lessons, err := ParseGrid(sheet, rows)
		if errors.Is(err, ErrNoDateRow) {
			log.Printf("skipping sheet %q: %v", sheet, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Printf("sheet %q: %d lessons", sheet, len(lessons))
		all = append(all, lessons...)
	}
	if len(all) == 0 {
		return nil, ErrEmpty
	}
	return all, nil
}

// csvHeader is the column order of normalized exports.
var csvHeader = []string{"date", "time", "committee", "lecture_name", "type"}

// ReadCSV parses normalized rows: date, time, committee (empty for general),
// lecture name and type. The first line is a header.
func ReadCSV(r io.Reader) ([]attendance.Lesson, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var lessons []attendance.Lesson
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		l, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		lessons = append(lessons, l)
	}
	if len(lessons) == 0 {
		return nil, ErrEmpty
	}
	return lessons, nil
}

func parseRecord(rec []string) (attendance.Lesson, error) {
	date, err := attendance.ParseDate(rec[0], nil)
	if err != nil {
		return attendance.Lesson{}, fmt.Errorf("date %q: %w", rec[0], err)
	}
	slot := strings.TrimSpace(rec[1])
	if slot == "" {
		return attendance.Lesson{}, errors.New("missing time")
	}
	c, err := parseCommittee(rec[2])
	if err != nil {
		return attendance.Lesson{}, err
	}
	t, err := parseType(rec[4])
	if err != nil {
		return attendance.Lesson{}, err
	}
	name := strings.TrimSpace(rec[3])
	if name == "" {
		return attendance.Lesson{}, errors.New("missing lecture name")
	}
	return attendance.Lesson{Date: date, Time: slot, Category: c, Subject: SubjectName(name, t), Type: t}, nil
}

// parseCommittee accepts "", "nan", "4" and the float form "4.0" spreadsheets
// tend to export.
func parseCommittee(s string) (attendance.Category, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return attendance.General, nil
	}
	s = strings.TrimSuffix(s, ".0")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return attendance.Category{}, fmt.Errorf("%w: %q", attendance.ErrBadCategory, s)
	}
	return attendance.Committee(id), nil
}

func parseType(s string) (attendance.SubjectType, error) {
	switch fold(strings.TrimSpace(s)) {
	case "PRATIK":
		return attendance.Practical, nil
	case "TEORIK":
		return attendance.Theoretical, nil
	}
	return attendance.ParseSubjectType(s)
}

// Load stores lessons through sink in one batch.
func Load(ctx context.Context, sink Sink, lessons []attendance.Lesson) (int, error) {
	if len(lessons) == 0 {
		return 0, ErrEmpty
	}
	n, err := sink.InsertLessons(ctx, lessons)
	if err != nil {
		return 0, fmt.Errorf("import %d lessons: %w", len(lessons), err)
	}
	return n, nil
}
