package importer

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"lectureflow/internal/attendance"
	"lectureflow/internal/store"
)

func writeSheet(t *testing.T, f *excelize.File, sheet string, rows [][]string) {
	t.Helper()
	for r, row := range rows {
		for c, v := range row {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
}

func workbook(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "1. Hafta"))
	writeSheet(t, f, "1. Hafta", sampleGrid)

	_, err := f.NewSheet("SINAV TAKVİMİ")
	require.NoError(t, err)
	writeSheet(t, f, "SINAV TAKVİMİ", [][]string{
		{"", "2026-04-20"},
		{"09:00-12:00", "Komite Sınavı"},
	})

	_, err = f.NewSheet("Notlar")
	require.NoError(t, err)
	writeSheet(t, f, "Notlar", [][]string{{"Derslikler değişebilir"}})

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadWorkbook(t *testing.T) {
	lessons, err := ReadWorkbook(workbook(t))
	require.NoError(t, err)

	fromGrid, err := ParseGrid("1. Hafta", sampleGrid)
	require.NoError(t, err)
	assert.Equal(t, fromGrid, lessons)
}

func TestReadWorkbookRejectsGarbage(t *testing.T) {
	_, err := ReadWorkbook(strings.NewReader("not a workbook"))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	in := "Date,Time,Committee,Lecture,Type\n" +
		"2026-03-02,08:30-09:20,4.0,Anatomi,Teorik\n" +
		"2026-03-02,09:30-10:20,,Etik,Theoretical\n" +
		"2026-03-03,10:30-11:20,5,Fizyoloji LAB,Pratik\n"
	lessons, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, lessons, 3)

	assert.Equal(t, attendance.Committee(4), lessons[0].Category)
	assert.Equal(t, attendance.Theoretical, lessons[0].Type)
	assert.Equal(t, attendance.General, lessons[1].Category)
	assert.Equal(t, "Fizyoloji LAB (P)", lessons[2].Subject)
	assert.Equal(t, attendance.Practical, lessons[2].Type)
	assert.Equal(t, "2026-03-03", lessons[2].DateString())
}

func TestReadCSVRejects(t *testing.T) {
	header := "date,time,committee,lecture_name,type\n"
	for name, body := range map[string]string{
		"bad date":      "2026-13-02,08:30,,Anatomi,Teorik\n",
		"bad committee": "2026-03-02,08:30,four,Anatomi,Teorik\n",
		"bad type":      "2026-03-02,08:30,,Anatomi,Seminer\n",
		"no name":       "2026-03-02,08:30,,,Teorik\n",
		"short row":     "2026-03-02,08:30,Anatomi\n",
		"no rows":       "",
	} {
		_, err := ReadCSV(strings.NewReader(header + body))
		assert.Error(t, err, name)
	}
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoadIsAtomic(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewDB(store.DriverSQLite, filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(ctx, db))
	repo := attendance.NewRepository(db.Client)

	lessons, err := ParseGrid("1. Hafta", sampleGrid)
	require.NoError(t, err)

	bad := append([]attendance.Lesson{}, lessons...)
	bad = append(bad, attendance.Lesson{Date: day("2026-03-04"), Time: "08:30", Subject: "Seminer", Type: "Seminar"})
	_, err = Load(ctx, repo, bad)
	require.Error(t, err)

	subjects, err := repo.DistinctSubjects(ctx, attendance.Committee(4))
	require.NoError(t, err)
	assert.Empty(t, subjects)

	n, err := Load(ctx, repo, lessons)
	require.NoError(t, err)
	assert.Equal(t, len(lessons), n)

	onDay, err := repo.LessonsOnDate(ctx, day("2026-03-03"))
	require.NoError(t, err)
	assert.Len(t, onDay, 4)

	n, err = Load(ctx, repo, lessons)
	require.NoError(t, err)
	assert.Zero(t, n, "re-import adds nothing")
	onDay, err = repo.LessonsOnDate(ctx, day("2026-03-03"))
	require.NoError(t, err)
	assert.Len(t, onDay, 4)

	_, err = Load(ctx, repo, nil)
	assert.ErrorIs(t, err, ErrEmpty)
}
