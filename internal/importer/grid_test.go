package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectureflow/internal/attendance"
)

func day(s string) time.Time {
	d, err := time.Parse(attendance.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		cell     string
		category attendance.Category
		name     string
	}{
		{"Anatomi", attendance.General, "Anatomi"},
		{"KOMİTE - 4 / Anatomi", attendance.Committee(4), "Anatomi"},
		{"Komite 4/Fizyoloji", attendance.Committee(4), "Fizyoloji"},
		{"COMMITTEE-12 / Genetics", attendance.Committee(12), "Genetics"},
		{"PANEL: Sağlık / Halk Sağlığı", attendance.Committee(5), "Halk Sağlığı"},
		{"PANEL: Etik Kurul", attendance.Committee(5), "PANEL: Etik Kurul"},
		{"Anatomi (p", attendance.General, "Anatomi (P)"},
		{"Farmakoloji (t", attendance.General, "Farmakoloji (T)"},
		{"Anatomi\nDr. Yılmaz", attendance.General, "Anatomi"},
		{"Histoloji    Amfi 2", attendance.General, "Histoloji"},
	}
	for _, tt := range tests {
		c, name := NormalizeName(tt.cell)
		assert.Equal(t, tt.category, c, tt.cell)
		assert.Equal(t, tt.name, name, tt.cell)
	}
}

func TestDetectType(t *testing.T) {
	practical := []string{"Anatomi (P)", "anatomi (p)", "Fizyoloji LAB", "Mikrobiyoloji Pratik", "FANTOM Eğitimi", "Biyokimya PRATİK"}
	for _, cell := range practical {
		assert.Equal(t, attendance.Practical, DetectType(cell), cell)
	}
	assert.Equal(t, attendance.Theoretical, DetectType("Anatomi"))
	assert.Equal(t, attendance.Theoretical, DetectType("Farmakoloji (T)"))
}

func TestSubjectName(t *testing.T) {
	assert.Equal(t, "Anatomi (P)", SubjectName("Anatomi", attendance.Practical))
	assert.Equal(t, "Anatomi (P)", SubjectName("Anatomi (p)", attendance.Practical))
	assert.Equal(t, "Anatomi (P)", SubjectName("Anatomi (P", attendance.Practical))
	assert.Equal(t, "Fizyoloji LAB (P)", SubjectName("Fizyoloji LAB ", attendance.Practical))
	assert.Equal(t, "Anatomi", SubjectName(" Anatomi ", attendance.Theoretical))
}

func TestSkipSheet(t *testing.T) {
	for _, name := range []string{"SINAV TAKVİMİ", "Sınav", "Gözlem Listesi", "SORUMLU ÖĞRETİM", "Tatil", "TATIL GÜNLERİ"} {
		assert.True(t, SkipSheet(name), name)
	}
	for _, name := range []string{"1. Hafta", "Mart", "Sheet1"} {
		assert.False(t, SkipSheet(name), name)
	}
}

var sampleGrid = [][]string{
	{"DÖNEM 3 BAHAR"},
	{"", "2026-03-02 Pazartesi", "03.03.2026", "", "", "", "", "2026-03-09"},
	{"08:30-09:20", "KOMİTE - 4 / Anatomi", "Etik", "", "", "", "", "Ignored"},
	{"09:30-10:20", "", "PANEL: Sağlık / Halk Sağlığı"},
	{"10:30-11:20", "Fizyoloji LAB", ""},
	{"12:00-13:00", "Öğle Arası", "ÖĞLE ARASI"},
	{"13:30-14:20", "", "Biyokimya (P)"},
	{"Notlar", "Anatomi"},
}

func TestParseGrid(t *testing.T) {
	lessons, err := ParseGrid("1. Hafta", sampleGrid)
	require.NoError(t, err)

	want := []attendance.Lesson{
		{Date: day("2026-03-02"), Time: "08:30-09:20", Category: attendance.Committee(4), Subject: "Anatomi", Type: attendance.Theoretical},
		{Date: day("2026-03-03"), Time: "08:30-09:20", Category: attendance.General, Subject: "Etik", Type: attendance.Theoretical},
		{Date: day("2026-03-02"), Time: "09:30-10:20", Category: attendance.Committee(4), Subject: "Anatomi", Type: attendance.Theoretical},
		{Date: day("2026-03-03"), Time: "09:30-10:20", Category: attendance.Committee(5), Subject: "Halk Sağlığı", Type: attendance.Theoretical},
		{Date: day("2026-03-02"), Time: "10:30-11:20", Category: attendance.General, Subject: "Fizyoloji LAB (P)", Type: attendance.Practical},
		{Date: day("2026-03-03"), Time: "10:30-11:20", Category: attendance.Committee(5), Subject: "Halk Sağlığı", Type: attendance.Theoretical},
		{Date: day("2026-03-03"), Time: "13:30-14:20", Category: attendance.General, Subject: "Biyokimya (P)", Type: attendance.Practical},
	}
	assert.Equal(t, want, lessons)
}

func TestParseGridSingleLunchCellStopsColumn(t *testing.T) {
	grid := [][]string{
		{"", "2026-03-02", "2026-03-03", "2026-03-04"},
		{"08:30-09:20", "Anatomi", "Etik", "Genetik"},
		{"09:30-10:20", "Öğle arası", "", "Histoloji"},
		{"10:30-11:20", "", "", "Histoloji"},
	}
	lessons, err := ParseGrid("s", grid)
	require.NoError(t, err)

	var subjects []string
	for _, l := range lessons {
		subjects = append(subjects, l.DateString()+" "+l.Time+" "+l.Subject)
	}
	assert.Equal(t, []string{
		"2026-03-02 08:30-09:20 Anatomi",
		"2026-03-03 08:30-09:20 Etik",
		"2026-03-04 08:30-09:20 Genetik",
		"2026-03-03 09:30-10:20 Etik",
		"2026-03-04 09:30-10:20 Histoloji",
		"2026-03-03 10:30-11:20 Etik",
		"2026-03-04 10:30-11:20 Histoloji",
	}, subjects)
}

func TestParseGridWithoutDates(t *testing.T) {
	_, err := ParseGrid("notes", [][]string{{"08:30-09:20", "Anatomi"}})
	assert.ErrorIs(t, err, ErrNoDateRow)
}
