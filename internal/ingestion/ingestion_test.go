package ingestion

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/database"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
)

func writeSheet(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}

	path := filepath.Join(t.TempDir(), "sheet.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func taskSheet(t *testing.T) string {
	return writeSheet(t, [][]interface{}{
		{"date", "day", "rezazadeh", "ahmadi"},
		{"14040205", "Sunday", "1- Design onboarding flow\n2- Call vendor", "Write API docs"},
		{"14040206", "Monday", "", "Fix login bug"},
		{"", "", "orphan", ""},
	})
}

func TestLoadTaskTable(t *testing.T) {
	rows, err := LoadTaskTable(taskSheet(t), "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "14040205", rows[0].Date)
	assert.Equal(t, "Sunday", rows[0].Day)
	assert.Equal(t, map[string]string{
		"rezazadeh": "1- Design onboarding flow\n2- Call vendor",
		"ahmadi":    "Write API docs",
	}, rows[0].Tasks)
	assert.Equal(t, map[string]string{"ahmadi": "Fix login bug"}, rows[1].Tasks)
}

func TestLoadTaskTableRequiresDateColumn(t *testing.T) {
	path := writeSheet(t, [][]interface{}{{"person"}, {"x"}})
	_, err := LoadTaskTable(path, "")
	assert.ErrorContains(t, err, "no date column")
}

func TestLoadTaskTableUnknownSheet(t *testing.T) {
	_, err := LoadTaskTable(taskSheet(t), "missing")
	assert.Error(t, err)
}

func TestLoadOKRsSingleColumnAssignsCodes(t *testing.T) {
	path := writeSheet(t, [][]interface{}{
		{"key result"},
		{"Launch the B2B portal"},
		{""},
		{"Cut incident response time"},
	})

	krs, err := LoadOKRs(path, "")
	require.NoError(t, err)
	assert.Equal(t, []models.KeyResult{
		{Code: "KR1", Description: "Launch the B2B portal"},
		{Code: "KR2", Description: "Cut incident response time"},
	}, krs)
	assert.Equal(t, []string{"Launch the B2B portal", "Cut incident response time"}, OKRTexts(krs))
}

func TestLoadOKRsWithCodes(t *testing.T) {
	path := writeSheet(t, [][]interface{}{
		{"code", "description", "objective"},
		{"K-B2B-048", "Launch the B2B portal", "Grow B2B revenue"},
		{"K-OPS-002", "Cut incident response time"},
	})

	krs, err := LoadOKRs(path, "")
	require.NoError(t, err)
	assert.Equal(t, []models.KeyResult{
		{Code: "K-B2B-048", Description: "Launch the B2B portal", Objective: "Grow B2B revenue"},
		{Code: "K-OPS-002", Description: "Cut incident response time"},
	}, krs)
}

func TestLoadOKRsRejectsDuplicateCodes(t *testing.T) {
	path := writeSheet(t, [][]interface{}{
		{"code", "description"},
		{"K1", "a"},
		{"K1", "b"},
	})
	_, err := LoadOKRs(path, "")
	assert.ErrorContains(t, err, "duplicate kr code")
}

func TestReadOKRsFromReader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"okr"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Ship it"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	krs, err := ReadOKRs(bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	require.Len(t, krs, 1)
	assert.Equal(t, "KR1", krs[0].Code)
}

func TestSplitNumbered(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "  ", nil},
		{"plain", "Write docs\nand review", []string{"Write docs\nand review"}},
		{"dash", "1- a\n2- b", []string{"a", "b"}},
		{"dot and paren", "1. a\n2) b", []string{"a", "b"}},
		{"continuation", "1- a\n   more of a\n2- b", []string{"a\n   more of a", "b"}},
		{"persian digits", "۱- الف\n۲- ب", []string{"الف", "ب"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitNumbered(tt.in))
		})
	}
}

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) InvalidateAnalyses(context.Context) error {
	f.calls++
	return f.err
}

func newTestDB(t *testing.T) *database.Client {
	t.Helper()
	db, err := database.NewClient(filepath.Join(t.TempDir(), "okr.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema(context.Background()))
	return db
}

func TestImportFileSkipsKnownDays(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cache := &fakeInvalidator{err: errors.New("redis down")}
	imp := NewImporter(db, cache, true)
	path := taskSheet(t)

	res, err := imp.ImportFile(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"14040205", "14040206"}, res.Days)
	assert.Equal(t, 4, res.Inserted)
	assert.Equal(t, 1, cache.calls)

	tasks, err := db.TasksByPerson(ctx, "rezazadeh")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Design onboarding flow", tasks[0].Text)
	assert.Equal(t, "Call vendor", tasks[1].Text)

	again, err := imp.ImportFile(ctx, path, "")
	require.NoError(t, err)
	assert.Empty(t, again.Days)
	assert.Equal(t, []string{"14040205", "14040206"}, again.SkippedDays)
	assert.Zero(t, again.Inserted)
	assert.Equal(t, 1, cache.calls)

	count, err := db.CountTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestImportRowsWithoutSplitting(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	imp := NewImporter(db, nil, false)

	res, err := imp.ImportRows(ctx, []models.TaskRow{
		{Date: "d1", Tasks: map[string]string{"p": "1- a\n2- b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
}

func TestSheetsReadConfiguredFiles(t *testing.T) {
	okrPath := writeSheet(t, [][]interface{}{{"okr"}, {"Ship it"}})
	s := Sheets{TaskPath: taskSheet(t), OKRPath: okrPath}

	rows, err := s.TaskTable()
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	krs, err := s.KeyResults()
	require.NoError(t, err)
	assert.Equal(t, []models.KeyResult{{Code: "KR1", Description: "Ship it"}}, krs)
}
