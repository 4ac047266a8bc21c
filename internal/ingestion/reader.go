package ingestion

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
)

// LoadTaskTable reads a task sheet whose header row is "date, day, <person>...".
// Each following row is one work day. Empty person cells are skipped.
func LoadTaskTable(path, sheet string) ([]models.TaskRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task sheet %s: %w", path, err)
	}
	defer f.Close()
	return readTaskTable(f, sheet)
}

func ReadTaskTable(r io.Reader, sheet string) ([]models.TaskRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open task sheet: %w", err)
	}
	defer f.Close()
	return readTaskTable(f, sheet)
}

func readTaskTable(f *excelize.File, sheet string) ([]models.TaskRow, error) {
	rows, err := sheetRows(f, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.TaskRow{}, nil
	}

	dateCol, dayCol := -1, -1
	persons := map[int]string{}
	for i, h := range rows[0] {
		name := strings.TrimSpace(h)
		switch strings.ToLower(name) {
		case "date":
			dateCol = i
		case "day":
			dayCol = i
		case "":
		default:
			persons[i] = name
		}
	}
	if dateCol < 0 {
		return nil, fmt.Errorf("task sheet has no date column")
	}

	out := make([]models.TaskRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		date := cell(row, dateCol)
		if date == "" {
			continue
		}
		tr := models.TaskRow{Date: date, Day: cell(row, dayCol), Tasks: map[string]string{}}
		for col, person := range persons {
			if v := cell(row, col); v != "" {
				tr.Tasks[person] = v
			}
		}
		out = append(out, tr)
	}
	return out, nil
}

// LoadOKRs reads key results from the first sheet column(s). With a single
// column the codes are assigned KR1, KR2... in order; otherwise the columns are
// code, description and an optional parent objective.
func LoadOKRs(path, sheet string) ([]models.KeyResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open okr sheet %s: %w", path, err)
	}
	defer f.Close()
	return readOKRs(f, sheet)
}

func ReadOKRs(r io.Reader, sheet string) ([]models.KeyResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open okr sheet: %w", err)
	}
	defer f.Close()
	return readOKRs(f, sheet)
}

func readOKRs(f *excelize.File, sheet string) ([]models.KeyResult, error) {
	rows, err := sheetRows(f, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return []models.KeyResult{}, nil
	}

	width := 0
	for _, h := range rows[0] {
		if strings.TrimSpace(h) != "" {
			width++
		}
	}

	krs := make([]models.KeyResult, 0, len(rows)-1)
	seen := map[string]struct{}{}
	for _, row := range rows[1:] {
		var kr models.KeyResult
		if width < 2 {
			desc := cell(row, 0)
			if desc == "" {
				continue
			}
			kr = models.KeyResult{Code: fmt.Sprintf("KR%d", len(krs)+1), Description: desc}
		} else {
			kr = models.KeyResult{Code: cell(row, 0), Description: cell(row, 1), Objective: cell(row, 2)}
			if kr.Code == "" {
				continue
			}
		}
		if _, dup := seen[kr.Code]; dup {
			return nil, fmt.Errorf("duplicate kr code %q", kr.Code)
		}
		seen[kr.Code] = struct{}{}
		krs = append(krs, kr)
	}
	return krs, nil
}

// OKRTexts returns the description of each key result, as fed to the classifier.
func OKRTexts(krs []models.KeyResult) []string {
	texts := make([]string, 0, len(krs))
	for _, kr := range krs {
		texts = append(texts, kr.Description)
	}
	return texts
}

func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
