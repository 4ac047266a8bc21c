package ingestion

import "github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"

// Sheets reads the configured workbooks on every call so edits to the files
// are picked up without a restart.
type Sheets struct {
	TaskPath string
	OKRPath  string
}

func (s Sheets) TaskTable() ([]models.TaskRow, error) {
	return LoadTaskTable(s.TaskPath, "")
}

func (s Sheets) KeyResults() ([]models.KeyResult, error) {
	return LoadOKRs(s.OKRPath, "")
}
