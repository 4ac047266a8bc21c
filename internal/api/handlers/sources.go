package handlers

import "github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"

type OKRSource interface {
	KeyResults() ([]models.KeyResult, error)
}

type TaskTableSource interface {
	TaskTable() ([]models.TaskRow, error)
}
