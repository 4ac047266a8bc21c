package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/ingestion"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

type TaskImporter interface {
	ImportRows(ctx context.Context, rows []models.TaskRow) (*ingestion.ImportResult, error)
}

type TasksHandler struct {
	importer TaskImporter
	tasks    TaskTableSource
}

func NewTasksHandler(importer TaskImporter, tasks TaskTableSource) *TasksHandler {
	return &TasksHandler{
		importer: importer,
		tasks:    tasks,
	}
}

// ImportTasks stores an uploaded task sheet (multipart field "file"), or the
// configured sheet when nothing is uploaded.
func (h *TasksHandler) ImportTasks(c *fiber.Ctx) error {
	rows, err := h.rows(c)
	if err != nil {
		logger.Error("Failed to read task sheet", zap.Error(err))
		return badRequest(c, "Failed to read task sheet: "+err.Error())
	}

	result, err := h.importer.ImportRows(c.Context(), rows)
	if err != nil {
		logger.Error("Failed to import tasks", zap.Error(err))
		return respondError(c, "Failed to import tasks", err)
	}

	return c.JSON(result)
}

func (h *TasksHandler) rows(c *fiber.Ctx) ([]models.TaskRow, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return h.tasks.TaskTable()
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ingestion.ReadTaskTable(f, c.FormValue("sheet"))
}
