package ingestion

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/metrics"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

type TaskStore interface {
	DayExists(ctx context.Context, day string) (bool, error)
	InsertTasks(ctx context.Context, tasks []models.Task) (int, error)
}

// CacheInvalidator drops derived results once new tasks are stored.
type CacheInvalidator interface {
	InvalidateAnalyses(ctx context.Context) error
}

type Importer struct {
	store         TaskStore
	cache         CacheInvalidator
	splitNumbered bool
	log           *zap.Logger
}

type ImportResult struct {
	Days        []string `json:"days"`
	SkippedDays []string `json:"skipped_days"`
	Inserted    int      `json:"inserted"`
}

func NewImporter(store TaskStore, cache CacheInvalidator, splitNumbered bool) *Importer {
	return &Importer{
		store:         store,
		cache:         cache,
		splitNumbered: splitNumbered,
		log:           logger.Named("ingestion"),
	}
}

func (i *Importer) ImportFile(ctx context.Context, path, sheet string) (*ImportResult, error) {
	rows, err := LoadTaskTable(path, sheet)
	if err != nil {
		return nil, err
	}
	return i.ImportRows(ctx, rows)
}

// ImportRows stores the tasks of every day not already present. Days that
// already have tasks are skipped whole so re-importing a sheet is harmless.
func (i *Importer) ImportRows(ctx context.Context, rows []models.TaskRow) (*ImportResult, error) {
	res := &ImportResult{Days: []string{}, SkippedDays: []string{}}
	var tasks []models.Task

	for _, row := range rows {
		exists, err := i.store.DayExists(ctx, row.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to check day %s: %w", row.Date, err)
		}
		if exists {
			res.SkippedDays = append(res.SkippedDays, row.Date)
			continue
		}
		res.Days = append(res.Days, row.Date)
		tasks = append(tasks, i.tasksFromRow(row)...)
	}

	n, err := i.store.InsertTasks(ctx, tasks)
	if err != nil {
		return nil, err
	}
	res.Inserted = n
	metrics.TasksImported.Add(float64(n))

	if n > 0 && i.cache != nil {
		if err := i.cache.InvalidateAnalyses(ctx); err != nil {
			i.log.Warn("Failed to invalidate analysis cache", zap.Error(err))
		}
	}

	i.log.Info("Tasks imported",
		zap.Int("days", len(res.Days)),
		zap.Int("skipped_days", len(res.SkippedDays)),
		zap.Int("tasks", n),
	)
	return res, nil
}

// tasksFromRow flattens one day, ordered by person so ids are assigned stably.
func (i *Importer) tasksFromRow(row models.TaskRow) []models.Task {
	persons := make([]string, 0, len(row.Tasks))
	for p := range row.Tasks {
		persons = append(persons, p)
	}
	sort.Strings(persons)

	var out []models.Task
	for _, p := range persons {
		texts := []string{row.Tasks[p]}
		if i.splitNumbered {
			texts = SplitNumbered(row.Tasks[p])
		}
		for _, text := range texts {
			out = append(out, models.Task{Day: row.Date, Person: p, Text: text})
		}
	}
	return out
}
