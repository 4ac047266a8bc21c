package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

// ScoreRunExists reports whether the (krCode, person) pair was already scored,
// either through a recorded run or through score rows written without one.
func (c *Client) ScoreRunExists(ctx context.Context, krCode, person string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, c.q(`
		SELECT 1 FROM scoring_runs WHERE kr_code = ? AND person = ?
		UNION ALL
		SELECT 1 FROM task_scores WHERE kr_code = ? AND person = ?
		LIMIT 1`), krCode, person, krCode, person).Scan(&one)
	if err == nil {
		return true, nil
	}
	if isNoRows(err) {
		return false, nil
	}
	return false, persistenceErr("check run exists", err)
}

// SaveScores writes the run record and every score in a single transaction.
// Either all rows land or none do.
func (c *Client) SaveScores(ctx context.Context, run models.ScoringRun, scores map[int64]int) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceErr("begin save scores", err)
	}
	defer tx.Rollback()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, c.q(`
		INSERT INTO scoring_runs (run_id, kr_code, person, rounds, task_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		run.RunID, run.KRCode, run.Person, run.Rounds, run.TaskCount, createdAt.Unix())
	if err != nil {
		return classifyWriteErr("insert scoring run", err, run)
	}

	stmt, err := tx.PrepareContext(ctx, c.q(`
		INSERT INTO task_scores (task_id, kr_code, score, person) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return persistenceErr("prepare insert scores", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, run.KRCode, scores[id], run.Person); err != nil {
			return classifyWriteErr(fmt.Sprintf("insert score for task %d", id), err, run)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyWriteErr("commit scores", err, run)
	}

	logger.Info("Scores saved",
		zap.String("run_id", run.RunID),
		zap.String("kr_code", run.KRCode),
		zap.String("person", run.Person),
		zap.Int("scores", len(scores)),
	)
	return nil
}

type ScoreFilter struct {
	KRCode string
	Person string
}

func (c *Client) ScoresFor(ctx context.Context, filter ScoreFilter) ([]models.ScoreRecord, error) {
	query := `SELECT id, task_id, kr_code, score, person FROM task_scores`
	var (
		conds []string
		args  []any
	)
	if filter.KRCode != "" {
		conds = append(conds, "kr_code = ?")
		args = append(args, filter.KRCode)
	}
	if filter.Person != "" {
		conds = append(conds, "person = ?")
		args = append(args, filter.Person)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY kr_code, person, task_id"

	rows, err := c.db.QueryContext(ctx, c.q(query), args...)
	if err != nil {
		return nil, persistenceErr("query scores", err)
	}
	defer rows.Close()

	records := []models.ScoreRecord{}
	for rows.Next() {
		var r models.ScoreRecord
		if err := rows.Scan(&r.ID, &r.TaskID, &r.KRCode, &r.Score, &r.Person); err != nil {
			return nil, persistenceErr("scan score", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate scores", err)
	}
	return records, nil
}

func (c *Client) ListRuns(ctx context.Context) ([]models.ScoringRun, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, kr_code, person, rounds, task_count, created_at
		FROM scoring_runs ORDER BY created_at, kr_code, person`)
	if err != nil {
		return nil, persistenceErr("list runs", err)
	}
	defer rows.Close()

	runs := []models.ScoringRun{}
	for rows.Next() {
		var (
			r       models.ScoringRun
			created int64
		)
		if err := rows.Scan(&r.RunID, &r.KRCode, &r.Person, &r.Rounds, &r.TaskCount, &created); err != nil {
			return nil, persistenceErr("scan run", err)
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate runs", err)
	}
	return runs, nil
}

func classifyWriteErr(op string, err error, run models.ScoringRun) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: kr_code=%s person=%s", ErrRunExists, run.KRCode, run.Person)
	case isForeignKeyViolation(err):
		return persistenceErr(op, fmt.Errorf("%w: %v", ErrUnknownTask, err))
	default:
		return persistenceErr(op, err)
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
