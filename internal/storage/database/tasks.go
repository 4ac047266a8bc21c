package database

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

// InsertTasks stores the tasks in one transaction and returns how many were written.
func (c *Client) InsertTasks(ctx context.Context, tasks []models.Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistenceErr("begin insert tasks", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, c.q(`INSERT INTO tasks (day, person, task) VALUES (?, ?, ?)`))
	if err != nil {
		return 0, persistenceErr("prepare insert tasks", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		if _, err := stmt.ExecContext(ctx, t.Day, t.Person, t.Text); err != nil {
			return 0, persistenceErr("insert task", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, persistenceErr("commit insert tasks", err)
	}

	logger.Debug("Tasks inserted", zap.Int("count", len(tasks)))
	return len(tasks), nil
}

func (c *Client) DayExists(ctx context.Context, day string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, c.q(`SELECT 1 FROM tasks WHERE day = ? LIMIT 1`), day).Scan(&one)
	if err == nil {
		return true, nil
	}
	if isNoRows(err) {
		return false, nil
	}
	return false, persistenceErr("check day", err)
}

func (c *Client) TasksByPerson(ctx context.Context, person string) ([]models.Task, error) {
	rows, err := c.db.QueryContext(ctx,
		c.q(`SELECT id, day, person, task FROM tasks WHERE person = ? ORDER BY id`), person)
	if err != nil {
		return nil, persistenceErr("query tasks", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Day, &t.Person, &t.Text); err != nil {
			return nil, persistenceErr("scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate tasks", err)
	}
	return tasks, nil
}

// ListPersons returns the distinct task owners in ascending order.
func (c *Client) ListPersons(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT person FROM tasks`)
	if err != nil {
		return nil, persistenceErr("list persons", err)
	}
	defer rows.Close()

	persons := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, persistenceErr("scan person", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate persons", err)
	}

	sort.Strings(persons)
	return persons, nil
}

func (c *Client) CountTasks(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}
