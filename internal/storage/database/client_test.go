package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "okr.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema(context.Background()))
	return c
}

func seedTasks(t *testing.T, c *Client, tasks ...models.Task) []models.Task {
	t.Helper()
	ctx := context.Background()
	_, err := c.InsertTasks(ctx, tasks)
	require.NoError(t, err)

	var all []models.Task
	persons, err := c.ListPersons(ctx)
	require.NoError(t, err)
	for _, p := range persons {
		ts, err := c.TasksByPerson(ctx, p)
		require.NoError(t, err)
		all = append(all, ts...)
	}
	return all
}

func newRun(kr, person string) models.ScoringRun {
	return models.ScoringRun{RunID: uuid.NewString(), KRCode: kr, Person: person, Rounds: 4}
}

func TestDetectDriver(t *testing.T) {
	tests := map[string]Driver{
		"postgres://u:p@localhost/okr": DriverPostgres,
		"postgresql://localhost/okr":   DriverPostgres,
		"./data/okr_tasks.db":          DriverSQLite,
		"sqlite:///var/lib/okr.sqlite": DriverSQLite,
		"file:okr.db?cache=shared":     DriverSQLite,
	}
	for dsn, want := range tests {
		assert.Equal(t, want, DetectDriver(dsn), dsn)
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT 1 FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, q, rebind(DriverSQLite, q))
	assert.Equal(t, "SELECT 1 FROM t WHERE a = $1 AND b = $2", rebind(DriverPostgres, q))
}

func TestTasksRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedTasks(t, c,
		models.Task{Day: "14040206", Person: "rezazadeh", Text: "پیگیری تیکت سرورها"},
		models.Task{Day: "14040206", Person: "farmani", Text: "طراحی داشبورد"},
		models.Task{Day: "14040207", Person: "rezazadeh", Text: "جلسه با تیم امنیت"},
	)

	persons, err := c.ListPersons(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"farmani", "rezazadeh"}, persons)

	tasks, err := c.TasksByPerson(ctx, "rezazadeh")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Less(t, tasks[0].ID, tasks[1].ID)
	assert.Equal(t, "14040207", tasks[1].Day)

	exists, err := c.DayExists(ctx, "14040206")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.DayExists(ctx, "14040301")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListPersonsEmpty(t *testing.T) {
	c := newTestClient(t)
	persons, err := c.ListPersons(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persons)
}

func TestListPersonsReportsFailure(t *testing.T) {
	c := newTestClient(t)
	require.NoError(t, c.Close())

	_, err := c.ListPersons(context.Background())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "list persons", perr.Op)
}

func TestSaveScoresAndExists(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	tasks := seedTasks(t, c,
		models.Task{Day: "14040206", Person: "rezazadeh", Text: "a"},
		models.Task{Day: "14040206", Person: "rezazadeh", Text: "b"},
	)

	exists, err := c.ScoreRunExists(ctx, "K-B2B-048", "rezazadeh")
	require.NoError(t, err)
	assert.False(t, exists)

	scores := map[int64]int{tasks[0].ID: 320, tasks[1].ID: 40}
	require.NoError(t, c.SaveScores(ctx, newRun("K-B2B-048", "rezazadeh"), scores))

	exists, err = c.ScoreRunExists(ctx, "K-B2B-048", "rezazadeh")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.ScoreRunExists(ctx, "K-B2B-048", "farmani")
	require.NoError(t, err)
	assert.False(t, exists)

	records, err := c.ScoresFor(ctx, ScoreFilter{KRCode: "K-B2B-048", Person: "rezazadeh"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, tasks[0].ID, records[0].TaskID)
	assert.Equal(t, 320, records[0].Score)
	assert.Equal(t, 40, records[1].Score)

	runs, err := c.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "K-B2B-048", runs[0].KRCode)
}

func TestSaveScoresEmptyAggregateStillMarksRun(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SaveScores(ctx, newRun("KR1", "farmani"), map[int64]int{}))

	exists, err := c.ScoreRunExists(ctx, "KR1", "farmani")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaveScoresDuplicateRun(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	tasks := seedTasks(t, c, models.Task{Day: "14040206", Person: "rezazadeh", Text: "a"})

	require.NoError(t, c.SaveScores(ctx, newRun("KR1", "rezazadeh"), map[int64]int{tasks[0].ID: 100}))
	err := c.SaveScores(ctx, newRun("KR1", "rezazadeh"), map[int64]int{tasks[0].ID: 100})
	assert.ErrorIs(t, err, ErrRunExists)

	records, err := c.ScoresFor(ctx, ScoreFilter{KRCode: "KR1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSaveScoresRollsBackOnUnknownTask(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	tasks := seedTasks(t, c, models.Task{Day: "14040206", Person: "rezazadeh", Text: "a"})

	scores := map[int64]int{tasks[0].ID: 200, tasks[0].ID + 999: 50}
	err := c.SaveScores(ctx, newRun("KR2", "rezazadeh"), scores)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrUnknownTask)

	records, err := c.ScoresFor(ctx, ScoreFilter{KRCode: "KR2"})
	require.NoError(t, err)
	assert.Empty(t, records)

	exists, err := c.ScoreRunExists(ctx, "KR2", "rezazadeh")
	require.NoError(t, err)
	assert.False(t, exists, "a failed save must not leave a run marker behind")
}
