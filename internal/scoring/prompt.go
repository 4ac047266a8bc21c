package scoring

import (
	"fmt"
	"strings"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
)

type Prompt struct {
	System  string
	User    string
	TaskIDs []int64
}

// BuildPrompt renders the scoring instructions for one KR over the given tasks.
// Tasks appear in input order. The output depends only on the arguments.
func BuildPrompt(tasks []models.Task, kr models.KeyResult) (Prompt, error) {
	if len(tasks) == 0 {
		return Prompt{}, ErrNoTasks
	}
	if strings.TrimSpace(kr.Code) == "" {
		return Prompt{}, &ValidationError{Field: "kr_code", Msg: "must not be empty"}
	}

	ids := make([]int64, 0, len(tasks))
	seen := make(map[int64]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			return Prompt{}, &ValidationError{Field: "tasks", Msg: fmt.Sprintf("duplicate task id %d", t.ID)}
		}
		seen[t.ID] = struct{}{}
		ids = append(ids, t.ID)
	}

	objective := ""
	if kr.Objective != "" {
		objective = fmt.Sprintf("KR relation with parent objective: %s\n", kr.Objective)
	}

	return Prompt{
		System:  scoringSystemPrompt,
		User:    fmt.Sprintf(scoringUserPrompt, TaskMapping(tasks), kr.Code, kr.Description, objective),
		TaskIDs: ids,
	}, nil
}

// TaskMapping renders tasks as "## task_id=ID, task=TEXT ##" lines, grouped under
// their owner when every task belongs to one person.
func TaskMapping(tasks []models.Task) string {
	var b strings.Builder

	person := tasks[0].Person
	for _, t := range tasks[1:] {
		if t.Person != person {
			person = ""
			break
		}
	}
	if person != "" {
		fmt.Fprintf(&b, "for *%s* we have these tasks:\n", person)
	}

	for _, t := range tasks {
		text := strings.Join(strings.Fields(t.Text), " ")
		fmt.Fprintf(&b, "## task_id=%d, task=%s ##\n", t.ID, text)
	}
	return strings.TrimRight(b.String(), "\n")
}
