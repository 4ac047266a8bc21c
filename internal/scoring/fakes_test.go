package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abbasKakoolvand/OKR-analyze/internal/llm"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
)

// fakeCompleter answers every call through fn and counts calls.
type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	reqs  []llm.CompletionRequest
	fn    func(call int, req llm.CompletionRequest) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	content, err := f.fn(call, req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: content, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}, nil
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func constantReply(content string) *fakeCompleter {
	return &fakeCompleter{fn: func(int, llm.CompletionRequest) (string, error) { return content, nil }}
}

func scoresJSON(pairs ...int) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, fmt.Sprintf(`{"id": %d, "score": %d, "reason": "r"}`, pairs[i], pairs[i+1]))
	}
	return "```json\n{\"kr_deconstruction\": [\"a\", \"b\", \"c\"], \"all_task_scores\": [" + strings.Join(parts, ", ") + "]}\n```"
}

func testAggregator(c Completer) *Aggregator {
	return NewAggregator(c, AggregatorConfig{
		Rounds:       4,
		RoundRetries: 2,
		Concurrency:  4,
		Seed:         42,
		MaxTokens:    4096,
		RetryDelay:   time.Millisecond,
	})
}

// memStore is an in-memory Store.
type memStore struct {
	mu         sync.Mutex
	tasks      []models.Task
	runs       map[string]models.ScoringRun
	scores     map[string]map[int64]int
	listErr    error
	saveErr    error
	existCalls int
}

func newMemStore(tasks ...models.Task) *memStore {
	return &memStore{
		tasks:  tasks,
		runs:   map[string]models.ScoringRun{},
		scores: map[string]map[int64]int{},
	}
}

func (m *memStore) ScoreRunExists(_ context.Context, krCode, person string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existCalls++
	_, ok := m.runs[CellKey(krCode, person)]
	return ok, nil
}

func (m *memStore) SaveScores(_ context.Context, run models.ScoringRun, scores map[int64]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	key := CellKey(run.KRCode, run.Person)
	if _, ok := m.runs[key]; ok {
		return ErrRunExists
	}
	m.runs[key] = run
	copied := make(map[int64]int, len(scores))
	for k, v := range scores {
		copied[k] = v
	}
	m.scores[key] = copied
	return nil
}

func (m *memStore) ListPersons(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	seen := map[string]struct{}{}
	persons := []string{}
	for _, t := range m.tasks {
		if _, ok := seen[t.Person]; !ok {
			seen[t.Person] = struct{}{}
			persons = append(persons, t.Person)
		}
	}
	sort.Strings(persons)
	return persons, nil
}

func (m *memStore) TasksByPerson(_ context.Context, person string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if t.Person == person {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) markScored(krCode, person string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[CellKey(krCode, person)] = models.ScoringRun{KRCode: krCode, Person: person}
}
