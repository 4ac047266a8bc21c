package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/llm"
	"github.com/abbasKakoolvand/OKR-analyze/internal/scoring"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/retry"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/utils"
)

var ErrUnknownKR = errors.New("unknown key result")

type Cache interface {
	GetAnalysis(ctx context.Context, key string, result interface{}) (bool, error)
	SetAnalysis(ctx context.Context, key string, result interface{}, ttl time.Duration) error
}

type Config struct {
	Seed       int
	MaxTokens  int
	Retries    int
	RetryDelay time.Duration
	CacheTTL   time.Duration
}

// Analyzer maps the whole task table onto key results in a single completion,
// returning tasks, risks and deliverables per KR.
type Analyzer struct {
	llm   scoring.Completer
	cache Cache
	cfg   Config
	log   *zap.Logger
}

func NewAnalyzer(completer scoring.Completer, cache Cache, cfg Config) *Analyzer {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Analyzer{llm: completer, cache: cache, cfg: cfg, log: logger.Named("analysis")}
}

type krPayload struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

func (a *Analyzer) Analyze(ctx context.Context, rows []models.TaskRow, krs []models.KeyResult) (*models.AnalysisResult, error) {
	user, err := userPrompt(rows, krs, "OKRs list", "")
	if err != nil {
		return nil, err
	}
	return a.run(ctx, analyzeSystemPrompt, user)
}

// AnalyzeKR runs the analysis for one key result and keeps only that KR in
// the result, even when the model returns others.
func (a *Analyzer) AnalyzeKR(ctx context.Context, rows []models.TaskRow, krs []models.KeyResult, code string) (*models.AnalysisResult, models.KeyResult, error) {
	var target *models.KeyResult
	for i := range krs {
		if krs[i].Code == code {
			target = &krs[i]
			break
		}
	}
	if target == nil {
		return nil, models.KeyResult{}, fmt.Errorf("%w: %s", ErrUnknownKR, code)
	}

	user, err := userPrompt(rows, []models.KeyResult{*target}, "Target KR", target.Objective)
	if err != nil {
		return nil, *target, err
	}

	res, err := a.run(ctx, fmt.Sprintf(analyzeKRSystemPrompt, code), user)
	if err != nil {
		return nil, *target, err
	}

	tasks := res.TasksByKR[code]
	if tasks == nil {
		tasks = map[string][]string{}
	}
	risks := res.Risks[code]
	if risks == nil {
		risks = []string{}
	}
	deliverables := res.Deliverables[code]
	if deliverables == nil {
		deliverables = []string{}
	}

	return &models.AnalysisResult{
		TasksByKR:    map[string]map[string][]string{code: tasks},
		Risks:        map[string][]string{code: risks},
		Deliverables: map[string][]string{code: deliverables},
	}, *target, nil
}

func userPrompt(rows []models.TaskRow, krs []models.KeyResult, krLabel, objective string) (string, error) {
	days := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		days = append(days, r.Tasks)
	}
	table, err := json.MarshalIndent(days, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode task table: %w", err)
	}

	payload := make([]krPayload, 0, len(krs))
	for _, kr := range krs {
		payload = append(payload, krPayload{ID: kr.Code, Description: kr.Description})
	}
	okrs, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode okrs: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task table (list of days): %s\n", table)
	fmt.Fprintf(&b, "%s: %s", krLabel, okrs)
	if objective != "" {
		fmt.Fprintf(&b, "\nKR RELATION with GM OKR: %s", objective)
	}
	return b.String(), nil
}

func (a *Analyzer) run(ctx context.Context, system, user string) (*models.AnalysisResult, error) {
	key := utils.HashParts(system, user)

	if a.cache != nil {
		var cached models.AnalysisResult
		found, err := a.cache.GetAnalysis(ctx, key, &cached)
		if err != nil {
			a.log.Warn("Analysis cache read failed", zap.Error(err))
		}
		if found {
			return &cached, nil
		}
	}

	temperature := float32(0)
	seed := a.cfg.Seed
	req := llm.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  &temperature,
		Seed:         &seed,
		MaxTokens:    a.cfg.MaxTokens,
	}

	policy := retry.Config{
		MaxAttempts:  a.cfg.Retries + 1,
		InitialDelay: a.cfg.RetryDelay,
		Multiplier:   2.0,
		Retryable:    retryable,
		Logger:       a.log,
	}

	res, err := retry.DoWithResult(ctx, policy, func() (*models.AnalysisResult, error) {
		resp, err := a.llm.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		return ParseAnalysis(resp.Content)
	})
	if err != nil {
		a.log.Error("Analysis failed", zap.Error(err))
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.SetAnalysis(ctx, key, res, a.cfg.CacheTTL); err != nil {
			a.log.Warn("Analysis cache write failed", zap.Error(err))
		}
	}
	return res, nil
}

// ParseAnalysis extracts the analysis object and checks its three required keys.
func ParseAnalysis(raw string) (*models.AnalysisResult, error) {
	obj, err := scoring.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(obj, &top); err != nil {
		return nil, &scoring.MalformedResponseError{Raw: raw, Err: err}
	}

	res := &models.AnalysisResult{}
	fields := []struct {
		name string
		dst  interface{}
	}{
		{"tasks_by_kr", &res.TasksByKR},
		{"risks", &res.Risks},
		{"deliverables", &res.Deliverables},
	}
	for _, f := range fields {
		v, ok := top[f.name]
		if !ok {
			return nil, &scoring.ValidationError{Field: f.name, Msg: "missing from response"}
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return nil, &scoring.ValidationError{Field: f.name, Msg: err.Error()}
		}
	}

	if res.TasksByKR == nil {
		res.TasksByKR = map[string]map[string][]string{}
	}
	if res.Risks == nil {
		res.Risks = map[string][]string{}
	}
	if res.Deliverables == nil {
		res.Deliverables = map[string][]string{}
	}
	return res, nil
}

func retryable(err error) bool {
	var (
		malformed  *scoring.MalformedResponseError
		validation *scoring.ValidationError
	)
	return errors.As(err, &malformed) || errors.As(err, &validation) || llm.IsTransient(err)
}
