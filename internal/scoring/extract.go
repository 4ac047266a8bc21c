package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```json(.*?)```")

// ExtractJSON locates the JSON object in a completion. It tries the first
// fenced json block, then the span from the first '{' to the last '}'.
func ExtractJSON(raw string) (json.RawMessage, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &MalformedResponseError{Raw: raw, Err: errEmptyReply}
	}

	var lastErr error = errNoJSON

	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		obj, err := parseObject(m[1])
		if err == nil {
			return obj, nil
		}
		lastErr = err
	}

	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start >= 0 && end > start {
		obj, err := parseObject(raw[start : end+1])
		if err == nil {
			return obj, nil
		}
		lastErr = err
	}

	return nil, &MalformedResponseError{Raw: raw, Err: lastErr}
}

func parseObject(s string) (json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, errNoJSON
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return json.RawMessage(s), nil
}

type ScoreEntry struct {
	ID     int64  `json:"id"`
	Score  int    `json:"score"`
	Reason string `json:"reason,omitempty"`
}

type ScoreResponse struct {
	KRDeconstruction json.RawMessage `json:"kr_deconstruction,omitempty"`
	AllTaskScores    []ScoreEntry    `json:"all_task_scores"`
}

// ParseScoreResponse extracts and validates the all_task_scores list.
// Ids may arrive as numbers or numeric strings. Scores must lie in [0, 100].
func ParseScoreResponse(raw string) (*ScoreResponse, error) {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(obj, &top); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}

	scoresRaw, ok := top["all_task_scores"]
	if !ok || bytes.Equal(bytes.TrimSpace(scoresRaw), []byte("null")) {
		return nil, &ValidationError{Field: "all_task_scores", Msg: "missing from response"}
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(scoresRaw, &entries); err != nil {
		return nil, &ValidationError{Field: "all_task_scores", Msg: "must be an array of objects"}
	}

	resp := &ScoreResponse{
		KRDeconstruction: top["kr_deconstruction"],
		AllTaskScores:    make([]ScoreEntry, 0, len(entries)),
	}
	for i, e := range entries {
		entry, err := parseEntry(e)
		if err != nil {
			err.Field = fmt.Sprintf("all_task_scores[%d].%s", i, err.Field)
			return nil, err
		}
		resp.AllTaskScores = append(resp.AllTaskScores, entry)
	}
	return resp, nil
}

func parseEntry(e map[string]json.RawMessage) (ScoreEntry, *ValidationError) {
	var entry ScoreEntry

	idRaw, ok := e["id"]
	if !ok {
		return entry, &ValidationError{Field: "id", Msg: "missing"}
	}
	id, err := number(idRaw)
	if err != nil || id != math.Trunc(id) {
		return entry, &ValidationError{Field: "id", Msg: fmt.Sprintf("not an integer: %s", idRaw)}
	}
	entry.ID = int64(id)

	scoreRaw, ok := e["score"]
	if !ok {
		return entry, &ValidationError{Field: "score", Msg: "missing"}
	}
	score, err := number(scoreRaw)
	if err != nil {
		return entry, &ValidationError{Field: "score", Msg: fmt.Sprintf("not a number: %s", scoreRaw)}
	}
	if score < 0 || score > 100 {
		return entry, &ValidationError{Field: "score", Msg: fmt.Sprintf("%v outside 0..100", score)}
	}
	entry.Score = int(math.Round(score))

	if r, ok := e["reason"]; ok {
		_ = json.Unmarshal(r, &entry.Reason)
	}
	return entry, nil
}

// number accepts a JSON number or a string holding one.
func number(raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.Float64()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
