package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
)

func toolCallBody(args string) map[string]any {
	body := chatBody("")
	body["choices"] = []any{map[string]any{
		"index": 0,
		"message": map[string]any{
			"role": "assistant",
			"tool_calls": []any{map[string]any{
				"id":   "call_1",
				"type": "function",
				"function": map[string]any{
					"name":      "classify_okrs",
					"arguments": args,
				},
			}},
		},
		"finish_reason": "tool_calls",
	}}
	return body
}

func TestClassifyOKRs(t *testing.T) {
	var got struct {
		Tools []struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tools"`
		ToolChoice struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tool_choice"`
	}

	args := `{"classified_okrs":[
		{"okr":"راه اندازی سرورهای جدید","type":"Setup/Preparation","scope":"Technical","automation_level":"Manual","dependency":"Independent"},
		{"okr":"به روز رسانی داشبوردها","type":"Outcome","scope":"Operational","automation_level":"Semi-Automated","dependency":"Dependent","depends_on":["راه اندازی سرورهای جدید"]}
	]}`

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, toolCallBody(args))
	})

	result, err := c.ClassifyOKRs(context.Background(), []string{"راه اندازی سرورهای جدید", "به روز رسانی داشبوردها"})
	require.NoError(t, err)

	require.Len(t, got.Tools, 1)
	assert.Equal(t, "classify_okrs", got.Tools[0].Function.Name)
	assert.Equal(t, "classify_okrs", got.ToolChoice.Function.Name)

	assert.Equal(t, []models.OKRClassification{
		{OKR: "راه اندازی سرورهای جدید", Type: "Setup/Preparation", Scope: "Technical", AutomationLevel: "Manual", Dependency: "Independent"},
		{OKR: "به روز رسانی داشبوردها", Type: "Outcome", Scope: "Operational", AutomationLevel: "Semi-Automated", Dependency: "Dependent", DependsOn: []string{"راه اندازی سرورهای جدید"}},
	}, result)
}

func TestClassifyOKRsRejectsUnknownEnum(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, toolCallBody(`{"classified_okrs":[{"okr":"x","type":"Vision","scope":"Technical","automation_level":"Manual","dependency":"Independent"}]}`))
	})

	_, err := c.ClassifyOKRs(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid type "Vision"`)
}

func TestClassifyOKRsWithoutToolCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, chatBody("I cannot do that"))
	})

	_, err := c.ClassifyOKRs(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrNoToolCall)
}

func TestClassifyOKRsEmptyInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.ClassifyOKRs(context.Background(), nil)
	assert.Error(t, err)
}
