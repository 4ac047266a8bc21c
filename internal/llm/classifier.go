package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

const classifyToolName = "classify_okrs"

var (
	OKRTypes            = []string{"Outcome", "Follow-up", "Setup/Preparation", "Exploration/Feasibility"}
	OKRScopes           = []string{"Strategic", "Operational", "Technical"}
	OKRAutomationLevels = []string{"Manual", "Semi-Automated", "Fully Automated"}
	OKRDependencies     = []string{"Independent", "Dependent"}
)

var ErrNoToolCall = errors.New("model did not call the classification tool")

const classifySystemPrompt = `You are a system designed to classify Objectives and Key Results (OKRs) based on specific attributes and output the results using the provided function schema.

1. Input: a list of OKRs as plain text. The OKRs are in Persian and must not be translated or modified.
2. Attributes:
- Type:
    - Outcome: OKRs delivering a measurable result (e.g., completing a profile).
    - Follow-up: OKRs tracking or monitoring progress (e.g., obtaining approvals).
    - Setup/Preparation: OKRs establishing infrastructure (e.g., acquiring hardware).
    - Exploration/Feasibility: OKRs researching possibilities (e.g., feasibility studies).
- Scope:
    - Strategic: High-level, long-term goals.
    - Operational: Day-to-day processes.
    - Technical: Infrastructure or systems.
- Automation Level:
    - Manual: Requires human intervention.
    - Semi-Automated: Partial automation.
    - Fully Automated: Full automation.
- Dependency:
    - Independent: Can be executed standalone.
    - Dependent: Requires other OKRs' completion (list them in depends_on).
3. Process:
- Analyze each OKR's text to classify its Type, Scope, Automation Level, and Dependency.
- For Dependent OKRs, identify which OKRs they depend on based on context.
4. Output:
- Use the classify_okrs function to return the classified OKRs.
- Each OKR has: okr (original text), type, scope, automation_level, dependency, and depends_on (if Dependent).
5. Constraints:
- Do not translate or modify OKR text.
- If classification is ambiguous, choose the most likely attribute and proceed.
- Return all OKRs in the output.`

func classifyTool() openai.Tool {
	item := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"okr": {Type: jsonschema.String, Description: "The original OKR text"},
			"type": {
				Type:        jsonschema.String,
				Enum:        OKRTypes,
				Description: "The type of OKR",
			},
			"scope": {
				Type:        jsonschema.String,
				Enum:        OKRScopes,
				Description: "The scope of the OKR",
			},
			"automation_level": {
				Type:        jsonschema.String,
				Enum:        OKRAutomationLevels,
				Description: "The automation level of the OKR",
			},
			"dependency": {
				Type:        jsonschema.String,
				Enum:        OKRDependencies,
				Description: "Whether the OKR depends on others",
			},
			"depends_on": {
				Type:        jsonschema.Array,
				Items:       &jsonschema.Definition{Type: jsonschema.String},
				Description: "List of OKR texts this OKR depends on (if Dependent)",
			},
		},
		Required:             []string{"okr", "type", "scope", "automation_level", "dependency"},
		AdditionalProperties: false,
	}

	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        classifyToolName,
			Description: "Classify a list of OKRs based on Type, Scope, Automation Level, and Dependency.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"classified_okrs": {Type: jsonschema.Array, Items: &item},
				},
				Required:             []string{"classified_okrs"},
				AdditionalProperties: false,
			},
		},
	}
}

// ClassifyOKRs asks the model to label each OKR text with the taxonomy enums
// through a single forced function call.
func (c *Client) ClassifyOKRs(ctx context.Context, okrs []string) ([]models.OKRClassification, error) {
	if len(okrs) == 0 {
		return nil, fmt.Errorf("no OKRs to classify")
	}

	req := c.chatRequest(CompletionRequest{})
	req.Messages = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: classifySystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: "Classify the following OKRs:\n" + strings.Join(okrs, "\n")},
	}
	req.Tools = []openai.Tool{classifyTool()}
	req.ToolChoice = openai.ToolChoice{
		Type:     openai.ToolTypeFunction,
		Function: openai.ToolFunction{Name: classifyToolName},
	}

	resp, err := c.create(ctx, "classify", req)
	if err != nil {
		return nil, err
	}

	return parseClassification(resp.Choices[0].Message, len(okrs))
}

func parseClassification(msg openai.ChatCompletionMessage, expected int) ([]models.OKRClassification, error) {
	var args string
	for _, call := range msg.ToolCalls {
		if call.Function.Name == classifyToolName {
			args = call.Function.Arguments
			break
		}
	}
	if args == "" {
		return nil, ErrNoToolCall
	}

	var payload struct {
		ClassifiedOKRs []models.OKRClassification `json:"classified_okrs"`
	}
	if err := json.Unmarshal([]byte(args), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode classification arguments: %w", err)
	}

	for i, item := range payload.ClassifiedOKRs {
		if err := validateClassification(item); err != nil {
			return nil, fmt.Errorf("classified_okrs[%d]: %w", i, err)
		}
	}

	if len(payload.ClassifiedOKRs) != expected {
		logger.Warn("Classification count differs from input",
			zap.Int("expected", expected),
			zap.Int("got", len(payload.ClassifiedOKRs)),
		)
	}

	return payload.ClassifiedOKRs, nil
}

func validateClassification(c models.OKRClassification) error {
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"type", c.Type, OKRTypes},
		{"scope", c.Scope, OKRScopes},
		{"automation_level", c.AutomationLevel, OKRAutomationLevels},
		{"dependency", c.Dependency, OKRDependencies},
	}
	for _, chk := range checks {
		if !slices.Contains(chk.allowed, chk.value) {
			return fmt.Errorf("invalid %s %q", chk.field, chk.value)
		}
	}
	if strings.TrimSpace(c.OKR) == "" {
		return fmt.Errorf("missing okr text")
	}
	return nil
}
