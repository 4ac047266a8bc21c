package models

import "time"

// Task is one line of a person's daily log. Day is the 8-digit Persian date, e.g. "14040206".
type Task struct {
	ID     int64  `json:"id"`
	Day    string `json:"day"`
	Person string `json:"person"`
	Text   string `json:"task"`
}

type KeyResult struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Objective   string `json:"objective,omitempty"`
}

type ScoreRecord struct {
	ID     int64  `json:"id"`
	TaskID int64  `json:"task_id"`
	KRCode string `json:"kr_code"`
	Score  int    `json:"score"`
	Person string `json:"person"`
}

type ScoringRun struct {
	RunID     string    `json:"run_id"`
	KRCode    string    `json:"kr_code"`
	Person    string    `json:"person"`
	Rounds    int       `json:"rounds"`
	TaskCount int       `json:"task_count"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskRow is one work day of the task sheet: person -> free text.
type TaskRow struct {
	Date  string            `json:"date"`
	Day   string            `json:"day"`
	Tasks map[string]string `json:"tasks"`
}

type OKRClassification struct {
	OKR             string   `json:"okr"`
	Type            string   `json:"type"`
	Scope           string   `json:"scope"`
	AutomationLevel string   `json:"automation_level"`
	Dependency      string   `json:"dependency"`
	DependsOn       []string `json:"depends_on,omitempty"`
}

type AnalysisResult struct {
	TasksByKR    map[string]map[string][]string `json:"tasks_by_kr"`
	Risks        map[string][]string            `json:"risks"`
	Deliverables map[string][]string            `json:"deliverables"`
}
