package remote

import (
	"encoding/json"

	"github.com/koustreak/classiflow/internal/classification"
)

// --- Classification settings ---

// classificationSetting is the payload of GET /api/classifications.
type classificationSetting struct {
	Value struct {
		DataClassificationSettingValue struct {
			Configs []classification.Config `json:"configs"`
		} `json:"dataClassificationSettingValue"`
	} `json:"value"`
}

// --- Databases and checks ---

// Database is one entry of GET /api/databases/{projectId}.
type Database struct {
	Name    string `json:"name"`
	Project string `json:"project,omitempty"`
	Engine  string `json:"engine,omitempty"`
}

type databaseList struct {
	Databases []Database `json:"databases"`
}

// CheckRequest is the body of POST /api/checks/.
type CheckRequest struct {
	Name      string `json:"name"`
	Statement string `json:"statement"`
}

// CheckResponse carries the review advices verbatim.
type CheckResponse struct {
	Advices []json.RawMessage `json:"advices"`
}

// --- Sheets ---

// SheetCommand marks a statement range inside a sheet.
type SheetCommand struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SheetPayload is the sheet's typed payload.
type SheetPayload struct {
	Type     string         `json:"type"`
	Commands []SheetCommand `json:"commands"`
}

// SheetRequest is the body of POST /api/sheets/{project}.
// Content is the base64-encoded SQL text.
type SheetRequest struct {
	Name    string       `json:"name"`
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Payload SheetPayload `json:"payload"`
	Engine  string       `json:"engine"`
}

// Sheet is the created sheet; only Name is relied upon.
type Sheet struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// --- Plans ---

// ChangeDatabaseConfig is the change carried by one plan spec.
type ChangeDatabaseConfig struct {
	Target string `json:"target"`
	Type   string `json:"type"`
	Sheet  string `json:"sheet"`
}

// PlanSpec is one spec of a plan step.
type PlanSpec struct {
	ID                   string               `json:"id"`
	ChangeDatabaseConfig ChangeDatabaseConfig `json:"change_database_config"`
}

// PlanStep groups specs.
type PlanStep struct {
	Specs []PlanSpec `json:"specs"`
}

// PlanRequest is the body of POST /api/plans/{project}.
type PlanRequest struct {
	Steps       []PlanStep `json:"steps"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

// Plan is the created plan.
type Plan struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// --- Issues and rollouts ---

// IssueRequest is the body of POST /api/issues/{project}.
type IssueRequest struct {
	Approvers         []string `json:"approvers"`
	ApprovalTemplates []string `json:"approvalTemplates"`
	Subscribers       []string `json:"subscribers"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Type              string   `json:"type"`
	Plan              string   `json:"plan"`
}

// Issue is a created or fetched issue. Status is passed through verbatim.
type Issue struct {
	Name   string `json:"name"`
	UID    string `json:"uid,omitempty"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
	Plan   string `json:"plan,omitempty"`
}

// RolloutRequest is the body of POST /api/rollouts/{project}.
type RolloutRequest struct {
	Plan string `json:"plan"`
}

// Rollout is the created rollout.
type Rollout struct {
	Name string `json:"name"`
	Plan string `json:"plan,omitempty"`
}
