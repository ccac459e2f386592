package api

import "blindtest/internal/deps"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ExportRun describes an export, live or historical.
type ExportRun struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Project      string  `json:"project,omitempty"`
	Output       string  `json:"output,omitempty"`
	Items        int     `json:"items"`
	ClipDuration uint32  `json:"clipDuration,omitempty"`
	Frame        uint64  `json:"frame"`
	TotalFrames  uint64  `json:"totalFrames"`
	Percent      float64 `json:"percent"`
	Error        string  `json:"error,omitempty"`
	StartedAt    string  `json:"startedAt,omitempty"`
	FinishedAt   string  `json:"finishedAt,omitempty"`
	// Live is set while the run is owned by this server.
	Live bool `json:"live"`
}

// ExportListResponse wraps a collection of runs.
type ExportListResponse struct {
	Items []ExportRun `json:"items"`
}

// StartExportRequest is the body of POST /exports.
type StartExportRequest struct {
	Project string `json:"project"`
	Output  string `json:"output,omitempty"`
	Threads int    `json:"threads,omitempty"`
}

// StartExportResponse is returned when an export was accepted.
type StartExportResponse struct {
	Run ExportRun `json:"run"`
	// Skipped lists timeline titles whose clip no longer exists.
	Skipped []string `json:"skipped,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status       string             `json:"status"`
	UptimeS      int64              `json:"uptimeS"`
	ActiveExport string             `json:"activeExport,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// EventMessage is one websocket frame of GET /exports/{id}/events.
type EventMessage struct {
	// Type is "snapshot" for the initial state and the event kind afterwards.
	Type    string    `json:"type"`
	Frame   uint64    `json:"frame,omitempty"`
	Message string    `json:"message,omitempty"`
	Run     ExportRun `json:"run"`
}

// FromDependencies converts dependency checks into DTOs.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}
