// Package model defines the data structures shared across the application
// layers. Plain structs with JSON tags, no behaviour beyond what the data
// itself needs.
package model

import "time"

// AnalysisStatus tracks the lifecycle of one interactive analysis.
type AnalysisStatus string

const (
	StatusRunning   AnalysisStatus = "running"
	StatusSucceeded AnalysisStatus = "succeeded"
	StatusFailed    AnalysisStatus = "failed"
)

// Analysis is the persisted record of one interactive analysis session.
// Report holds the assembled markdown document; Charts holds the host paths
// of the collected figure artifacts, in figure order.
type Analysis struct {
	ID          string         `json:"id"`
	Context     string         `json:"context"`
	OutputName  string         `json:"outputName"`
	Status      AnalysisStatus `json:"status"`
	Report      string         `json:"report,omitempty"`
	Charts      []string       `json:"charts,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt time.Time      `json:"completedAt,omitzero"`
}
