package api

import "encoding/json"

// HistoryItem is one entry of GET /api/v1/history. Payload fields are passed
// through as stored; missing ones fall back to "N/A" or 0.
type HistoryItem struct {
	Timestamp       string          `json:"timestamp"` // "2006-01-02 15:04" in the server time zone
	DominantEmotion json.RawMessage `json:"dominantEmotion"`
	AvgScore        json.RawMessage `json:"avgScore"`
	FatigueEvents   json.RawMessage `json:"fatigueEvents"`
}

// SavedResponse is the payload for POST /api/v1/sessions.
type SavedResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the payload for GET /api/v1/status.
type StatusResponse struct {
	Status        string             `json:"status"` // "ok" | "degraded"
	Sessions      int                `json:"sessions"`
	PendingWrites int                `json:"pending_writes"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
	GeneratedAt   string             `json:"generated_at"` // RFC3339
}

type errorResponse struct {
	Error string `json:"error"`
}
