package server

import (
	"time"
)

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthResponse struct {
	Status    string       `json:"status"`
	Version   string       `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Dataset   DatasetStats `json:"dataset"`
}

type DatasetStats struct {
	Name     string   `json:"name,omitempty"`
	Rows     int      `json:"rows"`
	Columns  []string `json:"columns"`
	Warnings []string `json:"warnings,omitempty"`
}

type AskRequest struct {
	Question string `json:"question"`
}
