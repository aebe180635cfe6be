package domain

import "time"

// Report is one uploaded export for one shop (channel).
type Report struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Channel   string    `json:"channel" db:"channel"`
	LineCount int       `json:"line_count" db:"line_count"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MetricSnapshot is a persisted, already computed metric result of a report.
type MetricSnapshot struct {
	ID         string    `json:"id" db:"id"`
	ReportID   int64     `json:"report_id" db:"report_id"`
	ConfigHash string    `json:"config_hash" db:"config_hash"`
	Payload    []byte    `json:"-" db:"payload"`
	ComputedAt time.Time `json:"computed_at" db:"computed_at"`
}
