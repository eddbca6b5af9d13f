package models

import "time"

// HealthStatus values.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
)

// Health is the liveness response body.
type Health struct {
	Status  string                 `json:"status"`
	Time    time.Time              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CompanyInfo describes one supported operator.
type CompanyInfo struct {
	Code   string `json:"code"`
	NameTC string `json:"name_tc"`
	NameEN string `json:"name_en"`
	Logo   string `json:"logo"`
}

// BookmarkRequest is the create/update body for a bookmark.
type BookmarkRequest struct {
	Company     string `json:"company"`
	No          string `json:"no"`
	Direction   string `json:"direction"`
	StopID      string `json:"stop_id"`
	ServiceType string `json:"service_type"`
	Locale      string `json:"locale"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// ReorderRequest is the bookmark reorder body.
type ReorderRequest struct {
	IDs []string `json:"ids"`
}
