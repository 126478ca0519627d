package models

import "time"

// MProcessingMetrics represents the performance metrics for one tick.
type MProcessingMetrics struct {
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	SourcesProcessed      int     `json:"sources_processed"`
	SourcesFailed         int     `json:"sources_failed"`
	RowsRanked            int     `json:"rows_ranked"`
}

// MSourceStatus summarizes one tracked universe.
type MSourceStatus struct {
	Name      string    `json:"name"`
	Index     string    `json:"index"`
	Tick      int       `json:"tick"`
	Rows      int       `json:"rows"`
	LastRunID string    `json:"last_run_id"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

// MRankDrift summarizes how one symbol's rank moved across ticks.
type MRankDrift struct {
	Symbol       string  `json:"symbol"`
	Observations int     `json:"observations"`
	FirstRank    int     `json:"first_rank"`
	LatestRank   int     `json:"latest_rank"`
	BestRank     int     `json:"best_rank"`
	WorstRank    int     `json:"worst_rank"`
	MeanRank     float64 `json:"mean_rank"`
	StdRank      float64 `json:"std_rank"`
	Trend        float64 `json:"trend"`         // tick vs rank correlation, negative is improving
	LatestChange *int    `json:"latest_change"` // previous rank - latest rank, positive moved up
}
