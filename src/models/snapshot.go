package models

import (
	"sort"
	"time"
)

// MSnapshot is one point-in-time quote table as delivered by a source.
// Columns keeps the column order, Records holds one map per security.
type MSnapshot struct {
	Source    string                   `json:"source"`
	FetchedAt time.Time                `json:"fetched_at"`
	Columns   []string                 `json:"columns"`
	Records   []map[string]interface{} `json:"records"`
}

// -----------------------------------------------------------------------------

// NewSnapshot builds a snapshot whose columns are collected from the records.
func NewSnapshot(source string, fetchedAt time.Time, records []map[string]interface{}) *MSnapshot {
	return &MSnapshot{
		Source:    source,
		FetchedAt: fetchedAt,
		Columns:   CollectColumns(records),
		Records:   records,
	}
}

// -----------------------------------------------------------------------------

// CollectColumns returns the union of record keys in first-seen order.
// Keys new to a record are appended in lexical order since maps carry none.
func CollectColumns(records []map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var columns []string

	for _, rec := range records {
		var fresh []string
		for k := range rec {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				fresh = append(fresh, k)
			}
		}
		sort.Strings(fresh)
		columns = append(columns, fresh...)
	}
	return columns
}

// -----------------------------------------------------------------------------

// Len returns the number of securities in the snapshot.
func (s *MSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}
