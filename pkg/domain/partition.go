package domain

import (
	"fmt"
	"time"
)

// PartitionMetadata describes one monthly child of the partitioned audit_log
// table (spec §3, §4.8).
type PartitionMetadata struct {
	PartitionName string    `json:"partitionName"`
	RangeStart    time.Time `json:"rangeStart"`
	RangeEnd      time.Time `json:"rangeEnd"` // half-open
	RowCount      int64     `json:"rowCount"`
	Bytes         int64     `json:"bytes"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PartitionNameFor returns the "audit_log_YYYY_MM" name for the month
// containing t, normalized to UTC per spec §4.8.
func PartitionNameFor(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("audit_log_%04d_%02d", u.Year(), int(u.Month()))
}

// PartitionRangeFor returns the half-open [start, end) UTC range for the
// calendar month containing t.
func PartitionRangeFor(t time.Time) (start, end time.Time) {
	u := t.UTC()
	start = time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// Contains reports whether t falls within [RangeStart, RangeEnd).
func (p PartitionMetadata) Contains(t time.Time) bool {
	u := t.UTC()
	return !u.Before(p.RangeStart) && u.Before(p.RangeEnd)
}
