package models

import "time"

// RunStatus is the outcome of one region iteration.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the audit entry for one region processed in a batch.
type RunRecord struct {
	Region        RegionCode    `csv:"region"`
	RunDate       string        `csv:"run_date"`
	Stage         string        `csv:"stage"`
	RawKey        string        `csv:"raw_key"`
	IntegratedKey string        `csv:"integrated_key"`
	RawRows       int           `csv:"raw_rows"`
	CleanRows     int           `csv:"clean_rows"`
	Status        RunStatus     `csv:"status"`
	Error         string        `csv:"error,omitempty"`
	StartedAt     time.Time     `csv:"started_at"`
	Duration      time.Duration `csv:"-"`
}

// Failed reports whether the region iteration did not complete.
func (r *RunRecord) Failed() bool {
	return r.Status != RunSucceeded
}

// RunReport holds the totals over a whole batch.
type RunReport struct {
	Regions     int
	Succeeded   int
	Failed      int
	RawRows     int
	CleanRows   int
	DroppedRows int
	Records     []*RunRecord
}
