package models

import "time"

// PassSummary is the operator-visible result of one reconciliation pass.
type PassSummary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	BatchSize         int  `json:"batch_size"`
	New               int  `json:"new"`
	Updated           int  `json:"updated"`
	Unchanged         int  `json:"unchanged"`
	RemovedCandidates int  `json:"removed_candidates"`
	ArchivalVetoed    bool `json:"archival_vetoed"`
	Archived          int  `json:"archived"`
	Snapshots         int  `json:"snapshots"`
	Cities            int  `json:"cities"`
	Errors            int  `json:"errors"`
}

// Processed returns the number of entities the pass attempted to handle.
func (s PassSummary) Processed() int {
	return s.New + s.Updated + s.Unchanged + s.Archived + s.Snapshots
}

// SuccessRatio is the fraction of attempted operations that did not error.
func (s PassSummary) SuccessRatio() float64 {
	total := s.Processed() + s.Errors
	if total == 0 {
		return 1.0
	}
	return float64(s.Processed()) / float64(total)
}
