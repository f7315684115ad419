package entity

import "time"

type Outcome int

const (
	OutcomeReused Outcome = iota
	OutcomeFetched
	OutcomeFailed
)

func (o Outcome) String() string {
	return [...]string{"reused", "fetched", "failed"}[o]
}

type BatchStatus int

const (
	BatchSuccess BatchStatus = iota
	BatchFailure
)

func (s BatchStatus) String() string {
	return [...]string{"success", "failure"}[s]
}

// PackageResult is the terminal state of one package within a batch.
type PackageResult struct {
	Identity   string
	Outcome    Outcome
	Source     string // Cache directory or mirror URL the copy came from
	Unverified bool   // No expected hash was available
}

type BatchResult struct {
	ID       string
	Status   BatchStatus
	Results  []PackageResult
	Failed   string // Identity of the package that stopped the batch
	Started  time.Time
	Finished time.Time
}

// Count returns how many packages reached the given outcome.
func (r *BatchResult) Count(o Outcome) int {
	var n int
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}

	return n
}

// Stats is the aggregated view kept by the outcome ledger.
type Stats struct {
	Reused     int64  `json:"reused"`
	Fetched    int64  `json:"fetched"`
	Failed     int64  `json:"failed"`
	Batches    int64  `json:"batches"`
	LastBatch  string `json:"last_batch"`
	LastStatus string `json:"last_status"`
}

// PackageStatus is the last recorded outcome of one package.
type PackageStatus struct {
	Identity   string    `json:"identity"`
	Outcome    string    `json:"outcome"`
	Source     string    `json:"source,omitempty"`
	Unverified bool      `json:"unverified"`
	Batch      string    `json:"batch"`
	UpdatedAt  time.Time `json:"updated_at"`
}
