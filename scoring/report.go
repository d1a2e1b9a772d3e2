package scoring

import (
	"fmt"
	"log"
	"time"
)

// Skip records one seller excluded from one transition, without
// aborting the rest of the batch.
type Skip struct {
	Seller string
	Reason string
}

// BatchReport summarizes a single evaluation pass. Data-quality
// problems accumulate in Skipped; awards list the trophies upserted by
// this run (including re-awards of already-persisted trophies, since
// upserts do not distinguish the two).
type BatchReport struct {
	Transition string
	RunDate    time.Time
	Processed  int
	Awards     []Trophy
	Skipped    []Skip
	NoOp       bool // set when a guarded transition declined to run
}

func newReport(transition string, runDate time.Time) *BatchReport {
	return &BatchReport{Transition: transition, RunDate: runDate}
}

func (r *BatchReport) award(t Trophy) {
	r.Awards = append(r.Awards, t)
}

func (r *BatchReport) skip(seller string, err error) {
	r.Skipped = append(r.Skipped, Skip{Seller: seller, Reason: err.Error()})
}

// collect classifies an error for the batch: data-quality problems are
// logged and filed as skips so the run continues, anything else comes
// back and aborts the whole batch.
func (r *BatchReport) collect(seller string, err error) error {
	if err == nil {
		return nil
	}
	if IsDataQuality(err) {
		log.Printf("[Engine] %v", err)
		r.skip(seller, err)
		return nil
	}
	return err
}

func (r *BatchReport) String() string {
	return fmt.Sprintf("%s %s: processed=%d awards=%d skipped=%d",
		r.Transition, r.RunDate.Format("2006-01-02"), r.Processed, len(r.Awards), len(r.Skipped))
}
