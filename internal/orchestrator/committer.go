package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/metrics"
)

const (
	// resultBufferCap bounds the results channel; full means workers block
	resultBufferCap = 1000
	// commitFlushRows and commitFlushInterval: whichever trips first flushes
	commitFlushRows     = 200
	commitFlushInterval = 10 * time.Second
	// commitTimeout bounds one batch insert
	commitTimeout = time.Minute
)

// committer is the single owner of the result write path. Workers feed it
// over the results channel; it batches rows and appends them in one
// transaction per flush. It keeps running until the channel closes, then
// flushes whatever is left, so cancellation never drops buffered rows.
type committer struct {
	results  <-chan database.AvailabilityResult
	recorder *metrics.Recorder
	logger   zerolog.Logger

	committed   int
	failed      int
	okRows      int
	unavailable int
	errorRows   int
}

func newCommitter(results <-chan database.AvailabilityResult, recorder *metrics.Recorder, logger zerolog.Logger) *committer {
	return &committer{
		results:  results,
		recorder: recorder,
		logger:   logger.With().Str("component", "committer").Logger(),
	}
}

// run loops until the results channel closes. Counters are safe to read
// after the goroutine running it has been waited on.
func (c *committer) run() {
	ticker := time.NewTicker(commitFlushInterval)
	defer ticker.Stop()

	buf := make([]database.AvailabilityResult, 0, commitFlushRows)

	for {
		select {
		case row, ok := <-c.results:
			if !ok {
				c.flush(buf)
				return
			}
			c.tally(row)
			buf = append(buf, row)
			if len(buf) >= commitFlushRows {
				c.flush(buf)
				buf = buf[:0]
			}
		case <-ticker.C:
			c.flush(buf)
			buf = buf[:0]
		}
	}
}

func (c *committer) flush(buf []database.AvailabilityResult) {
	if len(buf) == 0 {
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	if err := database.InsertAvailabilityResults(ctx, buf); err != nil {
		c.failed += len(buf)
		c.logger.Error().Err(err).Int("rows", len(buf)).Msg("Failed to commit result batch")
		return
	}

	c.committed += len(buf)
	c.recorder.RecordCommit(len(buf), time.Since(start))
	c.logger.Debug().Int("rows", len(buf)).Msg("Committed result batch")
}

func (c *committer) tally(row database.AvailabilityResult) {
	switch {
	case row.IsAvailable:
		c.okRows++
	case row.ErrorMessage != nil:
		c.errorRows++
	default:
		c.unavailable++
	}
}
