// Package telemetry drains the flash stores to a remote sink.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/gr-butler/fieldstation/metrics"
	"github.com/gr-butler/fieldstation/record"
	"github.com/gr-butler/fieldstation/store"
	logger "github.com/sirupsen/logrus"
)

// FailedRequestThreshold failed submissions end a drain.
const FailedRequestThreshold = 3

var (
	ErrSubmissionAborted = errors.New("telemetry: too many failed requests")
)

// Submitter sends one batch of records of a category.
type Submitter[T any] interface {
	Submit(ctx context.Context, category string, batch []T) error
}

// SubmitterFunc adapts a function to a Submitter.
type SubmitterFunc[T any] func(ctx context.Context, category string, batch []T) error

func (f SubmitterFunc[T]) Submit(ctx context.Context, category string, batch []T) error {
	return f(ctx, category, batch)
}

type Stats struct {
	Total          int
	Submitted      int
	Successful     int
	CRCFailures    int
	Requests       int
	FailedRequests int
}

// Add sums the counters of o into s.
func (s *Stats) Add(o Stats) {
	s.Total += o.Total
	s.Submitted += o.Submitted
	s.Successful += o.Successful
	s.CRCFailures += o.CRCFailures
	s.Requests += o.Requests
	s.FailedRequests += o.FailedRequests
}

func (s Stats) String() string {
	return fmt.Sprintf("total %v submitted %v ok %v crc %v requests %v failed %v",
		s.Total, s.Submitted, s.Successful, s.CRCFailures, s.Requests, s.FailedRequests)
}

// Drain submits every committed record of st, a file at a time. A file is
// deleted once its records are accepted or when none of them are valid;
// files that fail to submit stay for the next drain.
func Drain[T record.Payload[T]](ctx context.Context, st *store.Store[T], category string, sub Submitter[T]) (Stats, error) {
	stats := Stats{}
	if err := st.Commit(); err != nil {
		logger.Warnf("Commit before drain of [%v] failed [%v]", category, err)
	}

	r := store.NewReader(st)
	if err := r.Begin(); err != nil {
		return stats, err
	}
	defer r.Close()

	for r.NextFile() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch := make([]T, 0, st.PerFile())
		crc := 0
		for {
			p, ok := r.NextEntry()
			if !ok {
				break
			}
			stats.Total++
			if !r.EntryValid() {
				crc++
				continue
			}
			batch = append(batch, p)
		}
		stats.CRCFailures += crc
		if crc > 0 {
			logger.Warnf("Skipped [%v] corrupt records in [%v]", crc, r.FilePath())
			metrics.TelemetryCRCFailures.WithLabelValues(category).Add(float64(crc))
		}

		path := r.FilePath()
		if len(batch) == 0 {
			logger.Debugf("No valid records in [%v], removing", path)
			if err := r.DeleteFile(); err != nil {
				logger.Errorf("Could not delete [%v] [%v]", path, err)
			}
			continue
		}

		stats.Requests++
		stats.Submitted += len(batch)
		if err := sub.Submit(ctx, category, batch); err != nil {
			stats.FailedRequests++
			logger.Errorf("Submit of [%v] records from [%v] failed [%v]", len(batch), path, err)
			if stats.FailedRequests >= FailedRequestThreshold {
				return stats, fmt.Errorf("%w: %v", ErrSubmissionAborted, category)
			}
			continue
		}
		stats.Successful += len(batch)
		metrics.TelemetrySubmitted.WithLabelValues(category).Add(float64(len(batch)))
		if err := r.DeleteFile(); err != nil {
			logger.Errorf("Could not delete [%v] after submit [%v]", path, err)
		}
	}

	logger.Infof("Drained [%v]: [%v]", category, stats)
	return stats, nil
}

// Discard accepts and drops every batch. Used for dry runs and when no sink
// is configured.
type Discard[T any] struct{}

func (Discard[T]) Submit(ctx context.Context, category string, batch []T) error {
	logger.Debugf("Discarding [%v] [%v] records", len(batch), category)
	return nil
}
