package pm25

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ctessum/requestcache"
)

// TimestampResult is the outcome of running the per-timestamp pipeline
// (IDW, polygon aggregation, and representative-timestamp distance
// reporting) for a single accepted timestamp.
type TimestampResult struct {
	Timestamp int64
	Rows      []ResultRow
	Distances []DistanceRow
	Err       error
}

type timestampRequest struct {
	t       int64
	active  map[string]float64
	grid    *Grid
	sensors map[string]Sensor
	k       int
	p       float64
	repr    RepresentativeSet
}

// runTimestamp is the per-task unit of work dispatched by the scheduler: IDW
// interpolation, polygon aggregation, and (for the three representative
// timestamps) distance reporting. It recovers from panics and reports an
// expired deadline as a TaskFailure rather than letting a single bad
// timestamp take down the run.
func runTimestamp(ctx context.Context, req timestampRequest) (out TimestampResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = TaskFailure{Timestamp: req.t, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	predictions := IDWAtTimestamp(req.grid.Points, req.sensors, req.active, req.k, req.p)
	rows := AggregatePolygons(req.grid, predictions, len(req.active), req.t)

	var distances []DistanceRow
	if tsType, ok := req.repr.Contains(req.t); ok {
		distances = ComputeDistanceRows(req.grid, req.sensors, predictions, len(req.active), req.t, tsType)
	}

	if ctx.Err() != nil {
		return TimestampResult{}, TaskFailure{Timestamp: req.t, Reason: "exceeded per-task timeout"}
	}

	return TimestampResult{Timestamp: req.t, Rows: rows, Distances: distances}, nil
}

// Scheduler dispatches one task per accepted timestamp across a bounded
// worker pool, the way the teacher's sr.Reader dispatches source lookups
// across requestcache.
type Scheduler struct {
	cache       *requestcache.Cache
	numWorkers  int
	taskTimeout time.Duration
	log         Logger
}

// NewScheduler builds a scheduler with numWorkers processors (<= 0 means
// max(1, runtime.NumCPU()-1)) and a soft per-task timeout.
func NewScheduler(numWorkers int, taskTimeoutSeconds int, log Logger) *Scheduler {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU() - 1
		if numWorkers < 1 {
			numWorkers = 1
		}
	}
	if taskTimeoutSeconds <= 0 {
		taskTimeoutSeconds = 60
	}
	cache := requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(timestampRequest)
		return runTimestamp(ctx, req)
	}, numWorkers)
	return &Scheduler{
		cache:       cache,
		numWorkers:  numWorkers,
		taskTimeout: time.Duration(taskTimeoutSeconds) * time.Second,
		log:         log,
	}
}

// Run dispatches one task per accepted timestamp and collects results,
// indexed to match accepted's order, via a numWorkers-sized pool of
// goroutines that call Result() concurrently (the teacher's jobChan/WaitGroup
// pattern in sr.go's saveResults) so the numWorkers processors backing
// s.cache are actually exercised in parallel rather than one Result() at a
// time. A task that exceeds the soft timeout, or that panics, is reported as
// a TaskFailure rather than aborting the run; ctx cancellation (e.g. on
// SIGINT) stops any worker from starting a new job and returns the results
// gathered so far along with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, accepted []int64, series ActiveSeries, grid *Grid, sensors map[string]Sensor, k int, p float64, repr RepresentativeSet) ([]TimestampResult, error) {
	requests := make([]timestampRequest, len(accepted))
	for i, t := range accepted {
		requests[i] = timestampRequest{
			t:       t,
			active:  series[t],
			grid:    grid,
			sensors: sensors,
			k:       k,
			p:       p,
			repr:    repr,
		}
	}

	results := make([]TimestampResult, len(accepted))
	jobChan := make(chan int, len(accepted))
	for i := range accepted {
		jobChan <- i
	}
	close(jobChan)

	var wg sync.WaitGroup
	for w := 0; w < s.numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobChan {
				select {
				case <-ctx.Done():
					continue
				default:
				}
				// The soft timeout starts when the task is picked up.
				taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
				v, err := s.cache.NewRequest(taskCtx, requests[i], fmt.Sprintf("ts_%d", accepted[i])).Result()
				cancel()
				if err != nil {
					results[i] = TimestampResult{Timestamp: accepted[i], Err: err}
					s.log.Warnf("schedule: timestamp %d failed: %v", accepted[i], err)
					continue
				}
				results[i] = v.(TimestampResult)
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return results, ctx.Err()
	}
	return results, nil
}
