package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/metrics"
)

// Collector describes one countable source exposed on the command line.
type Collector struct {
	Flag         string
	Group        string
	Description  string
	Run          func(ctx context.Context, rc RunContext) (int64, error)
	Setup        func(ctx context.Context, rc RunContext) error
	NeedsStore   bool
	RateLimits   map[string]time.Duration
	IncludeInAll bool
}

// RunContext carries the shared dependencies handed to collectors.
type RunContext struct {
	HTTP    *http.Client
	Limiter *RateLimiter
	Resume  ResumeStore
	Tally   *PagedTally
	Logger  Logger
}

// ResultSink receives successful collection results in registry order.
type ResultSink interface {
	Emit(ctx context.Context, result core.CollectionResult) error
}

// Orchestrator runs collectors against shared HTTP, pacing and resume state.
type Orchestrator struct {
	HTTP    *http.Client
	Limiter *RateLimiter
	Resume  ResumeStore
	Tally   *PagedTally
	Sink    ResultSink
	Workers int
	Logger  Logger
	Clock   func() time.Time
}

type collectJob struct {
	index     int
	collector Collector
}

// Run executes the collectors and returns one result per collector in the
// order given. A failing collector never stops its siblings.
func (o *Orchestrator) Run(ctx context.Context, collectors []Collector) []core.CollectionResult {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]core.CollectionResult, len(collectors))
	if len(collectors) == 0 {
		return results
	}

	logger := o.logger()
	runID := uuid.NewString()
	rc := o.runContext()

	// Collectors that fail to prepare get their result filled in here and
	// are not scheduled.
	prepared := make([]bool, len(collectors))
	limits := make(map[core.Origin]time.Duration)
	for i, c := range collectors {
		results[i] = core.CollectionResult{Collector: c.Flag, StartedAt: o.now()}
		if err := o.mergeRateLimits(limits, c); err != nil {
			results[i] = o.failed(results[i], err)
			continue
		}
		prepared[i] = true
	}
	for origin, interval := range limits {
		o.Limiter.Register(origin, interval)
	}

	if o.needsStore(collectors) && o.Resume != nil {
		if err := o.Resume.EnsureResumeSchema(ctx); err != nil {
			err = fmt.Errorf("ensure resume schema: %w", err)
			for i, c := range collectors {
				if prepared[i] && c.NeedsStore {
					results[i] = o.failed(results[i], err)
					prepared[i] = false
				}
			}
		}
	}

	for i, c := range collectors {
		if !prepared[i] {
			continue
		}
		if c.NeedsStore && o.Resume == nil {
			results[i] = o.failed(results[i], errors.New("collector requires a resume store"))
			prepared[i] = false
			continue
		}
		if c.Setup == nil {
			continue
		}
		if err := c.Setup(ctx, rc); err != nil {
			results[i] = o.failed(results[i], fmt.Errorf("setup %s: %w", c.Flag, err))
			prepared[i] = false
		}
	}

	logger.Info("Running collectors",
		zap.String("run_id", runID),
		zap.Int("collectors", len(collectors)),
		zap.Int("workers", o.workers(len(collectors))))

	done := make([]chan struct{}, len(collectors))
	for i := range done {
		done[i] = make(chan struct{})
	}

	jobs := make(chan collectJob)
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for job := range jobs {
			results[job.index] = o.runOne(ctx, rc, job.collector, results[job.index])
			close(done[job.index])
		}
	}

	workers := o.workers(len(collectors))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

	go func() {
		for i, c := range collectors {
			if !prepared[i] {
				close(done[i])
				continue
			}
			jobs <- collectJob{index: i, collector: c}
		}
		close(jobs)
	}()

	for i := range collectors {
		<-done[i]
		results[i] = o.emit(ctx, results[i], runID)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) runOne(ctx context.Context, rc RunContext, c Collector, result core.CollectionResult) core.CollectionResult {
	started := o.now()
	result.StartedAt = started

	var (
		total int64
		err   error
	)
	if c.Run == nil {
		err = errors.New("collector has no run function")
	} else {
		total, err = c.Run(ctx, rc)
	}

	result.Duration = o.now().Sub(started)
	if err != nil {
		result = o.failed(result, err)
	} else {
		result.Total = total
	}
	metrics.RecordCollection(c.Flag, err == nil, result.Duration, total)
	return result
}

func (o *Orchestrator) emit(ctx context.Context, result core.CollectionResult, runID string) core.CollectionResult {
	logger := o.logger()
	if !result.OK() {
		logger.Error("Collector failed",
			zap.String("run_id", runID),
			zap.String("collector", result.Collector),
			zap.Error(result.Err))
		return result
	}

	logger.Info("Collector finished",
		zap.String("run_id", runID),
		zap.String("collector", result.Collector),
		zap.Int64("total", result.Total),
		zap.Duration("duration", result.Duration))

	if o.Sink == nil {
		return result
	}
	if err := o.Sink.Emit(ctx, result); err != nil {
		logger.Error("Failed to write result",
			zap.String("collector", result.Collector),
			zap.Error(err))
		return o.failed(result, fmt.Errorf("write result: %w", err))
	}
	return result
}

// mergeRateLimits folds a collector's rules into limits. Collectors sharing
// an origin get the longest interval any of them asks for.
func (o *Orchestrator) mergeRateLimits(limits map[core.Origin]time.Duration, c Collector) error {
	if len(c.RateLimits) == 0 {
		return nil
	}
	if o.Limiter == nil {
		return errors.New("rate limiter is not initialized")
	}

	parsed := make(map[core.Origin]time.Duration, len(c.RateLimits))
	for raw, interval := range c.RateLimits {
		origin, err := core.ParseOrigin(raw)
		if err != nil {
			return fmt.Errorf("rate limit for %s: %w", c.Flag, err)
		}
		if interval > parsed[origin] {
			parsed[origin] = interval
		}
	}
	for origin, interval := range parsed {
		if current, ok := limits[origin]; !ok || interval > current {
			limits[origin] = interval
		}
	}
	return nil
}

func (o *Orchestrator) runContext() RunContext {
	return RunContext{
		HTTP:    o.HTTP,
		Limiter: o.Limiter,
		Resume:  o.Resume,
		Tally:   o.Tally,
		Logger:  o.logger(),
	}
}

func (o *Orchestrator) needsStore(collectors []Collector) bool {
	for _, c := range collectors {
		if c.NeedsStore {
			return true
		}
	}
	return false
}

func (o *Orchestrator) workers(n int) int {
	workers := o.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	return workers
}

func (o *Orchestrator) failed(result core.CollectionResult, err error) core.CollectionResult {
	result.Err = err
	result.Error = strings.TrimSpace(err.Error())
	result.Total = 0
	return result
}

func (o *Orchestrator) logger() Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
