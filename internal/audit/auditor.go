// Package audit periodically verifies the product bucket policy.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/wildfire-analyser/internal/adapter/gcs"
	"github.com/couchcryptid/wildfire-analyser/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

const checkTimeout = 30 * time.Second

// Checker reports the current bucket policy.
type Checker interface {
	Check(ctx context.Context) (gcs.PolicyStatus, error)
}

// Result is the outcome of the latest audit attempt. Status holds the most
// recent successful check; Err is set when the latest attempt failed.
type Result struct {
	Status    gcs.PolicyStatus
	CheckedAt time.Time
	Err       error
}

// Healthy reports whether the latest attempt succeeded and the policy holds.
func (r Result) Healthy() bool {
	return r.Err == nil && r.Status.OK()
}

// Auditor runs a Checker on a cron schedule and exports the result as gauges.
type Auditor struct {
	checker Checker
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	mu      sync.Mutex
	cron    *cron.Cron
	last    *Result
	initial sync.WaitGroup
}

// New creates an Auditor. Call Start to schedule it.
func New(checker Checker, logger *slog.Logger, metrics *observability.Metrics) *Auditor {
	return &Auditor{checker: checker, logger: logger, metrics: metrics, clock: clockwork.NewRealClock()}
}

// Start schedules the audit and runs the first one right away in the
// background. An empty schedule disables it.
func (a *Auditor) Start(schedule string) error {
	if schedule == "" {
		a.logger.Info("bucket audit disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { _, _ = a.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule bucket audit %q: %w", schedule, err)
	}

	a.initial.Add(1)
	a.mu.Lock()
	a.cron = c
	a.mu.Unlock()

	c.Start()
	go func() {
		defer a.initial.Done()
		_, _ = a.RunOnce(context.Background())
	}()
	a.logger.Info("bucket audit scheduled", "schedule", schedule)
	return nil
}

// Stop halts scheduling and waits for a running audit until ctx expires.
func (a *Auditor) Stop(ctx context.Context) {
	a.mu.Lock()
	c := a.cron
	a.mu.Unlock()
	if c == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		a.initial.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// RunOnce performs a single audit.
func (a *Auditor) RunOnce(ctx context.Context) (gcs.PolicyStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	status, err := a.checker.Check(ctx)
	checkedAt := a.clock.Now()
	if err != nil {
		a.metrics.BucketAuditErrors.Inc()
		a.logger.Error("bucket audit failed", "error", err)

		a.mu.Lock()
		prev := Result{}
		if a.last != nil {
			prev = *a.last
		}
		a.last = &Result{Status: prev.Status, CheckedAt: checkedAt, Err: err}
		a.mu.Unlock()
		return status, err
	}

	a.metrics.BucketLifecycleCompliant.Set(boolGauge(status.LifecycleCompliant))
	a.metrics.BucketWritable.Set(boolGauge(status.Writable()))

	a.mu.Lock()
	a.last = &Result{Status: status, CheckedAt: checkedAt}
	a.mu.Unlock()

	if status.OK() {
		a.logger.Debug("bucket policy ok", "bucket", status.Bucket)
	} else {
		a.logger.Warn("bucket policy violated",
			"bucket", status.Bucket,
			"lifecycle_compliant", status.LifecycleCompliant,
			"missing_permissions", status.MissingPermissions,
		)
	}
	return status, nil
}

// Last returns the latest audit attempt, false before any has finished.
func (a *Auditor) Last() (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return Result{}, false
	}
	return *a.last, true
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
