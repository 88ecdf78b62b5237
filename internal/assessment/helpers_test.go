package assessment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"github.com/couchcryptid/wildfire-analyser/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	testPolygon = `{"type":"Polygon","coordinates":[[[-120.5,38.1],[-120.4,38.1],[-120.4,38.2],[-120.5,38.2],[-120.5,38.1]]]}`
	testStart   = "2024-08-01"
	testEnd     = "2024-08-10"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest(deliverables ...string) domain.AssessmentRequest {
	return domain.AssessmentRequest{
		GeoJSON:      []byte(testPolygon),
		StartDate:    testStart,
		EndDate:      testEnd,
		Deliverables: deliverables,
	}
}

// fakeImagery is an in-memory Imagery. When clock is set every call advances
// it by one second so stage timings are observable.
type fakeImagery struct {
	mu        sync.Mutex
	clock     *clockwork.FakeClock
	counts    map[string]int // keyed by window
	countErr  error
	areas     domain.AreaBySeverity
	areasErr  error
	renderErr map[domain.ProductKind]error
	delay     time.Duration

	countCalls  int
	areaCalls   int
	rendered    []RenderJob
	inFlight    int
	maxInFlight int
}

func newFakeImagery() *fakeImagery {
	return &fakeImagery{
		counts:    map[string]int{},
		areas:     domain.AreaBySeverity{domain.Unburned: 80, domain.ModerateSeverity: 15, domain.VeryHighSeverity: 5},
		renderErr: map[domain.ProductKind]error{},
	}
}

func (f *fakeImagery) tick() {
	if f.clock != nil {
		f.clock.Advance(time.Second)
	}
}

func (f *fakeImagery) CountScenes(_ context.Context, c Composite) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick()
	f.countCalls++
	if f.countErr != nil {
		return 0, f.countErr
	}
	n, ok := f.counts[c.Window.String()]
	if !ok {
		return 4, nil
	}
	return n, nil
}

func (f *fakeImagery) SeverityAreas(_ context.Context, _, _ Composite) (domain.AreaBySeverity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick()
	f.areaCalls++
	return f.areas, f.areasErr
}

func (f *fakeImagery) Render(ctx context.Context, job RenderJob) ([]byte, error) {
	f.mu.Lock()
	f.tick()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.rendered = append(f.rendered, job)
	err := f.renderErr[job.Kind]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte("data:" + string(job.Kind)), nil
}

// memStore is an in-memory ProductStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string]domain.Product
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]domain.Product{}}
}

func (s *memStore) Put(_ context.Context, key string, p domain.Product) (domain.StoredProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.StoredProduct{}, s.err
	}
	s.objects[key] = p
	return domain.StoredProduct{
		Kind:        p.Kind,
		Key:         key,
		URI:         fmt.Sprintf("mem://test/%s", key),
		ContentType: p.ContentType,
		Size:        int64(len(p.Data)),
	}, nil
}

// countingRunner counts calls and returns a fixed report.
type countingRunner struct {
	calls  int
	status string
	err    error
}

func (r *countingRunner) Assess(_ context.Context, req domain.AssessmentRequest) (domain.Report, error) {
	r.calls++
	if r.err != nil {
		return domain.Report{}, r.err
	}
	id := req.ID
	if a, err := req.Validate(); err == nil {
		id = a.ID
	}
	return domain.Report{RequestID: id, RunID: fmt.Sprintf("run-%d", r.calls), Status: r.status}, nil
}

var errBackend = errors.New("backend unavailable")

func newTestAssessor(img Imagery, opts ...Option) *PostFireAssessment {
	return NewPostFireAssessment(img, discardLogger(), observability.NewMetricsForTesting(), opts...)
}
