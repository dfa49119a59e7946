// Package orchestrator owns the creative job lifecycle: it accepts batches,
// fans out one job per format and drives each job through design-system
// extraction, image generation and overlay rendering.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"adforge/internal/domain"
	"adforge/internal/events"
	"adforge/internal/infra"
	"adforge/internal/providers"
	"adforge/internal/ranking"
)

// DefaultSeedCount is used when a batch carries seeds but no seed_count.
const DefaultSeedCount = 3

// Default polling budgets.
var (
	DefaultImagePolicy   = providers.PollPolicy{Interval: time.Second, MaxAttempts: 120}
	DefaultOverlayPolicy = providers.PollPolicy{Interval: time.Second, MaxAttempts: 60}
)

// DesignExtractor derives the style descriptor of a batch source.
type DesignExtractor interface {
	Extract(ctx context.Context, src domain.SourceAsset) (domain.DesignSystem, error)
}

// Config is fixed at construction.
type Config struct {
	// Templates maps each format to its overlay template. Requests for a
	// format without a template are rejected before any job is created.
	Templates     map[domain.Format]string
	ImagePolicy   providers.PollPolicy
	OverlayPolicy providers.PollPolicy
}

// Options wires the orchestrator. Extractor, Bus and Logger are optional.
type Options struct {
	Config    Config
	Store     domain.JobRepository
	Images    providers.ImageGenerator
	Overlays  providers.OverlayRenderer
	Extractor DesignExtractor
	Bus       *events.Bus
	Logger    *infra.Logger
}

type Orchestrator struct {
	cfg       Config
	store     domain.JobRepository
	images    providers.ImageGenerator
	overlays  providers.OverlayRenderer
	extractor DesignExtractor
	bus       *events.Bus
	logger    *infra.Logger

	newID      func() string
	now        func() time.Time
	retryDelay time.Duration

	root   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("orchestrator: store is required")
	}
	if opts.Images == nil || opts.Overlays == nil {
		return nil, fmt.Errorf("%w: image and overlay providers are required", domain.ErrConfiguration)
	}
	cfg := opts.Config
	templates := make(map[domain.Format]string, len(cfg.Templates))
	for f, id := range cfg.Templates {
		if id = strings.TrimSpace(id); id != "" {
			templates[f] = id
		}
	}
	cfg.Templates = templates
	if cfg.ImagePolicy.MaxAttempts <= 0 || cfg.ImagePolicy.Interval <= 0 {
		cfg.ImagePolicy = DefaultImagePolicy
	}
	if cfg.OverlayPolicy.MaxAttempts <= 0 || cfg.OverlayPolicy.Interval <= 0 {
		cfg.OverlayPolicy = DefaultOverlayPolicy
	}
	logger := infra.LoggerOrDiscard(opts.Logger)
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(logger)
	}
	root, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg,
		store:      opts.Store,
		images:     opts.Images,
		overlays:   opts.Overlays,
		extractor:  opts.Extractor,
		bus:        bus,
		logger:     logger,
		newID:      uuid.NewString,
		now:        func() time.Time { return time.Now().UTC() },
		retryDelay: 100 * time.Millisecond,
		root:       root,
		cancel:     cancel,
	}, nil
}

// SubmitBatch validates req, creates one pending job per format and returns
// their IDs in request order. Provider work continues in the background.
func (o *Orchestrator) SubmitBatch(ctx context.Context, req domain.BatchRequest) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var missing []string
	for _, f := range req.Formats {
		if _, ok := o.cfg.Templates[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no overlay template configured for %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}
	if !o.acquire() {
		return nil, fmt.Errorf("orchestrator: shutting down: %w", context.Canceled)
	}
	started := false
	defer func() {
		if !started {
			o.wg.Done()
		}
	}()

	b := newBatch(o.newID(), req)
	now := o.now()
	jobs := make([]domain.Job, len(req.Formats))
	ids := make([]string, len(req.Formats))
	for i, f := range req.Formats {
		jobs[i] = domain.Job{
			ID:        o.newID(),
			BatchID:   b.id,
			Format:    f,
			Status:    domain.JobStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		ids[i] = jobs[i].ID
	}
	if err := o.store.Create(ctx, jobs); err != nil {
		return nil, fmt.Errorf("orchestrator: create jobs: %w", err)
	}
	for _, job := range jobs {
		o.bus.Publish(events.JobEvent{Type: events.EventJobCreated, Job: job, At: now})
	}
	o.logger.Info().
		Str("batch_id", b.id).
		Strs("job_ids", ids).
		Int("formats", len(jobs)).
		Msg("orchestrator: batch accepted")

	started = true
	go func() {
		defer o.wg.Done()
		o.runBatch(b, jobs)
	}()
	return ids, nil
}

// acquire registers one batch with the wait group unless Shutdown has begun.
func (o *Orchestrator) acquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.wg.Add(1)
	return true
}

// runBatch runs every job of b concurrently. Job functions never return an
// error, so one failing job never cancels its siblings.
func (o *Orchestrator) runBatch(b *batch, jobs []domain.Job) {
	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			o.runJob(o.root, b, job)
			return nil
		})
	}
	_ = g.Wait()
	o.logger.Info().Str("batch_id", b.id).Msg("orchestrator: batch finished")
}

func (o *Orchestrator) GetJob(ctx context.Context, id string) (domain.Job, error) {
	return o.store.GetByID(ctx, strings.TrimSpace(id))
}

// ListJobs returns jobs ordered by creation time, then ID.
func (o *Orchestrator) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	jobs, err := o.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}

// Subscribe streams job events until the returned function is called.
func (o *Orchestrator) Subscribe(buffer int) (<-chan events.JobEvent, func()) {
	return o.bus.Subscribe(buffer)
}

// Wait blocks until every accepted batch has settled.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown stops accepting batches and waits for running jobs until ctx is
// done. Jobs still running then are cancelled and recorded as failed.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}

// batch holds state shared read-only by the jobs of one SubmitBatch call.
type batch struct {
	id         string
	req        domain.BatchRequest
	references []string

	designOnce sync.Once
	design     domain.DesignSystem
}

func newBatch(id string, req domain.BatchRequest) *batch {
	b := &batch{id: id, req: req}
	if len(req.Seeds) > 0 {
		count := req.SeedCount
		if count == 0 {
			count = DefaultSeedCount
		}
		for _, rec := range ranking.IdentifyWinningCreatives(req.Seeds, count) {
			name := strings.TrimSpace(rec.Name)
			if name == "" {
				name = strings.TrimSpace(rec.ID)
			}
			if name != "" {
				b.references = append(b.references, name)
			}
		}
	}
	return b
}

// designSystem extracts the batch style once; every job gets the same value.
// Extraction failures fall back to the zero design system.
func (o *Orchestrator) designSystem(ctx context.Context, b *batch) domain.DesignSystem {
	b.designOnce.Do(func() {
		if o.extractor == nil || b.req.Source.IsZero() {
			return
		}
		ds, err := o.extractor.Extract(ctx, b.req.Source)
		if err != nil {
			o.logger.Warn().Err(err).
				Str("batch_id", b.id).
				Msg("orchestrator: design system extraction failed, using defaults")
			return
		}
		b.design = ds
	})
	return b.design
}
