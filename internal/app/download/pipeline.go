// Package download turns queued track references into cached, playable audio.
package download

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/crowdbox/internal/app/provider"
	"github.com/osa030/crowdbox/internal/domain/track"
)

var (
	// ErrFetchFailed marks a provider download or cache write failure.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrNoProvider marks a track whose source has no registered provider.
	ErrNoProvider = errors.New("no provider for track source")
)

// Reporter receives track state transitions produced by the pipeline.
// Calls arrive from worker goroutines.
type Reporter interface {
	TrackDownloading(id string)
	TrackReady(id string)
	TrackFailed(id string, err error)
}

// Fetcher downloads raw audio for a track. *provider.Gateway implements it.
type Fetcher interface {
	Download(ctx context.Context, t track.Track) ([]byte, error)
}

// Cache is the write side of the local audio cache.
type Cache interface {
	Exists(id string) bool
	Write(id string, data []byte) error
	AppendMetadata(t track.Track) error
}

// Config represents pipeline configuration.
type Config struct {
	Workers    int
	RatePerSec float64 // 0 disables rate limiting
	Timeout    time.Duration
}

// Pipeline is a bounded worker pool fetching track audio into the cache.
// Jobs are queued without limit; Workers bounds how many run at once.
type Pipeline struct {
	fetcher  Fetcher
	store    Cache
	reporter Reporter
	limiter  *rate.Limiter
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []track.Track
	inflight map[string]struct{}
	closed   bool

	workers sync.WaitGroup
	jobs    sync.WaitGroup
}

// NewPipeline creates a pipeline and starts its workers.
func NewPipeline(cfg Config, fetcher Fetcher, store Cache, reporter Reporter) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		fetcher:  fetcher,
		store:    store,
		reporter: reporter,
		timeout:  cfg.Timeout,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	if cfg.RatePerSec > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}

	for i := 0; i < cfg.Workers; i++ {
		p.workers.Add(1)
		go p.worker()
	}

	zlog.Debug().Msgf("download pipeline started: workers=%d rate_per_sec=%.2f timeout=%s",
		cfg.Workers, cfg.RatePerSec, cfg.Timeout)
	return p
}

// Submit queues a fetch job for t and returns immediately.
// It returns false if a job for the same id is already pending or running,
// or if the pipeline is closed.
func (p *Pipeline) Submit(t track.Track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if _, ok := p.inflight[t.ID]; ok {
		zlog.Debug().Msgf("download already in flight: track_id=%s", t.ID)
		return false
	}

	p.inflight[t.ID] = struct{}{}
	p.jobs.Add(1)
	p.pending = append(p.pending, t)
	p.cond.Signal()
	return true
}

// InFlight reports whether a job for id is pending or running.
func (p *Pipeline) InFlight(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[id]
	return ok
}

// Wait blocks until every submitted job has finished.
func (p *Pipeline) Wait() {
	p.jobs.Wait()
}

// Close stops the workers. Pending jobs are dropped and running fetches are cancelled.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	dropped := p.pending
	p.pending = nil
	for _, t := range dropped {
		delete(p.inflight, t.ID)
		p.jobs.Done()
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	p.cancel()
	p.workers.Wait()
	zlog.Debug().Msgf("download pipeline stopped: dropped=%d", len(dropped))
}

func (p *Pipeline) worker() {
	defer p.workers.Done()
	for {
		t, ok := p.next()
		if !ok {
			return
		}
		p.process(t)
		p.finish(t.ID)
	}
}

// next blocks until a job is available or the pipeline closes.
func (p *Pipeline) next() (track.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.pending) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return track.Track{}, false
	}
	t := p.pending[0]
	p.pending = p.pending[1:]
	return t, true
}

func (p *Pipeline) finish(id string) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
	p.jobs.Done()
}

func (p *Pipeline) process(t track.Track) {
	if p.store.Exists(t.ID) {
		zlog.Debug().Msgf("track already cached: track_id=%s", t.ID)
		p.reporter.TrackReady(t.ID)
		return
	}

	p.reporter.TrackDownloading(t.ID)
	zlog.Info().Msgf("download started: track_id=%s source=%s title=%s", t.ID, t.Source, t.Title)

	if p.limiter != nil {
		if err := p.limiter.Wait(p.ctx); err != nil {
			p.fail(t, errors.Wrap(err, "rate limiter wait"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	started := time.Now()
	data, err := p.fetcher.Download(ctx, t)
	if err != nil {
		if errors.Is(err, provider.ErrUnknownSource) {
			err = errors.Mark(err, ErrNoProvider)
		}
		p.fail(t, err)
		return
	}
	if len(data) == 0 {
		p.fail(t, errors.Newf("provider returned no audio: source=%s", t.Source))
		return
	}

	if err := p.store.Write(t.ID, data); err != nil {
		p.fail(t, errors.Wrap(err, "cache write"))
		return
	}

	zlog.Info().Msgf("download finished: track_id=%s size=%s elapsed=%s",
		t.ID, humanize.IBytes(uint64(len(data))), time.Since(started).Round(time.Millisecond))

	// A metadata failure does not undo the cached audio.
	if err := p.store.AppendMetadata(t); err != nil {
		zlog.Error().Msgf("failed to append cache metadata: track_id=%s error=%v", t.ID, err)
	}

	p.reporter.TrackReady(t.ID)
}

func (p *Pipeline) fail(t track.Track, err error) {
	err = errors.Mark(err, ErrFetchFailed)
	zlog.Warn().Msgf("download failed: track_id=%s source=%s error=%v", t.ID, t.Source, err)
	p.reporter.TrackFailed(t.ID, err)
}
