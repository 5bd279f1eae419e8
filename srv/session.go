package srv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/opd-ai/bookmaker/bookcompiler"
)

// ErrQueueFull is returned by Submit when no more jobs can be queued.
var ErrQueueFull = errors.New("generation queue is full")

// outputName is the file name of a job's PDF inside its directory.
const outputName = "book.pdf"

// JobManager queues books and compiles them one at a time. Jobs are held
// in memory while queued or running; finished jobs move to a TTL cache
// whose eviction removes their output directory.
type JobManager struct {
	mu        sync.RWMutex
	active    map[string]*Job
	cache     *cache.Cache
	queue     chan *Job
	outputDir string
	options   []bookcompiler.Option
	logger    zerolog.Logger
	metrics   *Metrics
}

// NewJobManager creates a manager writing under outputDir.
func NewJobManager(outputDir string, queueSize int, ttl time.Duration, opts []bookcompiler.Option, logger zerolog.Logger, metrics *Metrics) (*JobManager, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	jm := &JobManager{
		active:    make(map[string]*Job),
		cache:     cache.New(ttl, cleanup),
		queue:     make(chan *Job, queueSize),
		outputDir: outputDir,
		options:   opts,
		logger:    logger,
		metrics:   metrics,
	}
	jm.cache.OnEvicted(jm.evicted)
	return jm, nil
}

func (jm *JobManager) evicted(id string, v interface{}) {
	job, ok := v.(*Job)
	if !ok {
		return
	}
	if err := os.RemoveAll(job.Dir); err != nil {
		jm.logger.Warn().Err(err).Str("job", id).Msg("removing expired output")
	}
	jm.logger.Debug().Str("job", id).Msg("job expired")
	jm.updateGauges()
}

// Submit queues book and returns its job.
func (jm *JobManager) Submit(book bookcompiler.Book) (*Job, error) {
	job := newJob(uuid.New().String(), book)
	job.Dir = filepath.Join(jm.outputDir, job.ID)
	job.Path = filepath.Join(job.Dir, outputName)

	job.publish(WSMessage{Type: "state", Status: StateQueued, Message: "queued"})

	jm.mu.Lock()
	select {
	case jm.queue <- job:
		jm.active[job.ID] = job
	default:
		jm.mu.Unlock()
		return nil, ErrQueueFull
	}
	jm.mu.Unlock()

	jm.logger.Info().Str("job", job.ID).Str("title", book.Title).Int("chapters", len(book.Chapters)).Msg("job queued")
	jm.updateGauges()
	return job, nil
}

// Get looks a job up among the active and the cached ones.
func (jm *JobManager) Get(id string) (*Job, bool) {
	jm.mu.RLock()
	job, ok := jm.active[id]
	jm.mu.RUnlock()
	if ok {
		return job, true
	}
	if v, found := jm.cache.Get(id); found {
		return v.(*Job), true
	}
	return nil, false
}

// Run processes queued jobs in FIFO order until ctx is done.
func (jm *JobManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jm.queue:
			jm.process(ctx, job)
		}
	}
}

func (jm *JobManager) process(ctx context.Context, job *Job) {
	logger := jm.logger.With().Str("job", job.ID).Logger()
	job.UpdateState(StateGenerating, "generating")
	jm.updateGauges()
	start := time.Now()

	res, err := jm.compile(ctx, job, logger)

	job.mu.Lock()
	job.Result = res
	job.Err = err
	job.book = bookcompiler.Book{}
	job.mu.Unlock()

	if err != nil {
		logger.Error().Err(err).Msg("generation failed")
		if rmErr := os.RemoveAll(job.Dir); rmErr != nil {
			logger.Warn().Err(rmErr).Msg("removing failed output")
		}
		jm.metrics.observeJob("error", time.Since(start), 0, 0)
		job.UpdateState(StateError, err.Error())
	} else {
		jm.metrics.observeJob("completed", time.Since(start), res.Pages, res.Bounds.TOC)
		job.UpdateState(StateCompleted, "completed")
	}

	jm.mu.Lock()
	delete(jm.active, job.ID)
	jm.cache.Set(job.ID, job, cache.DefaultExpiration)
	jm.mu.Unlock()
	jm.updateGauges()
}

func (jm *JobManager) compile(ctx context.Context, job *Job, logger zerolog.Logger) (*bookcompiler.Result, error) {
	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		return nil, &bookcompiler.IOError{Op: "mkdir", Path: job.Dir, Err: err}
	}

	job.mu.RLock()
	book := job.book
	job.mu.RUnlock()

	opts := append([]bookcompiler.Option{}, jm.options...)
	opts = append(opts,
		bookcompiler.WithTempDir(job.Dir),
		bookcompiler.WithLogger(logger),
		bookcompiler.WithProgress(job.publishEvent),
	)
	return bookcompiler.NewBookCompiler(opts...).Compile(ctx, book, job.Path)
}

func (jm *JobManager) updateGauges() {
	if jm.metrics == nil {
		return
	}
	jm.mu.RLock()
	active := 0
	for _, job := range jm.active {
		if job.GetState() == StateGenerating {
			active++
		}
	}
	jm.mu.RUnlock()
	jm.metrics.queueLength.Set(float64(len(jm.queue)))
	jm.metrics.activeJobs.Set(float64(active))
	jm.metrics.cachedResults.Set(float64(jm.cache.ItemCount()))
}
