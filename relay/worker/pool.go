// Package worker provides the bounded pool that runs post-processing for
// finished exchanges: persisting the pair and extracting facts from it.
//
// The pool decouples storage and the secondary model call from the relay's
// streaming hot path. Jobs run on their own context and are never cancelled
// by a client disconnect.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/rapport/pkg/eventstream"
	"github.com/papercomputeco/rapport/pkg/history"
	"github.com/papercomputeco/rapport/pkg/memory"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 2 * time.Minute
)

// Job is one finished exchange to post-process.
type Job struct {
	Pair history.Pair

	// Domain is the persona's coaching domain, passed to the extractor.
	Domain string

	// Partial marks a reply cut short by a client disconnect.
	Partial bool
}

// HistoryWriter persists an exchange. *history.Writer satisfies it.
type HistoryWriter interface {
	Save(ctx context.Context, pair history.Pair) (history.Saved, error)
}

// FactSaver stores extracted facts. *memory.Store satisfies it.
type FactSaver interface {
	Save(ctx context.Context, userID, personaID string, facts []memory.Fact) (int, error)
}

// Config is the configuration options for the worker pool.
type Config struct {
	// History persists each exchange. Required.
	History HistoryWriter

	// Extractor and Facts are optional. Fact extraction runs only when both
	// are set and the exchange has a user.
	Extractor memory.Extractor
	Facts     FactSaver

	// Publisher is notified after an exchange is persisted. Optional.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds each job (defaults to 2m).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes post-processing jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.History == nil {
		return nil, fmt.Errorf("worker pool requires a history writer")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"conversation_id", job.Pair.ConversationID,
			"persona", job.Pair.Metadata.PersonaID,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"conversation_id", job.Pair.ConversationID,
			"persona", job.Pair.Metadata.PersonaID,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the relay HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob persists the pair and extracts facts concurrently. Neither task
// can fail the other, and a panic in either is logged and contained.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	log := p.logger.With(
		"conversation_id", job.Pair.ConversationID,
		"persona", job.Pair.Metadata.PersonaID,
	)

	var (
		saved    history.Saved
		saveErr  error
		inserted int
		wg       sync.WaitGroup
	)

	wg.Go(func() {
		defer recoverTask(log, "persist")
		saved, saveErr = p.config.History.Save(ctx, job.Pair)
		if saveErr != nil {
			log.Error("exchange persistence failed", "error", saveErr)
			return
		}
		log.Info("exchange persisted",
			"encrypted", saved.Encrypted,
			"partial", job.Partial,
		)
	})

	if p.extracts(job) {
		wg.Go(func() {
			defer recoverTask(log, "extract")
			inserted = p.extractFacts(ctx, log, job)
		})
	}

	wg.Wait()

	if saveErr != nil || saved.UserMessageID == "" || p.config.Publisher == nil {
		return
	}

	event := eventstream.NewExchangePersistedEvent(eventstream.ExchangeMeta{
		ConversationID: job.Pair.ConversationID,
		UserID:         job.Pair.UserID,
		PersonaID:      job.Pair.Metadata.PersonaID,
		ProviderID:     job.Pair.Metadata.ProviderID,
		ModelID:        job.Pair.Metadata.ModelID,
		MessageIDs:     []string{saved.UserMessageID, saved.AssistantMessageID},
		Encrypted:      saved.Encrypted,
		Partial:        job.Partial,
		FactsInserted:  inserted,
	})
	if err := p.config.Publisher.PublishExchange(ctx, event); err != nil {
		log.Warn("failed to publish exchange event", "error", err)
	}
}

func (p *Pool) extracts(job Job) bool {
	return p.config.Extractor != nil &&
		p.config.Facts != nil &&
		job.Pair.UserID != ""
}

func (p *Pool) extractFacts(ctx context.Context, log *slog.Logger, job Job) int {
	facts, err := p.config.Extractor.Extract(ctx, job.Pair.UserText, job.Pair.AssistantText, job.Domain)
	if err != nil {
		log.Warn("fact extraction failed", "error", err)
		return 0
	}
	if len(facts) == 0 {
		log.Debug("no facts extracted")
		return 0
	}

	n, err := p.config.Facts.Save(ctx, job.Pair.UserID, job.Pair.Metadata.PersonaID, facts)
	if err != nil {
		log.Error("fact storage failed", "error", err)
		return 0
	}
	log.Info("facts stored", "extracted", len(facts), "inserted", n)
	return n
}

func recoverTask(log *slog.Logger, task string) {
	if r := recover(); r != nil {
		log.Error("post-processing task panicked", "task", task, "panic", fmt.Sprint(r))
	}
}
