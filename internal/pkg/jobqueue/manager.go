package jobqueue

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/korehq/korebank/app/repository"
	"github.com/korehq/korebank/internal/pkg/metrics/counter"
)

const (
	defaultWorkerCount   = 3
	defaultSweepInterval = 2 * time.Minute
	counterFlushInterval = 5 * time.Second
	sweepBatchSize       = 100
)

// Manager owns the job queue and the background sweeper that re-enqueues
// stored webhook events which were never picked up (e.g. Redis was down
// during intake, or the process crashed before the worker ran).
type Manager struct {
	queue              *Queue
	events             repository.WebhookEventRepository
	counters           *counter.Counter
	sweepTicker        *time.Ticker
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

// NewManager wires the queue with a webhook processor over the given repositories.
// counters may be nil; the flush worker is then not started.
func NewManager(client *redis.Client, events repository.WebhookEventRepository, attempts repository.VerificationAttemptRepository, mandates MandateActivator, counters *counter.Counter) *Manager {
	processor := NewWebhookProcessor(events, attempts, mandates, counters)
	return &Manager{
		queue:    NewQueue(client, processor, defaultWorkerCount),
		events:   events,
		counters: counters,
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.sweepTicker = time.NewTicker(defaultSweepInterval)
	m.wg.Add(1)
	go m.sweepWorker()

	if m.counters != nil {
		m.counterFlushTicker = time.NewTicker(counterFlushInterval)
		m.wg.Add(1)
		go m.counterFlushWorker()
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// EnqueueWebhookEvent schedules processing for a stored webhook event.
func (m *Manager) EnqueueWebhookEvent(eventID uint) (*Job, error) {
	payload := WebhookProcessJobPayload{EventID: eventID}
	return m.queue.EnqueueJob(JobTypeWebhookProcess, payload.ToMap())
}

// sweepWorker periodically re-enqueues webhook events still marked unprocessed.
func (m *Manager) sweepWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started webhook sweep worker (interval: %s)", defaultSweepInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Webhook sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			if err := m.sweepOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Webhook sweep error: %v", err)
			}
		}
	}
}

func (m *Manager) sweepOnce() error {
	events, err := m.events.ListUnprocessed(sweepBatchSize)
	if err != nil {
		return err
	}
	for _, event := range events {
		if _, err := m.EnqueueWebhookEvent(event.ID); err != nil {
			log.Errorf("[JobQueue Manager] Failed to enqueue webhook event %d: %v", event.ID, err)
		}
	}
	return nil
}

// counterFlushWorker periodically flushes pending Redis counters to the database.
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := m.counters.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
