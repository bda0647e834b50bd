package worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"complaintbot/internal/bot"
	"complaintbot/internal/media"
	"complaintbot/internal/models"
	"complaintbot/internal/redis"
	"complaintbot/internal/service/intake"
)

const defaultQueueLen = 16

// ErrBusy is returned when a user's event queue is full; the transport
// should ask the sender to retry.
var ErrBusy = errors.New("user queue full")

// errStopped is returned for events caught by a worker shutdown; the sender
// simply retries against the replacement worker.
var errStopped = errors.New("session was reset, please retry")

// Manager serializes event processing per chat: every chat id owns one
// goroutine with a bounded queue, so event N+1 for a user never starts
// before event N's save has completed. Different users run in parallel.
type Manager struct {
	intake        *intake.Service
	engine        *bot.Engine
	media         media.Ingestor
	cache         *stateRedis
	guard         *finalizeGuard
	publicBaseURL string
	queueSize     int

	mu    sync.Mutex
	users map[int64]*userWorker
}

type job struct {
	ctx      context.Context
	event    models.Event
	resultCh chan jobResult
}

type jobResult struct {
	reply models.Reply
	err   error
}

type userWorker struct {
	jobs   chan job
	stopCh chan struct{}
	done   chan struct{}
}

// NewManager wires the per-user processing loop. cacheClient may be nil, in
// which case the session cache is skipped and the finalize guard falls back
// to its in-process table.
func NewManager(svc *intake.Service, engine *bot.Engine, ingestor media.Ingestor, cacheClient *redis.Client, publicBaseURL string, queueSize int) *Manager {
	if queueSize <= 0 {
		queueSize = defaultQueueLen
	}
	return &Manager{
		intake:        svc,
		engine:        engine,
		media:         ingestor,
		cache:         newStateCache(cacheClient),
		guard:         newFinalizeGuard(cacheClient),
		publicBaseURL: publicBaseURL,
		queueSize:     queueSize,
		users:         make(map[int64]*userWorker),
	}
}

// Process enqueues one inbound event for its user and waits for the reply.
func (m *Manager) Process(ctx context.Context, ev models.Event) (models.Reply, error) {
	if ev.ChatID == 0 {
		return models.Reply{}, errors.New("chat_id is required")
	}
	w := m.ensureWorker(ev.ChatID)

	resultCh := make(chan jobResult, 1)
	select {
	case w.jobs <- job{ctx: ctx, event: ev, resultCh: resultCh}:
	default:
		return models.Reply{}, ErrBusy
	}

	select {
	case res := <-resultCh:
		return res.reply, res.err
	case <-w.stopCh:
		return models.Reply{}, errStopped
	case <-ctx.Done():
		return models.Reply{}, ctx.Err()
	}
}

// ResetUser stops a user's worker and drops their cached session. It waits
// for the old goroutine to exit so a replacement worker can never run
// concurrently with it.
func (m *Manager) ResetUser(chatID int64) {
	m.mu.Lock()
	w, ok := m.users[chatID]
	if ok {
		delete(m.users, chatID)
	}
	m.mu.Unlock()
	if ok {
		close(w.stopCh)
		<-w.done
	}
	m.cache.invalidateSession(chatID)
}

// Stop shuts down every user worker and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	workers := m.users
	m.users = make(map[int64]*userWorker)
	m.mu.Unlock()
	for _, w := range workers {
		close(w.stopCh)
	}
	for _, w := range workers {
		<-w.done
	}
}

func (m *Manager) ensureWorker(chatID int64) *userWorker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.users[chatID]; ok {
		return w
	}
	w := &userWorker{
		jobs:   make(chan job, m.queueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	m.users[chatID] = w
	go m.runWorker(chatID, w)
	return w
}

func (m *Manager) runWorker(chatID int64, w *userWorker) {
	defer close(w.done)
	for {
		// Stop wins over queued jobs so a stopped worker never races its
		// replacement for the same chat.
		select {
		case <-w.stopCh:
			w.drain()
			debugLog("[worker] chat %d stopped", chatID)
			return
		default:
		}
		select {
		case <-w.stopCh:
			w.drain()
			debugLog("[worker] chat %d stopped", chatID)
			return
		case j := <-w.jobs:
			reply, err := m.handleEvent(j.ctx, j.event)
			if err != nil {
				log.Printf("handle event for chat %d failed: %v", chatID, err)
			}
			j.resultCh <- jobResult{reply: reply, err: err}
		}
	}
}

// drain fails any jobs still queued when the worker stops.
func (w *userWorker) drain() {
	for {
		select {
		case j := <-w.jobs:
			j.resultCh <- jobResult{err: errStopped}
		default:
			return
		}
	}
}
