package outbox

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const pollInterval = 30 * time.Second

// Manager owns the dispatch queue and its background poller.
type Manager struct {
	queue      *Queue
	pollTicker *time.Ticker
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// Setup builds the global manager (singleton). Must run once at
// startup before Start.
func Setup(db *gorm.DB, workers int, processors ...Processor) *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			queue:  NewQueue(db, workers, processors...),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global manager, or nil before Setup.
func GetManager() *Manager {
	return globalManager
}

// GetQueue returns the managed dispatch queue.
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Signal wakes the dispatch workers for freshly committed items.
func (m *Manager) Signal(itemIDs ...string) {
	Signal(itemIDs...)
}

// Start starts the dispatch workers and the due-item poller.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Outbox Manager] Starting dispatch queue and poller")

	m.queue.Start()

	m.pollTicker = time.NewTicker(pollInterval)
	m.wg.Add(1)
	go m.pollWorker()

	log.Info("[Outbox Manager] Started successfully")
}

// Stop stops the poller and the dispatch workers.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	log.Info("[Outbox Manager] Stopping...")

	if m.pollTicker != nil {
		m.pollTicker.Stop()
	}
	close(m.stopCh)
	m.running = false
	m.wg.Wait()
	m.queue.Stop()

	log.Info("[Outbox Manager] Stopped successfully")
}

// pollWorker periodically requeues due pending items so that items
// whose wake signal was lost still dispatch.
func (m *Manager) pollWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Outbox Manager] Poller stopping")
			return
		case <-m.pollTicker.C:
			if err := m.queue.EnqueueDueItems(); err != nil {
				log.Errorf("[Outbox Manager] Poll error: %v", err)
			}
		}
	}
}
