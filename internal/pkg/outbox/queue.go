package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/applitrack/AppliTrack/app/models"
	"github.com/applitrack/AppliTrack/internal/pkg/cache"
)

const (
	// Redis key of the wake list
	QueueKey = "outbox_queue"

	// Dispatch settings
	pollTimeout    = 5 * time.Second
	retryBaseDelay = 30 * time.Second
	stuckAfter     = 10 * time.Minute
)

// Processor dispatches one outbox item kind.
type Processor interface {
	Kind() string
	Process(ctx context.Context, item *models.OutboxItem) error
}

// Queue dispatches durable outbox rows. MySQL is the source of truth;
// the Redis list only wakes workers promptly after a commit. Rows a
// signal never reached (crash, Redis outage) are picked up by the
// manager's poller.
type Queue struct {
	client     *redis.Client
	db         *gorm.DB
	processors map[string]Processor
	workers    int
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates an outbox dispatch queue.
func NewQueue(db *gorm.DB, workers int, processors ...Processor) *Queue {
	if workers <= 0 {
		workers = 3
	}
	byKind := make(map[string]Processor, len(processors))
	for _, p := range processors {
		byKind[p.Kind()] = p
	}
	return &Queue{
		client:     cache.GetClient(),
		db:         db,
		processors: byKind,
		workers:    workers,
		stopCh:     make(chan struct{}),
	}
}

// Signal wakes the dispatch workers for freshly committed items.
// Failures are logged only; the poller covers missed signals.
func Signal(itemIDs ...string) {
	if len(itemIDs) == 0 {
		return
	}
	ctx := context.Background()
	args := make([]interface{}, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}
	if err := cache.GetClient().RPush(ctx, QueueKey, args...).Err(); err != nil {
		log.Warnf("[Outbox] Wake signal failed (poller will pick up): %v", err)
	}
}

// Start launches the dispatch workers and the stuck-item sweeper.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	log.Infof("[Outbox] Starting %d dispatch workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.wg.Add(1)
	go q.stuckSweeper(stuckAfter, time.Minute)
}

// Stop stops the dispatch workers.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}
	log.Info("[Outbox] Stopping dispatch workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[Outbox] All dispatch workers stopped")
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[Outbox] Worker %d started", id)
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[Outbox] Worker %d stopping", id)
			return
		default:
		}

		res, err := q.client.BLPop(ctx, pollTimeout, QueueKey).Result()
		if err != nil {
			if err != redis.Nil {
				log.Errorf("[Outbox] Worker %d BLPop error: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		q.dispatch(ctx, res[1])
	}
}

// dispatch claims and processes one item by id. The claim is a guarded
// UPDATE so that a duplicate wake signal or a concurrent worker can
// never run the same item twice.
func (q *Queue) dispatch(ctx context.Context, itemID string) {
	now := time.Now()
	res := q.db.Model(&models.OutboxItem{}).
		Where("id = ? AND status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
			itemID, models.OutboxStatusPending, now).
		Updates(map[string]interface{}{
			"status":        models.OutboxStatusProcessing,
			"attempts":      gorm.Expr("attempts + 1"),
			"dispatched_at": &now,
		})
	if res.Error != nil {
		log.Errorf("[Outbox] Claim failed for %s: %v", itemID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		return
	}

	var item models.OutboxItem
	if err := q.db.First(&item, "id = ?", itemID).Error; err != nil {
		log.Errorf("[Outbox] Load failed for %s: %v", itemID, err)
		return
	}

	processor, ok := q.processors[item.Kind]
	if !ok {
		log.Errorf("[Outbox] No processor for kind %q (item %s)", item.Kind, item.ID)
		q.markFailed(&item, fmt.Errorf("no processor for kind %q", item.Kind))
		return
	}

	if err := processor.Process(ctx, &item); err != nil {
		q.handleFailure(&item, err)
		return
	}

	if err := q.db.Model(&models.OutboxItem{}).Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"status":     models.OutboxStatusCompleted,
			"last_error": "",
		}).Error; err != nil {
		log.Errorf("[Outbox] Completion update failed for %s: %v", item.ID, err)
	}
	log.Infof("[Outbox] Dispatched %s item %s (attempt %d)", item.Kind, item.ID, item.Attempts)
}

// handleFailure schedules a retry with linear backoff, or marks the
// item failed once attempts are exhausted. Exhausted items are an
// operator escalation, never a silent drop.
func (q *Queue) handleFailure(item *models.OutboxItem, procErr error) {
	if item.Attempts >= item.MaxAttempts {
		q.markFailed(item, procErr)
		return
	}

	next := time.Now().Add(retryBaseDelay * time.Duration(item.Attempts))
	if err := q.db.Model(&models.OutboxItem{}).Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"status":          models.OutboxStatusPending,
			"last_error":      procErr.Error(),
			"next_attempt_at": &next,
		}).Error; err != nil {
		log.Errorf("[Outbox] Retry schedule failed for %s: %v", item.ID, err)
		return
	}
	log.Warnf("[Outbox] Dispatch of %s item %s failed (attempt %d/%d), retrying at %s: %v",
		item.Kind, item.ID, item.Attempts, item.MaxAttempts, next.Format(time.RFC3339), procErr)
}

func (q *Queue) markFailed(item *models.OutboxItem, procErr error) {
	if err := q.db.Model(&models.OutboxItem{}).Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"status":     models.OutboxStatusFailed,
			"last_error": procErr.Error(),
		}).Error; err != nil {
		log.Errorf("[Outbox] Failure update failed for %s: %v", item.ID, err)
		return
	}
	log.Errorf("[Outbox] Item %s (%s) exhausted %d attempts, giving up: %v",
		item.ID, item.Kind, item.Attempts, procErr)
}

// stuckSweeper requeues items stranded in processing by a crashed
// worker.
func (q *Queue) stuckSweeper(maxAge time.Duration, interval time.Duration) {
	defer q.wg.Done()
	log.Infof("[Outbox] Stuck sweeper running (maxAge=%s, interval=%s)", maxAge, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			log.Info("[Outbox] Stuck sweeper stopping")
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-maxAge)
			res := q.db.Model(&models.OutboxItem{}).
				Where("status = ? AND dispatched_at < ?", models.OutboxStatusProcessing, cutoff).
				Updates(map[string]interface{}{
					"status":     models.OutboxStatusPending,
					"last_error": "recovered by sweeper",
				})
			if res.Error != nil {
				log.Errorf("[Outbox] Sweeper error: %v", res.Error)
				continue
			}
			if res.RowsAffected > 0 {
				log.Warnf("[Outbox] Recovered %d stuck items", res.RowsAffected)
			}
		}
	}
}

// EnqueueDueItems pushes pending items whose retry time has come onto
// the wake list. Called by the manager's poller; also the safety net
// for wake signals lost to a crash or Redis outage.
func (q *Queue) EnqueueDueItems() error {
	var ids []string
	err := q.db.Model(&models.OutboxItem{}).
		Where("status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
			models.OutboxStatusPending, time.Now()).
		Order("created_at").
		Limit(100).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	Signal(ids...)
	return nil
}

// PendingItemStats returns pending/failed counts for monitoring.
func (q *Queue) PendingItemStats() (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := q.db.Model(&models.OutboxItem{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// decodePayload unmarshals an item payload for processors.
func decodePayload(item *models.OutboxItem, v interface{}) error {
	return json.Unmarshal([]byte(item.PayloadJSON), v)
}
