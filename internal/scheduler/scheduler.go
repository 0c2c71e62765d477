package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/foliosend/foliosend/pkg/models"
)

// Refresh priorities. Event-driven refreshes jump ahead of the
// background stale scan.
const (
	PriorityEvent = 10
	PriorityScan  = 1
)

// Repository defines the persistence operations the scheduler needs
type Repository interface {
	GetLink(ctx context.Context, id string) (*models.Link, error)
	ListStaleLinks(ctx context.Context, olderThan string, limit int) ([]string, error)
}

// Refresher recomputes one link's aggregate snapshot
type Refresher interface {
	RefreshLinkAnalytics(ctx context.Context, link *models.Link, trigger string) (*models.LinkAnalytics, error)
}

// Locker guards a refresh across worker replicas. May be nil when the
// deployment runs a single worker.
type Locker interface {
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource string) error
}

// RefreshScheduler drains a priority queue of aggregate-refresh
// requests with bounded concurrency, and periodically sweeps the
// database for links whose snapshots have gone stale.
type RefreshScheduler struct {
	queue         *PriorityQueue
	queued        map[string]bool
	mu            sync.Mutex
	wg            sync.WaitGroup
	maxConcurrent int
	active        int

	repo      Repository
	refresher Refresher
	locker    Locker

	scanInterval time.Duration
	staleAfter   string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRefreshScheduler creates a scheduler. staleAfter is a Postgres
// interval string such as "15 minutes".
func NewRefreshScheduler(repo Repository, refresher Refresher, locker Locker, maxConcurrent int, scanInterval time.Duration, staleAfter string) *RefreshScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &RefreshScheduler{
		queue:         &PriorityQueue{},
		queued:        make(map[string]bool),
		maxConcurrent: maxConcurrent,
		repo:          repo,
		refresher:     refresher,
		locker:        locker,
		scanInterval:  scanInterval,
		staleAfter:    staleAfter,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins the scan and drain loop
func (s *RefreshScheduler) Start() {
	heap.Init(s.queue)
	go s.run()
	log.Info().Dur("scan_interval", s.scanInterval).Msg("Refresh scheduler started")
}

// Stop cancels the loop and waits for in-flight refreshes
func (s *RefreshScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("Refresh scheduler stopped")
}

// Enqueue requests a refresh for one link. Duplicate requests for a
// link already waiting are dropped; the pending refresh covers them.
func (s *RefreshScheduler) Enqueue(linkID string, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queued[linkID] {
		return
	}
	s.queued[linkID] = true

	heap.Push(s.queue, &QueueItem{
		LinkID:    linkID,
		Priority:  priority,
		Timestamp: time.Now(),
	})
}

func (s *RefreshScheduler) run() {
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	// Drain far more often than we scan; event-driven entries should
	// not wait for the next sweep.
	drain := time.NewTicker(time.Second)
	defer drain.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.scanStale()
			s.processQueue()
		case <-drain.C:
			s.processQueue()
		}
	}
}

// scanStale enqueues links whose snapshot is older than the threshold
func (s *RefreshScheduler) scanStale() {
	linkIDs, err := s.repo.ListStaleLinks(s.ctx, s.staleAfter, 100)
	if err != nil {
		log.Error().Err(err).Msg("Stale link scan failed")
		return
	}

	for _, linkID := range linkIDs {
		s.Enqueue(linkID, PriorityScan)
	}

	if len(linkIDs) > 0 {
		log.Debug().Int("count", len(linkIDs)).Msg("Queued stale links for refresh")
	}
}

func (s *RefreshScheduler) processQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.active < s.maxConcurrent && s.queue.Len() > 0 {
		item := heap.Pop(s.queue).(*QueueItem)
		delete(s.queued, item.LinkID)
		s.active++

		s.wg.Add(1)
		go func(linkID string, priority int) {
			defer s.wg.Done()
			s.refresh(linkID, priority)

			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		}(item.LinkID, item.Priority)
	}
}

func (s *RefreshScheduler) refresh(linkID string, priority int) {
	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(s.ctx, "refresh:"+linkID, time.Minute)
		if err != nil {
			log.Warn().Err(err).Str("link_id", linkID).Msg("Refresh lock check failed")
		} else if !acquired {
			// Another worker holds the refresh
			return
		} else {
			defer func() {
				if err := s.locker.ReleaseLock(s.ctx, "refresh:"+linkID); err != nil {
					log.Warn().Err(err).Str("link_id", linkID).Msg("Failed to release refresh lock")
				}
			}()
		}
	}

	link, err := s.repo.GetLink(s.ctx, linkID)
	if err != nil {
		log.Error().Err(err).Str("link_id", linkID).Msg("Failed to load link for refresh")
		return
	}

	trigger := "scheduled"
	if priority >= PriorityEvent {
		trigger = "event"
	}

	if _, err := s.refresher.RefreshLinkAnalytics(s.ctx, link, trigger); err != nil {
		log.Error().Err(err).Str("link_id", linkID).Msg("Aggregate refresh failed")
	}
}

// QueueDepth returns the number of links waiting for a refresh
func (s *RefreshScheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// PriorityQueue orders refresh requests by priority, then arrival
type PriorityQueue []*QueueItem

// QueueItem is one pending link refresh
type QueueItem struct {
	LinkID    string
	Priority  int
	Timestamp time.Time
	Index     int
}

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority > pq[j].Priority
	}
	return pq[i].Timestamp.Before(pq[j].Timestamp)
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*QueueItem)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	*pq = old[0 : n-1]
	return item
}
