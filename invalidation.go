package ability

import (
	"context"
	"sync"
)

// ChangeSubscriber is notified when a user's underlying role/permission/
// assignment records change and any cached ruleset for that user is stale.
type ChangeSubscriber interface {
	OnGrantChange(ctx context.Context, userID string)
}

// ChangeSubscriberFunc adapts a plain function to ChangeSubscriber.
type ChangeSubscriberFunc func(ctx context.Context, userID string)

func (f ChangeSubscriberFunc) OnGrantChange(ctx context.Context, userID string) {
	f(ctx, userID)
}

// ChangeNotifier fans grant-change notifications out to subscribers from a
// single worker goroutine. Producers never block: Notify drops on a full
// buffer, which is safe because dropped notifications only delay cache
// expiry, never correctness (entries still age out by TTL).
type ChangeNotifier struct {
	notifyCh    chan string
	stopCh      chan struct{}
	subscribers []ChangeSubscriber
	mu          sync.RWMutex
	started     bool
	wg          sync.WaitGroup
}

func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{
		notifyCh: make(chan string, 1024),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers a subscriber. Registration after Start is safe.
func (n *ChangeNotifier) Subscribe(sub ChangeSubscriber) {
	if sub == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribers = append(n.subscribers, sub)
}

// Notify queues a changed user id for fan-out.
func (n *ChangeNotifier) Notify(userID string) {
	if userID == "" {
		return
	}
	select {
	case n.notifyCh <- userID:
	default:
	}
}

// Start launches the fan-out worker. Calling Start twice is a no-op, and a
// stopped notifier may be started again.
func (n *ChangeNotifier) Start(ctx context.Context) {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return
	}
	n.started = true
	n.stopCh = make(chan struct{})
	stopCh := n.stopCh
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case userID := <-n.notifyCh:
				n.fanOut(ctx, userID)
			}
		}
	}()
}

// Stop shuts the worker down and waits for it, bounded by ctx.
func (n *ChangeNotifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = false
	close(n.stopCh)
	n.mu.Unlock()
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (n *ChangeNotifier) fanOut(ctx context.Context, userID string) {
	n.mu.RLock()
	subs := make([]ChangeSubscriber, len(n.subscribers))
	copy(subs, n.subscribers)
	n.mu.RUnlock()
	for _, sub := range subs {
		sub.OnGrantChange(ctx, userID)
	}
}
