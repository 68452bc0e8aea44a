package poller

import (
	"sync"

	"jarconsole/internal/models"
)

// List is the observable, ordered set of service rows shown by the views.
// It is only ever replaced wholesale.
type List struct {
	mu      sync.RWMutex
	items   []models.ServiceItem
	version uint64

	nextSub int
	subs    map[int]chan []models.ServiceItem
}

// NewList returns an empty list.
func NewList() *List {
	return &List{
		items: []models.ServiceItem{},
		subs:  make(map[int]chan []models.ServiceItem),
	}
}

// Items returns a copy of the current rows. The result is never nil.
func (l *List) Items() []models.ServiceItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneItems(l.items)
}

// Version counts how many times the list has been replaced.
func (l *List) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Replace swaps in a new set of rows and notifies subscribers.
func (l *List) Replace(items []models.ServiceItem) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = cloneItems(items)
	l.version++
	for _, ch := range l.subs {
		// Subscribers only care about the newest rows.
		select {
		case <-ch:
		default:
		}
		ch <- cloneItems(l.items)
	}
}

// Subscribe returns a channel that receives every replacement. A slow reader
// skips intermediate lists. The returned func unsubscribes and closes the channel.
func (l *List) Subscribe() (<-chan []models.ServiceItem, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSub
	l.nextSub++
	ch := make(chan []models.ServiceItem, 1)
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

func cloneItems(items []models.ServiceItem) []models.ServiceItem {
	out := make([]models.ServiceItem, len(items))
	copy(out, items)
	return out
}
