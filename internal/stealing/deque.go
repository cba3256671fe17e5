// Package stealing implements the work-stealing scheduler of spec §4.3: a
// per-worker double-ended deque, victim-selection policies, and the
// affinity router that steers related tasks to the same worker. The deque
// shape is adapted from the Chase-Lev pattern used by the
// go-foundations/workerpool work-stealing strategy, generalised to the
// owner/stealer split and affinity awareness spec'd here.
package stealing

import "sync"

// StealableItem is anything a deque can hold; the scheduler only needs to
// read PreferredWorker for affinity-aware stealing.
type StealableItem interface {
	PreferredWorkerIndex() int
}

// Deque is a single-producer (owner), multi-consumer (thieves) double-ended
// queue. Owner-local operations are LIFO (cache-warm); steal is FIFO
// (fairness), per §3.
type Deque struct {
	mu    sync.Mutex
	items []StealableItem
}

func NewDeque() *Deque { return &Deque{} }

// PushBottom is owner-only.
func (d *Deque) PushBottom(item StealableItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, item)
}

// PopBottom is owner-only, LIFO.
func (d *Deque) PopBottom() (StealableItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items)
	if n == 0 {
		return nil, false
	}
	item := d.items[n-1]
	d.items = d.items[:n-1]
	return item, true
}

// StealTop is the remote operation, FIFO. At most one stealer succeeds per
// victim snapshot because it holds the mutex for the duration of the pop.
func (d *Deque) StealTop() (StealableItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	item := d.items[0]
	d.items = d.items[1:]
	return item, true
}

// PeekTop reads the next item a steal would take, without removing it —
// used to honour PreferredWorker before committing to the steal.
func (d *Deque) PeekTop() (StealableItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	return d.items[0], true
}

// StealBatch removes up to n items from the top, for the imbalance
// rebalancing path (§4.3).
func (d *Deque) StealBatch(n int) []StealableItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > len(d.items) {
		n = len(d.items)
	}
	if n <= 0 {
		return nil
	}
	out := append([]StealableItem(nil), d.items[:n]...)
	d.items = d.items[n:]
	return out
}

func (d *Deque) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
