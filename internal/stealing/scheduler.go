package stealing

import (
	"math/rand"
	"sort"
)

// VictimPolicy selects the order in which a thief examines other workers'
// deques (§4.3).
type VictimPolicy string

const (
	PolicyRandom      VictimPolicy = "random"
	PolicyRoundRobin  VictimPolicy = "round_robin"
	PolicyBusiestFirst VictimPolicy = "busiest_first"
	PolicyNeighbor    VictimPolicy = "neighbor"
)

// DefaultImbalanceThreshold is the default trigger for batch rebalancing
// (§4.3): max_deque_size / max(1, min_deque_size) > threshold.
const DefaultImbalanceThreshold = 2.0

// Scheduler owns one Deque per worker and implements the steal protocol.
type Scheduler struct {
	deques        []*Deque
	policy        VictimPolicy
	rrCursor      int
	imbalanceThreshold float64
	rng           *rand.Rand
}

func NewScheduler(workerCount int, policy VictimPolicy) *Scheduler {
	deques := make([]*Deque, workerCount)
	for i := range deques {
		deques[i] = NewDeque()
	}
	return &Scheduler{
		deques:             deques,
		policy:             policy,
		imbalanceThreshold: DefaultImbalanceThreshold,
		rng:                rand.New(rand.NewSource(1)),
	}
}

func (s *Scheduler) Deque(workerIndex int) *Deque { return s.deques[workerIndex] }

func (s *Scheduler) WorkerCount() int { return len(s.deques) }

// LeastLoaded returns the index of the worker with the smallest deque,
// used to place a new task when no PreferredWorker is set.
func (s *Scheduler) LeastLoaded() int {
	min := 0
	minSize := s.deques[0].Size()
	for i, d := range s.deques[1:] {
		if sz := d.Size(); sz < minSize {
			minSize = sz
			min = i + 1
		}
	}
	return min
}

// Submit places an item on the preferred worker's deque if it names one,
// otherwise on the least-loaded deque.
func (s *Scheduler) Submit(item StealableItem) {
	idx := item.PreferredWorkerIndex()
	if idx < 0 || idx >= len(s.deques) {
		idx = s.LeastLoaded()
	}
	s.deques[idx].PushBottom(item)
}

// victimOrder returns the indices of all workers other than thief, ordered
// per the configured policy.
func (s *Scheduler) victimOrder(thief int) []int {
	n := len(s.deques)
	others := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != thief {
			others = append(others, i)
		}
	}

	switch s.policy {
	case PolicyRandom:
		s.rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	case PolicyRoundRobin:
		s.rrCursor = (s.rrCursor + 1) % n
		sort.Slice(others, func(i, j int) bool {
			return rotateDist(others[i], s.rrCursor, n) < rotateDist(others[j], s.rrCursor, n)
		})
	case PolicyBusiestFirst:
		sort.Slice(others, func(i, j int) bool {
			return s.deques[others[i]].Size() > s.deques[others[j]].Size()
		})
	case PolicyNeighbor:
		sort.Slice(others, func(i, j int) bool {
			return abs(others[i]-thief) < abs(others[j]-thief)
		})
	}
	return others
}

func rotateDist(idx, cursor, n int) int {
	d := idx - cursor
	if d < 0 {
		d += n
	}
	return d
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// TrySteal attempts to steal one item for thief, honouring the victim's top
// item's PreferredWorker before stealing it anyway, per §4.3. Returns the
// stolen item and the victim index, or (nil, -1, false).
func (s *Scheduler) TrySteal(thief int) (StealableItem, int, bool) {
	for _, victim := range s.victimOrder(thief) {
		d := s.deques[victim]
		top, ok := d.PeekTop()
		if !ok {
			continue
		}
		// Honouring affinity here just means: we steal it regardless
		// (the spec: "if the top task names thief as preferred_worker,
		// steal it (affinity honoured); otherwise steal top anyway") —
		// either way the top item is the one taken.
		_ = top
		if item, ok := d.StealTop(); ok {
			return item, victim, true
		}
	}
	return nil, -1, false
}

// ImbalanceFactor computes max(|deque_i|) / max(1, min(|deque_i|)).
func (s *Scheduler) ImbalanceFactor() float64 {
	if len(s.deques) == 0 {
		return 0
	}
	max, min := s.deques[0].Size(), s.deques[0].Size()
	for _, d := range s.deques[1:] {
		sz := d.Size()
		if sz > max {
			max = sz
		}
		if sz < min {
			min = sz
		}
	}
	if min < 1 {
		min = 1
	}
	return float64(max) / float64(min)
}

// TryBatchSteal steals up to half of the busiest victim's deque when the
// imbalance factor exceeds the threshold, accelerating rebalancing (§4.3).
func (s *Scheduler) TryBatchSteal(thief int) []StealableItem {
	if s.ImbalanceFactor() <= s.imbalanceThreshold {
		return nil
	}
	busiest := -1
	busiestSize := 0
	for i, d := range s.deques {
		if i == thief {
			continue
		}
		if sz := d.Size(); sz > busiestSize {
			busiestSize = sz
			busiest = i
		}
	}
	if busiest < 0 {
		return nil
	}
	return s.deques[busiest].StealBatch(busiestSize / 2)
}

// SetImbalanceThreshold overrides DefaultImbalanceThreshold.
func (s *Scheduler) SetImbalanceThreshold(t float64) { s.imbalanceThreshold = t }
