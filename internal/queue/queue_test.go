package queue

import (
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := NewFIFO()
	q.Push(1)
	q.Push(2)
	q.Push(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := q.Pop()
		if !ok || got.(int) != want {
			t.Fatalf("expected %d, got %v (ok=%v)", want, got, ok)
		}
	}
	if q.Size() != 0 {
		t.Fatalf("expected empty queue, got size %d", q.Size())
	}
}

func TestFIFOGrowsPastInitialCapacity(t *testing.T) {
	q := NewFIFO()
	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	if q.Size() != 100 {
		t.Fatalf("expected size 100, got %d", q.Size())
	}
	for i := 0; i < 100; i++ {
		got, ok := q.Pop()
		if !ok || got.(int) != i {
			t.Fatalf("expected %d at position %d, got %v", i, i, got)
		}
	}
}

func TestLIFOOrder(t *testing.T) {
	q := NewLIFO()
	q.Push(1)
	q.Push(2)
	q.Push(3)

	for _, want := range []int{3, 2, 1} {
		got, ok := q.Pop()
		if !ok || got.(int) != want {
			t.Fatalf("expected %d, got %v", want, got)
		}
	}
}

func TestPriorityOrdersByKey(t *testing.T) {
	type item struct {
		name     string
		priority int
	}
	q := NewPriority(func(v any) int { return v.(item).priority })

	q.Push(item{"low", 1})
	q.Push(item{"high", 10})
	q.Push(item{"mid", 5})

	first, _ := q.Pop()
	if first.(item).name != "high" {
		t.Fatalf("expected high priority first, got %v", first)
	}
	second, _ := q.Pop()
	if second.(item).name != "mid" {
		t.Fatalf("expected mid priority second, got %v", second)
	}
}

func TestTimeWindowEvictsOld(t *testing.T) {
	w := NewTimeWindow(time.Minute, 10)
	now := time.Now()
	w.AddAt(now.Add(-2*time.Minute), 1)
	w.AddAt(now, 2)

	snap := w.SnapshotAt(now)
	if len(snap) != 1 || snap[0] != 2 {
		t.Fatalf("expected only the in-window sample, got %v", snap)
	}
}
