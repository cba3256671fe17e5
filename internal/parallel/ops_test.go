package parallel

import (
	"context"
	"testing"
)

func nums(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestMapPreservesOrder(t *testing.T) {
	got, err := Map(context.Background(), nums(10), func(item any, index int) (any, error) {
		return item.(int) * item.(int), nil
	}, Options{Concurrency: 3})
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	for i, v := range got {
		if v.(int) != i*i {
			t.Fatalf("index %d: got %v want %d", i, v, i*i)
		}
	}
}

func TestReduceSumsToInitial(t *testing.T) {
	sum, err := Reduce(context.Background(), nums(20),
		func(acc, item any, index int) (any, error) { return acc.(int) + item.(int), nil },
		func(acc, partial any) (any, error) { return acc.(int) + partial.(int), nil },
		0, Options{})
	if err != nil {
		t.Fatalf("reduce failed: %v", err)
	}
	want := 0
	for i := 0; i < 20; i++ {
		want += i
	}
	if sum.(int) != want {
		t.Fatalf("got %v want %d", sum, want)
	}
}

func TestReduceEmptyReturnsInitial(t *testing.T) {
	got, err := Reduce(context.Background(), nil,
		func(acc, item any, index int) (any, error) { return acc, nil },
		func(acc, partial any) (any, error) { return acc, nil },
		42, Options{})
	if err != nil || got.(int) != 42 {
		t.Fatalf("expected initial value 42 for empty input, got %v err=%v", got, err)
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	got, err := Filter(context.Background(), nums(10), func(item any, index int) (bool, error) {
		return item.(int)%2 == 0, nil
	}, Options{Concurrency: 4})
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	want := []int{0, 2, 4, 6, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i, v := range got {
		if v.(int) != want[i] {
			t.Fatalf("index %d: got %v want %d", i, v, want[i])
		}
	}
}

func TestFindReturnsLowestIndexMatch(t *testing.T) {
	val, ok, err := Find(context.Background(), nums(10), func(item any, index int) (bool, error) {
		return item.(int) > 5, nil
	}, Options{})
	if err != nil || !ok || val.(int) != 6 {
		t.Fatalf("got %v ok=%v err=%v", val, ok, err)
	}
}

func TestFindIndexEmptyReturnsMinusOne(t *testing.T) {
	idx, err := FindIndex(context.Background(), nums(5), func(item any, index int) (bool, error) {
		return item.(int) > 100, nil
	}, Options{})
	if err != nil || idx != -1 {
		t.Fatalf("got %d err=%v", idx, err)
	}
}

func TestEveryAndSomeEmptyInput(t *testing.T) {
	every, err := Every(context.Background(), nil, func(item any, index int) (bool, error) { return false, nil }, Options{})
	if err != nil || !every {
		t.Fatalf("expected every([]) == true, got %v err=%v", every, err)
	}
	some, err := Some(context.Background(), nil, func(item any, index int) (bool, error) { return true, nil }, Options{})
	if err != nil || some {
		t.Fatalf("expected some([]) == false, got %v err=%v", some, err)
	}
}

func TestPartition(t *testing.T) {
	yes, no, err := Partition(context.Background(), nums(6), func(item any, index int) (bool, error) {
		return item.(int)%2 == 0, nil
	}, Options{})
	if err != nil {
		t.Fatalf("partition failed: %v", err)
	}
	if len(yes) != 3 || len(no) != 3 {
		t.Fatalf("got yes=%v no=%v", yes, no)
	}
	if yes[0].(int) != 0 || no[0].(int) != 1 {
		t.Fatalf("expected index-ordered partitions, got yes=%v no=%v", yes, no)
	}
}

func TestGroupByPreservesMemberOrder(t *testing.T) {
	groups, err := GroupBy(context.Background(), nums(6), func(item any, index int) (any, error) {
		return item.(int) % 2, nil
	}, Options{})
	if err != nil {
		t.Fatalf("groupBy failed: %v", err)
	}
	evens := groups[0]
	if len(evens) != 3 || evens[0].(int) != 0 || evens[1].(int) != 2 {
		t.Fatalf("unexpected even group: %v", evens)
	}
}

func TestUniqueFirstOccurrenceOrder(t *testing.T) {
	items := []any{1, 2, 1, 3, 2, 4}
	got, err := Unique(context.Background(), items, nil, Options{})
	if err != nil {
		t.Fatalf("unique failed: %v", err)
	}
	want := []any{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestFlatMapConcatsInChunkOrder(t *testing.T) {
	got, err := FlatMap(context.Background(), nums(3), func(item any, index int) ([]any, error) {
		return []any{item, item}, nil
	}, Options{})
	if err != nil {
		t.Fatalf("flatMap failed: %v", err)
	}
	want := []any{0, 0, 1, 1, 2, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestIncludesAndIndexOf(t *testing.T) {
	ok, err := Includes(context.Background(), nums(5), 3, Options{})
	if err != nil || !ok {
		t.Fatalf("expected includes(3) true, got %v err=%v", ok, err)
	}
	idx, err := IndexOf(context.Background(), nums(5), 3, Options{})
	if err != nil || idx != 3 {
		t.Fatalf("expected indexOf(3) == 3, got %d err=%v", idx, err)
	}
}
