package parallel

import (
	"container/heap"
	"context"
	"sort"
)

// MapFn transforms one item at its original index.
type MapFn func(item any, index int) (any, error)

// Map preserves original order (§4.8).
func Map(ctx context.Context, items []any, fn MapFn, opts Options) ([]any, error) {
	chunks := splitChunks(items, orDefault(opts.ChunkSize, mapChunkSize(len(items))))
	results, err := runChunks(ctx, chunks, resolveConcurrency(opts, len(chunks)), true,
		func(ctx context.Context, c chunk) (any, error) {
			out := make([]any, len(c.items))
			for i, it := range c.items {
				v, err := fn(it, c.start+i)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	flat := make([]any, 0, len(items))
	for _, r := range results {
		if r == nil {
			continue
		}
		flat = append(flat, r.([]any)...)
	}
	return flat, nil
}

// ReducerFn folds one item into an accumulator.
type ReducerFn func(acc, item any, index int) (any, error)

// CombinerFn folds a chunk partial into the running accumulator.
type CombinerFn func(acc, partial any) (any, error)

// Reduce folds within each chunk using fn (seeded from chunk[0]), then
// folds the non-nil partials into initial using combine (§4.8). Empty
// input returns initial unchanged.
func Reduce(ctx context.Context, items []any, fn ReducerFn, combine CombinerFn, initial any, opts Options) (any, error) {
	if len(items) == 0 {
		return initial, nil
	}
	chunkSize := orDefault(opts.ChunkSize, reduceChunkSize(len(items)))
	chunks := splitChunks(items, chunkSize)

	results, err := runChunks(ctx, chunks, resolveConcurrency(opts, len(chunks)), false,
		func(ctx context.Context, c chunk) (any, error) {
			if len(c.items) == 0 {
				return nil, nil
			}
			acc := c.items[0]
			for i := 1; i < len(c.items); i++ {
				v, err := fn(acc, c.items[i], c.start+i)
				if err != nil {
					return nil, err
				}
				acc = v
			}
			return acc, nil
		})
	if err != nil {
		return nil, err
	}

	acc := initial
	for _, r := range results {
		if r == nil {
			continue
		}
		v, err := combine(acc, r)
		if err != nil {
			return nil, err
		}
		acc = v
	}
	return acc, nil
}

// ReduceRight mirrors Reduce over the reversed input.
func ReduceRight(ctx context.Context, items []any, fn ReducerFn, combine CombinerFn, initial any, opts Options) (any, error) {
	rev := make([]any, len(items))
	n := len(items)
	for i, it := range items {
		rev[n-1-i] = it
	}
	return Reduce(ctx, rev, fn, combine, initial, opts)
}

// PredicateFn reports whether an item matches.
type PredicateFn func(item any, index int) (bool, error)

type indexedItem struct {
	item  any
	index int
}

// Filter returns surviving items in original index order (§4.8).
func Filter(ctx context.Context, items []any, pred PredicateFn, opts Options) ([]any, error) {
	pairs, err := filterPairs(ctx, items, pred, opts)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(pairs))
	for i, p := range pairs {
		out[i] = p.item
	}
	return out, nil
}

// Partition splits items into (matching, non-matching), both index-ordered.
func Partition(ctx context.Context, items []any, pred PredicateFn, opts Options) ([]any, []any, error) {
	chunks := splitChunks(items, orDefault(opts.ChunkSize, mapChunkSize(len(items))))
	results, err := runChunks(ctx, chunks, resolveConcurrency(opts, len(chunks)), true,
		func(ctx context.Context, c chunk) (any, error) {
			var yes, no []indexedItem
			for i, it := range c.items {
				ok, err := pred(it, c.start+i)
				if err != nil {
					return nil, err
				}
				if ok {
					yes = append(yes, indexedItem{it, c.start + i})
				} else {
					no = append(no, indexedItem{it, c.start + i})
				}
			}
			return [2][]indexedItem{yes, no}, nil
		})
	if err != nil {
		return nil, nil, err
	}

	yesStreams := make([][]indexedItem, len(results))
	noStreams := make([][]indexedItem, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		pair := r.([2][]indexedItem)
		yesStreams[i] = pair[0]
		noStreams[i] = pair[1]
	}
	return toAny(kWayMerge(yesStreams)), toAny(kWayMerge(noStreams)), nil
}

func filterPairs(ctx context.Context, items []any, pred PredicateFn, opts Options) ([]indexedItem, error) {
	chunks := splitChunks(items, orDefault(opts.ChunkSize, mapChunkSize(len(items))))
	results, err := runChunks(ctx, chunks, resolveConcurrency(opts, len(chunks)), true,
		func(ctx context.Context, c chunk) (any, error) {
			var out []indexedItem
			for i, it := range c.items {
				ok, err := pred(it, c.start+i)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, indexedItem{it, c.start + i})
				}
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	streams := make([][]indexedItem, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		streams[i] = r.([]indexedItem)
	}
	return kWayMerge(streams), nil
}

// ForEach runs fn for its side effects; order of side effects across
// chunks is not guaranteed, only that every item runs exactly once.
func ForEach(ctx context.Context, items []any, fn func(item any, index int) error, opts Options) error {
	chunks := splitChunks(items, orDefault(opts.ChunkSize, mapChunkSize(len(items))))
	_, err := runChunks(ctx, chunks, resolveConcurrency(opts, len(chunks)), true,
		func(ctx context.Context, c chunk) (any, error) {
			for i, it := range c.items {
				if err := fn(it, c.start+i); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
	return err
}

// Count returns the number of items matching pred.
func Count(ctx context.Context, items []any, pred PredicateFn, opts Options) (int, error) {
	pairs, err := filterPairs(ctx, items, pred, opts)
	if err != nil {
		return 0, err
	}
	return len(pairs), nil
}

// Some reports whether any item matches pred (empty input → false). Every
// chunk is evaluated; there is no early exit on the first match.
func Some(ctx context.Context, items []any, pred PredicateFn, opts Options) (bool, error) {
	pairs, err := filterPairs(ctx, items, pred, opts)
	if err != nil {
		return false, err
	}
	return len(pairs) > 0, nil
}

// Every reports whether all items match pred (empty input → true). Every
// chunk is evaluated; there is no early exit on the first miss.
func Every(ctx context.Context, items []any, pred PredicateFn, opts Options) (bool, error) {
	count, err := Count(ctx, items, pred, opts)
	if err != nil {
		return false, err
	}
	return count == len(items), nil
}

// Find returns the lowest-index matching item, or (nil, false).
func Find(ctx context.Context, items []any, pred PredicateFn, opts Options) (any, bool, error) {
	pairs, err := filterPairs(ctx, items, pred, opts)
	if err != nil {
		return nil, false, err
	}
	if len(pairs) == 0 {
		return nil, false, nil
	}
	return pairs[0].item, true, nil
}

// FindIndex returns the lowest original index matching pred, or -1.
func FindIndex(ctx context.Context, items []any, pred PredicateFn, opts Options) (int, error) {
	pairs, err := filterPairs(ctx, items, pred, opts)
	if err != nil {
		return -1, err
	}
	if len(pairs) == 0 {
		return -1, nil
	}
	return pairs[0].index, nil
}

// Includes reports whether any item equals target under Go equality.
func Includes(ctx context.Context, items []any, target any, opts Options) (bool, error) {
	return Some(ctx, items, func(item any, index int) (bool, error) {
		return item == target, nil
	}, opts)
}

// IndexOf returns the lowest index whose item equals target, or -1.
func IndexOf(ctx context.Context, items []any, target any, opts Options) (int, error) {
	return FindIndex(ctx, items, func(item any, index int) (bool, error) {
		return item == target, nil
	}, opts)
}

// KeyFn derives a grouping or uniqueness key for an item.
type KeyFn func(item any, index int) (any, error)

// GroupBy returns original-index-ordered members per key: the per-chunk
// (key, item) pairs are bucketed by key and each bucket is then sorted by
// original index (§4.8).
func GroupBy(ctx context.Context, items []any, keyFn KeyFn, opts Options) (map[any][]any, error) {
	type kv struct {
		key  any
		item indexedItem
	}
	chunks := splitChunks(items, orDefault(opts.ChunkSize, mapChunkSize(len(items))))
	results, err := runChunks(ctx, chunks, resolveConcurrency(opts, len(chunks)), true,
		func(ctx context.Context, c chunk) (any, error) {
			out := make([]kv, len(c.items))
			for i, it := range c.items {
				k, err := keyFn(it, c.start+i)
				if err != nil {
					return nil, err
				}
				out[i] = kv{k, indexedItem{it, c.start + i}}
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	groups := make(map[any][]indexedItem)
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, e := range r.([]kv) {
			groups[e.key] = append(groups[e.key], e.item)
		}
	}
	out := make(map[any][]any, len(groups))
	for k, v := range groups {
		sortByIndex(v)
		out[k] = toAny(v)
	}
	return out, nil
}

// Unique returns the first-occurrence-order deduplicated items, keyed by
// keyFn (identity equality when keyFn is nil).
func Unique(ctx context.Context, items []any, keyFn KeyFn, opts Options) ([]any, error) {
	if keyFn == nil {
		keyFn = func(item any, index int) (any, error) { return item, nil }
	}
	chunks := splitChunks(items, orDefault(opts.ChunkSize, mapChunkSize(len(items))))
	results, err := runChunks(ctx, chunks, resolveConcurrency(opts, len(chunks)), true,
		func(ctx context.Context, c chunk) (any, error) {
			out := make([]struct {
				key  any
				item indexedItem
			}, len(c.items))
			for i, it := range c.items {
				k, err := keyFn(it, c.start+i)
				if err != nil {
					return nil, err
				}
				out[i] = struct {
					key  any
					item indexedItem
				}{k, indexedItem{it, c.start + i}}
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	var all []struct {
		key  any
		item indexedItem
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		all = append(all, r.([]struct {
			key  any
			item indexedItem
		})...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].item.index < all[j].item.index })

	seen := make(map[any]struct{}, len(all))
	out := make([]any, 0, len(all))
	for _, a := range all {
		if _, ok := seen[a.key]; ok {
			continue
		}
		seen[a.key] = struct{}{}
		out = append(out, a.item.item)
	}
	return out, nil
}

// FlatMap returns per-chunk arrays merged in chunk order (§4.8).
func FlatMap(ctx context.Context, items []any, fn func(item any, index int) ([]any, error), opts Options) ([]any, error) {
	chunks := splitChunks(items, orDefault(opts.ChunkSize, mapChunkSize(len(items))))
	results, err := runChunks(ctx, chunks, resolveConcurrency(opts, len(chunks)), true,
		func(ctx context.Context, c chunk) (any, error) {
			var out []any
			for i, it := range c.items {
				vs, err := fn(it, c.start+i)
				if err != nil {
					return nil, err
				}
				out = append(out, vs...)
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}
	var flat []any
	for _, r := range results {
		if r == nil {
			continue
		}
		flat = append(flat, r.([]any)...)
	}
	return flat, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func sortByIndex(items []indexedItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].index < items[j].index })
}

func toAny(items []indexedItem) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.item
	}
	return out
}

// kWayMerge merges per-chunk streams that are each already index-ordered
// (every chunk result in this package is produced in ascending original
// index) into one globally index-ordered stream, via a min-heap keyed on
// index — the k-way merge named in §4.8 rather than a full re-sort.
func kWayMerge(streams [][]indexedItem) []indexedItem {
	h := &indexedHeap{}
	heap.Init(h)
	for i, s := range streams {
		if len(s) > 0 {
			heap.Push(h, heapEntry{stream: i, pos: 0, item: s[0]})
		}
	}
	out := make([]indexedItem, 0)
	for h.Len() > 0 {
		top := heap.Pop(h).(heapEntry)
		out = append(out, top.item)
		next := top.pos + 1
		if next < len(streams[top.stream]) {
			heap.Push(h, heapEntry{stream: top.stream, pos: next, item: streams[top.stream][next]})
		}
	}
	return out
}

type heapEntry struct {
	stream int
	pos    int
	item   indexedItem
}

type indexedHeap []heapEntry

func (h indexedHeap) Len() int           { return len(h) }
func (h indexedHeap) Less(i, j int) bool { return h[i].item.index < h[j].item.index }
func (h indexedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexedHeap) Push(x any)        { *h = append(*h, x.(heapEntry)) }
func (h *indexedHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
