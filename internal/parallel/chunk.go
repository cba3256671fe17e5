// Package parallel implements the ParallelOps of spec §4.8: collection
// operations (map/reduce/filter/forEach/find/...) expressed as
// chunk-and-merge fan-outs over the Batch Executor. Grounded on the
// teacher's internal/worker bounded-concurrency dispatch, generalized
// from SMS-message processing to arbitrary collection transforms.
package parallel

import (
	"context"
	"math"

	"gopool/internal/batch"
)

// Options configures the chunking and concurrency of one collection op.
type Options struct {
	ChunkSize   int
	Concurrency int
}

// chunk is one contiguous slice of the input plus its absolute start index.
type chunk struct {
	items []any
	start int
}

func mapChunkSize(n int) int {
	if n <= 0 {
		return 1
	}
	return 1
}

func reduceChunkSize(n int) int {
	if n <= 0 {
		return 1
	}
	size := int(math.Ceil(float64(n) / 8))
	if size < 1 {
		size = 1
	}
	return size
}

func splitChunks(items []any, chunkSize int) []chunk {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	var chunks []chunk
	for i := 0; i < len(items); i += chunkSize {
		end := i + chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, chunk{items: items[i:end], start: i})
	}
	return chunks
}

func chunksAsItems(chunks []chunk) []any {
	out := make([]any, len(chunks))
	for i, c := range chunks {
		out[i] = c
	}
	return out
}

// runChunks is the shared fan-out: each chunk is handed to exec and the
// per-chunk results are collected in chunk order (index-stable, since the
// Batch Executor preserves slot index regardless of completion order).
func runChunks(ctx context.Context, chunks []chunk, concurrency int, failFast bool, exec func(ctx context.Context, c chunk) (any, error)) ([]any, error) {
	items := chunksAsItems(chunks)
	h := batch.Run(ctx, items, func(ctx context.Context, index int, item any) (any, error) {
		return exec(ctx, item.(chunk))
	}, batch.Options{Concurrency: concurrency, FailFast: failFast})

	res := h.Wait()
	out := make([]any, len(res.Slots))
	for i, s := range res.Slots {
		if !s.Success {
			if failFast && s.Err != nil {
				return nil, s.Err
			}
			continue
		}
		out[i] = s.Value
	}
	if failFast {
		for _, s := range res.Slots {
			if !s.Success && s.Err != nil {
				return out, s.Err
			}
		}
	}
	return out, nil
}

func resolveConcurrency(opts Options, nChunks int) int {
	if opts.Concurrency > 0 {
		return opts.Concurrency
	}
	return nChunks
}
