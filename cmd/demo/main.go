// Command demo wires a Pool around a default in-process Executor: method
// calls run on a goroutine within this process rather than being
// forwarded to a remote worker over internal/channel. Adapted from the
// teacher's cmd/worker/main.go startup shape.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopool"
	"gopool/internal/config"
	"gopool/internal/observability"

	"go.uber.org/zap"
)

// registeredMethods is the fixed method table a localExecutor dispatches
// into — the concrete counterpart to §3's abstract "method" string.
var registeredMethods = map[string]func(ctx context.Context, params []any) (any, error){
	"echo": func(ctx context.Context, params []any) (any, error) {
		return params, nil
	},
	"sleep": func(ctx context.Context, params []any) (any, error) {
		d := 10 * time.Millisecond
		if len(params) > 0 {
			if ms, ok := params[0].(int); ok {
				d = time.Duration(ms) * time.Millisecond
			}
		}
		select {
		case <-time.After(d):
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	},
	"flaky": func(ctx context.Context, params []any) (any, error) {
		if rand.Intn(3) == 0 {
			return nil, fmt.Errorf("flaky: transient failure")
		}
		return "ok", nil
	},
	"__probe__":     func(ctx context.Context, params []any) (any, error) { return "pong", nil },
	"__heartbeat__": func(ctx context.Context, params []any) (any, error) { return "pong", nil },
}

// localExecutor runs registered methods directly, in-process. A
// distributed Executor would instead marshal (method, params) through
// internal/wire and forward the frame over an internal/channel.Channel.
type localExecutor struct{}

func (localExecutor) Invoke(ctx context.Context, method string, params []any) (any, error) {
	fn, ok := registeredMethods[method]
	if !ok {
		return nil, gopool.NewError(gopool.KindMethodNotFound, fmt.Sprintf("unknown method %q", method))
	}
	return fn(ctx, params)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	logger.Info("starting gopool demo")

	opts := gopool.DefaultOptions()
	opts.MaxWorkers = 8
	opts.EagerInit = true
	opts.Circuit.Enabled = true
	opts.Retry.MaxRetries = 2
	opts.Retry.RetryDelay = 20 * time.Millisecond
	opts.Retry.BackoffMultiplier = 2

	pool, err := gopool.New(opts, localExecutor{}, logger)
	if err != nil {
		log.Fatalf("failed to construct pool: %v", err)
	}

	pool.On(gopool.EventTaskError, func(ev gopool.Event) {
		logger.Warn("task failed", zap.Int64("task_id", ev.TaskID), zap.Error(ev.Err))
	})

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		method := "echo"
		switch i % 3 {
		case 1:
			method = "sleep"
		case 2:
			method = "flaky"
		}
		result, err := pool.Exec(ctx, method, []any{i}, gopool.ExecOptions{TimeoutMs: 5000})
		if err != nil {
			logger.Warn("exec rejected", zap.Error(err))
			continue
		}
		go func(i int, r *gopool.PendingResult) {
			res := r.Wait()
			if res.Err != nil {
				logger.Info("task settled with error", zap.Int("i", i), zap.Error(res.Err))
				return
			}
			logger.Info("task settled", zap.Int("i", i), zap.Any("result", res.Value))
		}(i, result)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case <-time.After(5 * time.Second):
	}

	logger.Info("shutting down", zap.Any("stats", pool.Stats()))
	if err := pool.Terminate(false, 10*time.Second); err != nil {
		logger.Error("terminate failed", zap.Error(err))
	}
}
