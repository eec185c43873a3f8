// testserver starts a clusterwork front end backed by in-process loopback
// workers for manual and E2E testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seantiz/clusterwork/internal/api"
	"github.com/seantiz/clusterwork/internal/cluster"
	"github.com/seantiz/clusterwork/internal/dispatch"
	"github.com/seantiz/clusterwork/internal/model"
	"github.com/seantiz/clusterwork/internal/store"
	"github.com/seantiz/clusterwork/internal/worker"
)

// stubWorker describes one loopback worker node.
type stubWorker struct {
	name        string
	roles       []string
	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64
}

var stubWorkers = []stubWorker{
	{name: "fast", roles: []string{model.RoleCompute}, minDelay: 50 * time.Millisecond, maxDelay: 200 * time.Millisecond},
	{name: "slow", roles: []string{model.RoleCompute}, minDelay: 500 * time.Millisecond, maxDelay: 1500 * time.Millisecond},
	{name: "flaky", roles: []string{model.RoleCompute}, minDelay: 100 * time.Millisecond, maxDelay: 300 * time.Millisecond, failureRate: 0.3},
	// Carries no compute role, so the router never selects it.
	{name: "frontend", roles: []string{"frontend"}},
}

func main() {
	addr := ":8080"
	if v := os.Getenv("CLUSTERWORK_LISTEN_ADDR"); v != "" {
		addr = v
	}
	taskTimeout := 3 * time.Second
	if v := os.Getenv("CLUSTERWORK_TASK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("parse CLUSTERWORK_TASK_TIMEOUT: %v", err)
		}
		taskTimeout = d
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	var members []model.Member
	for _, sw := range stubWorkers {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatalf("listen for worker %s: %v", sw.name, err)
		}
		agent := worker.New(l, &worker.SimulatedExecutor{
			Node:        sw.name,
			MinDelay:    sw.minDelay,
			MaxDelay:    sw.maxDelay,
			FailureRate: sw.failureRate,
		}, taskTimeout, logger.With("worker", sw.name))
		defer agent.Close()
		go func() {
			if err := agent.Serve(); err != nil {
				logger.Error("worker stopped", "worker", sw.name, "error", err)
			}
		}()

		members = append(members, model.Member{
			ID:    sw.name,
			Addr:  fmt.Sprintf("tcp://%s", l.Addr()),
			Roles: sw.roles,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := cluster.NewRouter(cluster.NewStaticDiscoverer(members), cluster.NewClient(), cluster.RouterOptions{}, logger)
	if err := router.Refresh(ctx); err != nil {
		log.Fatalf("load members: %v", err)
	}

	eng := dispatch.NewEngine(dispatch.NewDispatcher(router, taskTimeout, logger), db, logger)
	srv := api.NewServer(addr, db, router, eng, logger)

	logger.Info("testserver: starting", "addr", addr, "workers", len(members), "task_timeout", taskTimeout.String())
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	eng.Wait()
}
