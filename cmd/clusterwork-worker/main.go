// Command clusterwork-worker is a worker node. It listens on TCP or vsock for
// task records from the front end, runs each one and replies with a result
// record. When CLUSTERWORK_REDIS_ADDR is set it registers itself so front
// ends can discover it.
//
// Build with: CGO_ENABLED=0 go build -o clusterwork-worker ./cmd/clusterwork-worker
package main

import (
	"cmp"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seantiz/clusterwork/internal/cluster"
	"github.com/seantiz/clusterwork/internal/config"
	"github.com/seantiz/clusterwork/internal/model"
	"github.com/seantiz/clusterwork/internal/worker"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	hostname, _ := os.Hostname()
	self := model.Member{
		ID:    cmp.Or(cfg.ID, model.NewID()),
		Addr:  cfg.AdvertiseAddr,
		Roles: cfg.Roles,
	}
	node := cmp.Or(hostname, self.ID)

	l, err := cluster.Listen(cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	logger.Info("clusterwork-worker: listening",
		"member", self.ID,
		"listen_addr", cfg.ListenAddr,
		"advertise_addr", self.Addr,
		"roles", self.Roles,
	)

	exec := &worker.SimulatedExecutor{
		Node:        node,
		MinDelay:    cfg.MinDelay,
		MaxDelay:    cfg.MaxDelay,
		FailureRate: cfg.FailureRate,
	}
	agent := worker.New(l, exec, cfg.TaskTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Redis.Addr != "" {
		client := cluster.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()

		reg := cluster.NewRedisRegistrar(client, cfg.RegistrationTTL, logger)
		if err := reg.Register(ctx, self); err != nil {
			log.Fatalf("register: %v", err)
		}
		go reg.Heartbeat(ctx, self, cfg.RegistrationTTL/3)
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := reg.Deregister(dctx, self.ID); err != nil {
				logger.Warn("deregister failed", "member", self.ID, "error", err)
			}
		}()
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		logger.Info("clusterwork-worker: shutting down")
		agent.Close()
	}()

	if err := agent.Serve(); err != nil {
		log.Fatalf("serve: %v", err)
	}
	<-drained
}
