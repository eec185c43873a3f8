package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seantiz/clusterwork/internal/api"
	"github.com/seantiz/clusterwork/internal/cluster"
	"github.com/seantiz/clusterwork/internal/config"
	"github.com/seantiz/clusterwork/internal/dispatch"
	"github.com/seantiz/clusterwork/internal/store"
)

var (
	serveAddr   string
	serveDBPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP front end",
	Long: `Run the HTTP front end. Configuration comes from CLUSTERWORK_* environment
variables; flags override the listen address and database path.

Workers are discovered from Redis when CLUSTERWORK_REDIS_ADDR is set, and
otherwise from the static CLUSTERWORK_WORKERS list
("addr[#role1|role2],...").`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides CLUSTERWORK_LISTEN_ADDR)")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "SQLite database path (overrides CLUSTERWORK_DB_PATH)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveAddr != "" {
		cfg.ListenAddr = serveAddr
	}
	if serveDBPath != "" {
		cfg.DBPath = serveDBPath
	}

	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	logger.Info("clusterwork: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"task_timeout", cfg.TaskTimeout.String(),
		"role", cfg.Role,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	discoverer, closeDiscoverer, err := newDiscoverer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDiscoverer()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := cluster.NewRouter(discoverer, cluster.NewClient(), cluster.RouterOptions{
		Role:            cfg.Role,
		MaxRoutees:      cfg.MaxRoutees,
		RefreshInterval: cfg.RefreshInterval,
	}, logger)
	if err := router.Refresh(ctx); err != nil {
		logger.Warn("initial membership refresh failed", "error", err)
	}
	go router.Run(ctx)

	eng := dispatch.NewEngine(dispatch.NewDispatcher(router, cfg.TaskTimeout, logger), db, logger)
	eng.SetMaxTasks(cfg.MaxTasks)
	srv := api.NewServer(cfg.ListenAddr, db, router, eng, logger)

	err = srv.Run(ctx)
	stop()
	eng.Wait()
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newDiscoverer picks Redis discovery when configured, else the static list.
func newDiscoverer(cfg config.Config, logger *slog.Logger) (cluster.Discoverer, func(), error) {
	if cfg.Redis.Addr != "" {
		client := cluster.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		logger.Info("discovering workers from redis", "redis_addr", cfg.Redis.Addr)
		return cluster.NewRedisDiscoverer(client, logger), func() { client.Close() }, nil
	}

	members, err := cluster.ParseMembers(cfg.Workers, cfg.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("parse worker list: %w", err)
	}
	if len(members) == 0 {
		logger.Warn("no workers configured; every task will fail until members appear")
	}
	return cluster.NewStaticDiscoverer(members), func() {}, nil
}
