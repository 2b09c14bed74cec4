package worker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/customers-api/internal/config"
	"github.com/jmehdipour/customers-api/internal/db"
	"github.com/jmehdipour/customers-api/internal/kafka"
	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmehdipour/customers-api/internal/metrics"
	"github.com/jmehdipour/customers-api/internal/repository"
	"github.com/jmehdipour/customers-api/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var metricsAddr string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Copy customer change events from Kafka into ClickHouse",
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9101", "address for /metrics; empty disables")
}

func runAudit(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	defer func() { _ = logger.Log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) ClickHouse
	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.PoolFromConfig(cfg.ClickHouse))
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	// 3) kafka consumer; offsets are committed by the worker after each flush
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = repository.CustomerEventsTopic
	}
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "customers-audit"
	}
	consumer := kafka.NewConsumer(kafka.Config{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: cfg.Kafka.MinBytes,
		MaxBytes: cfg.Kafka.MaxBytes,

		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewAudit(consumer, repository.NewCHCustomerEventsRepository(chDB))
	if cfg.Audit.BatchSize > 0 {
		w.BatchSize = cfg.Audit.BatchSize
	}
	if cfg.Audit.BatchWait > 0 {
		w.BatchWait = cfg.Audit.BatchWait
	}

	// 4) metrics endpoint
	var metricsSrv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Log.Error("metrics server exited", zap.Error(err))
			}
		}()
	}

	// 5) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("audit worker started",
		zap.String("topic", topic),
		zap.String("group", groupID),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
	)

	err = w.Run(ctx)

	if metricsSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(sctx)
	}
	return err
}
