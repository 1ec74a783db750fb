package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FrameNetBrasil/daisy/internal/migrations"
	"github.com/FrameNetBrasil/daisy/internal/queue"
	"github.com/FrameNetBrasil/daisy/internal/storage"
	"github.com/FrameNetBrasil/daisy/internal/util"
	"github.com/FrameNetBrasil/daisy/pkg/leaselock"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/logger/console"
	"github.com/FrameNetBrasil/daisy/pkg/metrics"
	"github.com/FrameNetBrasil/daisy/pkg/network"
	pgstore "github.com/FrameNetBrasil/daisy/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	databaseURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("RUN_MIGRATIONS", false) {
		if err := migrations.Run(databaseURL, util.GetEnvString("MIGRATIONS_DIR", migrations.DefaultDir)); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}
	}

	pgConn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	// Snapshots are optional
	var snapshots network.SnapshotWriter
	if bucket := util.GetEnv("AWS_BUCKET"); bucket != "" {
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		snapshots = storage.NewSnapshotStore(client, bucket)
	}

	collector := metrics.New()
	networkStore := pgstore.NewNetworkDBStoreWithConnection(pgConn)
	materializer, err := network.NewMaterializer(network.NewMaterializerParams{
		Source:    networkStore,
		Writer:    networkStore,
		Locker:    leaselock.New(pgConn),
		Snapshots: snapshots,
		Metrics:   collector,
		LockTTL:   util.GetEnvSeconds("NETWORK_LOCK_TTL_SECONDS", 10*time.Minute),
	})
	if err != nil {
		logger.Fatal("Failed to create network materializer", "err", err)
	}

	if port := util.GetEnv("METRICS_PORT"); port != "" {
		go func() {
			logger.Info("Serving worker metrics", "port", port)
			if err := http.ListenAndServe(":"+port, collector.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", "err", err)
			}
		}()
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.NetworkQueue}
	if err := queue.SetupQueues(ch, queues); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	// prefetch=1: one rebuild at a time per worker
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.NetworkQueue,
		fmt.Sprintf("%s_consumer", queue.NetworkQueue),
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.NetworkQueue, "err", err)
	}

	logger.Info("Listening for messages")

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.NetworkQueue)
					stop()
					return
				}
				handle(ctx, materializer, ch, msg)
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func handle(ctx context.Context, rebuilder queue.Rebuilder, ch *amqp.Channel, msg amqp.Delivery) {
	startTime := time.Now()
	logger.Info("[Worker] Received message", "queue", queue.NetworkQueue)

	if err := queue.ProcessNetworkMessage(ctx, rebuilder, msg.Body); err != nil {
		logger.Error("[Worker] Error processing message", "queue", queue.NetworkQueue, "err", err)
		queue.HandleProcessingError(ctx, ch, msg, queue.NetworkQueue, err)
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("[Worker] Failed to ack message", "err", err)
	}

	processingDuration := time.Since(startTime)
	hours := int(processingDuration.Hours())
	minutes := int(processingDuration.Minutes()) % 60
	seconds := int(processingDuration.Seconds()) % 60
	logger.Info(
		"[Worker] Message processed successfully",
		"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
	)
}
