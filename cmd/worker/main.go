package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/internal/bootstrap"
	"github.com/OFFIS-RIT/kiwi-insure/internal/config"
	"github.com/OFFIS-RIT/kiwi-insure/internal/queue"
	"github.com/OFFIS-RIT/kiwi-insure/internal/storage"
	"github.com/OFFIS-RIT/kiwi-insure/internal/timing"
	"github.com/OFFIS-RIT/kiwi-insure/internal/util"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvString("LOG_FORMAT", "text") == "json",
	})
	logger.Init(consoleLogger)

	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	// Init s3 client
	s3Client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}
	bucket := storage.NewBucket(s3Client, cfg.S3.Bucket)

	aiClient, err := bootstrap.NewAIClient(cfg.AI)
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	graphStore, err := bootstrap.OpenStore(ctx, cfg.GraphStore, cfg, aiClient)
	if err != nil {
		logger.Fatal("Unable to open graph store", "store", cfg.GraphStore, "err", err)
	}
	defer graphStore.Close(context.Background())

	graphClient, err := bootstrap.NewGraphClient(cfg, aiClient, graphStore)
	if err != nil {
		logger.Fatal("Could not create graph client", "err", err)
	}

	// Init rabbitmq
	conn, err := queue.Init(ctx, cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// prefetch=1 keeps one document in flight per worker
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.IngestQueue,
		queue.IngestQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.IngestQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.IngestQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.IngestQueue)
					stop()
					return
				}
				startTime := time.Now()
				log := logger.With("queue", queue.IngestQueue, "delivery", msg.DeliveryTag)
				log.Info("Received message", "retries", queue.Retries(msg.Headers))

				res, procErr := queue.ProcessIngestMessage(ctx, bucket, graphClient, msg.Body)
				if procErr != nil {
					log.Error("Error processing message", "err", procErr)
					queue.HandleProcessingError(ctx, ch, msg, queue.IngestQueue, procErr)
				} else {
					if err := msg.Ack(false); err != nil {
						log.Error("Failed to ack message", "err", err)
					}
					log.Info("Message processed successfully",
						"document", res.DocumentID,
						"chunks", res.Chunks,
						"entities", len(res.Entities),
						"skipped_units", len(res.Skipped),
					)
				}

				log.Info("AI Metrics", timing.MetricsKeyvals(aiClient.GetMetrics())...)
				log.Info("Processing time", "duration", timing.Clock(time.Since(startTime)))
				logger.Info("Waiting for next message")
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
