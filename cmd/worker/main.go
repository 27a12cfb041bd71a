package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/txgnn-explorer/backend/internal/config"
	"github.com/txgnn-explorer/backend/internal/db"
	"github.com/txgnn-explorer/backend/internal/queue"
	"github.com/txgnn-explorer/backend/internal/storage"
	"github.com/txgnn-explorer/backend/internal/util"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/logger/console"
	"github.com/txgnn-explorer/backend/pkg/pathgen"

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

	cfg := config.Load()

	// Init s3 client
	client := storage.NewS3Client(ctx)

	// Load the graph without CYP genes
	dataLoader, err := cfg.NewDataLoader(ctx)
	if err != nil {
		logger.Fatal("Failed to create data loader", "err", err)
	}
	engine, err := graph.LoadEngineWithOptions(ctx, cfg.GraphFiles(dataLoader), cfg.Graph, graph.LoadOptions{Exclude: pathgen.ExcludeCYP})
	if err != nil {
		logger.Fatal("Failed to load graph", "err", err)
	}

	env := queue.PathJobEnv{
		Engine:  engine,
		Results: storage.NewResultStore(client, cfg.ResultsDir),
		Workers: util.GetEnvInt("PATHGEN_WORKERS", 4),
	}

	// Init pgx client
	if err := db.Migrate(util.GetEnvString("MIGRATIONS_DIR", "internal/db/migrations"), cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	if err := queue.RecoverStalePathJobs(ctx, ch, pgConn); err != nil {
		logger.Error("Failed to recover stale path jobs", "err", err)
	}

	logger.Info("Listening for messages")

	// A single consumer channel with prefetch=1 delivers one message at a
	// time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.PathsQueue:
					processingErr = queue.ProcessPathJob(ctx, env, pgConn, string(qm.msg.Body))
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					handleProcessingError(ctx, consumerCh, pgConn, qm.msg, qm.queueName)
				} else {
					err := qm.msg.Ack(false)
					if err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				processingDuration := time.Since(startTime)
				hours := int(processingDuration.Hours())
				minutes := int(processingDuration.Minutes()) % 60
				seconds := int(processingDuration.Seconds()) % 60
				logger.Info(
					"Processing time",
					"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
				)
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func handleProcessingError(ctx context.Context, ch *amqp.Channel, conn *pgxpool.Pool, msg amqp.Delivery, queueName string) {
	target, headers := queue.RetryTarget(queueName, msg.Headers)
	logger.Info("Routing failed message", "queue", target, "retries", queue.Retries(headers))

	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         msg.Body,
			Headers:      headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish failed message", "queue", target, "err", pubErr)
		msg.Nack(false, true)
		return
	}

	if target == queueName+"_retry" {
		queue.ResetJobStatusForRetry(ctx, conn, queueName, msg.Body)
	}
	msg.Ack(false)
}
