/**
 * Japanese OCR Worker - Main Entry Point
 *
 * Queue-driven worker that extracts Japanese text from images.
 *
 * Architecture:
 * - Redis LIST or Asynq consumer for the job queue
 * - Adaptive extraction pipeline (quality probe, aggressive/gentle
 *   preprocessing, enhanced recall pass, script filter)
 * - Tesseract or remote OCR server engine
 * - Optional translation of the combined text
 * - History in memory, persisted to PostgreSQL when configured
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/app"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/config"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/queue"
)

// queueConsumer is satisfied by both queue backends
type queueConsumer interface {
	Stop() error
}

type asynqConsumer struct{ *queue.Consumer }

func (c asynqConsumer) Stop() error { return c.Consumer.Stop(context.Background()) }

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)
	defer logging.NewLogger("worker").Sync()

	log.Printf("Japanese OCR Worker starting...")
	log.Printf("Configuration loaded: Engine=%s, Queue=%s (%s), PostgreSQL=%t, Workers=%d",
		cfg.OCREngine, cfg.QueueName, cfg.QueueBackend, cfg.DatabaseURL != "", cfg.WorkerConcurrency)

	ctx := context.Background()

	log.Printf("Initializing OCR service...")
	svc, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize OCR service: %v", err)
	}

	if !svc.Pipeline.Ready() {
		log.Fatalf("OCR engine %q is not ready; check the engine installation or OCR_SERVER_URL", cfg.OCREngine)
	}
	log.Printf("OCR service initialized (engine=%s)", svc.Engine.Name())

	log.Printf("Connecting to Redis queue...")
	var consumer queueConsumer
	switch cfg.QueueBackend {
	case config.QueueAsynq:
		c, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:    cfg.RedisURL,
			QueueName:   cfg.QueueName,
			Concurrency: cfg.WorkerConcurrency,
			Processor:   svc.Service,
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		if err := c.Start(ctx); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
		consumer = asynqConsumer{c}
	default:
		c, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:    cfg.RedisURL,
			QueueName:   cfg.QueueName,
			Concurrency: cfg.WorkerConcurrency,
			Processor:   svc.Service,
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		if err := c.Start(); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
		consumer = c
	}

	policy := svc.Pipeline.Policy()
	log.Printf("===========================================")
	log.Printf("Japanese OCR Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s (%s)", cfg.QueueName, cfg.QueueBackend)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Engine: %s", svc.Engine.Name())
	if cfg.OCREngine == config.EngineTesseract {
		log.Printf("Languages: %s", strings.Join(cfg.TesseractLanguages, "+"))
	}
	log.Printf("Min confidence: %.2f", policy.MinConfidence)
	log.Printf("Job timeout: %v", cfg.ProcessingTimeoutDuration())
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	log.Printf("Stopping queue consumer...")
	if err := consumer.Stop(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Closing storage...")
	if err := svc.Close(); err != nil {
		log.Printf("Error closing storage: %v", err)
	}

	log.Printf("Shutdown complete")
}
