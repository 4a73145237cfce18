package asynq

import (
	"context"
	"fmt"

	hibiken "github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Config connects the consumer and publisher to the queue's redis.
type Config struct {
	RedisAddr   string
	Password    string
	Concurrency int
	Queue       string
}

func (c Config) redisOpt() hibiken.RedisClientOpt {
	return hibiken.RedisClientOpt{Addr: c.RedisAddr, Password: c.Password}
}

func (c Config) queue() string {
	if c.Queue == "" {
		return "default"
	}
	return c.Queue
}

// Consumer runs an asynq server with the product-changed handler.
type Consumer struct {
	srv    *hibiken.Server
	mux    *hibiken.ServeMux
	logger *zap.Logger
}

// NewConsumer creates a consumer for cfg's queue.
func NewConsumer(cfg Config, h *Handler, logger *zap.Logger) *Consumer {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := hibiken.NewServer(cfg.redisOpt(), hibiken.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{cfg.queue(): 1},
		Logger:      logger.Named("asynq").Sugar(),
		ErrorHandler: hibiken.ErrorHandlerFunc(func(_ context.Context, task *hibiken.Task, err error) {
			logger.Error("Task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})

	mux := hibiken.NewServeMux()
	mux.HandleFunc(TypeProductChanged, h.ProcessTask)

	return &Consumer{srv: srv, mux: mux, logger: logger}
}

// Start begins processing in background goroutines.
func (c *Consumer) Start() error {
	if err := c.srv.Start(c.mux); err != nil {
		return fmt.Errorf("start event consumer: %w", err)
	}
	c.logger.Info("Event consumer started", zap.String("task", TypeProductChanged))
	return nil
}

// Shutdown waits for in-flight tasks and stops the server.
func (c *Consumer) Shutdown() {
	c.srv.Shutdown()
}

// Publisher enqueues product-changed events.
type Publisher struct {
	client *hibiken.Client
	queue  string
}

// NewPublisher creates a publisher for cfg's queue.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{client: hibiken.NewClient(cfg.redisOpt()), queue: cfg.queue()}
}

// Publish enqueues one product-changed event and returns the task id.
func (p *Publisher) Publish(ctx context.Context, productID string) (string, error) {
	task, err := NewProductChangedTask(productID)
	if err != nil {
		return "", err
	}
	info, err := p.client.EnqueueContext(ctx, task, hibiken.Queue(p.queue))
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeProductChanged, err)
	}
	return info.ID, nil
}

// Close releases the publisher's connection.
func (p *Publisher) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
