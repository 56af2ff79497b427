package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
)

// kafkaReadTimeout bounds the wait for each message in Dequeue.
const kafkaReadTimeout = 5 * time.Second

// KafkaQueue produces jobs to a topic and consumes them through a consumer group.
type KafkaQueue struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	topic   string
	groupID string

	mu     sync.RWMutex
	closed bool
	size   int // approximate; Kafka has no queue length
}

// NewKafkaQueue creates a Kafka-backed job queue.
func NewKafkaQueue(cfg config.KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "tablesync-workers"
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchBytes:   int64(cfg.MaxMessageBytes),
		MaxAttempts:  3,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	log.Printf("[KAFKA] Job queue ready: brokers=%v topic=%s group=%s", cfg.Brokers, cfg.Topic, cfg.GroupID)
	return &KafkaQueue{
		writer:  writer,
		reader:  reader,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
	}, nil
}

func (q *KafkaQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Enqueue writes job keyed by its source connection so jobs for one source
// stay on one partition in order.
func (q *KafkaQueue) Enqueue(ctx context.Context, job *core.SyncJob) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	if err := prepareJob(job); err != nil {
		return err
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal sync job: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(job.Source),
		Value: data,
		Time:  job.EnqueuedAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(job.Kind)},
			{Key: "job_id", Value: []byte(job.ID)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to produce job %s to %s: %v (duration: %v)", job.ID, q.topic, err, time.Since(start))
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()

	log.Printf("[KAFKA] Produced job %s to %s (duration: %v)", job.ID, q.topic, time.Since(start))
	return nil
}

// Dequeue reads up to batchSize jobs. Offsets are committed once a message
// has been decoded; undecodable messages are committed and skipped.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.SyncJob, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 10
	}

	jobs := make([]*core.SyncJob, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		readCtx, cancel := context.WithTimeout(ctx, kafkaReadTimeout)
		message, err := q.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			log.Printf("[KAFKA] ERROR: Failed to read from %s: %v", q.topic, err)
			return jobs, fmt.Errorf("failed to read message from Kafka: %w", err)
		}

		var job core.SyncJob
		if err := json.Unmarshal(message.Value, &job); err != nil {
			log.Printf("[KAFKA] ERROR: Skipping undecodable message (partition %d, offset %d): %v", message.Partition, message.Offset, err)
		} else {
			jobs = append(jobs, &job)
		}

		if err := q.reader.CommitMessages(ctx, message); err != nil {
			log.Printf("[KAFKA] WARNING: Failed to commit offset (partition %d, offset %d): %v", message.Partition, message.Offset, err)
		}
	}

	if len(jobs) > 0 {
		q.mu.Lock()
		q.size -= len(jobs)
		if q.size < 0 {
			q.size = 0
		}
		q.mu.Unlock()
		log.Printf("[KAFKA] Consumed %d jobs from %s (group %s)", len(jobs), q.topic, q.groupID)
	}
	return jobs, nil
}

// Size returns the approximate number of jobs produced but not yet consumed
// by this process.
func (q *KafkaQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.writer.Close(); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to close writer: %v", err)
	}
	if err := q.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}
