package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/txgnn-explorer/backend/internal/util"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// PathsQueue carries batch meta-path generation jobs.
const PathsQueue = "paths_queue"

// Queues lists every work queue consumed by the worker.
var Queues = []string{PathsQueue}

// MaxRetries is the number of redeliveries before a message is dead-lettered.
const MaxRetries = 10

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnvString("RABBITMQ_HOST", "localhost")
	port := util.GetEnvString("RABBITMQ_PORT", "5672")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := util.RetryWithContext(context.Background(), 5, time.Second, func(context.Context) (*amqp091.Connection, error) {
		return amqp091.Dial(connURL)
	})
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares every queue with its _dlq dead-letter queue and a
// _retry queue that routes messages back after 10 seconds.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(10000),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}

	return nil
}

func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		publishing,
	)
}

// Retries returns the x-retries header of a delivery.
func Retries(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// RetryTarget returns the queue a failed delivery goes to next and the
// headers to send along.
func RetryTarget(queueName string, headers amqp091.Table) (string, amqp091.Table) {
	retries := Retries(headers)
	next := amqp091.Table{}
	for k, v := range headers {
		next[k] = v
	}
	if retries >= MaxRetries {
		return queueName + "_dlq", next
	}
	next["x-retries"] = int32(retries + 1)
	return queueName + "_retry", next
}

// ChannelPublisher publishes to a single AMQP channel. Channels are not safe
// for concurrent publishing, so calls are serialised.
type ChannelPublisher struct {
	mu sync.Mutex
	Ch *amqp091.Channel
}

func (p *ChannelPublisher) Publish(queueName string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishFIFO(p.Ch, queueName, data)
}
