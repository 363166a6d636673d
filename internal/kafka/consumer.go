package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
)

// ScoreMessage is the wire format for bulk score ingestion. Partners push
// finished game results onto the topic instead of calling the HTTP API.
type ScoreMessage struct {
	GameSlug          string         `json:"game_slug"`
	UserID            int64          `json:"user_id"`
	UserName          string         `json:"user_name"`
	Score             int64          `json:"score"`
	LevelReached      *int           `json:"level_reached,omitempty"`
	TimePlayedSeconds *int           `json:"time_played_seconds,omitempty"`
	GameData          map[string]any `json:"game_data,omitempty"`
}

// ScoreHandler processes ingested score submissions
type ScoreHandler interface {
	SubmitScore(ctx context.Context, gameSlug, userName string, userID int64, sub domain.ScoreSubmission) (*domain.SubmitResult, error)
}

// Consumer consumes score messages from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       ScoreHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler ScoreHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var msg ScoreMessage
			if err := json.Unmarshal(message.Value, &msg); err != nil {
				h.consumer.logger.Warn("failed to unmarshal message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			if msg.GameSlug == "" || msg.UserID <= 0 {
				h.consumer.logger.Warn("invalid score message",
					"game_slug", msg.GameSlug,
					"user_id", msg.UserID,
				)
				session.MarkMessage(message, "")
				continue
			}

			h.consumer.submit(msg, message.Offset)
			session.MarkMessage(message, "")
		}
	}
}

// submit hands a message to the score handler, retrying transient failures.
// Validation failures are logged and dropped; the message never becomes valid.
func (c *Consumer) submit(msg ScoreMessage, offset int64) {
	sub := domain.ScoreSubmission{
		Score:             msg.Score,
		LevelReached:      msg.LevelReached,
		TimePlayedSeconds: msg.TimePlayedSeconds,
		GameData:          msg.GameData,
	}

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(c.config.RetryDelay)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := c.handler.SubmitScore(ctx, msg.GameSlug, msg.UserName, msg.UserID, sub)
		cancel()

		if err == nil {
			return
		}
		if domain.IsValidationError(err) || domain.IsNotFoundError(err) {
			c.logger.Warn("dropping rejected score message",
				"error", err,
				"game_slug", msg.GameSlug,
				"user_id", msg.UserID,
				"offset", offset,
			)
			return
		}

		c.logger.Error("failed to process score message",
			"error", err,
			"attempt", attempt+1,
			"offset", offset,
		)
	}
}
