package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/repository"
	"github.com/iosifidis/msc-pims/pkg/logger"
	"github.com/iosifidis/msc-pims/pkg/messaging"
	"github.com/iosifidis/msc-pims/pkg/metrics"
)

// Notifier handles side effects per relayed event, such as client emails.
// Notification failures are logged but never fail the relay.
type Notifier interface {
	Notify(ctx context.Context, event *model.OutboxEvent) error
}

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	RetainFor     time.Duration
}

// OutboxProcessor relays pending outbox events to the message broker. Row
// locks on the pending batch keep concurrent workers from double-publishing.
type OutboxProcessor struct {
	repo     repository.OutboxRepository
	broker   messaging.Broker
	notifier Notifier
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	notifier Notifier,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:     repo,
		broker:   broker,
		notifier: notifier,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "failed to process events")
			}
			p.cleanup(ctx)
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingWithLock(ctx, p.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.OutboxQueueSize.Set(float64(len(events)))

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(p.config.RetryAttempts, p.config.RetryDelay, func(attempt int) error {
		if attempt > 0 {
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		}
		return p.broker.Publish(ctx, event.EventType, messaging.Message{
			Type:    event.EventType,
			Payload: event.Payload,
		})
	})
	if err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		if markErr := p.repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			p.logger.Error(markErr, "failed to mark event failed")
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, event); err != nil {
			p.logger.Error(err, "notification failed",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}
	return nil
}

// cleanup drops processed events past the retention window.
func (p *OutboxProcessor) cleanup(ctx context.Context) {
	if p.config.RetainFor <= 0 {
		return
	}
	removed, err := p.repo.DeleteProcessedBefore(ctx, time.Now().Add(-p.config.RetainFor))
	if err != nil {
		p.logger.Error(err, "failed to clean up processed events")
		return
	}
	if removed > 0 {
		p.logger.Debug("cleaned up processed events", "count", removed)
	}
}

func retry(attempts int, delay time.Duration, fn func(attempt int) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(i); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
