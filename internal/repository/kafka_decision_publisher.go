package repository

import (
	"context"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	pkgkafka "BandPilot/pkg/kafka"
	applogger "BandPilot/pkg/logger"
)

// KafkaDecisionPublisher journals decision events keyed by strategy name.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.DecisionPublisher = (*KafkaDecisionPublisher)(nil)

func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) Publish(ctx context.Context, ev models.DecisionEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Strategy), ev)
}

func (p *KafkaDecisionPublisher) Close() error {
	return p.producer.Close()
}

// LogDecisionPublisher writes decision events to the log when no broker is configured.
type LogDecisionPublisher struct {
	l *applogger.Logger
}

var _ domrepo.DecisionPublisher = (*LogDecisionPublisher)(nil)

func NewLogDecisionPublisher(l *applogger.Logger) *LogDecisionPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &LogDecisionPublisher{l: l}
}

func (p *LogDecisionPublisher) Publish(_ context.Context, ev models.DecisionEvent) error {
	fields := []applogger.Field{
		applogger.String("type", ev.Type),
		applogger.String("strategy", ev.Strategy),
		applogger.Date("date", ev.Date),
		applogger.String("side", ev.Side.String()),
		applogger.Float64("size", ev.Size),
		applogger.Float64("price", ev.Price),
	}
	if ev.Ref != "" {
		fields = append(fields, applogger.String("ref", ev.Ref))
	}
	if ev.Reason != "" {
		fields = append(fields, applogger.String("reason", ev.Reason))
	}
	p.l.Info("decision", fields...)
	return nil
}

func (p *LogDecisionPublisher) Close() error { return nil }
