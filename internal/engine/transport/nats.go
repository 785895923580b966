package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
)

var (
	NATSPublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return wmnats.NewPublisher(cfg, logger)
	}
	NATSSubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return wmnats.NewSubscriber(cfg, logger)
	}
)

func init() {
	Register(NameNATS, buildNATS)
}

func buildNATS(_ context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	marshaler := &wmnats.NATSMarshaler{}
	natsOptions := []nats.Option{
		nats.Name("recordgate"),
		nats.RetryOnFailedConnect(true),
	}

	publisher, err := NATSPublisherFactory(
		wmnats.PublisherConfig{
			URL:         cfg.GetNATSURL(),
			NatsOptions: natsOptions,
			Marshaler:   marshaler,
		},
		logger,
	)
	if err != nil {
		return Transport{}, err
	}

	subscriber, err := NATSSubscriberFactory(
		wmnats.SubscriberConfig{
			URL:         cfg.GetNATSURL(),
			NatsOptions: natsOptions,
			Unmarshaler: marshaler,
		},
		logger,
	)
	if err != nil {
		return Transport{}, err
	}

	return Transport{Publisher: publisher, Subscriber: subscriber}, nil
}
