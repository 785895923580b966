package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

var GoChannelFactory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	Register(NameChannel, buildChannel)
}

// buildChannel creates an in-memory pub/sub pair. Tests and single-process
// setups use it; nothing crosses a process boundary.
func buildChannel(_ context.Context, _ Config, logger watermill.LoggerAdapter) (Transport, error) {
	pub, sub := GoChannelFactory(gochannel.Config{}, logger)
	return Transport{Publisher: pub, Subscriber: sub}, nil
}
