package transport

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type stubConfig struct {
	transport string
}

func (c *stubConfig) GetTransport() string          { return c.transport }
func (c *stubConfig) GetKafkaBrokers() []string     { return []string{"localhost:9092"} }
func (c *stubConfig) GetKafkaConsumerGroup() string { return "recordgate" }
func (c *stubConfig) GetNATSURL() string            { return "nats://localhost:4222" }
func (c *stubConfig) GetRabbitMQURL() string        { return "amqp://localhost:5672" }

func TestDefaultRegistryHasBuiltins(t *testing.T) {
	for _, name := range []string{NameChannel, NameKafka, NameNATS, NameRabbitMQ} {
		if !DefaultRegistry.Has(name) {
			t.Fatalf("expected builtin transport %q", name)
		}
	}
}

func TestRegistryRegisterAndNames(t *testing.T) {
	reg := NewRegistry()
	if reg.Has("custom") {
		t.Fatal("empty registry should have nothing")
	}

	reg.Register("custom", func(context.Context, Config, watermill.LoggerAdapter) (Transport, error) {
		return Transport{}, nil
	})
	reg.Register("other", func(context.Context, Config, watermill.LoggerAdapter) (Transport, error) {
		return Transport{}, nil
	})

	names := reg.Names()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "custom" || names[1] != "other" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestBuildUnknownTransport(t *testing.T) {
	_, err := Build(context.Background(), &stubConfig{transport: "pigeon"}, watermill.NopLogger{})
	if err == nil {
		t.Fatal("expected unknown transport error")
	}
}

func TestBuildNilConfig(t *testing.T) {
	if _, err := Build(context.Background(), nil, watermill.NopLogger{}); err == nil {
		t.Fatal("expected config error")
	}
}

func TestChannelTransportRoundTrip(t *testing.T) {
	tr, err := Build(context.Background(), &stubConfig{transport: NameChannel}, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := tr.Subscriber.Subscribe(ctx, "records")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	sent := message.NewMessage(watermill.NewUUID(), []byte(`{"flight":"AB1"}`))
	if err := tr.Publisher.Publish("records", sent); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-msgs:
		if string(got.Payload) != `{"flight":"AB1"}` {
			t.Fatalf("unexpected payload: %q", got.Payload)
		}
		got.Ack()
	case <-ctx.Done():
		t.Fatal("message never arrived")
	}
}

func TestChannelTransportFeedsSubscriberSource(t *testing.T) {
	tr, err := Build(context.Background(), &stubConfig{transport: NameChannel}, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := tr.Subscriber.Subscribe(ctx, "records")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"flight":"AB1"}`))
	msg.Metadata.Set(MetadataKey, "flight-ab1")
	if err := tr.Publisher.Publish("records", msg); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	src := NewSubscriberSource("records", msgs)
	raw, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(raw.Payload) != `{"flight":"AB1"}` {
		t.Fatalf("unexpected payload: %q", raw.Payload)
	}
	if raw.Source.Key != "flight-ab1" {
		t.Fatalf("expected key metadata, got %#v", raw.Source)
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
}
