// Command recordgate validates a stream of JSON records against a schema
// and semantic rules, routing each record to a valid sink or a
// dead-letter sink keyed by failure reason.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/spf13/pflag"

	"github.com/drblury/recordgate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "recordgate:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := &recordgate.Config{}

	flags := pflag.NewFlagSet("recordgate", pflag.ContinueOnError)
	flags.StringVar(&cfg.Transport, "source", "file", "record source: file, channel, kafka, nats, rabbitmq")
	flags.StringVar(&cfg.InputFile, "input", "flights_summary.json", "path to newline-delimited JSON input (file source)")
	flags.StringVar(&cfg.Topic, "topic", "", "topic to consume from (broker sources)")
	flags.StringSliceVar(&cfg.KafkaBrokers, "brokers", nil, "kafka broker addresses")
	flags.StringVar(&cfg.KafkaConsumerGroup, "consumer-group", "recordgate", "kafka consumer group")
	flags.StringVar(&cfg.NATSURL, "nats-url", "", "NATS server URL")
	flags.StringVar(&cfg.RabbitMQURL, "rabbitmq-url", "", "RabbitMQ connection URL")
	flags.StringVar(&cfg.SchemaFile, "schema", "schema.yaml", "path to the schema descriptor")
	flags.StringVar(&cfg.RulesFile, "rules", "", "path to the semantic rules file (optional)")
	flags.StringVar(&cfg.ValidOutput, "valid-output", "valid_records.jsonl", "file to write validated records to")
	flags.StringVar(&cfg.InvalidOutput, "invalid-output", "invalid_records.jsonl", "file to write invalid records and reasons to")
	flags.StringVar(&cfg.ValidTopic, "valid-topic", "", "publish valid records to this topic instead of a file")
	flags.StringVar(&cfg.InvalidTopicPrefix, "invalid-topic-prefix", "", "topic prefix for invalid records when publishing")
	flags.BoolVar(&cfg.MergeInvalid, "merge-invalid", false, "write all invalid records to a single dead-letter sink")
	flags.IntVar(&cfg.Lanes, "lanes", 1, "number of concurrent processing lanes")
	flags.BoolVar(&cfg.MetricsEnabled, "metrics", false, "expose Prometheus metrics")
	flags.IntVar(&cfg.MetricsPort, "metrics-port", 9090, "port for the Prometheus metrics endpoint")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := recordgate.ValidateConfig(cfg); err != nil {
		return err
	}

	baseLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	logger := recordgate.NewSlogServiceLogger(baseLogger)
	logger.Info("Starting recordgate", recordgate.LogFields{"config": cfg})

	desc, err := recordgate.LoadSchema(cfg.SchemaFile)
	if err != nil {
		return err
	}

	eng := recordgate.NewRules(nil)
	if cfg.RulesFile != "" {
		if eng, err = recordgate.LoadRules(cfg.RulesFile); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := recordgate.SplitByReason
	if cfg.MergeInvalid {
		mode = recordgate.SingleDeadLetter
	}

	src, rtr, err := wireTransport(ctx, cfg, mode, logger)
	if err != nil {
		return err
	}

	var m *recordgate.PipelineMetrics
	if cfg.MetricsEnabled {
		m = recordgate.NewPipelineMetrics(nil)
		if err := m.Register(); err != nil {
			return err
		}
		go serveMetrics(cfg.MetricsPort, logger)
	}

	p, err := recordgate.NewPipeline(recordgate.PipelineOptions{
		Schema:  desc,
		Rules:   eng,
		Router:  rtr,
		Logger:  logger,
		Metrics: m,
		Lanes:   cfg.Lanes,
	})
	if err != nil {
		return err
	}

	counters, err := p.Run(ctx, src)
	fmt.Printf("Validation complete. Valid: %d | Invalid: %d\n", counters.Valid, counters.Invalid())
	return err
}

// wireTransport builds the source and the router's sinks for the
// configured transport.
func wireTransport(ctx context.Context, cfg *recordgate.Config, mode recordgate.RoutingMode, logger recordgate.ServiceLogger) (recordgate.Source, *recordgate.Router, error) {
	wmLogger := recordgate.NewWatermillAdapter(logger)

	var src recordgate.Source
	var pub message.Publisher
	if strings.ToLower(cfg.Transport) == "file" || cfg.Transport == "" {
		fileSrc, err := recordgate.NewFileSource(cfg.InputFile)
		if err != nil {
			return nil, nil, err
		}
		src = fileSrc
	} else {
		tr, err := recordgate.BuildTransport(ctx, cfg, wmLogger)
		if err != nil {
			return nil, nil, err
		}
		msgs, err := tr.Subscriber.Subscribe(ctx, cfg.Topic)
		if err != nil {
			return nil, nil, err
		}
		src = recordgate.NewSubscriberSource(cfg.Topic, msgs)
		pub = tr.Publisher
	}

	sinks, err := buildSinks(cfg, mode, pub)
	if err != nil {
		return nil, nil, err
	}
	rtr, err := recordgate.NewRouter(mode, sinks)
	if err != nil {
		return nil, nil, err
	}
	return src, rtr, nil
}

func buildSinks(cfg *recordgate.Config, mode recordgate.RoutingMode, pub message.Publisher) (map[recordgate.Destination]recordgate.Sink, error) {
	sinks := make(map[recordgate.Destination]recordgate.Sink)

	if cfg.ValidTopic != "" && pub != nil {
		sinks[recordgate.DestinationValid] = recordgate.NewPublisherSink(pub, cfg.ValidTopic)
		if mode == recordgate.SingleDeadLetter {
			sinks[recordgate.DestinationDeadLetter] = recordgate.NewPublisherSink(pub, cfg.InvalidTopicPrefix)
			return sinks, nil
		}
		for _, reason := range recordgate.Reasons() {
			dest := recordgate.InvalidDestination(reason)
			sinks[dest] = recordgate.NewPublisherSink(pub, cfg.InvalidTopicPrefix+"."+string(reason))
		}
		return sinks, nil
	}

	// Each run starts from empty output files, as a rerun of the batch is
	// expected to replace stale results rather than append to them.
	valid, err := recordgate.NewTruncatingFileSink(cfg.ValidOutput)
	if err != nil {
		return nil, err
	}
	sinks[recordgate.DestinationValid] = valid

	if mode == recordgate.SingleDeadLetter {
		dl, err := recordgate.NewTruncatingFileSink(cfg.InvalidOutput)
		if err != nil {
			return nil, err
		}
		sinks[recordgate.DestinationDeadLetter] = dl
		return sinks, nil
	}

	for _, reason := range recordgate.Reasons() {
		sink, err := recordgate.NewTruncatingFileSink(invalidPathFor(cfg.InvalidOutput, string(reason)))
		if err != nil {
			return nil, err
		}
		sinks[recordgate.InvalidDestination(reason)] = sink
	}
	return sinks, nil
}

// invalidPathFor inserts the failure reason before the extension:
// invalid_records.jsonl -> invalid_records.decode_error.jsonl.
func invalidPathFor(base, reason string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + reason + ext
}

func serveMetrics(port int, logger recordgate.ServiceLogger) {
	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", recordgate.MetricsHandler())
	logger.Info("Serving metrics", recordgate.LogFields{"address": addr})
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", err, recordgate.LogFields{"address": addr})
	}
}
