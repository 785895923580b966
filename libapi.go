package recordgate

import (
	configpkg "github.com/drblury/recordgate/internal/engine/config"
	errspkg "github.com/drblury/recordgate/internal/engine/errors"
	idspkg "github.com/drblury/recordgate/internal/engine/ids"
	jsoncodec "github.com/drblury/recordgate/internal/engine/jsoncodec"
	loggingpkg "github.com/drblury/recordgate/internal/engine/logging"
	metricspkg "github.com/drblury/recordgate/internal/engine/metrics"
	pipelinepkg "github.com/drblury/recordgate/internal/engine/pipeline"
	recordpkg "github.com/drblury/recordgate/internal/engine/record"
	routerpkg "github.com/drblury/recordgate/internal/engine/router"
	rulespkg "github.com/drblury/recordgate/internal/engine/rules"
	schemapkg "github.com/drblury/recordgate/internal/engine/schema"
	transportpkg "github.com/drblury/recordgate/internal/engine/transport"
)

type (
	Config = configpkg.Config

	// Record model
	RawRecord     = recordpkg.RawRecord
	SourceInfo    = recordpkg.SourceInfo
	ParsedRecord  = recordpkg.ParsedRecord
	Node          = recordpkg.Node
	Kind          = recordpkg.Kind
	Verdict       = recordpkg.Verdict
	StageError    = recordpkg.StageError
	FailureReason = recordpkg.FailureReason

	// Validation
	SchemaDescriptor = schemapkg.Descriptor
	SchemaField      = schemapkg.Field
	SchemaFieldType  = schemapkg.FieldType
	Rule             = rulespkg.Rule
	RuleEngine       = rulespkg.Engine

	// Routing
	Router         = routerpkg.Router
	RoutingMode    = routerpkg.Mode
	Destination    = routerpkg.Destination
	Sink           = routerpkg.Sink
	FileSink       = routerpkg.FileSink
	PublisherSink  = routerpkg.PublisherSink
	SinkWriteError = routerpkg.SinkWriteError

	// Coordination
	Pipeline        = pipelinepkg.Pipeline
	PipelineOptions = pipelinepkg.Options
	PipelineState   = pipelinepkg.State
	Source          = pipelinepkg.Source
	SourceError     = pipelinepkg.SourceError
	Counters        = pipelinepkg.Counters

	// Transports
	Transport         = transportpkg.Transport
	TransportRegistry = transportpkg.Registry
	TransportBuilder  = transportpkg.Builder
	FileSource        = transportpkg.FileSource
	SubscriberSource  = transportpkg.SubscriberSource

	// Observability
	PipelineMetrics = metricspkg.PipelineMetrics
	LogFields       = loggingpkg.LogFields
	ServiceLogger   = loggingpkg.ServiceLogger
)

const (
	ReasonDecodeError       = recordpkg.ReasonDecodeError
	ReasonSchemaViolation   = recordpkg.ReasonSchemaViolation
	ReasonTypeMismatch      = recordpkg.ReasonTypeMismatch
	ReasonSemanticViolation = recordpkg.ReasonSemanticViolation

	SplitByReason    = routerpkg.SplitByReason
	SingleDeadLetter = routerpkg.SingleDeadLetter

	DestinationValid      = routerpkg.DestinationValid
	DestinationDeadLetter = routerpkg.DestinationDeadLetter

	StateIdle     = pipelinepkg.StateIdle
	StateRunning  = pipelinepkg.StateRunning
	StateDraining = pipelinepkg.StateDraining
	StateStopped  = pipelinepkg.StateStopped
)

var (
	ValidateConfig = configpkg.ValidateConfig

	// Decoding
	DecodeRecord = recordpkg.Decode
	Reasons      = recordpkg.Reasons

	// Validation loaders
	LoadSchema  = schemapkg.Load
	ParseSchema = schemapkg.Parse
	LoadRules   = rulespkg.Load
	ParseRules  = rulespkg.Parse
	NewRules    = rulespkg.NewEngine

	// Routing
	NewRouter             = routerpkg.New
	NewFileSink           = routerpkg.NewFileSink
	NewTruncatingFileSink = routerpkg.NewTruncatingFileSink
	NewPublisherSink      = routerpkg.NewPublisherSink
	InvalidDestination    = routerpkg.InvalidDestination
	RoutingDestinations   = routerpkg.Destinations

	// Coordination
	NewPipeline = pipelinepkg.New
	NewCounters = pipelinepkg.NewCounters

	// Transports
	NewFileSource        = transportpkg.NewFileSource
	NewSubscriberSource  = transportpkg.NewSubscriberSource
	RegisterTransport    = transportpkg.Register
	BuildTransport       = transportpkg.Build
	NewTransportRegistry = transportpkg.NewRegistry

	// Observability
	NewPipelineMetrics        = metricspkg.NewPipelineMetrics
	MetricsHandler            = metricspkg.Handler
	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter

	// Encoding
	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Encode    = jsoncodec.Encode
	Decode    = jsoncodec.Decode

	NewULID = idspkg.NewULID

	ErrSourceExhausted = errspkg.ErrSourceExhausted
	ErrConfigRequired  = errspkg.ErrConfigRequired
	ErrSchemaRequired  = errspkg.ErrSchemaRequired
	ErrRouterRequired  = errspkg.ErrRouterRequired
	ErrLoggerRequired  = errspkg.ErrLoggerRequired
	ErrSourceRequired  = errspkg.ErrSourceRequired
	ErrSinkRequired    = errspkg.ErrSinkRequired
	ErrPipelineNotIdle = errspkg.ErrPipelineNotIdle
)
