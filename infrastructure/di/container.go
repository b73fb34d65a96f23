package di

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"archsync-backend/application/creation"
	"archsync-backend/application/ports"
	"archsync-backend/domain/schema"
	"archsync-backend/domain/services"
	"archsync-backend/infrastructure/config"
	"archsync-backend/interfaces/websocket"
	"archsync-backend/pkg/auth"
	"archsync-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *zap.Logger
	Registry         *prometheus.Registry
	Metrics          *observability.Metrics
	Schema           *schema.Registry
	BindingResolver  *services.BindingResolver
	ArrowAnalyzer    *services.ArrowAnalyzer
	RecordStore      ports.RecordStore
	EventBus         ports.EventBus
	CreationPipeline *creation.Pipeline
	TokenVerifier    *auth.TokenVerifier
	Hub              *websocket.Hub
	WebSocketServer  *websocket.Server
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideRecordStore,
	ProvideEventBus,
	ProvidePrometheusRegistry,
	ProvideMetrics,
	ProvideSchemaRegistry,
	ProvideBindingResolver,
	ProvideArrowAnalyzer,
	ProvideCreationPipeline,
	ProvideTokenVerifier,
	ProvideHub,
	ProvideWebSocketServer,
	wire.Struct(new(Container), "*"),
)
