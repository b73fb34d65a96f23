// Package di wires the application dependencies.
package di

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"archsync-backend/application/creation"
	"archsync-backend/application/ports"
	"archsync-backend/domain/schema"
	"archsync-backend/domain/services"
	"archsync-backend/infrastructure/config"
	"archsync-backend/infrastructure/messaging"
	ebpublisher "archsync-backend/infrastructure/messaging/eventbridge"
	ddbstore "archsync-backend/infrastructure/persistence/dynamodb"
	"archsync-backend/interfaces/websocket"
	"archsync-backend/pkg/auth"
	"archsync-backend/pkg/observability"
)

// ProvideLogger creates the application logger from configuration
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// ProvideAWSConfig loads the AWS SDK configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (awssdk.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// ProvideDynamoDBClient creates the DynamoDB client
func ProvideDynamoDBClient(awsCfg awssdk.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates the EventBridge client
func ProvideEventBridgeClient(awsCfg awssdk.Config) *eventbridge.Client {
	return eventbridge.NewFromConfig(awsCfg)
}

// ProvideRecordStore creates the DynamoDB-backed record store
func ProvideRecordStore(client *dynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.RecordStore {
	return ddbstore.NewRecordStore(client, cfg.DynamoDBTable, logger)
}

// ProvideEventBus creates the event bus. Without a configured bus name the
// events go to the log only.
func ProvideEventBus(client *eventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventBus {
	if cfg.EventBusName == "" {
		return messaging.NewLogEventBus(logger)
	}
	return ebpublisher.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvidePrometheusRegistry creates the metrics registry
func ProvidePrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates the application metrics, registered when enabled
func ProvideMetrics(cfg *config.Config, registry *prometheus.Registry) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetrics(registry)
}

// ProvideSchemaRegistry creates the relationship rule registry
func ProvideSchemaRegistry() *schema.Registry {
	return schema.NewRegistry()
}

// ProvideBindingResolver creates the primary-shape binding resolver
func ProvideBindingResolver(cfg *config.Config) *services.BindingResolver {
	return services.NewBindingResolver(&services.BindingConfig{
		DirectRadius:     cfg.Binding.DirectRadius,
		CorrectiveRadius: cfg.Binding.CorrectiveRadius,
	})
}

// ProvideArrowAnalyzer creates the connector analyzer
func ProvideArrowAnalyzer(resolver *services.BindingResolver, registry *schema.Registry, store ports.RecordStore, metrics *observability.Metrics) *services.ArrowAnalyzer {
	return services.NewArrowAnalyzer(resolver, registry, store, metrics)
}

// ProvideCreationPipeline creates the element/relationship creation pipeline
func ProvideCreationPipeline(store ports.RecordStore, registry *schema.Registry, bus ports.EventBus, logger *zap.Logger) *creation.Pipeline {
	return creation.NewPipeline(store, registry, bus, logger)
}

// ProvideTokenVerifier creates the access token verifier, nil when no
// secret is configured (development relay)
func ProvideTokenVerifier(cfg *config.Config) *auth.TokenVerifier {
	if cfg.JWTSecret == "" {
		return nil
	}
	return auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
}

// ProvideHub creates the relay hub
func ProvideHub(logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(logger)
}

// ProvideWebSocketServer creates the relay HTTP handler
func ProvideWebSocketServer(hub *websocket.Hub, verifier *auth.TokenVerifier, logger *zap.Logger) *websocket.Server {
	return websocket.NewServer(hub, verifier, websocket.DefaultServerConfig(), logger)
}
