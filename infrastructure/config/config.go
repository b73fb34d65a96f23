package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// BindingConfig holds the proximity radii of primary-shape resolution.
// The values are empirical; they are configuration, not invariants.
type BindingConfig struct {
	DirectRadius     float64 `yaml:"directRadius"`
	CorrectiveRadius float64 `yaml:"correctiveRadius"`
}

// CollabConfig holds collaboration session tuning
type CollabConfig struct {
	ChangeCooldown time.Duration `yaml:"changeCooldown"`
	SendBufferSize int           `yaml:"sendBufferSize"`
	RelayEndpoint  string        `yaml:"relayEndpoint"`
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	EventBusName  string

	// Logging
	LogLevel string

	// Authorization
	JWTSecret   string
	JWTIssuer   string
	WorkspaceID string

	// Feature flags
	EnableMetrics bool

	// Engine tuning
	Binding BindingConfig `yaml:"binding"`
	Collab  CollabConfig  `yaml:"collab"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", "archsync"),
		EventBusName:  getEnv("EVENT_BUS_NAME", "archsync-events"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "archsync-backend"),
		WorkspaceID: getEnv("WORKSPACE_ID", ""),

		EnableMetrics: getEnvBool("ENABLE_METRICS", true),

		Binding: BindingConfig{
			DirectRadius:     getEnvFloat("BINDING_DIRECT_RADIUS", 100),
			CorrectiveRadius: getEnvFloat("BINDING_CORRECTIVE_RADIUS", 50),
		},
		Collab: CollabConfig{
			ChangeCooldown: getEnvDuration("COLLAB_CHANGE_COOLDOWN", 500*time.Millisecond),
			SendBufferSize: getEnvInt("COLLAB_SEND_BUFFER", 256),
			RelayEndpoint:  getEnv("COLLAB_RELAY_ENDPOINT", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyFile overlays a YAML tuning file on top of the environment
// configuration. Only the engine tuning sections are file-configurable.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	// Durations travel as strings ("500ms"); yaml has no native duration.
	overlay := struct {
		Binding *BindingConfig `yaml:"binding"`
		Collab  *struct {
			ChangeCooldown string `yaml:"changeCooldown"`
			SendBufferSize int    `yaml:"sendBufferSize"`
			RelayEndpoint  string `yaml:"relayEndpoint"`
		} `yaml:"collab"`
	}{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if overlay.Binding != nil {
		c.Binding = *overlay.Binding
	}
	if overlay.Collab != nil {
		if overlay.Collab.ChangeCooldown != "" {
			d, err := time.ParseDuration(overlay.Collab.ChangeCooldown)
			if err != nil {
				return fmt.Errorf("invalid changeCooldown: %w", err)
			}
			c.Collab.ChangeCooldown = d
		}
		if overlay.Collab.SendBufferSize != 0 {
			c.Collab.SendBufferSize = overlay.Collab.SendBufferSize
		}
		if overlay.Collab.RelayEndpoint != "" {
			c.Collab.RelayEndpoint = overlay.Collab.RelayEndpoint
		}
	}
	return nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required")
		}
	}
	if c.Binding.DirectRadius <= 0 || c.Binding.CorrectiveRadius <= 0 {
		return fmt.Errorf("binding radii must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
