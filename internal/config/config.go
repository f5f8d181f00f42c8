package config

import (
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server       ServerConfig
	OpenAI       OpenAIConfig
	Store        StoreConfig
	Orchestrator OrchestratorConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"SERVER_PORT" default:"8000"`
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"180s"`
	UploadDir    string        `envconfig:"SERVER_UPLOAD_DIR" default:"uploads"`
}

type OpenAIConfig struct {
	Provider       string `envconfig:"OPENAI_PROVIDER" default:"openai"`
	APIKey         string `envconfig:"OPENAI_API_KEY" required:"true"`
	APIEndpoint    string `envconfig:"OPENAI_ENDPOINT" default:"https://api.openai.com/v1"`
	Model          string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	WhisperModel   string `envconfig:"OPENAI_WHISPER_MODEL" default:"whisper-1"`
	DeploymentName string `envconfig:"OPENAI_DEPLOYMENT" default:"gpt-4o"`
	APIVersion     string `envconfig:"OPENAI_API_VERSION" default:"2023-05-15"`
}

type StoreConfig struct {
	Path string `envconfig:"DB_PATH" default:"call_analysis.db"`
}

type OrchestratorConfig struct {
	MaxSteps                 int           `envconfig:"ORCHESTRATOR_MAX_STEPS" default:"8"`
	ReasoningTimeout         time.Duration `envconfig:"ORCHESTRATOR_REASONING_TIMEOUT" default:"120s"`
	SessionTTL               time.Duration `envconfig:"ORCHESTRATOR_SESSION_TTL" default:"1h"`
	FallbackOnValidationMiss bool          `envconfig:"ORCHESTRATOR_FALLBACK_ON_VALIDATION_MISS" default:"false"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("configuration loaded successfully")
	return &cfg, nil
}
