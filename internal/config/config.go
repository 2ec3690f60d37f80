package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level" env:"MINUTES_TELEMETRY_LOG_LEVEL"`
	LogFormat    string `yaml:"log_format" env:"MINUTES_TELEMETRY_LOG_FORMAT"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"MINUTES_TELEMETRY_OTLP_ENDPOINT"`
	OTLPInsecure bool   `yaml:"otlp_insecure" env:"MINUTES_TELEMETRY_OTLP_INSECURE"`
	StdoutTraces bool   `yaml:"stdout_traces" env:"MINUTES_TELEMETRY_STDOUT_TRACES"`
}

type HTTPConfig struct {
	Bind           string   `yaml:"bind" env:"MINUTES_HTTP_BIND"`
	Port           int      `yaml:"port" env:"MINUTES_HTTP_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"MINUTES_HTTP_ALLOWED_ORIGINS"`
	MaxUploadMB    int      `yaml:"max_upload_mb" env:"MINUTES_HTTP_MAX_UPLOAD_MB"`
}

type StorageConfig struct {
	DataDir        string `yaml:"data_dir" env:"MINUTES_STORAGE_DATA_DIR,SIDECAR_DATA_DIR"`
	DBPath         string `yaml:"db_path" env:"MINUTES_STORAGE_DB_PATH"`
	Passphrase     string `yaml:"passphrase" env:"MINUTES_STORAGE_PASSPHRASE,SIDECAR_STORAGE_PASSPHRASE"`
	KeyringService string `yaml:"keyring_service" env:"MINUTES_STORAGE_KEYRING_SERVICE"`
	KeyringUser    string `yaml:"keyring_user" env:"MINUTES_STORAGE_KEYRING_USER"`
	BusyTimeoutMS  int    `yaml:"busy_timeout_ms" env:"MINUTES_STORAGE_BUSY_TIMEOUT_MS"`
}

// DatabasePath resolves the SQLite file location.
func (s StorageConfig) DatabasePath() string {
	if s.DBPath != "" {
		return s.DBPath
	}
	return filepath.Join(s.DataDir, "minutes.sqlite3")
}

// RecordingsDir is where uploaded and normalized audio lives.
func (s StorageConfig) RecordingsDir() string {
	return filepath.Join(s.DataDir, "recordings")
}

type ConverterConfig struct {
	Command string `yaml:"command" env:"MINUTES_CONVERTER_COMMAND"`
}

type STTConfig struct {
	Mode     string `yaml:"mode" env:"MINUTES_STT_MODE"` // mock, exec
	Command  string `yaml:"command" env:"MINUTES_STT_COMMAND"`
	Model    string `yaml:"model" env:"MINUTES_STT_MODEL,SIDECAR_WHISPER_MODEL"`
	Language string `yaml:"language" env:"MINUTES_STT_LANGUAGE,SIDECAR_WHISPER_LANGUAGE"`
}

type DiarizationConfig struct {
	Enabled   bool   `yaml:"enabled" env:"MINUTES_DIARIZATION_ENABLED"`
	Mode      string `yaml:"mode" env:"MINUTES_DIARIZATION_MODE"` // mock, exec
	Command   string `yaml:"command" env:"MINUTES_DIARIZATION_COMMAND"`
	Pipeline  string `yaml:"pipeline" env:"MINUTES_DIARIZATION_PIPELINE,SIDECAR_PYANNOTE_PIPELINE"`
	AuthToken string `yaml:"auth_token" env:"MINUTES_DIARIZATION_AUTH_TOKEN,PYANNOTE_AUTH_TOKEN"`
}

type SummaryConfig struct {
	Enabled     bool          `yaml:"enabled" env:"MINUTES_SUMMARY_ENABLED"`
	Mode        string        `yaml:"mode" env:"MINUTES_SUMMARY_MODE"` // mock, ollama, exec
	Endpoint    string        `yaml:"endpoint" env:"MINUTES_SUMMARY_ENDPOINT,SIDECAR_OLLAMA_URL"`
	Model       string        `yaml:"model" env:"MINUTES_SUMMARY_MODEL,SIDECAR_OLLAMA_MODEL"`
	Command     string        `yaml:"command" env:"MINUTES_SUMMARY_COMMAND"`
	Timeout     time.Duration `yaml:"timeout" env:"MINUTES_SUMMARY_TIMEOUT"`
	MaxTokens   int           `yaml:"max_tokens" env:"MINUTES_SUMMARY_MAX_TOKENS"`
	Temperature float64       `yaml:"temperature" env:"MINUTES_SUMMARY_TEMPERATURE"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled" env:"MINUTES_BUS_ENABLED"`
	Embedded       bool     `yaml:"embedded" env:"MINUTES_BUS_EMBEDDED"`
	Port           int      `yaml:"port" env:"MINUTES_BUS_PORT"`
	Servers        []string `yaml:"servers" env:"MINUTES_BUS_SERVERS"`
	Username       string   `yaml:"username" env:"MINUTES_BUS_USERNAME"`
	Password       string   `yaml:"password" env:"MINUTES_BUS_PASSWORD"`
	Token          string   `yaml:"token" env:"MINUTES_BUS_TOKEN"`
	TLSInsecure    bool     `yaml:"tls_insecure" env:"MINUTES_BUS_TLS_INSECURE"`
	ConnectTimeout int      `yaml:"connect_timeout_ms" env:"MINUTES_BUS_CONNECT_TIMEOUT_MS"`
	StoreDir       string   `yaml:"store_dir" env:"MINUTES_BUS_STORE_DIR"`
}

type Config struct {
	ServiceName string            `yaml:"service_name" env:"MINUTES_SERVICE_NAME"`
	Environment string            `yaml:"environment" env:"MINUTES_ENVIRONMENT"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Storage     StorageConfig     `yaml:"storage"`
	Converter   ConverterConfig   `yaml:"converter"`
	STT         STTConfig         `yaml:"stt"`
	Diarization DiarizationConfig `yaml:"diarization"`
	Summary     SummaryConfig     `yaml:"summary"`
	Bus         BusConfig         `yaml:"bus"`
}

func Default() Config {
	return Config{
		ServiceName: "loqa-minutes",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8000,
			AllowedOrigins: []string{
				"http://localhost:5174",
				"http://127.0.0.1:5174",
			},
			MaxUploadMB: 1024,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			LogFormat:    "json",
			OTLPInsecure: true,
		},
		Storage: StorageConfig{
			DataDir:       "./data",
			BusyTimeoutMS: 5000,
		},
		Converter: ConverterConfig{
			Command: "ffmpeg",
		},
		STT: STTConfig{
			Mode:     "mock",
			Model:    "large",
			Language: "bn",
		},
		Diarization: DiarizationConfig{
			Enabled:  false,
			Mode:     "mock",
			Pipeline: "pyannote/speaker-diarization@2.1",
		},
		Summary: SummaryConfig{
			Enabled:     true,
			Mode:        "ollama",
			Endpoint:    "http://127.0.0.1:11434",
			Model:       "llama3.1:8b",
			Timeout:     8 * time.Second,
			MaxTokens:   512,
			Temperature: 0.2,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
	}
}

// Load reads defaults, then the optional YAML file, then MINUTES_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to read environment: %w", err)
	}
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.HTTP.AllowedOrigins = trimList(cfg.HTTP.AllowedOrigins)
	cfg.Bus.Servers = trimList(cfg.Bus.Servers)
	cfg.Summary.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Summary.Endpoint), "/")
	cfg.Telemetry.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Telemetry.LogLevel))
	if cfg.Bus.StoreDir == "" && cfg.Storage.DataDir != "" {
		cfg.Bus.StoreDir = filepath.Join(cfg.Storage.DataDir, "nats")
	}
}

func trimList(values []string) []string {
	var trimmed []string
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	return trimmed
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		return errors.New("http.max_upload_mb must be positive")
	}
	switch cfg.Telemetry.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	switch cfg.Telemetry.LogFormat {
	case "json", "text":
	default:
		return errors.New("telemetry.log_format must be one of json|text")
	}
	if cfg.Storage.DataDir == "" {
		return errors.New("storage.data_dir must not be empty")
	}
	if cfg.Storage.BusyTimeoutMS < 0 {
		return errors.New("storage.busy_timeout_ms must be >= 0")
	}
	if (cfg.Storage.KeyringService == "") != (cfg.Storage.KeyringUser == "") {
		return errors.New("storage.keyring_service and storage.keyring_user must be set together")
	}
	if cfg.Converter.Command == "" {
		return errors.New("converter.command must not be empty")
	}
	switch cfg.STT.Mode {
	case "mock":
	case "exec":
		if cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
	default:
		return errors.New("stt.mode must be one of mock|exec")
	}
	if cfg.Diarization.Enabled {
		switch cfg.Diarization.Mode {
		case "mock":
		case "exec":
			if cfg.Diarization.Command == "" {
				return errors.New("diarization.command must be set when mode=exec")
			}
		default:
			return errors.New("diarization.mode must be one of mock|exec")
		}
	}
	if cfg.Summary.Enabled {
		switch cfg.Summary.Mode {
		case "mock", "ollama", "exec":
		default:
			return errors.New("summary.mode must be one of mock|ollama|exec")
		}
		if cfg.Summary.Mode == "ollama" && cfg.Summary.Endpoint == "" {
			return errors.New("summary.endpoint must be set when mode=ollama")
		}
		if cfg.Summary.Mode == "exec" && cfg.Summary.Command == "" {
			return errors.New("summary.command must be set when mode=exec")
		}
		if cfg.Summary.Timeout <= 0 || cfg.Summary.Timeout >= 10*time.Second {
			return errors.New("summary.timeout must be between 0s and 10s exclusive")
		}
		if cfg.Summary.MaxTokens < 0 {
			return errors.New("summary.max_tokens must be >= 0")
		}
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	return nil
}
