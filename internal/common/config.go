package common

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from the environment.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	OCR      OCRConfig
	Model    ModelConfig
	Pipeline PipelineConfig
}

type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"billscan"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	Addr      string `env:"APP_ADDR" envDefault:":8080"`
	UploadDir string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	ExportDir string `env:"EXPORT_DIR" envDefault:"./exports"`
	// WatchDir enables the inbox watcher when set: files dropped there are
	// processed end to end without an HTTP upload.
	WatchDir string `env:"WATCH_DIR"`
}

type DatabaseConfig struct {
	// DSN selects the engine: empty -> embedded sqlite file, postgres://
	// -> postgres. The repository layer owns the actual choice.
	DSN        string `env:"DATABASE_URL"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./billscan.db"`
}

type OCRConfig struct {
	Tesseract string        `env:"TESSERACT_BIN" envDefault:"tesseract"`
	Languages string        `env:"OCR_LANGUAGES" envDefault:"eng"`
	DPI       int           `env:"OCR_DPI" envDefault:"300"`
	MaxPages  int           `env:"OCR_MAX_PAGES" envDefault:"0"`
	Timeout   time.Duration `env:"OCR_TIMEOUT" envDefault:"2m"`
}

type ModelConfig struct {
	Enabled bool          `env:"MODEL_ENABLED" envDefault:"true"`
	BaseURL string        `env:"MODEL_BASE_URL" envDefault:"http://localhost:11434"`
	Name    string        `env:"MODEL_NAME" envDefault:"mistral"`
	Timeout time.Duration `env:"MODEL_TIMEOUT" envDefault:"30s"`
}

type PipelineConfig struct {
	// DocWorkers bounds per-document parallelism inside one job.
	DocWorkers int `env:"PIPELINE_DOC_WORKERS" envDefault:"4"`
	// EventBuffer is the bounded event sink capacity.
	EventBuffer int `env:"PIPELINE_EVENT_BUFFER" envDefault:"256"`
	// PartialSuccess lets a multi-document job complete when some documents
	// fail fatally. Default is whole-job failure: export expects a complete
	// dataset.
	PartialSuccess bool `env:"PIPELINE_PARTIAL_SUCCESS" envDefault:"false"`
	// PatternThreshold is the pattern-strategy confidence below which the
	// model fallback is consulted.
	PatternThreshold float64 `env:"PIPELINE_PATTERN_THRESHOLD" envDefault:"60"`
}

// LoadConfig parses configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, NewAppError(CodeInternal, "parse config", err)
	}
	return cfg, nil
}
