package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // approval.time_zone must resolve on minimal images

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/atino/doc-approval-bridge/internal/domain/approval"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // whole /process-document run
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	Mode           string        `mapstructure:"mode"` // gin mode: debug, release, test
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID      string        `mapstructure:"app_id"`
	AppSecret  string        `mapstructure:"app_secret"`
	BaseURL    string        `mapstructure:"base_url"`
	UploadURL  string        `mapstructure:"upload_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"` // per remote call
	LogLevel   string        `mapstructure:"log_level"`
}

// ApprovalConfig describes the approval template the service submits to
type ApprovalConfig struct {
	Code               string               `mapstructure:"code"`
	AttachmentWidgetID string               `mapstructure:"attachment_widget_id"`
	TimeZone           string               `mapstructure:"time_zone"`
	Fields             []approval.FieldSpec `mapstructure:"fields"`
}

// TransferConfig holds attachment transfer settings
type TransferConfig struct {
	SupportedExtensions []string          `mapstructure:"supported_extensions"`
	MIMETypes           map[string]string `mapstructure:"mime_types"`
	UploadType          string            `mapstructure:"upload_type"`
	MaxFileSize         int64             `mapstructure:"max_file_size"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	OutputPath  string `mapstructure:"output_path"`
}

// LoadDotEnv loads a .env file into the process environment. Variables
// already set are kept; a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := gotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from an optional YAML file and environment
// variables. An empty configPath means environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Approval.Fields) == 0 {
		cfg.Approval.Fields = approval.DefaultFields()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("server.max_body_bytes", 50<<20)
	v.SetDefault("server.mode", "release")

	// Lark defaults
	v.SetDefault("lark.base_url", "https://open.larksuite.com")
	v.SetDefault("lark.upload_url", "https://www.larksuite.com/approval/openapi/v2/file/upload")
	v.SetDefault("lark.api_timeout", 30*time.Second)
	v.SetDefault("lark.log_level", "warn")

	// Approval defaults
	v.SetDefault("approval.code", approval.DefaultApprovalCode)
	v.SetDefault("approval.attachment_widget_id", approval.DefaultAttachmentWidgetID)
	v.SetDefault("approval.time_zone", "Asia/Ho_Chi_Minh")

	// Transfer defaults
	v.SetDefault("transfer.supported_extensions", []string{"pdf", "doc", "docx"})
	v.SetDefault("transfer.upload_type", "attachment")
	v.SetDefault("transfer.max_file_size", 0)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "doc-approval-bridge")
	v.SetDefault("tracing.output_path", "stdout")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.base_url", "LARK_BASE_URL")
	_ = v.BindEnv("approval.code", "LARK_APPROVAL_CODE", "APPROVAL_CODE")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
	_ = v.BindEnv("tracing.enabled", "TRACING_ENABLED")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate Lark credentials
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	if _, err := c.Schema(); err != nil {
		return fmt.Errorf("approval: %w", err)
	}
	return nil
}

// Schema builds the approval form schema described by the configuration
func (c *Config) Schema() (*approval.FormSchema, error) {
	loc := time.UTC
	if c.Approval.TimeZone != "" {
		l, err := time.LoadLocation(c.Approval.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid time_zone %q: %w", c.Approval.TimeZone, err)
		}
		loc = l
	}

	fields := c.Approval.Fields
	if len(fields) == 0 {
		fields = approval.DefaultFields()
	}

	schema := &approval.FormSchema{
		ApprovalCode:       c.Approval.Code,
		Fields:             fields,
		AttachmentWidgetID: c.Approval.AttachmentWidgetID,
		Location:           loc,
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}
