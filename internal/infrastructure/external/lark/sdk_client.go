package lark

import (
	"strings"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Default endpoints of the Lark international deployment
const (
	DefaultBaseURL   = "https://open.larksuite.com"
	DefaultUploadURL = "https://www.larksuite.com/approval/openapi/v2/file/upload"
)

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client    *lark.Client
	appID     string
	appSecret string
	logger    *zap.Logger
}

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Timeout   time.Duration
	LogLevel  string
}

// NewSDKClient creates a new Lark SDK client. The SDK token cache is
// disabled: every run authenticates explicitly and passes the token with
// each request.
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := []lark.ClientOptionFunc{
		lark.WithOpenBaseUrl(baseURL),
		lark.WithLogLevel(sdkLogLevel(cfg.LogLevel)),
		lark.WithEnableTokenCache(false),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, lark.WithReqTimeout(cfg.Timeout))
	}

	return &SDKClient{
		client:    lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		logger:    logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}

// GetAppID returns the app ID
func (c *SDKClient) GetAppID() string {
	return c.appID
}

func sdkLogLevel(level string) larkcore.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return larkcore.LogLevelDebug
	case "warn":
		return larkcore.LogLevelWarn
	case "error":
		return larkcore.LogLevelError
	default:
		return larkcore.LogLevelInfo
	}
}

// derefString safely dereferences a string pointer
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
