package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/application/service"
	"github.com/atino/doc-approval-bridge/internal/config"
	"github.com/atino/doc-approval-bridge/internal/domain/approval"
	"github.com/atino/doc-approval-bridge/internal/domain/attachment"
	"github.com/atino/doc-approval-bridge/internal/infrastructure/external/lark"
	"github.com/atino/doc-approval-bridge/internal/infrastructure/tracing"
	httpserver "github.com/atino/doc-approval-bridge/internal/interfaces/http"
	"github.com/atino/doc-approval-bridge/pkg/utils"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before configuration")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    cfg.Tracing.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting document approval bridge",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("app_id", cfg.Lark.AppID),
		zap.String("app_secret", utils.Mask(cfg.Lark.AppSecret)),
		zap.String("approval_code", cfg.Approval.Code))

	shutdownTracing, err := tracing.Init(tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		OutputPath:     cfg.Tracing.OutputPath,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	schema, err := cfg.Schema()
	if err != nil {
		logger.Fatal("Invalid approval schema", zap.Error(err))
	}

	// Initialize Lark adapters
	sdkClient := lark.NewSDKClient(lark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		BaseURL:   cfg.Lark.BaseURL,
		Timeout:   cfg.Lark.APITimeout,
		LogLevel:  cfg.Lark.LogLevel,
	}, logger)

	authenticator := lark.NewAuthenticator(sdkClient, logger)
	bitableAPI := lark.NewBitableAPI(sdkClient, logger)
	uploader := lark.NewFileUploader(cfg.Lark.UploadURL, cfg.Lark.APITimeout, logger)
	approvalAPI := lark.NewApprovalAPI(sdkClient, uploader, logger)

	// Initialize application services
	transferer := service.NewAttachmentTransferer(bitableAPI, approvalAPI, service.TransferConfig{
		Policy:      attachment.NewPolicy(cfg.Transfer.SupportedExtensions, cfg.Transfer.MIMETypes),
		UploadKind:  cfg.Transfer.UploadType,
		CallTimeout: cfg.Lark.APITimeout,
		MaxFileSize: cfg.Transfer.MaxFileSize,
	}, logger)

	approvalService := service.NewApprovalService(approvalAPI, approval.NewBuilder(schema), logger)

	documentService := service.NewDocumentService(
		authenticator,
		bitableAPI,
		transferer,
		approvalService,
		schema,
		cfg.Lark.APITimeout,
		logger,
	)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Mode:           cfg.Server.Mode,
	}, documentService, utils.NewKVLogger(logger))

	// Wait for interrupt signal to gracefully shutdown the server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Server exited")
}
