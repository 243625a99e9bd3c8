package cmd

import (
	"fmt"
	"strings"

	"github.com/tsarna/chatsocket/pkg/chatsocket"
	"github.com/tsarna/chatsocket/pkg/chatsocket/config"
	"go.uber.org/zap"
)

// loadConfig reads --config if given. The URL argument, when present,
// overrides the configured endpoint.
func loadConfig(urlArg string) (*config.Config, error) {
	cfg := &config.Config{}

	if configPath != "" {
		loaded, diags := config.NewConfig().WithSources(configPath).Build()
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to load config: %w", diags)
		}
		cfg = loaded
	}

	if urlArg != "" {
		cfg.Endpoint = urlArg
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("a WebSocket URL is required, either as an argument or in --config")
	}
	if dialTimeout > 0 {
		cfg.DialTimeout = dialTimeout
	}

	return cfg, nil
}

func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if level == "" {
		level = "info"
	}

	// Override log level based on flags
	if debug {
		level = "debug"
	} else if verbose && level == "info" {
		level = "debug"
	}

	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn", "warning":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zapLevel
	zapConfig.Development = debug

	return zapConfig.Build()
}

func buildSocket(cfg *config.Config, logger *zap.Logger) (*chatsocket.EventSocket, error) {
	sock, err := cfg.SocketBuilder(logger).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create event socket: %w", err)
	}
	return sock, nil
}

// splitURLArg separates an optional leading ws:// or wss:// URL from the
// remaining positional arguments.
func splitURLArg(args []string) (string, []string) {
	if len(args) > 0 && (strings.HasPrefix(args[0], "ws://") || strings.HasPrefix(args[0], "wss://")) {
		return args[0], args[1:]
	}
	return "", args
}
