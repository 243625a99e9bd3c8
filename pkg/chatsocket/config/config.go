// Package config loads chatsocket client settings from HCL files.
//
// A configuration names the endpoint to connect to, optional handshake
// headers and timeouts, and any number of announce blocks, which are
// messages sent on a cron schedule while connected:
//
//	endpoint     = "ws://${env.CHAT_HOST}/chat"
//	dial_timeout = "10s"
//	log_level    = "debug"
//
//	headers = {
//	  "X-Client" = "chatsocket"
//	}
//
//	announce "heartbeat" {
//	  schedule = "@every 30s"
//	  message  = { type = "ping", data = "" }
//	}
//
// Expressions may refer to the process environment through `env` and use
// the functions returned by GetFunctions.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/tsarna/chatsocket/pkg/chatsocket"
	"github.com/tsarna/chatsocket/pkg/chatsocket/schedule"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

// FileExtension is the suffix of files picked up when a directory is given.
const FileExtension = ".hcl"

type fileDefinition struct {
	Endpoint      string               `hcl:"endpoint"`
	DialTimeout   string               `hcl:"dial_timeout,optional"`
	ReadLimit     int64                `hcl:"read_limit,optional"`
	LogLevel      string               `hcl:"log_level,optional"`
	Headers       map[string]string    `hcl:"headers,optional"`
	Authorization string               `hcl:"authorization,optional"`
	Announces     []announceDefinition `hcl:"announce,block"`
}

type announceDefinition struct {
	Name     string         `hcl:"name,label"`
	Schedule string         `hcl:"schedule"`
	Message  hcl.Expression `hcl:"message"`
	DefRange hcl.Range      `hcl:",def_range"`
}

// Config is a loaded client configuration.
type Config struct {
	Endpoint      string
	DialTimeout   time.Duration
	ReadLimit     int64
	LogLevel      string
	Headers       map[string]string
	Authorization string
	Announces     []schedule.Job
}

// ConfigBuilder collects configuration sources.
type ConfigBuilder struct {
	logger  *zap.Logger
	sources []any
}

// NewConfig creates a ConfigBuilder.
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{logger: zap.NewNop()}
}

func (cb *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	if logger != nil {
		cb.logger = logger
	}
	return cb
}

// WithSources adds sources: a string is a file or directory path, a []byte
// is HCL source text.
func (cb *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	cb.sources = append(cb.sources, sources...)
	return cb
}

// Build parses and decodes every source into a single Config.
func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}
	if len(bodies) == 0 {
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "No configuration",
			Detail:   "No configuration files were found",
		})
	}

	evalCtx := &hcl.EvalContext{
		Functions: GetFunctions(),
		Variables: map[string]cty.Value{
			"env": GetEnvObject(),
		},
	}

	var def fileDefinition
	diags = diags.Extend(gohcl.DecodeBody(hcl.MergeBodies(bodies), evalCtx, &def))
	if diags.HasErrors() {
		return nil, diags
	}

	config, addDiags := buildConfig(&def, evalCtx)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	cb.logger.Debug("Config loaded",
		zap.String("endpoint", config.Endpoint),
		zap.Int("announces", len(config.Announces)))

	return config, diags
}

func buildConfig(def *fileDefinition, evalCtx *hcl.EvalContext) (*Config, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	config := &Config{
		Endpoint:      def.Endpoint,
		ReadLimit:     def.ReadLimit,
		LogLevel:      strings.ToLower(def.LogLevel),
		Headers:       def.Headers,
		Authorization: def.Authorization,
	}

	if !strings.HasPrefix(config.Endpoint, "ws://") && !strings.HasPrefix(config.Endpoint, "wss://") {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid endpoint",
			Detail:   fmt.Sprintf("endpoint must be a ws:// or wss:// URL, got %q", config.Endpoint),
		})
	}

	if def.DialTimeout != "" {
		timeout, err := time.ParseDuration(def.DialTimeout)
		if err != nil || timeout <= 0 {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid dial_timeout",
				Detail:   fmt.Sprintf("dial_timeout must be a positive duration such as \"10s\", got %q", def.DialTimeout),
			})
		}
		config.DialTimeout = timeout
	}

	if def.ReadLimit < 0 {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid read_limit",
			Detail:   "read_limit must not be negative",
		})
	}

	switch config.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid log_level",
			Detail:   fmt.Sprintf("log_level must be one of debug, info, warn, error; got %q", def.LogLevel),
		})
	}

	seen := make(map[string]bool)
	for _, announce := range def.Announces {
		if seen[announce.Name] {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate announce",
				Detail:   fmt.Sprintf("announce %q is defined more than once", announce.Name),
				Subject:  announce.DefRange.Ptr(),
			})
			continue
		}
		seen[announce.Name] = true

		if _, err := schedule.Parser.Parse(announce.Schedule); err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid schedule",
				Detail:   fmt.Sprintf("announce %q: %s", announce.Name, err),
				Subject:  announce.DefRange.Ptr(),
			})
			continue
		}

		message, addDiags := evaluateMessage(announce, evalCtx)
		diags = diags.Extend(addDiags)
		if addDiags.HasErrors() {
			continue
		}

		config.Announces = append(config.Announces, schedule.Job{
			Name:     announce.Name,
			Schedule: announce.Schedule,
			Message:  message,
		})
	}

	return config, diags
}

// evaluateMessage turns an announce message into the text frame to send.
// Strings are sent as-is; any other value is sent as JSON.
func evaluateMessage(announce announceDefinition, evalCtx *hcl.EvalContext) (string, hcl.Diagnostics) {
	value, diags := announce.Message.Value(evalCtx)
	if diags.HasErrors() {
		return "", diags
	}

	if value.IsNull() || !value.IsWhollyKnown() {
		return "", diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid message",
			Detail:   fmt.Sprintf("announce %q: message must not be null", announce.Name),
			Subject:  announce.Message.Range().Ptr(),
		})
	}

	if value.Type() == cty.String {
		return value.AsString(), diags
	}

	goValue, err := go2cty2go.CtyToAny(value)
	if err == nil {
		var encoded []byte
		encoded, err = json.Marshal(goValue)
		if err == nil {
			return string(encoded), diags
		}
	}

	return "", diags.Append(&hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Invalid message",
		Detail:   fmt.Sprintf("announce %q: cannot encode message: %s", announce.Name, err),
		Subject:  announce.Message.Range().Ptr(),
	})
}

// SocketBuilder returns an EventSocket builder populated from the config.
func (c *Config) SocketBuilder(logger *zap.Logger) *chatsocket.EventSocketBuilder {
	builder := chatsocket.NewEventSocket().
		WithURL(c.Endpoint).
		WithLogger(logger).
		WithDialTimeout(c.DialTimeout).
		WithReadLimit(c.ReadLimit).
		WithAuthorization(c.Authorization)

	for key, value := range c.Headers {
		builder.WithHeader(key, value)
	}

	return builder
}

// ParseConfigFiles parses each source into an HCL body. A string source
// names a file or a directory, in which case every file ending in
// FileExtension is read; a []byte source is HCL text.
func ParseConfigFiles(sources ...any) ([]hcl.Body, hcl.Diagnostics) {
	parser := hclparse.NewParser()
	var diags hcl.Diagnostics
	bodies := make([]hcl.Body, 0, len(sources))

	for _, source := range sources {
		switch v := source.(type) {
		case string:
			info, err := os.Stat(v)
			if err != nil {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Failed to stat file",
					Detail:   fmt.Sprintf("Error statting %s: %s", v, err),
				})
				continue
			}

			paths := []string{v}
			if info.IsDir() {
				paths, err = filepath.Glob(filepath.Join(v, "*"+FileExtension))
				if err != nil {
					diags = diags.Append(&hcl.Diagnostic{
						Severity: hcl.DiagError,
						Summary:  "Failed to list directory",
						Detail:   fmt.Sprintf("Error listing %s: %s", v, err),
					})
					continue
				}
			}

			for _, path := range paths {
				file, parseDiags := parser.ParseHCLFile(path)
				diags = diags.Extend(parseDiags)
				if file != nil {
					bodies = append(bodies, file.Body)
				}
			}
		case []byte:
			file, parseDiags := parser.ParseHCL(v, fmt.Sprintf("<bytes@%p>", v))
			diags = diags.Extend(parseDiags)
			if file != nil {
				bodies = append(bodies, file.Body)
			}
		default:
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid source type",
				Detail:   fmt.Sprintf("Invalid source type: %T", v),
			})
		}
	}

	return bodies, diags
}
