// Package config defines the root configuration for a p2pstreamd node:
// the ambient logging/telemetry settings plus the overlay's own tunables
// (tick cadence, the four soft-state timeouts from the core, bootstrap
// discovery). It mirrors the teacher's LoadConfig/ApplyEnvOverrides/
// ValidateConfig/LogConfig shape, built on the shared configloader
// structs.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"p2pstreamd/internal/configloader"
	"p2pstreamd/internal/logger"
)

// OverlayConfig carries the core engine's scheduling parameters: the
// suggested host tick cadence and the four logical timeouts defined by
// the protocol (spec-level constants, exposed here so operators can
// tune them without touching code).
type OverlayConfig struct {
	TickInterval         time.Duration `yaml:"tickInterval"`
	ChordRequestTimeout  time.Duration `yaml:"chordRequestTimeout"`
	PredecessorWarmup    time.Duration `yaml:"predecessorWarmup"`
	PongTimeout          time.Duration `yaml:"pongTimeout"`
	PubsubSubscribeLease time.Duration `yaml:"pubsubSubscribeLease"`
}

// NodeConfig identifies this node on the ring and where its two
// listeners bind: the overlay's own TCP transport (Chord/router/pubsub
// wire traffic) and the host-facing admin gRPC surface (hostapi).
type NodeConfig struct {
	Id        string `yaml:"id"`        // hex uint32; empty derives one from Bind
	Bind      string `yaml:"bind"`      // overlay TCP listen address
	AdminBind string `yaml:"adminBind"` // hostapi gRPC listen address
	AdminTLS  bool   `yaml:"adminTLS"`
}

// Config is the root configuration for a p2pstreamd node.
type Config struct {
	Logger    configloader.LoggerConfig    `yaml:"logger"`
	Telemetry configloader.TelemetryConfig `yaml:"telemetry"`
	Node      NodeConfig                   `yaml:"node"`
	Overlay   OverlayConfig                `yaml:"overlay"`
	Bootstrap configloader.BootstrapConfig `yaml:"bootstrap"`
}

// LoadConfig reads cfg from the YAML file at path and applies environment
// overrides. Defaults for the overlay's timing constants are filled in
// when the file leaves them at zero, so a minimal config file is valid.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := configloader.LoadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	configloader.OverrideString(&cfg.Node.Id, "NODE_ID")
	configloader.OverrideString(&cfg.Node.Bind, "NODE_BIND")
	configloader.OverrideString(&cfg.Node.AdminBind, "NODE_ADMIN_BIND")
	configloader.OverrideBool(&cfg.Node.AdminTLS, "NODE_ADMIN_TLS")

	configloader.OverrideDuration(&cfg.Overlay.TickInterval, "OVERLAY_TICK_INTERVAL")
	configloader.OverrideDuration(&cfg.Overlay.ChordRequestTimeout, "OVERLAY_CHORD_REQUEST_TIMEOUT")
	configloader.OverrideDuration(&cfg.Overlay.PredecessorWarmup, "OVERLAY_PREDECESSOR_WARMUP")
	configloader.OverrideDuration(&cfg.Overlay.PongTimeout, "OVERLAY_PONG_TIMEOUT")
	configloader.OverrideDuration(&cfg.Overlay.PubsubSubscribeLease, "OVERLAY_PUBSUB_LEASE")

	configloader.OverrideString(&cfg.Bootstrap.Mode, "BOOTSTRAP_MODE")
	configloader.OverrideStringSlice(&cfg.Bootstrap.Peers, "BOOTSTRAP_PEERS")
	configloader.OverrideString(&cfg.Bootstrap.Route53.HostedZoneID, "ROUTE53_ZONE_ID")
	configloader.OverrideString(&cfg.Bootstrap.Route53.DomainSuffix, "ROUTE53_SUFFIX")
	configloader.OverrideInt64(&cfg.Bootstrap.Route53.TTL, "ROUTE53_TTL")
	configloader.OverrideString(&cfg.Bootstrap.Route53.Region, "ROUTE53_REGION")
	configloader.OverrideString(&cfg.Bootstrap.Docker.Network, "DOCKER_NETWORK")
	configloader.OverrideString(&cfg.Bootstrap.Docker.Suffix, "DOCKER_SUFFIX")
	configloader.OverrideInt(&cfg.Bootstrap.Docker.Port, "DOCKER_PORT")

	configloader.OverrideBool(&cfg.Logger.Active, "LOGGER_ACTIVE")
	configloader.OverrideString(&cfg.Logger.Level, "LOGGER_LEVEL")
	configloader.OverrideString(&cfg.Logger.Encoding, "LOGGER_ENCODING")
	configloader.OverrideString(&cfg.Logger.Mode, "LOGGER_MODE")
	configloader.OverrideString(&cfg.Logger.File.Path, "LOGGER_FILE_PATH")
	configloader.OverrideInt(&cfg.Logger.File.MaxSize, "LOGGER_FILE_MAX_SIZE")
	configloader.OverrideInt(&cfg.Logger.File.MaxBackups, "LOGGER_FILE_MAX_BACKUPS")
	configloader.OverrideInt(&cfg.Logger.File.MaxAge, "LOGGER_FILE_MAX_AGE")
	configloader.OverrideBool(&cfg.Logger.File.Compress, "LOGGER_FILE_COMPRESS")

	configloader.OverrideString(&cfg.Telemetry.ServiceName, "TELEMETRY_SERVICE_NAME")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Exporter, "TELEMETRY_TRACING_EXPORTER")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Endpoint, "TELEMETRY_TRACING_ENDPOINT")
	configloader.OverrideBool(&cfg.Telemetry.Tracing.Insecure, "TELEMETRY_TRACING_INSECURE")
	configloader.OverrideString(&cfg.Telemetry.MetricsAddr, "TELEMETRY_METRICS_ADDR")
}

// applyDefaults fills the four protocol timeouts and tick cadence with
// the values named in the core's specification when a config file
// leaves them unset.
func applyDefaults(cfg *Config) {
	if cfg.Node.Bind == "" {
		cfg.Node.Bind = "0.0.0.0:7946"
	}
	if cfg.Node.AdminBind == "" {
		cfg.Node.AdminBind = "127.0.0.1:7947"
	}
	if cfg.Overlay.TickInterval <= 0 {
		cfg.Overlay.TickInterval = 100 * time.Millisecond
	}
	if cfg.Overlay.ChordRequestTimeout <= 0 {
		cfg.Overlay.ChordRequestTimeout = 10 * time.Second
	}
	if cfg.Overlay.PredecessorWarmup <= 0 {
		cfg.Overlay.PredecessorWarmup = 10 * time.Second
	}
	if cfg.Overlay.PongTimeout <= 0 {
		cfg.Overlay.PongTimeout = 10 * time.Second
	}
	if cfg.Overlay.PubsubSubscribeLease <= 0 {
		cfg.Overlay.PubsubSubscribeLease = 5 * time.Second
	}
}

// ValidateConfig performs structural validation only: required fields,
// value ranges, and enum-like fields. It does not second-guess the
// protocol timing constants beyond requiring them to be positive.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	if _, _, err := net.SplitHostPort(cfg.Node.Bind); err != nil {
		errs = append(errs, fmt.Sprintf("invalid node.bind: %v", err))
	}
	if _, _, err := net.SplitHostPort(cfg.Node.AdminBind); err != nil {
		errs = append(errs, fmt.Sprintf("invalid node.adminBind: %v", err))
	}

	if cfg.Overlay.TickInterval <= 0 {
		errs = append(errs, "overlay.tickInterval must be > 0")
	}
	if cfg.Overlay.ChordRequestTimeout <= 0 {
		errs = append(errs, "overlay.chordRequestTimeout must be > 0")
	}
	if cfg.Overlay.PredecessorWarmup <= 0 {
		errs = append(errs, "overlay.predecessorWarmup must be > 0")
	}
	if cfg.Overlay.PongTimeout <= 0 {
		errs = append(errs, "overlay.pongTimeout must be > 0")
	}
	if cfg.Overlay.PubsubSubscribeLease <= 0 {
		errs = append(errs, "overlay.pubsubSubscribeLease must be > 0")
	}

	b := cfg.Bootstrap
	switch b.Mode {
	case "route53":
		if b.Route53.HostedZoneID == "" {
			errs = append(errs, "bootstrap.route53.hostedZoneId is required in mode=route53")
		}
		if b.Route53.DomainSuffix == "" {
			errs = append(errs, "bootstrap.route53.domainSuffix is required in mode=route53")
		}
		if b.Route53.TTL <= 0 {
			errs = append(errs, "bootstrap.route53.ttl must be > 0 in mode=route53")
		}
	case "docker":
		if b.Docker.Suffix == "" {
			errs = append(errs, "bootstrap.docker.suffix is required in mode=docker")
		}
		if b.Docker.Port <= 0 {
			errs = append(errs, "bootstrap.docker.port must be > 0 in mode=docker")
		}
	case "static":
		for _, p := range b.Peers {
			if _, _, err := net.SplitHostPort(p); err != nil {
				errs = append(errs, fmt.Sprintf("invalid peer address %q in bootstrap.peers: %v", p, err))
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid bootstrap.mode: %s (must be static, route53 or docker)", b.Mode))
	}

	if cfg.Telemetry.Tracing.Exporter != "" {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout", "otlp", "none":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s", cfg.Telemetry.Tracing.Exporter))
		}
		if cfg.Telemetry.Tracing.Exporter == "otlp" && cfg.Telemetry.Tracing.Endpoint == "" {
			errs = append(errs, "telemetry.tracing.endpoint is required when exporter=otlp")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig prints the loaded configuration at info level, mirroring
// the teacher's startup diagnostics.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Info("loaded configuration",
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),

		logger.F("node.id", cfg.Node.Id),
		logger.F("node.bind", cfg.Node.Bind),
		logger.F("node.adminBind", cfg.Node.AdminBind),

		logger.F("overlay.tickInterval", cfg.Overlay.TickInterval.String()),
		logger.F("overlay.chordRequestTimeout", cfg.Overlay.ChordRequestTimeout.String()),
		logger.F("overlay.predecessorWarmup", cfg.Overlay.PredecessorWarmup.String()),
		logger.F("overlay.pongTimeout", cfg.Overlay.PongTimeout.String()),
		logger.F("overlay.pubsubSubscribeLease", cfg.Overlay.PubsubSubscribeLease.String()),

		logger.F("bootstrap.mode", cfg.Bootstrap.Mode),
		logger.F("bootstrap.peers", cfg.Bootstrap.Peers),

		logger.F("telemetry.serviceName", cfg.Telemetry.ServiceName),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
		logger.F("telemetry.tracing.endpoint", cfg.Telemetry.Tracing.Endpoint),
		logger.F("telemetry.metricsAddr", cfg.Telemetry.MetricsAddr),
	)
}
