package configloader

// FileLoggerConfig configures the lumberjack rotating-file sink used when
// LoggerConfig.Mode is "file".
type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

// LoggerConfig configures the zap-backed logger.
type LoggerConfig struct {
	Active   bool             `yaml:"active"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

// Route53Config configures bootstrap peer discovery against an AWS Route53
// hosted zone, one record per known peer.
type Route53Config struct {
	HostedZoneID string `yaml:"hostedZoneId"`
	DomainSuffix string `yaml:"domainSuffix"`
	TTL          int64  `yaml:"ttl"`
	Region       string `yaml:"region"`
}

// DockerConfig configures bootstrap peer discovery via the docker CLI,
// listing sibling containers on a shared network.
type DockerConfig struct {
	Network string `yaml:"network"`
	Suffix  string `yaml:"suffix"`
	Port    int    `yaml:"port"`
}

// BootstrapConfig selects and configures how a node finds its first peer.
type BootstrapConfig struct {
	Mode    string        `yaml:"mode"` // "static" | "route53" | "docker"
	Peers   []string      `yaml:"peers"`
	Route53 Route53Config `yaml:"route53"`
	Docker  DockerConfig  `yaml:"docker"`
}

// TracingConfig selects the OpenTelemetry span exporter.
type TracingConfig struct {
	Exporter string `yaml:"exporter"` // "stdout" | "otlp" | "none"
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// TelemetryConfig groups the node's observability exporters.
type TelemetryConfig struct {
	ServiceName string        `yaml:"serviceName"`
	Tracing     TracingConfig `yaml:"tracing"`
	MetricsAddr string        `yaml:"metricsAddr"` // prometheus /metrics listen address, empty disables
}
