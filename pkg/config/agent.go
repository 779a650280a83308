package config

import (
	"time"
)

// AgentConfig holds runtime configuration for the autotest agent.
type AgentConfig struct {
	Environment       string
	DockerHost        string
	IngressNetwork    string
	IngressHostSuffix string
	ReconcileInterval time.Duration
	GracePeriod       time.Duration
	ProbeTimeout      time.Duration
	RuntimeTimeout    time.Duration
	MetricsAddr       string
	LogLevel          string
}

// LoadAgentConfig constructs an AgentConfig from environment variables.
func LoadAgentConfig() AgentConfig {
	return AgentConfig{
		Environment:       GetString("APP_ENV", "development"),
		DockerHost:        GetString("DOCKER_HOST", ""),
		IngressNetwork:    GetString("AUTOTEST_INGRESS_NETWORK", "autotest-ingress"),
		IngressHostSuffix: GetString("AUTOTEST_INGRESS_SUFFIX", "127.0.0.1.nip.io"),
		ReconcileInterval: GetDuration("AUTOTEST_RECONCILE_INTERVAL", 10*time.Second),
		GracePeriod:       GetDuration("AUTOTEST_GRACE_PERIOD", 10*time.Second),
		ProbeTimeout:      GetDuration("AUTOTEST_PROBE_TIMEOUT", 5*time.Second),
		RuntimeTimeout:    GetDuration("AUTOTEST_RUNTIME_TIMEOUT", 30*time.Second),
		MetricsAddr:       GetString("AUTOTEST_METRICS_ADDR", ""),
		LogLevel:          GetString("AUTOTEST_LOG_LEVEL", "info"),
	}
}
