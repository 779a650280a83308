package domain

import "time"

// CheckType selects the probe protocol for a health check.
type CheckType string

const (
	CheckHTTP CheckType = "http"
	CheckTCP  CheckType = "tcp"
)

// Metric identifies the signal an optimization rule evaluates.
type Metric string

// Action identifies what an optimization rule does when triggered.
type Action string

const (
	MetricCPUUsage Metric = "cpu_usage"
	ActionScaleUp  Action = "scale_up"
)

// PortMapping binds an optional host port to a container port. Host is zero
// when the manifest does not publish the port.
type PortMapping struct {
	Host      int
	Container int
}

// HealthCheck describes how a service is probed. Retries is the number of
// consecutive failed probes before the self-healing controller restarts the
// container, not a per-request retry count.
type HealthCheck struct {
	Type     CheckType
	Endpoint string
	Port     int
	Retries  int
	Interval time.Duration
}

// OptimizationRule triggers an action when a metric crosses a threshold.
// Threshold is a percentage of one core scaled by the CPU allotment.
type OptimizationRule struct {
	Metric    Metric
	Action    Action
	Threshold float64
}

// ServiceSpec is a single service from a validated manifest. Exactly one of
// Image and Build is set. Read-only once parsed.
type ServiceSpec struct {
	Name              string
	Image             string
	Build             string
	Ports             []PortMapping
	Environment       []string
	Expose            int
	HealthCheck       *HealthCheck
	OptimizationRules []OptimizationRule
}

// Exposed reports whether the service should be reachable through the
// shared ingress layer.
func (s ServiceSpec) Exposed() bool {
	return s.Expose > 0
}

// ProbePort returns the container-side port a health probe should target:
// the health check's explicit port, else the exposed port, else the first
// declared container port, else 80.
func (s ServiceSpec) ProbePort() int {
	if s.HealthCheck != nil && s.HealthCheck.Port > 0 {
		return s.HealthCheck.Port
	}
	if s.Expose > 0 {
		return s.Expose
	}
	if len(s.Ports) > 0 {
		return s.Ports[0].Container
	}
	return 80
}
