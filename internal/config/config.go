// Package config loads and validates environment manifests. A manifest is
// a compose-style YAML document whose services section is turned into
// validated ServiceSpec values with defaults applied.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
)

const (
	// DefaultRetries is the consecutive-failure threshold applied when a
	// health check does not set one.
	DefaultRetries = 3
	// DefaultInterval is the probe interval applied when a health check
	// does not set one.
	DefaultInterval = 15 * time.Second
)

// ValidationError identifies the manifest service and field that failed
// validation.
type ValidationError struct {
	Service string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("manifest invalid: %s", e.Reason)
	}
	return fmt.Sprintf("service %q: field %q: %s", e.Service, e.Field, e.Reason)
}

type manifest struct {
	Services map[string]manifestService `yaml:"services"`
}

type manifestService struct {
	Image             string              `yaml:"image,omitempty"`
	Build             string              `yaml:"build,omitempty"`
	Ports             []string            `yaml:"ports,omitempty"`
	Environment       []string            `yaml:"environment,omitempty"`
	Expose            int                 `yaml:"expose,omitempty"`
	HealthCheck       *manifestCheck      `yaml:"healthcheck,omitempty"`
	OptimizationRules []manifestScaleRule `yaml:"optimization_rules,omitempty"`
}

type manifestCheck struct {
	Type     string `yaml:"type,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Retries  int    `yaml:"retries,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

type manifestScaleRule struct {
	Metric    string  `yaml:"metric"`
	Action    string  `yaml:"action"`
	Threshold float64 `yaml:"threshold"`
}

// Load reads a manifest file and returns validated service specs keyed by
// service name.
func Load(path string) (map[string]domain.ServiceSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(raw)
}

// Parse validates manifest bytes. YAML syntax errors keep yaml.v3's line
// context so operators can locate the problem.
func Parse(raw []byte) (map[string]domain.ServiceSpec, error) {
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Services) == 0 {
		return nil, &ValidationError{Reason: "manifest is empty or has no services section"}
	}

	specs := make(map[string]domain.ServiceSpec, len(m.Services))
	for _, name := range sortedNames(m.Services) {
		spec, err := buildSpec(name, m.Services[name])
		if err != nil {
			return nil, err
		}
		specs[name] = spec
	}
	return specs, nil
}

func buildSpec(name string, svc manifestService) (domain.ServiceSpec, error) {
	if strings.TrimSpace(svc.Image) == "" && strings.TrimSpace(svc.Build) == "" {
		return domain.ServiceSpec{}, &ValidationError{Service: name, Field: "image", Reason: "service defines neither image nor build"}
	}

	spec := domain.ServiceSpec{
		Name:        name,
		Image:       strings.TrimSpace(svc.Image),
		Build:       strings.TrimSpace(svc.Build),
		Environment: svc.Environment,
		Expose:      svc.Expose,
	}
	if svc.Expose < 0 || svc.Expose > 65535 {
		return domain.ServiceSpec{}, &ValidationError{Service: name, Field: "expose", Reason: fmt.Sprintf("port %d out of range", svc.Expose)}
	}

	for _, mapping := range svc.Ports {
		pm, err := parsePortMapping(mapping)
		if err != nil {
			return domain.ServiceSpec{}, &ValidationError{Service: name, Field: "ports", Reason: err.Error()}
		}
		spec.Ports = append(spec.Ports, pm)
	}

	if svc.HealthCheck != nil {
		check, err := buildCheck(name, *svc.HealthCheck)
		if err != nil {
			return domain.ServiceSpec{}, err
		}
		spec.HealthCheck = &check
	}

	for i, rule := range svc.OptimizationRules {
		built, err := buildRule(name, i, rule)
		if err != nil {
			return domain.ServiceSpec{}, err
		}
		spec.OptimizationRules = append(spec.OptimizationRules, built)
	}
	return spec, nil
}

func buildCheck(service string, check manifestCheck) (domain.HealthCheck, error) {
	out := domain.HealthCheck{
		Endpoint: check.Endpoint,
		Port:     check.Port,
		Retries:  check.Retries,
		Interval: DefaultInterval,
	}

	switch strings.ToLower(strings.TrimSpace(check.Type)) {
	case "", "http":
		out.Type = domain.CheckHTTP
		if out.Endpoint == "" {
			out.Endpoint = "/"
		}
		if !strings.HasPrefix(out.Endpoint, "/") {
			return domain.HealthCheck{}, &ValidationError{Service: service, Field: "healthcheck.endpoint", Reason: fmt.Sprintf("endpoint %q must start with /", out.Endpoint)}
		}
	case "tcp":
		out.Type = domain.CheckTCP
		if check.Endpoint != "" {
			return domain.HealthCheck{}, &ValidationError{Service: service, Field: "healthcheck.endpoint", Reason: "endpoint is only valid for http checks"}
		}
	default:
		return domain.HealthCheck{}, &ValidationError{Service: service, Field: "healthcheck.type", Reason: fmt.Sprintf("unknown check type %q", check.Type)}
	}

	if check.Port < 0 || check.Port > 65535 {
		return domain.HealthCheck{}, &ValidationError{Service: service, Field: "healthcheck.port", Reason: fmt.Sprintf("port %d out of range", check.Port)}
	}
	if check.Retries < 0 {
		return domain.HealthCheck{}, &ValidationError{Service: service, Field: "healthcheck.retries", Reason: "retries cannot be negative"}
	}
	if out.Retries == 0 {
		out.Retries = DefaultRetries
	}
	if check.Interval != "" {
		interval, err := time.ParseDuration(check.Interval)
		if err != nil || interval <= 0 {
			return domain.HealthCheck{}, &ValidationError{Service: service, Field: "healthcheck.interval", Reason: fmt.Sprintf("invalid interval %q", check.Interval)}
		}
		out.Interval = interval
	}
	return out, nil
}

func buildRule(service string, index int, rule manifestScaleRule) (domain.OptimizationRule, error) {
	field := fmt.Sprintf("optimization_rules[%d]", index)
	if domain.Metric(rule.Metric) != domain.MetricCPUUsage {
		return domain.OptimizationRule{}, &ValidationError{Service: service, Field: field + ".metric", Reason: fmt.Sprintf("unknown metric %q", rule.Metric)}
	}
	if domain.Action(rule.Action) != domain.ActionScaleUp {
		return domain.OptimizationRule{}, &ValidationError{Service: service, Field: field + ".action", Reason: fmt.Sprintf("unknown action %q", rule.Action)}
	}
	if rule.Threshold <= 0 {
		return domain.OptimizationRule{}, &ValidationError{Service: service, Field: field + ".threshold", Reason: "threshold must be a positive percentage"}
	}
	return domain.OptimizationRule{
		Metric:    domain.MetricCPUUsage,
		Action:    domain.ActionScaleUp,
		Threshold: rule.Threshold,
	}, nil
}

// parsePortMapping accepts "host:container" or a bare container port.
func parsePortMapping(raw string) (domain.PortMapping, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.PortMapping{}, fmt.Errorf("empty port mapping")
	}
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 1:
		port, err := parsePort(parts[0])
		if err != nil {
			return domain.PortMapping{}, err
		}
		return domain.PortMapping{Container: port}, nil
	case 2:
		host, err := parsePort(parts[0])
		if err != nil {
			return domain.PortMapping{}, err
		}
		cont, err := parsePort(parts[1])
		if err != nil {
			return domain.PortMapping{}, err
		}
		return domain.PortMapping{Host: host, Container: cont}, nil
	default:
		return domain.PortMapping{}, fmt.Errorf("port mapping %q is not host:container", raw)
	}
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", raw)
	}
	return port, nil
}

func sortedNames(services map[string]manifestService) []string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
