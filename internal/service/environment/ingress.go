package environment

import (
	"fmt"
	"strconv"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
)

// IngressHost returns the deterministic public hostname for an exposed
// service: <env-id>.<service>.<wildcard-suffix>.
func IngressHost(envID, service, suffix string) string {
	return fmt.Sprintf("%s.%s.%s", envID, service, suffix)
}

// RoutingLabels computes the traefik docker-provider labels that bind the
// service's public hostname, on the shared ingress network, to its
// container-side port. The labels are pure metadata: the ingress proxy
// watches the engine and configures itself, the agent never calls it.
//
// Replicas must carry these exact labels too, because traefik groups
// containers with the same router/service names into one load-balanced
// backend.
func RoutingLabels(envID string, spec domain.ServiceSpec, ingressNetwork, suffix string) map[string]string {
	router := envID + "-" + spec.Name
	host := IngressHost(envID, spec.Name, suffix)
	labels := map[string]string{
		"traefik.enable": "true",
		fmt.Sprintf("traefik.http.routers.%s.rule", router):                      fmt.Sprintf("Host(`%s`)", host),
		fmt.Sprintf("traefik.http.routers.%s.entrypoints", router):               "web",
		fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", router): strconv.Itoa(spec.Expose),
	}
	if ingressNetwork != "" {
		labels["traefik.docker.network"] = ingressNetwork
	}
	return labels
}
