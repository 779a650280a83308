package environment

import (
	"testing"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
)

func TestIngressHost(t *testing.T) {
	got := IngressHost("autotest-env-abc12345", "web", "127.0.0.1.nip.io")
	want := "autotest-env-abc12345.web.127.0.0.1.nip.io"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRoutingLabels(t *testing.T) {
	spec := domain.ServiceSpec{Name: "web", Image: "nginx:alpine", Expose: 8080}
	labels := RoutingLabels("env1", spec, "shared-ingress", "localtest.me")

	want := map[string]string{
		"traefik.enable": "true",
		"traefik.http.routers.env1-web.rule":                      "Host(`env1.web.localtest.me`)",
		"traefik.http.routers.env1-web.entrypoints":               "web",
		"traefik.http.services.env1-web.loadbalancer.server.port": "8080",
		"traefik.docker.network":                                  "shared-ingress",
	}
	if len(labels) != len(want) {
		t.Fatalf("expected %d labels, got %d: %v", len(want), len(labels), labels)
	}
	for k, v := range want {
		if labels[k] != v {
			t.Fatalf("label %q: expected %q, got %q", k, v, labels[k])
		}
	}
}

func TestRoutingLabelsWithoutIngressNetwork(t *testing.T) {
	spec := domain.ServiceSpec{Name: "web", Expose: 80}
	labels := RoutingLabels("env1", spec, "", "localtest.me")
	if _, ok := labels["traefik.docker.network"]; ok {
		t.Fatal("expected no network label when ingress network is unset")
	}
}
