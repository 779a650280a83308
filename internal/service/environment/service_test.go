package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/pkg/config"
)

func testService(rt runtime.ContainerRuntime) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	cfg := config.AgentConfig{
		IngressNetwork:    "test-ingress",
		IngressHostSuffix: "127.0.0.1.nip.io",
		RuntimeTimeout:    5 * time.Second,
	}
	svc := New(rt, logger, cfg)
	svc.newID = func() string { return "autotest-env-abc12345" }
	return svc
}

func TestDeployCreatesNetworkAndContainers(t *testing.T) {
	rt := newFakeRuntime()
	svc := testService(rt)

	specs := map[string]domain.ServiceSpec{
		"api": {Name: "api", Image: "nginx:alpine", Ports: []domain.PortMapping{{Host: 8080, Container: 80}}},
		"db":  {Name: "db", Image: "postgres:16"},
	}

	env, deployed, err := svc.Deploy(context.Background(), specs, ".")
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	if env.ID != "autotest-env-abc12345" {
		t.Fatalf("unexpected environment id %q", env.ID)
	}
	if env.NetworkName != "autotest-env-abc12345-net" {
		t.Fatalf("unexpected network name %q", env.NetworkName)
	}
	if len(deployed) != 2 {
		t.Fatalf("expected 2 deployed services, got %d", len(deployed))
	}

	networks, _ := rt.ListNetworksByLabel(context.Background(), EnvLabel, env.ID)
	if len(networks) != 1 {
		t.Fatalf("expected 1 labeled network, got %d", len(networks))
	}
	containers, _ := rt.ListContainersByLabel(context.Background(), EnvLabel, env.ID, true)
	if len(containers) != 2 {
		t.Fatalf("expected 2 labeled containers, got %d", len(containers))
	}
	for _, c := range containers {
		if c.Labels[ServiceLabel] == "" {
			t.Fatalf("container %s missing service label", c.Name)
		}
		if c.Labels[ReplicaLabel] != "" {
			t.Fatalf("primary container %s should not carry replica label", c.Name)
		}
	}

	api := deployed["api"]
	if len(api.Ports) != 1 || api.Ports[0].Host != 8080 || api.Ports[0].Container != 80 {
		t.Fatalf("unexpected api ports: %+v", api.Ports)
	}
	if rt.pulled["nginx:alpine"] == 0 || rt.pulled["postgres:16"] == 0 {
		t.Fatalf("expected both images pulled, got %v", rt.pulled)
	}
}

func TestDeployExposedServiceCarriesRoutingLabels(t *testing.T) {
	rt := newFakeRuntime()
	svc := testService(rt)

	specs := map[string]domain.ServiceSpec{
		"web": {Name: "web", Image: "nginx:alpine", Expose: 80},
	}
	env, _, err := svc.Deploy(context.Background(), specs, ".")
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}

	containers, _ := rt.ListContainersByLabel(context.Background(), EnvLabel, env.ID, true)
	if len(containers) != 1 {
		t.Fatalf("expected 1 container, got %d", len(containers))
	}
	labels := containers[0].Labels
	if labels["traefik.enable"] != "true" {
		t.Fatalf("expected traefik.enable label, got %v", labels)
	}
	wantRule := "Host(`autotest-env-abc12345.web.127.0.0.1.nip.io`)"
	if got := labels["traefik.http.routers.autotest-env-abc12345-web.rule"]; got != wantRule {
		t.Fatalf("unexpected router rule %q", got)
	}
	if got := rt.connected[containers[0].ID]; got != "test-ingress" {
		t.Fatalf("expected container attached to ingress network, got %q", got)
	}
}

func TestDeployRollsBackOnFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.pullErr["missing:latest"] = runtime.ErrNotFound
	svc := testService(rt)

	// Service names sort so "a-ok" deploys before "b-broken" fails.
	specs := map[string]domain.ServiceSpec{
		"a-ok":     {Name: "a-ok", Image: "nginx:alpine"},
		"b-broken": {Name: "b-broken", Image: "missing:latest"},
	}
	_, _, err := svc.Deploy(context.Background(), specs, ".")
	if err == nil {
		t.Fatal("expected deploy to fail")
	}
	if !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}

	containers, _ := rt.ListContainersByLabel(context.Background(), EnvLabel, "autotest-env-abc12345", true)
	if len(containers) != 0 {
		t.Fatalf("expected rollback to remove all containers, %d remain", len(containers))
	}
	networks, _ := rt.ListNetworksByLabel(context.Background(), EnvLabel, "autotest-env-abc12345")
	if len(networks) != 0 {
		t.Fatalf("expected rollback to remove the network, %d remain", len(networks))
	}
}

func TestDeployFailsWhenBuildContextMissing(t *testing.T) {
	rt := newFakeRuntime()
	svc := testService(rt)

	specs := map[string]domain.ServiceSpec{
		"app": {Name: "app", Build: "does-not-exist"},
	}
	_, _, err := svc.Deploy(context.Background(), specs, t.TempDir())
	if !errors.Is(err, ErrBuildContextMissing) {
		t.Fatalf("expected ErrBuildContextMissing, got %v", err)
	}
}

func TestDeployBuildsImageFromContext(t *testing.T) {
	rt := newFakeRuntime()
	svc := testService(rt)
	dir := t.TempDir()

	specs := map[string]domain.ServiceSpec{
		"app": {Name: "app", Build: "."},
	}
	env, _, err := svc.Deploy(context.Background(), specs, dir)
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	wantTag := "app:" + env.ID
	if len(rt.built) != 1 || rt.built[0] != wantTag {
		t.Fatalf("expected one build tagged %q, got %v", wantTag, rt.built)
	}
	containers, _ := rt.ListContainersByLabel(context.Background(), EnvLabel, env.ID, true)
	if len(containers) != 1 || containers[0].Labels[ServiceLabel] != "app" {
		t.Fatalf("expected built service container, got %+v", containers)
	}
}

func TestTeardownRemovesEverything(t *testing.T) {
	rt := newFakeRuntime()
	svc := testService(rt)

	specs := map[string]domain.ServiceSpec{
		"api": {Name: "api", Image: "nginx:alpine"},
		"db":  {Name: "db", Image: "postgres:16"},
	}
	env, _, err := svc.Deploy(context.Background(), specs, ".")
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}

	if err := svc.Teardown(context.Background(), env.ID); err != nil {
		t.Fatalf("teardown failed: %v", err)
	}
	containers, _ := rt.ListContainersByLabel(context.Background(), EnvLabel, env.ID, true)
	if len(containers) != 0 {
		t.Fatalf("expected no containers after teardown, got %d", len(containers))
	}
	networks, _ := rt.ListNetworksByLabel(context.Background(), EnvLabel, env.ID)
	if len(networks) != 0 {
		t.Fatalf("expected no networks after teardown, got %d", len(networks))
	}

	// Second teardown finds nothing behind the label.
	if err := svc.Teardown(context.Background(), env.ID); !errors.Is(err, ErrEnvironmentNotFound) {
		t.Fatalf("expected ErrEnvironmentNotFound, got %v", err)
	}
}

func TestTeardownUnknownEnvironment(t *testing.T) {
	rt := newFakeRuntime()
	svc := testService(rt)
	err := svc.Teardown(context.Background(), "autotest-env-nope")
	if !errors.Is(err, ErrEnvironmentNotFound) {
		t.Fatalf("expected ErrEnvironmentNotFound, got %v", err)
	}
}

func TestEnvironmentIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newEnvironmentID()
		if seen[id] {
			t.Fatalf("duplicate environment id %q", id)
		}
		seen[id] = true
	}
}

func TestRebuildSplitsPrimariesAndReplicas(t *testing.T) {
	rt := newFakeRuntime()
	svc := testService(rt)
	envID := "autotest-env-abc12345"

	rt.addContainer(runtime.ContainerInfo{
		ID:     "c-primary",
		Name:   envID + "-api",
		Labels: map[string]string{EnvLabel: envID, ServiceLabel: "api"},
		Ports:  []runtime.PortBinding{{HostPort: 8080, ContainerPort: 80}},
	})
	rt.addContainer(runtime.ContainerInfo{
		ID:     "c-replica",
		Name:   envID + "-api-replica-deadbeef",
		Labels: map[string]string{EnvLabel: envID, ServiceLabel: "api", ReplicaLabel: "true"},
	})

	deployed, err := svc.Rebuild(context.Background(), envID)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	api, ok := deployed["api"]
	if !ok {
		t.Fatal("expected api entry")
	}
	if api.ContainerID != "c-primary" {
		t.Fatalf("expected primary c-primary, got %q", api.ContainerID)
	}
	if len(api.Replicas) != 1 || api.Replicas[0] != "c-replica" {
		t.Fatalf("unexpected replicas: %v", api.Replicas)
	}
	if len(api.Ports) != 1 || api.Ports[0].Host != 8080 {
		t.Fatalf("unexpected ports: %+v", api.Ports)
	}
}

func TestRebuildUnknownEnvironment(t *testing.T) {
	rt := newFakeRuntime()
	svc := testService(rt)
	_, err := svc.Rebuild(context.Background(), "autotest-env-nope")
	if !errors.Is(err, ErrEnvironmentNotFound) {
		t.Fatalf("expected ErrEnvironmentNotFound, got %v", err)
	}
}

// fakeRuntime is an in-memory ContainerRuntime tracking labeled resources.
type fakeRuntime struct {
	mu         sync.Mutex
	seq        int
	containers map[string]runtime.ContainerInfo
	networks   map[string]runtime.NetworkInfo

	pulled    map[string]int
	pullErr   map[string]error
	built     []string
	connected map[string]string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		containers: make(map[string]runtime.ContainerInfo),
		networks:   make(map[string]runtime.NetworkInfo),
		pulled:     make(map[string]int),
		pullErr:    make(map[string]error),
		connected:  make(map[string]string),
	}
}

func (f *fakeRuntime) addContainer(info runtime.ContainerInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[info.ID] = info
}

func (f *fakeRuntime) Ping(context.Context) error { return nil }

func (f *fakeRuntime) CreateNetwork(ctx context.Context, name string, labels map[string]string) (runtime.NetworkInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	info := runtime.NetworkInfo{ID: fmt.Sprintf("net-%d", f.seq), Name: name, Labels: labels}
	f.networks[info.ID] = info
	return info, nil
}

func (f *fakeRuntime) RemoveNetwork(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.networks, id)
	return nil
}

func (f *fakeRuntime) ListNetworksByLabel(ctx context.Context, key, value string) ([]runtime.NetworkInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []runtime.NetworkInfo
	for _, n := range f.networks {
		if n.Labels[key] == value {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRuntime) ConnectNetwork(ctx context.Context, networkName, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected[containerID] = networkName
	return nil
}

func (f *fakeRuntime) BuildImage(ctx context.Context, dir, tag string, onOutput runtime.BuildOutput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, tag)
	return nil
}

func (f *fakeRuntime) PullImage(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pullErr[ref]; err != nil {
		return err
	}
	f.pulled[ref]++
	return nil
}

func (f *fakeRuntime) RunContainer(ctx context.Context, req runtime.RunRequest) (runtime.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	info := runtime.ContainerInfo{
		ID:      fmt.Sprintf("ctr-%d", f.seq),
		Name:    req.Name,
		Labels:  req.Labels,
		Running: true,
		Ports:   req.Ports,
		Networks: map[string]string{
			req.Network: fmt.Sprintf("172.20.0.%d", f.seq),
		},
	}
	f.containers[info.ID] = info
	return info, nil
}

func (f *fakeRuntime) GetContainer(ctx context.Context, nameOrID string) (runtime.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[nameOrID]; ok {
		return c, nil
	}
	for _, c := range f.containers {
		if c.Name == nameOrID {
			return c, nil
		}
	}
	return runtime.ContainerInfo{}, runtime.ErrNotFound
}

func (f *fakeRuntime) ListContainersByLabel(ctx context.Context, key, value string, includeStopped bool) ([]runtime.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []runtime.ContainerInfo
	for _, c := range f.containers {
		if c.Labels[key] != value {
			continue
		}
		if !includeStopped && !c.Running {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRuntime) RemoveContainer(ctx context.Context, id string, force, removeVolumes bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, id)
	return nil
}

func (f *fakeRuntime) RestartContainer(ctx context.Context, id string) error { return nil }

func (f *fakeRuntime) StatsSnapshot(ctx context.Context, id string) (runtime.StatsSample, error) {
	return runtime.StatsSample{}, nil
}
