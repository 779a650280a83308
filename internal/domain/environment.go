package domain

// Environment is an isolated, labeled collection of containers plus one
// network representing a single test deployment. The environment id doubles
// as the label value on every owned runtime resource; those labels are the
// only durable record of ownership.
type Environment struct {
	ID          string
	Services    map[string]ServiceSpec
	NetworkID   string
	NetworkName string
}

// DeployedService is the runtime-observed result of creating a service's
// primary container. It is never persisted; after a process restart it is
// reconstructed by querying the runtime for containers carrying the
// environment label.
type DeployedService struct {
	ContainerID string
	Ports       []PortMapping
	Replicas    []string
}
