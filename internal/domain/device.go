package domain

import (
	"context"
	"fmt"
)

// Capability names one device operation the dispatcher knows how to invoke.
type Capability string

const (
	CapFacts         Capability = "facts"
	CapInterfaces    Capability = "interfaces"
	CapInterfacesIP  Capability = "interfaces-ip"
	CapBGPNeighbors  Capability = "bgp-neighbors"
	CapLLDPNeighbors Capability = "lldp-neighbors"
	CapPing          Capability = "ping"
	CapTraceroute    Capability = "traceroute"
	CapRunCommand    Capability = "run-command"
)

// Capabilities lists every supported capability in a stable order.
func Capabilities() []Capability {
	return []Capability{
		CapFacts, CapInterfaces, CapInterfacesIP, CapBGPNeighbors,
		CapLLDPNeighbors, CapPing, CapTraceroute, CapRunCommand,
	}
}

// ParseCapability maps a capability name to its constant.
func ParseCapability(name string) (Capability, error) {
	for _, c := range Capabilities() {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCapability, name)
}

// Arity returns how many arguments the capability takes. A negative value
// means one or more.
func (c Capability) Arity() int {
	switch c {
	case CapPing, CapTraceroute:
		return 1
	case CapRunCommand:
		return -1
	default:
		return 0
	}
}

// Credentials are the login details stored for a device in the inventory.
type Credentials struct {
	Username string
	Password string
}

// InventoryEntry is one device as declared in the inventory file.
type InventoryEntry struct {
	Hostname     string            `yaml:"-" json:"hostname"`
	Driver       string            `yaml:"driver" json:"driver"`
	Username     string            `yaml:"username" json:"username"`
	Password     string            `yaml:"password" json:"-"`
	OptionalArgs map[string]string `yaml:"optional_args,omitempty" json:"optional_args,omitempty"`
}

// Credentials returns the entry's login details.
func (e InventoryEntry) Credentials() Credentials {
	return Credentials{Username: e.Username, Password: e.Password}
}

// Device is a live handle to one network device. Implementations exist per
// driver kind; getters a driver cannot serve return ErrNotImplemented.
type Device interface {
	Open(ctx context.Context) error
	Close() error

	Facts(ctx context.Context) (map[string]any, error)
	Interfaces(ctx context.Context) (map[string]any, error)
	InterfacesIP(ctx context.Context) (map[string]any, error)
	BGPNeighbors(ctx context.Context) (map[string]any, error)
	LLDPNeighbors(ctx context.Context) (map[string]any, error)
	Ping(ctx context.Context, destination string) (map[string]any, error)
	Traceroute(ctx context.Context, destination string) (map[string]any, error)

	// CLI runs each command and maps it to its textual output.
	CLI(ctx context.Context, commands []string) (map[string]string, error)
}
