package tool

import (
	"context"

	"netmcp/internal/domain"
	"netmcp/internal/toon"
)

// Invoker runs device capabilities. *device.Dispatcher satisfies it.
type Invoker interface {
	Resolve(ctx context.Context, hostname string) error
	Invoke(ctx context.Context, hostname string, capability domain.Capability, args ...string) (any, error)
	DeviceOS(ctx context.Context, hostname string) (string, error)
}

const hostnameDescription = "Device hostname as listed in the inventory"

// DeviceTool binds one capability to a tool name. The result is returned
// TOON-encoded.
type DeviceTool struct {
	name        string
	description string
	capability  domain.Capability
	argName     string // second required argument, if any
	argDesc     string
	invoker     Invoker
}

func (t *DeviceTool) Name() string        { return t.name }
func (t *DeviceTool) Description() string { return t.description }

func (t *DeviceTool) Parameters() map[string]any {
	props := map[string]Param{
		"hostname": {Type: "string", Description: hostnameDescription},
	}
	required := []string{"hostname"}
	if t.argName != "" {
		props[t.argName] = Param{Type: "string", Description: t.argDesc}
		required = append(required, t.argName)
	}
	return ToolParameters(props, required)
}

// Capability returns the capability the tool invokes.
func (t *DeviceTool) Capability() domain.Capability { return t.capability }

func (t *DeviceTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	hostname, err := ArgsRequired(args, "hostname")
	if err != nil {
		return nil, err
	}
	var extra []string
	if t.argName != "" {
		v, err := ArgsRequired(args, t.argName)
		if err != nil {
			return nil, err
		}
		extra = append(extra, v)
	}

	result, err := t.invoker.Invoke(ctx, hostname, t.capability, extra...)
	if err != nil {
		return nil, err
	}
	return toon.Encode(result)
}

func NewFactsTool(inv Invoker) *DeviceTool {
	return &DeviceTool{
		name:        "get_facts",
		description: "Get basic facts about a network device: vendor, model, OS version, serial number, uptime and interface list.",
		capability:  domain.CapFacts,
		invoker:     inv,
	}
}

func NewInterfacesTool(inv Invoker) *DeviceTool {
	return &DeviceTool{
		name:        "get_interfaces",
		description: "Get the interfaces of a network device with admin/oper state, description, MAC address, speed and MTU.",
		capability:  domain.CapInterfaces,
		invoker:     inv,
	}
}

func NewInterfacesIPTool(inv Invoker) *DeviceTool {
	return &DeviceTool{
		name:        "get_interfaces_ip",
		description: "Get the IPv4 and IPv6 addresses configured on each interface of a network device.",
		capability:  domain.CapInterfacesIP,
		invoker:     inv,
	}
}

func NewBGPNeighborsTool(inv Invoker) *DeviceTool {
	return &DeviceTool{
		name:        "get_bgp_neighbors",
		description: "Get BGP neighbors of a network device with remote AS, session state and uptime.",
		capability:  domain.CapBGPNeighbors,
		invoker:     inv,
	}
}

func NewLLDPNeighborsTool(inv Invoker) *DeviceTool {
	return &DeviceTool{
		name:        "get_lldp_neighbors",
		description: "Get LLDP neighbors seen on each local interface of a network device.",
		capability:  domain.CapLLDPNeighbors,
		invoker:     inv,
	}
}

func NewPingTool(inv Invoker) *DeviceTool {
	return &DeviceTool{
		name:        "ping",
		description: "Ping a destination from a network device and return probe statistics.",
		capability:  domain.CapPing,
		argName:     "destination",
		argDesc:     "IP address or hostname to ping from the device",
		invoker:     inv,
	}
}

func NewTracerouteTool(inv Invoker) *DeviceTool {
	return &DeviceTool{
		name:        "traceroute",
		description: "Run a traceroute from a network device and return the hops with per-probe RTT.",
		capability:  domain.CapTraceroute,
		argName:     "destination",
		argDesc:     "IP address or hostname to trace from the device",
		invoker:     inv,
	}
}

// DeviceOSTool reports the driver kind of a device. It reads the inventory
// only and never connects.
type DeviceOSTool struct {
	invoker Invoker
}

func NewDeviceOSTool(inv Invoker) *DeviceOSTool {
	return &DeviceOSTool{invoker: inv}
}

func (t *DeviceOSTool) Name() string { return "get_device_os" }
func (t *DeviceOSTool) Description() string {
	return "Get the network OS (driver kind such as ios, iosxr, junos, eos, nxos) recorded for a device in the inventory."
}

func (t *DeviceOSTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"hostname": {Type: "string", Description: hostnameDescription},
		},
		[]string{"hostname"},
	)
}

func (t *DeviceOSTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	hostname, err := ArgsRequired(args, "hostname")
	if err != nil {
		return nil, err
	}
	return t.invoker.DeviceOS(ctx, hostname)
}

// RegisterDeviceTools registers every device tool on reg. policy may be nil,
// in which case run_command sends any command.
func RegisterDeviceTools(reg *Registry, inv Invoker, policy domain.CommandPolicy) {
	reg.Register(NewDeviceOSTool(inv))
	reg.Register(NewFactsTool(inv))
	reg.Register(NewInterfacesTool(inv))
	reg.Register(NewInterfacesIPTool(inv))
	reg.Register(NewBGPNeighborsTool(inv))
	reg.Register(NewLLDPNeighborsTool(inv))
	reg.Register(NewPingTool(inv))
	reg.Register(NewTracerouteTool(inv))
	reg.Register(NewRunCommandTool(inv, policy))
}
