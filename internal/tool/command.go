package tool

import (
	"context"
	"fmt"
	"reflect"

	"netmcp/internal/domain"
	"netmcp/internal/toon"
)

// RunCommandTool sends one vendor-native CLI command to a device.
type RunCommandTool struct {
	invoker Invoker
	policy  domain.CommandPolicy
}

func NewRunCommandTool(inv Invoker, policy domain.CommandPolicy) *RunCommandTool {
	return &RunCommandTool{invoker: inv, policy: policy}
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Description() string {
	return "Run a read-only CLI command on a network device in its native syntax (e.g. 'show ip route' on IOS). Returns the command output keyed by command."
}

func (t *RunCommandTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"hostname": {Type: "string", Description: hostnameDescription},
			"command":  {Type: "string", Description: "CLI command in the device's native syntax"},
		},
		[]string{"hostname", "command"},
	)
}

func (t *RunCommandTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	hostname, err := ArgsRequired(args, "hostname")
	if err != nil {
		return nil, err
	}
	command, err := ArgsRequired(args, "command")
	if err != nil {
		return nil, err
	}

	// Unknown hosts report device_not_found whatever the command.
	if err := t.invoker.Resolve(ctx, hostname); err != nil {
		return nil, err
	}

	if t.policy != nil {
		action, err := t.policy.Check(ctx, hostname, command)
		if err != nil {
			return nil, fmt.Errorf("command policy: %w", err)
		}
		if action == domain.ActionBlock {
			return nil, fmt.Errorf("%w: %q on %s", domain.ErrCommandRejected, command, hostname)
		}
	}

	result, err := t.invoker.Invoke(ctx, hostname, domain.CapRunCommand, command)
	if err != nil {
		return nil, err
	}
	if isEmpty(result) {
		return result, nil
	}
	return toon.Encode(result)
}

// isEmpty reports nil values and empty maps, slices and strings.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.String:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
