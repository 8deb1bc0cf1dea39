package domain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

var (
	ErrConfigurationMissing  = errors.New("inventory file not found")
	ErrDeviceNotFound        = errors.New("device not found in inventory")
	ErrConnection            = errors.New("cannot connect to device")
	ErrUnsupportedCapability = errors.New("unsupported capability")
	ErrCapabilityInvocation  = errors.New("capability invocation failed")
	ErrEncoding              = errors.New("result cannot be encoded")

	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownDriver   = errors.New("unknown driver")
	ErrCommandRejected = errors.New("command rejected by policy")

	// ErrNotImplemented is returned by drivers for getters they cannot serve.
	ErrNotImplemented = errors.New("not implemented by driver")
)

// ConfigurationMissingError reports the inventory path that was attempted.
type ConfigurationMissingError struct {
	Path string
}

func (e *ConfigurationMissingError) Error() string {
	abs, err := filepath.Abs(e.Path)
	if err != nil {
		abs = e.Path
	}
	return fmt.Sprintf("inventory file not found at: %s (absolute path: %s)", e.Path, abs)
}

func (e *ConfigurationMissingError) Is(target error) bool {
	return target == ErrConfigurationMissing
}

// ErrorKind classifies err into a short label used by metrics and the audit
// journal. A nil error is "ok".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, ErrDeviceNotFound):
		return "device_not_found"
	case errors.Is(err, ErrUnknownDriver):
		return "unknown_driver"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrCommandRejected):
		return "command_rejected"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrUnsupportedCapability):
		return "unsupported_capability"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrCapabilityInvocation):
		return "capability_invocation"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	default:
		return "internal"
	}
}
