package domain

import "context"

type SecurityAction string

const (
	ActionAllow SecurityAction = "allow"
	ActionBlock SecurityAction = "block"
)

// CommandPolicy decides whether a raw CLI command may be sent to a device.
type CommandPolicy interface {
	Check(ctx context.Context, hostname string, command string) (SecurityAction, error)
}

type AuditEntry struct {
	Action   string // command_allowed | command_blocked
	ToolName string
	Hostname string
	Command  string
	Result   string // allowed | blocked
	Details  string
}
