package security

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"netmcp/internal/config"
	"netmcp/internal/domain"
)

// AuditLogger is the interface for writing audit entries.
type AuditLogger interface {
	LogAudit(ctx context.Context, entry domain.AuditEntry) error
}

// Engine decides whether raw CLI commands may be sent to a device using
// blacklist and whitelist pattern matching.
type Engine struct {
	cfg         config.SecurityConfig
	auditLogger AuditLogger
	logger      *slog.Logger

	blacklistRe []*regexp.Regexp
	whitelistRe []*regexp.Regexp
}

var _ domain.CommandPolicy = (*Engine)(nil)

func NewEngine(cfg config.SecurityConfig, auditLogger AuditLogger, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:         cfg,
		auditLogger: auditLogger,
		logger:      logger,
	}

	var err error
	e.blacklistRe, err = compilePatterns(cfg.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("invalid blacklist pattern: %w", err)
	}

	e.whitelistRe, err = compilePatterns(cfg.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("invalid whitelist pattern: %w", err)
	}

	return e, nil
}

// Check evaluates command for hostname. The blacklist always wins, then the
// whitelist, then the default policy. An empty command is blocked.
func (e *Engine) Check(ctx context.Context, hostname string, command string) (domain.SecurityAction, error) {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		e.logAction(ctx, "command_blocked", hostname, cmd, "blocked", "empty command")
		return domain.ActionBlock, nil
	}

	for _, re := range e.blacklistRe {
		if re.MatchString(cmd) {
			e.logger.Warn("command BLOCKED by blacklist",
				"hostname", hostname,
				"command", cmd,
				"pattern", re.String(),
			)
			e.logAction(ctx, "command_blocked", hostname, cmd, "blocked", "blacklist match: "+re.String())
			return domain.ActionBlock, nil
		}
	}

	for _, re := range e.whitelistRe {
		if re.MatchString(cmd) {
			e.logAction(ctx, "command_allowed", hostname, cmd, "allowed", "whitelist match: "+re.String())
			return domain.ActionAllow, nil
		}
	}

	if e.cfg.DefaultPolicy == "allow" {
		e.logAction(ctx, "command_allowed", hostname, cmd, "allowed", "default policy: allow")
		return domain.ActionAllow, nil
	}
	e.logger.Info("command blocked by default policy", "hostname", hostname, "command", cmd)
	e.logAction(ctx, "command_blocked", hostname, cmd, "blocked", "default policy: "+e.cfg.DefaultPolicy)
	return domain.ActionBlock, nil
}

func (e *Engine) logAction(ctx context.Context, action, hostname, command, result, details string) {
	if !e.cfg.AuditLog || e.auditLogger == nil {
		return
	}
	err := e.auditLogger.LogAudit(ctx, domain.AuditEntry{
		Action:   action,
		ToolName: "run_command",
		Hostname: hostname,
		Command:  command,
		Result:   result,
		Details:  details,
	})
	if err != nil {
		e.logger.Error("audit write failed", "action", action, "hostname", hostname, "err", err)
	}
}

// Simple strings are converted to case-insensitive substring patterns.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		var re *regexp.Regexp
		var err error
		if isRegex(p) {
			re, err = regexp.Compile(p)
		} else {
			re, err = regexp.Compile(`(?i)` + regexp.QuoteMeta(p))
		}
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func isRegex(s string) bool {
	for _, c := range s {
		switch c {
		case '(', ')', '[', ']', '{', '}', '|', '^', '$', '.', '*', '+', '?', '\\':
			return true
		}
	}
	return false
}
