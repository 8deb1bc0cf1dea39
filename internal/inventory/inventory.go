// Package inventory reads the static device inventory: a YAML mapping of
// hostname to driver kind, credentials and optional driver arguments.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"netmcp/internal/domain"

	"gopkg.in/yaml.v3"
)

// EnvFilename names the environment variable that overrides the inventory path.
const EnvFilename = "NETMCP_INVENTORY_FILENAME"

// DefaultFilename is used when neither the environment nor config name a file.
const DefaultFilename = "inventory.yaml"

// Snapshot is an immutable view of one parse of the inventory file.
type Snapshot struct {
	path    string
	entries map[string]domain.InventoryEntry
}

// Path returns the file the snapshot was read from.
func (s *Snapshot) Path() string { return s.path }

// Len returns the number of devices.
func (s *Snapshot) Len() int { return len(s.entries) }

// Lookup returns the entry for hostname.
func (s *Snapshot) Lookup(hostname string) (domain.InventoryEntry, bool) {
	e, ok := s.entries[hostname]
	if !ok {
		return domain.InventoryEntry{}, false
	}
	return cloneEntry(e), true
}

// Entries returns every entry sorted by hostname.
func (s *Snapshot) Entries() []domain.InventoryEntry {
	out := make([]domain.InventoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}

func cloneEntry(e domain.InventoryEntry) domain.InventoryEntry {
	if e.OptionalArgs != nil {
		args := make(map[string]string, len(e.OptionalArgs))
		for k, v := range e.OptionalArgs {
			args[k] = v
		}
		e.OptionalArgs = args
	}
	return e
}

// Load parses the inventory file at path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.ConfigurationMissingError{Path: path}
		}
		return nil, fmt.Errorf("read inventory %s: %w", path, err)
	}

	var raw map[string]domain.InventoryEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse inventory %s: %w", path, err)
	}

	entries := make(map[string]domain.InventoryEntry, len(raw))
	for host, e := range raw {
		if e.Driver == "" {
			return nil, fmt.Errorf("inventory %s: device %q has no driver", path, host)
		}
		e.Hostname = host
		entries[host] = e
	}
	return &Snapshot{path: path, entries: entries}, nil
}

// ResolvePath turns an inventory filename into the path to read. Absolute
// names are returned as-is, relative names are joined to baseDir.
func ResolvePath(name, baseDir string) string {
	if name == "" {
		name = DefaultFilename
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(baseDir, name)
}

// ExecutableDir returns the directory holding the running binary, falling
// back to the working directory.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// Filename picks the configured inventory name; the environment wins over
// the config value.
func Filename(configured string) string {
	if v := os.Getenv(EnvFilename); v != "" {
		return v
	}
	if configured != "" {
		return configured
	}
	return DefaultFilename
}

// FileResolver looks hostnames up in the inventory file. The file is read
// on every call; callers put a cache in front of it.
type FileResolver struct {
	path   string
	logger *slog.Logger
}

func NewFileResolver(path string, logger *slog.Logger) *FileResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileResolver{path: path, logger: logger}
}

func (r *FileResolver) Path() string { return r.path }

func (r *FileResolver) Lookup(ctx context.Context, hostname string) (domain.InventoryEntry, error) {
	if hostname == "" {
		return domain.InventoryEntry{}, fmt.Errorf("%w: hostname must not be empty", domain.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return domain.InventoryEntry{}, err
	}

	snap, err := Load(r.path)
	if err != nil {
		return domain.InventoryEntry{}, err
	}

	entry, ok := snap.Lookup(hostname)
	if !ok {
		r.logger.Error("device not found in inventory", "hostname", hostname, "inventory", r.path)
		return domain.InventoryEntry{}, fmt.Errorf("%w: %s", domain.ErrDeviceNotFound, hostname)
	}
	return entry, nil
}
