// Package mcp serves the tool registry over the Model Context Protocol.
package mcp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"netmcp/internal/domain"
	"netmcp/internal/tool"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HostArgs is the input of tools that take only a hostname.
type HostArgs struct {
	Hostname string `json:"hostname" jsonschema:"device hostname as listed in the inventory"`
}

func (a HostArgs) args() map[string]any {
	return map[string]any{"hostname": a.Hostname}
}

// DestinationArgs is the input of ping and traceroute.
type DestinationArgs struct {
	Hostname    string `json:"hostname" jsonschema:"device hostname as listed in the inventory"`
	Destination string `json:"destination" jsonschema:"IP address or hostname to probe from the device"`
}

func (a DestinationArgs) args() map[string]any {
	return map[string]any{"hostname": a.Hostname, "destination": a.Destination}
}

// CommandArgs is the input of run_command.
type CommandArgs struct {
	Hostname string `json:"hostname" jsonschema:"device hostname as listed in the inventory"`
	Command  string `json:"command" jsonschema:"CLI command in the device's native syntax"`
}

func (a CommandArgs) args() map[string]any {
	return map[string]any{"hostname": a.Hostname, "command": a.Command}
}

type toolArgs interface {
	args() map[string]any
}

type Options struct {
	Name      string
	Version   string
	AuthToken string // bearer token checked by Handler; empty disables the check
	Logger    *slog.Logger
}

// Server binds every registry tool to an MCP server.
type Server struct {
	server    *mcp.Server
	registry  *tool.Registry
	authToken string
	logger    *slog.Logger
}

func NewServer(reg *tool.Registry, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "netmcp"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		server:    mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil),
		registry:  reg,
		authToken: opts.AuthToken,
		logger:    opts.Logger,
	}
	for _, def := range reg.GetDefinitions() {
		props, _ := def.Parameters["properties"].(map[string]any)
		switch {
		case props["command"] != nil:
			addTool[CommandArgs](s, def)
		case props["destination"] != nil:
			addTool[DestinationArgs](s, def)
		default:
			addTool[HostArgs](s, def)
		}
	}
	return s
}

func addTool[In toolArgs](s *Server, def domain.ToolDefinition) {
	name := def.Name
	mcp.AddTool(s.server, &mcp.Tool{Name: name, Description: def.Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			return s.call(ctx, name, in.args()), nil, nil
		})
}

// call runs the tool and converts its result or error into MCP content.
func (s *Server) call(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	start := time.Now()
	result, err := s.registry.Execute(ctx, name, args)
	if err != nil {
		s.logger.Warn("tool call failed", "tool", name, "hostname", args["hostname"],
			"kind", domain.ErrorKind(err), "duration", time.Since(start), "err", err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %v", domain.ErrorKind(err), err)}},
		}
	}
	s.logger.Debug("tool call completed", "tool", name, "hostname", args["hostname"], "duration", time.Since(start))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: render(result)}},
	}
}

// render returns strings unchanged and anything else as JSON.
func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.server }

// ServeStdio serves a single client on stdin/stdout until ctx is done or
// the client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler, wrapped in a bearer token
// check when a token is configured.
func (s *Server) Handler() http.Handler {
	h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.server }, nil)
	if s.authToken == "" {
		return h
	}
	return requireToken(s.authToken, h)
}

func requireToken(token string, next http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="netmcp"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves the streamable HTTP transport on addr until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening", "transport", "http", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}
