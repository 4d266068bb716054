// Package remote exposes tools served by external MCP servers as local tools.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sageagent/tools"
)

const clientName = "sage"

// Server describes a stdio MCP server to launch.
type Server struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

type session interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

type registrar interface {
	Register(tool tools.Tool) error
}

// Client is a connection to one MCP server.
type Client struct {
	server  string
	session session
}

// Connect launches the server command and performs the MCP handshake.
func Connect(ctx context.Context, srv Server, version string) (*Client, error) {
	if strings.TrimSpace(srv.Command) == "" {
		return nil, fmt.Errorf("server %q: command is empty", srv.Name)
	}

	cmd := exec.CommandContext(ctx, srv.Command, srv.Args...)
	if len(srv.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range srv.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: version}, nil)
	cs, err := client.Connect(ctx, mcp.NewCommandTransport(cmd))
	if err != nil {
		return nil, fmt.Errorf("connect to server %q: %w", srv.Name, err)
	}

	slog.Info("TOOLS: Connected to MCP server", "server", srv.Name, "command", srv.Command)
	return newClient(srv.Name, cs), nil
}

func newClient(server string, s session) *Client {
	return &Client{server: server, session: s}
}

// Tools lists the server's tools.
func (c *Client) Tools(ctx context.Context) ([]tools.Tool, error) {
	res, err := c.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("list tools on %q: %w", c.server, err)
	}

	out := make([]tools.Tool, 0, len(res.Tools))
	for _, def := range res.Tools {
		if def == nil || def.Name == "" {
			continue
		}
		out = append(out, &Tool{server: c.server, def: def, session: c.session})
	}
	return out, nil
}

func (c *Client) Close() error {
	return c.session.Close()
}

// Register connects to every server and registers its tools. Tools whose names
// collide with an already registered tool are skipped. The returned func
// closes all sessions.
func Register(ctx context.Context, reg registrar, servers []Server, version string) (func() error, error) {
	var clients []*Client
	closeAll := func() error {
		var errs []error
		for _, c := range clients {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}

	for _, srv := range servers {
		c, err := Connect(ctx, srv, version)
		if err != nil {
			return closeAll, errors.Join(err, closeAll())
		}
		clients = append(clients, c)

		if err := registerFrom(ctx, reg, c); err != nil {
			return closeAll, errors.Join(err, closeAll())
		}
	}

	return closeAll, nil
}

func registerFrom(ctx context.Context, reg registrar, c *Client) error {
	ts, err := c.Tools(ctx)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if err := reg.Register(t); err != nil {
			slog.Warn("TOOLS: Skipping remote tool", "server", c.server, "name", t.Name(), "error", err)
			continue
		}
		slog.Info("TOOLS: Registered remote tool", "server", c.server, "name", t.Name())
	}
	return nil
}

// Tool forwards calls to a tool on an MCP server.
type Tool struct {
	server  string
	def     *mcp.Tool
	session session
}

func (t *Tool) Name() string                    { return t.def.Name }
func (t *Tool) Title() string                   { return t.def.Name }
func (t *Tool) Description() string             { return t.def.Description }
func (t *Tool) InputSchema() *jsonschema.Schema { return t.def.InputSchema }

func (t *Tool) Run(ctx context.Context, params map[string]any) tools.Result {
	res, err := t.session.CallTool(ctx, &mcp.CallToolParams{Name: t.def.Name, Arguments: params})
	if err != nil {
		slog.Warn("TOOLS: Remote tool call failed", "server", t.server, "name", t.def.Name, "error", err)
		return tools.IOError(t.def.Name, "", err)
	}

	text := joinText(res.Content)
	if res.IsError {
		return tools.Result{Tool: t.def.Name, Kind: tools.KindIOError, Reason: text}
	}
	return tools.Result{Tool: t.def.Name, Kind: tools.KindOK, Content: text}
}

func joinText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
