package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/core/ports"
)

const defaultCallTimeout = 30 * time.Second

// ServerConfig describes one MCP server to attach knowledge-base tools from.
type ServerConfig struct {
	Name      string
	Transport string
	Command   string
	Args      []string
	Env       map[string]string
	URL       string
}

// toolClient is the slice of the MCP client used here, kept narrow for tests.
type toolClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Connector opens a fresh MCP session per acquisition. Tool sets are scoped to
// a single agent turn and must be closed when the turn ends.
type Connector struct {
	server      ServerConfig
	callTimeout time.Duration
	logger      *slog.Logger

	dial func(ctx context.Context) (toolClient, error)
}

func NewConnector(server ServerConfig, logger *slog.Logger) *Connector {
	c := &Connector{
		server:      server,
		callTimeout: defaultCallTimeout,
		logger:      logger,
	}
	c.dial = c.connect
	return c
}

func (c *Connector) Acquire(ctx context.Context) (ports.CapabilitySet, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "mcp connect", err)
	}

	listed, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		client.Close()
		return nil, domain.WrapError(domain.ErrTemporary, "mcp list tools", err)
	}

	caps := make([]ports.Capability, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		caps = append(caps, &toolCapability{
			serverName:  c.server.Name,
			client:      client,
			tool:        tool,
			callTimeout: c.callTimeout,
		})
	}
	c.logger.Debug("mcp tools acquired", "server", c.server.Name, "count", len(caps))

	return &toolSet{
		serverName: c.server.Name,
		client:     client,
		caps:       caps,
		logger:     c.logger,
	}, nil
}

func (c *Connector) connect(ctx context.Context) (toolClient, error) {
	var client *mcpclient.Client

	switch c.server.Transport {
	case "stdio":
		stdioClient, err := mcpclient.NewStdioMCPClient(c.server.Command, envSlice(c.server.Env), c.server.Args...)
		if err != nil {
			return nil, fmt.Errorf("create stdio client: %w", err)
		}
		client = stdioClient
	case "http":
		httpTransport, err := transport.NewStreamableHTTP(c.server.URL)
		if err != nil {
			return nil, fmt.Errorf("create http transport: %w", err)
		}
		client = mcpclient.NewClient(httpTransport)
		if err := client.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported mcp transport %q", c.server.Transport)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "game-analyst-agents",
		Version: "1.0.0",
	}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		client.Close()
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}

	return client, nil
}

type toolSet struct {
	serverName string
	client     toolClient
	caps       []ports.Capability
	logger     *slog.Logger
}

func (s *toolSet) List() []ports.Capability {
	return s.caps
}

func (s *toolSet) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Warn("mcp session close error", "server", s.serverName, "error", err)
		return err
	}
	return nil
}

type toolCapability struct {
	serverName  string
	client      toolClient
	tool        mcp.Tool
	callTimeout time.Duration
}

func (c *toolCapability) Name() string {
	return c.tool.Name
}

func (c *toolCapability) Description() string {
	if c.tool.Description != "" {
		return c.tool.Description
	}
	return fmt.Sprintf("tool %q from server %q", c.tool.Name, c.serverName)
}

func (c *toolCapability) Call(ctx context.Context, args map[string]any) (string, error) {
	request := mcp.CallToolRequest{}
	request.Params.Name = c.tool.Name
	request.Params.Arguments = args

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	result, err := c.client.CallTool(callCtx, request)
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "mcp call "+c.tool.Name, err)
	}

	content := flattenContent(result)
	if result.IsError {
		return "", fmt.Errorf("tool %s reported error: %s", c.tool.Name, content)
	}
	return content, nil
}

func flattenContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, item := range result.Content {
		switch v := item.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for key, value := range env {
		out = append(out, key+"="+value)
	}
	return out
}
