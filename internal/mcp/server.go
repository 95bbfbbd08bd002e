package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/steveyegge/mcp-tasks/internal/debug"
	"github.com/steveyegge/mcp-tasks/internal/prompt"
)

// ToolHandler handles one tool call. Errors are rendered into the tool
// result, not into RPC errors.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*ToolCallResult, error)

// Server is an MCP server over newline-delimited JSON-RPC on stdio.
type Server struct {
	info         ImplementationInfo
	instructions string
	tools        map[string]Tool
	order        []string
	handlers     map[string]ToolHandler
	prompts      *prompt.Registry

	reader io.Reader
	writer io.Writer

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex

	initialized bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithInstructions sets the instructions string sent during initialization.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithPrompts serves the registry's categories over prompts/list and
// prompts/get.
func WithPrompts(reg *prompt.Registry) ServerOption {
	return func(s *Server) {
		s.prompts = reg
	}
}

// NewServer creates an MCP server.
func NewServer(name, version string, opts ...ServerOption) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		info: ImplementationInfo{
			Name:    name,
			Version: version,
		},
		tools:    make(map[string]Tool),
		handlers: make(map[string]ToolHandler),
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RegisterTool registers a tool with its handler. Tools are listed in
// registration order.
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[tool.Name]; !exists {
		s.order = append(s.order, tool.Name)
	}
	s.tools[tool.Name] = tool
	s.handlers[tool.Name] = handler
}

// Serve reads requests from stdin and writes responses to stdout until the
// input closes or Stop is called.
func (s *Server) Serve(stdin io.Reader, stdout io.Writer) error {
	s.mu.Lock()
	s.reader = stdin
	s.writer = stdout
	s.mu.Unlock()

	return s.run()
}

// Stop cancels the serving context; the loop exits after the message in
// flight.
func (s *Server) Stop() {
	s.cancel()
}

func (s *Server) run() error {
	scanner := bufio.NewScanner(s.reader)
	// Task payloads with full shared context can get large.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.sendError(nil, NewParseError(err.Error()))
			continue
		}

		// An absent or null id marks a notification.
		if len(req.ID) > 0 && string(req.ID) != "null" {
			s.handleRequest(&req)
		} else {
			s.handleNotification(&req)
		}

		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	return nil
}

func (s *Server) handleRequest(req *Request) {
	debug.Logf("mcp: request method=%s", req.Method)

	var result any
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result, rpcErr = s.handleInitialize(req.Params)

	case "tools/list":
		result, rpcErr = s.handleToolsList()

	case "tools/call":
		result, rpcErr = s.handleToolsCall(req.Params)

	case "prompts/list":
		result, rpcErr = s.handlePromptsList()

	case "prompts/get":
		result, rpcErr = s.handlePromptsGet(req.Params)

	case "ping":
		result = struct{}{}

	default:
		rpcErr = NewMethodNotFound(req.Method)
	}

	if rpcErr != nil {
		s.sendError(req.ID, rpcErr)
	} else {
		s.sendResult(req.ID, result)
	}
}

func (s *Server) handleNotification(req *Request) {
	switch req.Method {
	case "notifications/initialized":
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
		debug.Logf("mcp: client initialized")

	case "notifications/cancelled":
		debug.Logf("mcp: request cancelled")

	default:
		// Unknown notifications are ignored per spec.
		debug.Logf("mcp: ignoring notification method=%s", req.Method)
	}
}

func (s *Server) handleInitialize(params json.RawMessage) (any, *RPCError) {
	var p InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, NewInvalidParams(err.Error())
		}
	}

	debug.Logf("mcp: initialize client=%s version=%s", p.ClientInfo.Name, p.ProtocolVersion)

	caps := ServerCapability{
		Tools: &ToolsCapability{},
	}
	if s.prompts != nil {
		caps.Prompts = &PromptsCapability{}
	}

	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    caps,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

func (s *Server) handleToolsList() (any, *RPCError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		tools = append(tools, s.tools[name])
	}

	return ToolsListResult{Tools: tools}, nil
}

func (s *Server) handleToolsCall(params json.RawMessage) (any, *RPCError) {
	var p ToolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewInvalidParams(err.Error())
	}

	s.mu.RLock()
	handler, ok := s.handlers[p.Name]
	s.mu.RUnlock()

	if !ok {
		return nil, NewToolNotFound(p.Name)
	}

	debug.Logf("mcp: call tool=%s", p.Name)

	result, err := handler(s.ctx, p.Arguments)
	if err != nil {
		// Tool failures stay inside the result so agents can read them.
		return ErrorResult(err.Error()), nil
	}

	return result, nil
}

func (s *Server) handlePromptsList() (any, *RPCError) {
	if s.prompts == nil {
		return nil, NewMethodNotFound("prompts/list")
	}

	categories := s.prompts.Categories()
	prompts := make([]Prompt, 0, len(categories))
	for _, cat := range categories {
		p := s.prompts.Get(cat)
		prompts = append(prompts, Prompt{
			Name:        cat,
			Description: p.Description,
		})
	}

	return PromptsListResult{Prompts: prompts}, nil
}

func (s *Server) handlePromptsGet(params json.RawMessage) (any, *RPCError) {
	if s.prompts == nil {
		return nil, NewMethodNotFound("prompts/get")
	}

	var p PromptsGetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewInvalidParams(err.Error())
	}

	tmpl := s.prompts.Get(p.Name)
	if tmpl == nil {
		return nil, NewPromptNotFound(p.Name)
	}

	return PromptsGetResult{
		Description: tmpl.Description,
		Messages: []PromptMessage{
			{Role: "user", Content: TextContent(tmpl.Body)},
		},
	}, nil
}

func (s *Server) sendResult(id json.RawMessage, result any) {
	s.send(NewResponse(id, result))
}

func (s *Server) sendError(id json.RawMessage, err *RPCError) {
	s.send(NewErrorResponse(id, err))
}

func (s *Server) send(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		debug.Logf("mcp: marshal response failed: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return
	}

	data = append(data, '\n')
	if _, err := s.writer.Write(data); err != nil {
		debug.Logf("mcp: write response failed: %v", err)
	}
}
