// Package mcp provides the MCP (Model Context Protocol) server for argflow.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/argflow-go/internal/cache"
	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/logging"
	"github.com/Benny93/argflow-go/internal/session"
	"github.com/Benny93/argflow-go/internal/storage"
)

const (
	serverName    = "argflow-go"
	serverVersion = "0.1.0"

	defaultSearchLimit = 20

	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// errInvalidParams marks tool arguments that are missing or malformed.
var errInvalidParams = errors.New("invalid params")

// Searcher is the part of the search index the server uses.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]storage.SearchResult, error)
	RemoveExplanation(ctx context.Context, ref storage.Ref) error
}

// Server represents the MCP server.
type Server struct {
	explanations *cache.Explanations
	sessions     *session.Manager
	search       Searcher
	server       *mcp.Server
	logger       *slog.Logger
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server. search may be nil, in which case the
// search tool reports that no index is open.
func NewServer(explanations *cache.Explanations, sessions *session.Manager, search Searcher) *Server {
	s := &Server{
		explanations: explanations,
		sessions:     sessions,
		search:       search,
		logger:       logging.New("mcp"),
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// SDK returns the go-sdk server carrying the same tools and resources.
func (s *Server) SDK() *mcp.Server { return s.server }

// RunSDK serves over stdio with the go-sdk transport.
func (s *Server) RunSDK(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

var refProperties = map[string]*jsonschema.Schema{
	"model": {Type: "string", Description: "Model name"},
	"name":  {Type: "string", Description: "Explanation name"},
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "argflow_list_models",
			Description: "List the models that have stored explanations.",
			InputSchema: object(map[string]*jsonschema.Schema{}),
		},
		{
			Name:        "argflow_list_explanations",
			Description: "List the explanations stored for a model.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"model": {Type: "string", Description: "Model name"},
			}, "model"),
		},
		{
			Name:        "argflow_get_explanation",
			Description: "Return an explanation document (name, input, conclusion, nodes) as JSON.",
			InputSchema: object(refProperties, "model", "name"),
		},
		{
			Name:        "argflow_delete_explanation",
			Description: "Delete an explanation and its payloads. Open sessions on it are closed.",
			InputSchema: object(refProperties, "model", "name"),
		},
		{
			Name:        "argflow_open_session",
			Description: "Open a visualiser session (graph or conversation) on an explanation and return its id.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"model":      {Type: "string", Description: "Model name"},
				"name":       {Type: "string", Description: "Explanation name"},
				"visualiser": {Type: "string", Enum: []any{"graph", "conversation"}, Description: "Visualiser kind"},
			}, "model", "name", "visualiser"),
		},
		{
			Name:        "argflow_session_request",
			Description: "Send a request to a session and return the serialized view. Graph sessions prune; conversation sessions reset focus and run interactions.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"session_id":            {Type: "string", Description: "Session id from argflow_open_session"},
				"prune":                 {Type: "boolean", Description: "Graph: prune the view"},
				"limit":                 {Type: "integer", Description: "Graph: argument budget. Conversation: maximum results"},
				"layer_limit":           {Type: "integer", Description: "Graph: arguments kept per layer"},
				"reset":                 {Type: "boolean", Description: "Conversation: replace the focus"},
				"primary":               {Type: "string", Description: "Conversation: primary node, defaults to the first conclusion"},
				"secondary":             {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Conversation: secondary nodes"},
				"interaction_target":    {Type: "string", Description: "Conversation: node to interact with"},
				"interaction_direction": {Type: "string", Enum: []any{"from", "to"}, Description: "Conversation: what the target influences (from) or what influences it (to)"},
				"contribution_type":     {Type: "string", Description: "Conversation: only edges of this type"},
			}, "session_id"),
		},
		{
			Name:        "argflow_close_session",
			Description: "Close a visualiser session.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"session_id": {Type: "string", Description: "Session id"},
			}, "session_id"),
		},
		{
			Name:        "argflow_list_sessions",
			Description: "List the open visualiser sessions.",
			InputSchema: object(map[string]*jsonschema.Schema{}),
		},
		{
			Name:        "argflow_search",
			Description: "Search node ids and text payloads of all indexed explanations.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "Search query text"},
				"limit": {Type: "integer", Description: "Maximum number of results"},
			}, "query"),
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "argflow://overview",
			Name:        "Explanation Overview",
			Description: "Models, explanations and open sessions",
			MimeType:    "text/plain",
		},
		{
			URI:         "argflow://schema",
			Name:        "Explanation Schema",
			Description: "Description of the explanation document format",
			MimeType:    "text/plain",
		},
	}
}

// Tool inputs, shared by CallTool and the go-sdk handlers.

type modelInput struct {
	Model string `json:"model" jsonschema:"model name"`
}

type refInput struct {
	Model string `json:"model" jsonschema:"model name"`
	Name  string `json:"name" jsonschema:"explanation name"`
}

type openSessionInput struct {
	Model      string `json:"model" jsonschema:"model name"`
	Name       string `json:"name" jsonschema:"explanation name"`
	Visualiser string `json:"visualiser" jsonschema:"graph or conversation"`
}

type sessionRequestInput struct {
	SessionID            string   `json:"session_id" jsonschema:"session id from argflow_open_session"`
	Prune                bool     `json:"prune,omitempty" jsonschema:"graph: prune the view"`
	Limit                *int     `json:"limit,omitempty" jsonschema:"graph: argument budget; conversation: maximum results"`
	LayerLimit           *int     `json:"layer_limit,omitempty" jsonschema:"graph: arguments kept per layer"`
	Reset                bool     `json:"reset,omitempty" jsonschema:"conversation: replace the focus"`
	Primary              string   `json:"primary,omitempty" jsonschema:"conversation: primary node"`
	Secondary            []string `json:"secondary,omitempty" jsonschema:"conversation: secondary nodes"`
	InteractionTarget    string   `json:"interaction_target,omitempty" jsonschema:"conversation: node to interact with"`
	InteractionDirection string   `json:"interaction_direction,omitempty" jsonschema:"conversation: from or to"`
	ContributionType     string   `json:"contribution_type,omitempty" jsonschema:"conversation: only edges of this type"`
}

func (in sessionRequestInput) request() session.Request {
	return session.Request{
		Prune:                in.Prune,
		Limit:                in.Limit,
		LayerLimit:           in.LayerLimit,
		Reset:                in.Reset,
		Primary:              in.Primary,
		Secondary:            in.Secondary,
		InteractionTarget:    in.InteractionTarget,
		InteractionDirection: in.InteractionDirection,
		ContributionType:     in.ContributionType,
	}
}

type sessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session id"`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"search query text"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

type emptyInput struct{}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "argflow_list_models":
		return s.listModels(ctx)
	case "argflow_list_explanations":
		return call(ctx, args, s.listExplanations)
	case "argflow_get_explanation":
		return call(ctx, args, s.getExplanation)
	case "argflow_delete_explanation":
		return call(ctx, args, s.deleteExplanation)
	case "argflow_open_session":
		return call(ctx, args, s.openSession)
	case "argflow_session_request":
		return call(ctx, args, s.sessionRequest)
	case "argflow_close_session":
		return call(ctx, args, s.closeSession)
	case "argflow_list_sessions":
		return s.listSessions()
	case "argflow_search":
		return call(ctx, args, s.searchNodes)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// call decodes args into the handler's input type.
func call[In any](ctx context.Context, args map[string]any, handler func(context.Context, In) (string, error)) (string, error) {
	var in In
	if len(args) > 0 {
		data, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("%w: %w", errInvalidParams, err)
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return "", fmt.Errorf("%w: %w", errInvalidParams, err)
		}
	}
	return handler(ctx, in)
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "argflow://overview":
		return s.getOverview(ctx)
	case "argflow://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// compact JSON: one message per line

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Debug("skipping malformed message", logging.Err(err))
			continue
		}
		// notifications get no response
		if _, ok := req["id"]; !ok {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "ping":
		return map[string]any{"jsonrpc": "2.0", "id": id, "result": map[string]any{}}
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, codeMethodNotFound, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		_ = json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, codeInvalidParams, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		s.logger.Debug("tool failed", slog.String("tool", name), logging.Err(err))
		return errorResponse(id, errorCode(err), err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, codeInvalidParams, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, codeServerError, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func (s *Server) listModels(ctx context.Context) (string, error) {
	models, err := s.explanations.Store().Models(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("## Models\n\n")
	if len(models) == 0 {
		sb.WriteString("No models yet. Run `argflow extract` to store an explanation.\n")
		return sb.String(), nil
	}
	for _, m := range models {
		sb.WriteString(fmt.Sprintf("- **%s** (%d bytes)\n", m.Name, m.Size))
	}
	sb.WriteString("\nNext: Use `argflow_list_explanations` on a model.")
	return sb.String(), nil
}

func (s *Server) listExplanations(ctx context.Context, in modelInput) (string, error) {
	if in.Model == "" {
		return "", fmt.Errorf("%w: model is required", errInvalidParams)
	}
	infos, err := s.explanations.Store().Explanations(ctx, in.Model)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Explanations of %s\n\n", in.Model))
	if len(infos) == 0 {
		sb.WriteString("No explanations stored for this model.\n")
		return sb.String(), nil
	}
	for _, info := range infos {
		sb.WriteString(fmt.Sprintf("- **%s** (%d bytes)\n", info.Name, info.Size))
	}
	sb.WriteString("\nNext: Use `argflow_open_session` to explore an explanation.")
	return sb.String(), nil
}

func (s *Server) getExplanation(ctx context.Context, in refInput) (string, error) {
	ref, err := in.ref()
	if err != nil {
		return "", err
	}
	g, err := s.explanations.Load(ctx, ref)
	if err != nil {
		return "", err
	}
	return marshal(g.Serialize())
}

func (s *Server) deleteExplanation(ctx context.Context, in refInput) (string, error) {
	ref, err := in.ref()
	if err != nil {
		return "", err
	}
	if err := s.explanations.Delete(ctx, ref); err != nil {
		return "", err
	}
	if s.search != nil {
		if err := s.search.RemoveExplanation(ctx, ref); err != nil {
			s.logger.Warn("removing explanation from index", slog.String("ref", ref.String()), logging.Err(err))
		}
	}
	closed := s.sessions.CloseExplanation(ref)
	return fmt.Sprintf("Deleted %s (%d sessions closed).", ref, closed), nil
}

func (s *Server) openSession(ctx context.Context, in openSessionInput) (string, error) {
	ref, err := refInput{Model: in.Model, Name: in.Name}.ref()
	if err != nil {
		return "", err
	}
	kind, err := session.ParseKind(in.Visualiser)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidParams, err)
	}
	info, err := s.sessions.Open(ctx, kind, ref)
	if err != nil {
		return "", err
	}
	return marshal(info)
}

func (s *Server) sessionRequest(ctx context.Context, in sessionRequestInput) (string, error) {
	if in.SessionID == "" {
		return "", fmt.Errorf("%w: session_id is required", errInvalidParams)
	}
	state, err := s.sessions.Process(ctx, in.SessionID, in.request())
	if err != nil {
		return "", err
	}
	return marshal(state)
}

func (s *Server) closeSession(_ context.Context, in sessionInput) (string, error) {
	if in.SessionID == "" {
		return "", fmt.Errorf("%w: session_id is required", errInvalidParams)
	}
	if err := s.sessions.Close(in.SessionID); err != nil {
		return "", err
	}
	return "Closed session " + in.SessionID + ".", nil
}

func (s *Server) listSessions() (string, error) {
	return marshal(s.sessions.List())
}

func (s *Server) searchNodes(ctx context.Context, in searchInput) (string, error) {
	if in.Query == "" {
		return "No query provided", nil
	}
	if s.search == nil {
		return "No search index is open. Run `argflow index` and restart the server.", nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.search.Search(ctx, in.Query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found", nil
	}
	return formatSearchResults(results, in.Query), nil
}

// formatSearchResults formats search results as markdown.
func formatSearchResults(results []storage.SearchResult, query string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(results), query))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. **%s** node `%s` (%s)\n", i+1, r.Ref, r.NodeID, r.NodeType))
		sb.WriteString(fmt.Sprintf("   Score: %.3f\n", r.Score))
		if r.Snippet != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", r.Snippet))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Next: Use `argflow_open_session` with visualiser `conversation` and primary set to a node.")
	return sb.String()
}

func (in refInput) ref() (storage.Ref, error) {
	if in.Model == "" || in.Name == "" {
		return storage.Ref{}, fmt.Errorf("%w: model and name are required", errInvalidParams)
	}
	ref := storage.Ref{Model: in.Model, Name: in.Name}
	if err := ref.Validate(); err != nil {
		return storage.Ref{}, err
	}
	return ref, nil
}

// Resource Handlers

func (s *Server) getOverview(ctx context.Context) (string, error) {
	models, err := s.explanations.Store().Models(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Argflow Overview\n\n")
	total := 0
	for _, m := range models {
		infos, err := s.explanations.Store().Explanations(ctx, m.Name)
		if err != nil {
			return "", err
		}
		total += len(infos)
		sb.WriteString(fmt.Sprintf("- **%s**: %d explanations\n", m.Name, len(infos)))
	}
	sb.WriteString(fmt.Sprintf("\n**Models:** %d\n", len(models)))
	sb.WriteString(fmt.Sprintf("**Explanations:** %d\n", total))
	sb.WriteString(fmt.Sprintf("**Cached:** %d\n", s.explanations.Len()))
	sb.WriteString(fmt.Sprintf("**Open sessions:** %d\n", len(s.sessions.List())))
	return sb.String(), nil
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Explanation Document Schema\n\n")
	sb.WriteString("| Field | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	sb.WriteString("| `name` | Explanation name |\n")
	sb.WriteString("| `input` | Ids of input nodes |\n")
	sb.WriteString("| `conclusion` | Ids of conclusion nodes |\n")
	sb.WriteString("| `nodes` | Node records keyed by id |\n")
	sb.WriteString("| `total_nodes` | Argument count of the unpruned graph (pruned views only) |\n")
	sb.WriteString("\n## Node Record\n\n")
	sb.WriteString("| Field | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	sb.WriteString(fmt.Sprintf("| `node_type` | `%s`, `%s` or `%s` |\n", document.NodeInput, document.NodeRegular, document.NodeConclusion))
	sb.WriteString(fmt.Sprintf("| `content_type` | `%s`, `%s` or `%s` |\n", document.ContentString, document.ContentImage, document.ContentImagePair))
	sb.WriteString("| `payload` | Text, image path, or `{filter, feature}` image paths |\n")
	sb.WriteString("| `strength` | Argument strength (arguments only) |\n")
	sb.WriteString("| `certainty` | Confidence in percent (conclusions only) |\n")
	sb.WriteString("| `children` | Outgoing edges: child id to `{contribution_type}` |\n")
	sb.WriteString("\n## Contribution Types\n\n")
	sb.WriteString(fmt.Sprintf("- `%s`, `%s`: bipolar relations\n", document.ContributionSupport, document.ContributionAttack))
	sb.WriteString(fmt.Sprintf("- `%s`: edges leaving inputs\n", document.ContributionNeutral))
	sb.WriteString(fmt.Sprintf("- `%s`: links added by pruning across removed arguments\n", document.ContributionIndirect))
	return sb.String()
}

// Helper functions

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}

// errorCode maps caller mistakes to invalid params and the rest to a
// server error.
func errorCode(err error) int {
	switch {
	case errors.Is(err, errInvalidParams),
		errors.Is(err, session.ErrBadRequest),
		errors.Is(err, session.ErrUnknownVisualiser),
		errors.Is(err, storage.ErrInvalidName):
		return codeInvalidParams
	default:
		return codeServerError
	}
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// registerTools registers the tools with the go-sdk server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "argflow_list_models",
		Description: "List the models that have stored explanations.",
	}, sdkHandler(func(ctx context.Context, _ emptyInput) (string, error) { return s.listModels(ctx) }))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "argflow_list_explanations",
		Description: "List the explanations stored for a model.",
	}, sdkHandler(s.listExplanations))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "argflow_get_explanation",
		Description: "Return an explanation document as JSON.",
	}, sdkHandler(s.getExplanation))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "argflow_delete_explanation",
		Description: "Delete an explanation and its payloads.",
	}, sdkHandler(s.deleteExplanation))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "argflow_open_session",
		Description: "Open a visualiser session (graph or conversation) on an explanation.",
	}, sdkHandler(s.openSession))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "argflow_session_request",
		Description: "Send a request to a session and return the serialized view.",
	}, sdkHandler(s.sessionRequest))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "argflow_close_session",
		Description: "Close a visualiser session.",
	}, sdkHandler(s.closeSession))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "argflow_list_sessions",
		Description: "List the open visualiser sessions.",
	}, sdkHandler(func(context.Context, emptyInput) (string, error) { return s.listSessions() }))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "argflow_search",
		Description: "Search node ids and text payloads of all indexed explanations.",
	}, sdkHandler(s.searchNodes))
}

// registerResources registers the resources with the go-sdk server.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: res.MimeType, Text: text}},
			}, nil
		})
	}
}

// sdkHandler adapts a text tool handler to the go-sdk tool signature.
func sdkHandler[In any](h func(context.Context, In) (string, error)) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		text, err := h(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil, nil
	}
}
