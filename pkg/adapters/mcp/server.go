package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/internal/runtime"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const funnelsURI = "funnel://funnels"

// AdvanceResponse provides a unified structure for the mutating tools.
type AdvanceResponse struct {
	Session  *domain.VisitorSession `json:"session,omitempty" jsonschema_description:"The visitor session after the call"`
	Outcomes []domain.Outcome       `json:"outcomes" jsonschema_description:"Every node executed by the call, in order"`
	Dropped  string                 `json:"dropped,omitempty" jsonschema_description:"Why the trigger was dropped as stale, if it was"`
}

// Engine defines the interface required by the MCP server.
type Engine interface {
	Advance(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) (*runtime.Result, error)
	ResumeAfterPayment(ctx context.Context, sessionID string, confirmation domain.PaymentConfirmation) (*runtime.Result, error)
	Abandon(ctx context.Context, sessionID string) (*domain.VisitorSession, error)
	Get(ctx context.Context, sessionID string) (*domain.VisitorSession, error)
}

// Server wraps the funnel engine and exposes it as an MCP Server.
type Server struct {
	engine      Engine
	definitions ports.DefinitionStore
	mcpServer   *server.MCPServer
	logger      *slog.Logger
}

// Option configures the server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, definitions ports.DefinitionStore, version string, opts ...Option) *Server {
	s := &Server{
		engine:      engine,
		definitions: definitions,
		mcpServer:   server.NewMCPServer("funnel-mcp", version),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: advance
	advanceTool := mcp.NewTool("advance",
		mcp.WithDescription("Apply a trigger (start, target, continue, text) to a visitor's session in a funnel."),
		mcp.WithString("visitor_id", mcp.Required(), mcp.Description("Channel-scoped visitor identifier")),
		mcp.WithString("funnel_id", mcp.Required(), mcp.Description("Funnel to act on")),
		mcp.WithString("kind", mcp.Required(), mcp.Enum("start", "target", "continue", "text"), mcp.Description("Trigger kind")),
		mcp.WithString("node_id", mcp.Description("Target node for kind=target")),
		mcp.WithString("text", mcp.Description("Visitor reply for kind=text")),
		mcp.WithString("observed", mcp.Description("Node the visitor saw; the trigger is dropped if the session moved on. Defaults to the current node")),
		mcp.WithOutputSchema[AdvanceResponse](),
	)
	s.mcpServer.AddTool(advanceTool, mcp.NewStructuredToolHandler(s.handleAdvance))

	// TOOL: resume_payment
	resumeTool := mcp.NewTool("resume_payment",
		mcp.WithDescription("Record a confirmed payment and move the session past its PAYMENT node."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session waiting for payment")),
		mcp.WithString("payment_id", mcp.Required(), mcp.Description("Provider payment reference")),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Paid amount in minor currency units")),
		mcp.WithOutputSchema[AdvanceResponse](),
	)
	s.mcpServer.AddTool(resumeTool, mcp.NewStructuredToolHandler(s.handleResume))

	// TOOL: get_session
	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get a visitor session by ID."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := request.GetArguments()["session_id"].(string)
		sess, err := s.engine.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get session failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(sess)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: abandon_session
	s.mcpServer.AddTool(mcp.NewTool("abandon_session",
		mcp.WithDescription("Mark an ACTIVE session as ABANDONED."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := request.GetArguments()["session_id"].(string)
		sess, err := s.engine.Abandon(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("abandon failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(sess)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (AdvanceResponse, error) {
	visitorID, _ := args["visitor_id"].(string)
	funnelID, _ := args["funnel_id"].(string)
	kind, _ := args["kind"].(string)
	nodeID, _ := args["node_id"].(string)
	text, _ := args["text"].(string)
	observed, _ := args["observed"].(string)

	var trigger domain.Trigger
	switch domain.TriggerKind(kind) {
	case domain.TriggerStart:
		trigger = domain.Start()
	case domain.TriggerExplicitTarget:
		trigger = domain.ExplicitTarget(nodeID)
	case domain.TriggerContinue:
		trigger = domain.Continue()
	case domain.TriggerFreeText:
		trigger = domain.FreeText(text)
	default:
		return AdvanceResponse{}, fmt.Errorf("unknown trigger kind %q", kind)
	}

	res, err := s.engine.Advance(ctx, visitorID, funnelID, trigger.At(observed))
	return s.respond(res, err, "advance")
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (AdvanceResponse, error) {
	sessionID, _ := args["session_id"].(string)
	paymentID, _ := args["payment_id"].(string)
	amount, _ := args["amount"].(float64)

	res, err := s.engine.ResumeAfterPayment(ctx, sessionID, domain.PaymentConfirmation{
		ID:     paymentID,
		Amount: int64(amount),
	})
	return s.respond(res, err, "resume payment")
}

// respond reports stale triggers as a dropped result rather than a failure.
func (s *Server) respond(res *runtime.Result, err error, op string) (AdvanceResponse, error) {
	var resp AdvanceResponse
	if res != nil {
		resp.Session = res.Session
		resp.Outcomes = res.Outcomes
	}
	if resp.Outcomes == nil {
		resp.Outcomes = []domain.Outcome{}
	}
	if err != nil {
		if domain.IsStale(err) {
			resp.Dropped = err.Error()
			return resp, nil
		}
		s.logger.Warn("MCP call failed", "op", op, "err", err)
		if d := domain.Diagnostic(err); d != "" {
			return resp, fmt.Errorf("%s failed: %w (%s)", op, err, d)
		}
		return resp, fmt.Errorf("%s failed: %w", op, err)
	}
	return resp, nil
}

func (s *Server) registerResources() {
	// EXPOSE: funnel://funnels
	s.mcpServer.AddResource(mcp.NewResource(funnelsURI, "Funnel Definitions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		defs, err := s.listFunnels(ctx)
		if err != nil {
			return nil, err
		}
		jsonBytes, _ := json.Marshal(defs)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      funnelsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func (s *Server) listFunnels(ctx context.Context) ([]*domain.FunnelDefinition, error) {
	ids, err := s.definitions.ListFunnels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels: %w", err)
	}
	defs := make([]*domain.FunnelDefinition, 0, len(ids))
	for _, id := range ids {
		def, err := s.definitions.GetFunnel(ctx, id)
		if errors.Is(err, domain.ErrFunnelNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load funnel %s: %w", id, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
