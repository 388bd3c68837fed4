// Package mcpserver exposes the tool gateway catalogue as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/harun/ikigai/pkg/jobsearch"
	"github.com/harun/ikigai/pkg/store"
	"github.com/harun/ikigai/pkg/toolgateway"
)

// Config holds MCP server settings
type Config struct {
	Name    string
	Version string
	Logger  zerolog.Logger
}

// DefaultConfig returns the default server identity
func DefaultConfig() Config {
	return Config{
		Name:    "ikigai",
		Version: "dev",
		Logger:  zerolog.Nop(),
	}
}

// Server serves catalogue tools over MCP
type Server struct {
	mcp    *mcp.Server
	client *toolgateway.Client
	exec   *toolgateway.Executor
	logger zerolog.Logger
}

// NewServer registers every catalogue tool known to exec
func NewServer(cfg Config, exec *toolgateway.Executor) (*Server, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Name == "" {
		cfg.Name = "ikigai"
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		client: toolgateway.NewClient(exec),
		exec:   exec,
		logger: cfg.Logger.With().Str("component", "mcpserver").Logger(),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// MCP returns the underlying SDK server
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves on the stdio transport until ctx is done or the peer disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Msg("Starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

func (s *Server) description(name string) (string, error) {
	def := s.exec.GetTool(name)
	if def == nil {
		return "", fmt.Errorf("%w: %s", toolgateway.ErrToolNotFound, name)
	}
	return def.Description, nil
}

type saveSessionDataInput struct {
	ID            string `json:"id" jsonschema:"User ID"`
	NumberSession string `json:"number_session" jsonschema:"Session number"`
	Question      string `json:"question" jsonschema:"Question that was asked"`
	Answer        string `json:"answer,omitempty" jsonschema:"User's answer"`
	Path          string `json:"path" jsonschema:"Interview path: simplified or completed"`
	CareerCoach   bool   `json:"careerCoach,omitempty" jsonschema:"Tag the entry as produced by the career coach"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type sessionInput struct {
	ID            string `json:"id" jsonschema:"User ID"`
	NumberSession string `json:"number_session" jsonschema:"Session number"`
}

type userInput struct {
	ID string `json:"id" jsonschema:"User ID"`
}

type entryView struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
	PhaseTag  string `json:"phaseTag,omitempty"`
}

type sessionView struct {
	ID            string      `json:"id"`
	NumberSession string      `json:"number_session"`
	Path          string      `json:"path,omitempty"`
	CreatedAt     string      `json:"createdAt,omitempty"`
	QAndA         []entryView `json:"q_and_a"`
}

type sessionOutput struct {
	Success bool         `json:"success"`
	Session *sessionView `json:"session,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type sessionsOutput struct {
	Sessions []sessionView `json:"sessions"`
}

func entryViews(entries []store.QAEntry) []entryView {
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{
			Question:  e.Question,
			Answer:    e.Answer,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			PhaseTag:  e.PhaseTag,
		})
	}
	return views
}

type saveResumeInput struct {
	ID          string `json:"id" jsonschema:"User ID"`
	Session     string `json:"session" jsonschema:"Session number"`
	Document    string `json:"document" jsonschema:"Base64-encoded document"`
	ContentType string `json:"content_type,omitempty" jsonschema:"MIME type, application/pdf when omitted"`
}

type resumeInput struct {
	ID      string `json:"id" jsonschema:"User ID"`
	Session string `json:"session" jsonschema:"Session number"`
}

type documentInput struct {
	Document string `json:"document" jsonschema:"Base64-encoded résumé"`
}

type skillOutput struct {
	Skill string `json:"skill"`
}

type searchJobsInput struct {
	Country  string `json:"country,omitempty" jsonschema:"Country name or ISO code"`
	Location string `json:"location,omitempty" jsonschema:"City or region"`
	JobType  string `json:"jobType,omitempty" jsonschema:"Contract type, e.g. full-time or part-time"`
	Company  string `json:"company,omitempty" jsonschema:"Preferred company"`
	Salary   string `json:"salary,omitempty" jsonschema:"Minimum salary"`
	Skills   string `json:"skills,omitempty" jsonschema:"Skills or profession to search for"`
}

type postingsOutput struct {
	Postings []jobsearch.Posting `json:"postings"`
}

func (s *Server) registerTools() error {
	descriptions := map[string]string{}
	for _, name := range []string{
		toolgateway.ToolSaveSessionData,
		toolgateway.ToolGetSessionData,
		toolgateway.ToolGetAllUserSessions,
		toolgateway.ToolSaveResume,
		toolgateway.ToolGetResume,
		toolgateway.ToolInferSkill,
		toolgateway.ToolSearchJobs,
	} {
		desc, err := s.description(name)
		if err != nil {
			return err
		}
		descriptions[name] = desc
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolgateway.ToolSaveSessionData,
		Description: descriptions[toolgateway.ToolSaveSessionData],
	}, func(ctx context.Context, req *mcp.CallToolRequest, args saveSessionDataInput) (*mcp.CallToolResult, messageOutput, error) {
		msg, err := s.client.SaveSessionData(ctx, toolgateway.SaveSessionDataRequest{
			ID:            args.ID,
			NumberSession: args.NumberSession,
			Question:      args.Question,
			Answer:        args.Answer,
			Path:          args.Path,
			CareerCoach:   args.CareerCoach,
		})
		return result(s.logger, toolgateway.ToolSaveSessionData, messageOutput{Message: msg}, err)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolgateway.ToolGetSessionData,
		Description: descriptions[toolgateway.ToolGetSessionData],
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sessionInput) (*mcp.CallToolResult, sessionOutput, error) {
		var resp toolgateway.GetSessionDataResponse
		err := s.client.Call(ctx, toolgateway.GetSessionDataRequest{ID: args.ID, NumberSession: args.NumberSession}, &resp)
		out := sessionOutput{Success: resp.Success, Error: resp.Error}
		if resp.Session != nil {
			out.Session = &sessionView{
				ID:            resp.Session.ID,
				NumberSession: resp.Session.NumberSession,
				QAndA:         entryViews(resp.Session.QAndA),
			}
		}
		return result(s.logger, toolgateway.ToolGetSessionData, out, err)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolgateway.ToolGetAllUserSessions,
		Description: descriptions[toolgateway.ToolGetAllUserSessions],
	}, func(ctx context.Context, req *mcp.CallToolRequest, args userInput) (*mcp.CallToolResult, sessionsOutput, error) {
		sessions, err := s.client.GetAllUserSessions(ctx, args.ID)
		out := sessionsOutput{Sessions: make([]sessionView, 0, len(sessions))}
		for _, sess := range sessions {
			out.Sessions = append(out.Sessions, sessionView{
				ID:            sess.UserID,
				NumberSession: sess.SessionNumber,
				Path:          sess.Path,
				CreatedAt:     sess.CreatedAt.UTC().Format(time.RFC3339),
				QAndA:         entryViews(sess.History),
			})
		}
		return result(s.logger, toolgateway.ToolGetAllUserSessions, out, err)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolgateway.ToolSaveResume,
		Description: descriptions[toolgateway.ToolSaveResume],
	}, func(ctx context.Context, req *mcp.CallToolRequest, args saveResumeInput) (*mcp.CallToolResult, toolgateway.SaveResumeResponse, error) {
		var out toolgateway.SaveResumeResponse
		err := s.client.Call(ctx, toolgateway.SaveResumeRequest{
			ID:          args.ID,
			Session:     args.Session,
			Document:    args.Document,
			ContentType: args.ContentType,
		}, &out)
		return result(s.logger, toolgateway.ToolSaveResume, out, err)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolgateway.ToolGetResume,
		Description: descriptions[toolgateway.ToolGetResume],
	}, func(ctx context.Context, req *mcp.CallToolRequest, args resumeInput) (*mcp.CallToolResult, toolgateway.GetResumeResponse, error) {
		var out toolgateway.GetResumeResponse
		err := s.client.Call(ctx, toolgateway.GetResumeRequest{ID: args.ID, Session: args.Session}, &out)
		return result(s.logger, toolgateway.ToolGetResume, out, err)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolgateway.ToolInferSkill,
		Description: descriptions[toolgateway.ToolInferSkill],
	}, func(ctx context.Context, req *mcp.CallToolRequest, args documentInput) (*mcp.CallToolResult, skillOutput, error) {
		var skill string
		err := s.client.Call(ctx, toolgateway.InferSkillRequest{Document: args.Document}, &skill)
		return result(s.logger, toolgateway.ToolInferSkill, skillOutput{Skill: skill}, err)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolgateway.ToolSearchJobs,
		Description: descriptions[toolgateway.ToolSearchJobs],
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchJobsInput) (*mcp.CallToolResult, postingsOutput, error) {
		postings, err := s.client.SearchJobs(ctx, jobsearch.Query(args))
		if postings == nil {
			postings = []jobsearch.Posting{}
		}
		return result(s.logger, toolgateway.ToolSearchJobs, postingsOutput{Postings: postings}, err)
	})

	return nil
}

// result renders out as JSON text content. Errors become tool errors for the peer.
func result[T any](logger zerolog.Logger, tool string, out T, err error) (*mcp.CallToolResult, T, error) {
	var zero T
	if err != nil {
		logger.Warn().Err(err).Str("tool", tool).Msg("MCP tool call failed")
		return nil, zero, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, zero, fmt.Errorf("encode %s output: %w", tool, err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, out, nil
}
