package toolgateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/harun/ikigai/pkg/jobsearch"
	"github.com/harun/ikigai/pkg/resume"
	"github.com/harun/ikigai/pkg/store"
)

// Tool names of the operation catalogue
const (
	ToolSaveSessionData    = "save-session-data"
	ToolGetSessionData     = "get-session-data"
	ToolGetAllUserSessions = "get-all-user-sessions"
	ToolSaveResume         = "save-resume"
	ToolGetResume          = "get-resume"
	ToolInferSkill         = "infer-skill"
	ToolSearchJobs         = "search-jobs"
)

// ProfessionInferer labels a résumé with a profession
type ProfessionInferer interface {
	InferProfession(ctx context.Context, resumeText string) (string, error)
}

// JobSearcher finds postings for a query
type JobSearcher interface {
	Search(ctx context.Context, q jobsearch.Query) ([]jobsearch.Posting, error)
}

// TextExtractor reduces a document to text
type TextExtractor interface {
	ExtractText(data []byte) string
}

// Deps are the collaborators behind the catalogue. Extractor defaults to
// resume.Extractor.
type Deps struct {
	Store      store.Repository
	Profession ProfessionInferer
	Jobs       JobSearcher
	Extractor  TextExtractor
}

// RegisterCatalogue registers every catalogue operation on exec
func RegisterCatalogue(exec *Executor, deps Deps) error {
	if deps.Store == nil || deps.Profession == nil || deps.Jobs == nil {
		return errors.New("catalogue needs a store, a profession inferer and a job searcher")
	}
	if deps.Extractor == nil {
		deps.Extractor = resume.Extractor{}
	}
	h := &handlers{deps: deps}

	defs := []ToolDefinition{
		{
			Name:        ToolSaveSessionData,
			Description: "Append a question and answer to a user's interview session, creating the session on first write",
			Parameters: []ToolParameter{
				{Name: "id", Type: "string", Description: "User ID", Required: true},
				{Name: "number_session", Type: "string", Description: "Session number", Required: true},
				{Name: "question", Type: "string", Description: "Question that was asked", Required: true},
				{Name: "answer", Type: "string", Description: "User's answer"},
				{Name: "path", Type: "string", Description: "Interview path: simplified or completed", Required: true},
				{Name: "careerCoach", Type: "boolean", Description: "Tag the entry as produced by the career coach"},
			},
			Handler: h.saveSessionData,
		},
		{
			Name:        ToolGetSessionData,
			Description: "Read one interview session with its question and answer history",
			Parameters: []ToolParameter{
				{Name: "id", Type: "string", Description: "User ID", Required: true},
				{Name: "number_session", Type: "string", Description: "Session number", Required: true},
			},
			Handler: h.getSessionData,
		},
		{
			Name:        ToolGetAllUserSessions,
			Description: "List every interview session of a user, oldest first",
			Parameters: []ToolParameter{
				{Name: "id", Type: "string", Description: "User ID", Required: true},
			},
			Handler: h.getAllUserSessions,
		},
		{
			Name:        ToolSaveResume,
			Description: "Store a user's résumé for a session, replacing any previous upload",
			Parameters: []ToolParameter{
				{Name: "id", Type: "string", Description: "User ID", Required: true},
				{Name: "session", Type: "string", Description: "Session number", Required: true},
				{Name: "document", Type: "string", Description: "Base64-encoded document", Required: true},
				{Name: "content_type", Type: "string", Description: "MIME type, application/pdf when omitted"},
			},
			Handler: h.saveResume,
		},
		{
			Name:        ToolGetResume,
			Description: "Fetch the résumé stored for a session",
			Parameters: []ToolParameter{
				{Name: "id", Type: "string", Description: "User ID", Required: true},
				{Name: "session", Type: "string", Description: "Session number", Required: true},
			},
			Handler: h.getResume,
		},
		{
			Name:        ToolInferSkill,
			Description: "Infer a single profession label from a résumé",
			Parameters: []ToolParameter{
				{Name: "document", Type: "string", Description: "Base64-encoded résumé", Required: true},
			},
			Handler: h.inferSkill,
		},
		{
			Name:        ToolSearchJobs,
			Description: "Search job postings matching the user's stated preferences",
			Parameters: []ToolParameter{
				{Name: "country", Type: "string", Description: "Country name or ISO code"},
				{Name: "location", Type: "string", Description: "City or region"},
				{Name: "jobType", Type: "string", Description: "Contract type, e.g. full-time or part-time"},
				{Name: "company", Type: "string", Description: "Preferred company"},
				{Name: "salary", Type: "string", Description: "Minimum salary"},
				{Name: "skills", Type: "string", Description: "Skills or profession to search for"},
			},
			Handler: h.searchJobs,
		},
	}

	for _, def := range defs {
		if err := exec.RegisterTool(def); err != nil {
			return err
		}
	}
	return nil
}

type handlers struct {
	deps Deps
}

func stringParam(params map[string]interface{}, name string) string {
	s, _ := params[name].(string)
	return s
}

func (h *handlers) saveSessionData(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	entry := store.QAEntry{
		Question:  stringParam(params, "question"),
		Answer:    stringParam(params, "answer"),
		Timestamp: time.Now(),
	}
	if coach, _ := params["careerCoach"].(bool); coach {
		entry.PhaseTag = store.PhaseCareerCoach
	}

	if err := h.deps.Store.AppendEntry(ctx, stringParam(params, "id"), stringParam(params, "number_session"), stringParam(params, "path"), entry); err != nil {
		return nil, err
	}
	return "Session data saved", nil
}

func (h *handlers) getSessionData(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	session, err := h.deps.Store.GetSession(ctx, stringParam(params, "id"), stringParam(params, "number_session"))
	if errors.Is(err, store.ErrNotFound) {
		return GetSessionDataResponse{Success: false, Error: "session not found"}, nil
	}
	if err != nil {
		return nil, err
	}
	return GetSessionDataResponse{
		Success: true,
		Session: &SessionView{
			ID:            session.UserID,
			NumberSession: session.SessionNumber,
			QAndA:         session.History,
		},
	}, nil
}

func (h *handlers) getAllUserSessions(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return h.deps.Store.ListSessions(ctx, stringParam(params, "id"))
}

func (h *handlers) saveResume(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	data, err := base64.StdEncoding.DecodeString(stringParam(params, "document"))
	if err != nil {
		return nil, fmt.Errorf("%w: document is not base64: %v", ErrValidation, err)
	}

	id, err := h.deps.Store.SaveResume(ctx, store.Resume{
		UserID:        stringParam(params, "id"),
		SessionNumber: stringParam(params, "session"),
		ContentType:   stringParam(params, "content_type"),
		Data:          data,
		UploadedAt:    time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return SaveResumeResponse{Message: "Resume saved", StorageID: id}, nil
}

func (h *handlers) getResume(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	r, err := h.deps.Store.GetResume(ctx, stringParam(params, "id"), stringParam(params, "session"))
	if errors.Is(err, store.ErrNotFound) {
		return GetResumeResponse{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return GetResumeResponse{
		Found:       true,
		Document:    base64.StdEncoding.EncodeToString(r.Data),
		ContentType: r.ContentType,
		StorageID:   r.StorageID,
	}, nil
}

func (h *handlers) inferSkill(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	data, err := base64.StdEncoding.DecodeString(stringParam(params, "document"))
	if err != nil {
		return nil, fmt.Errorf("%w: document is not base64: %v", ErrValidation, err)
	}

	text := h.deps.Extractor.ExtractText(data)
	if text == resume.Unreadable {
		text = ""
	}

	// InferProfession always yields a usable label, so its error only matters to logs.
	label, _ := h.deps.Profession.InferProfession(ctx, text)
	return label, nil
}

func (h *handlers) searchJobs(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return h.deps.Jobs.Search(ctx, jobsearch.Query{
		Country:  stringParam(params, "country"),
		Location: stringParam(params, "location"),
		JobType:  stringParam(params, "jobType"),
		Company:  stringParam(params, "company"),
		Salary:   stringParam(params, "salary"),
		Skills:   stringParam(params, "skills"),
	})
}
