package toolgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/harun/ikigai/pkg/jobsearch"
	"github.com/harun/ikigai/pkg/store"
)

// Request is a typed tool call, tagged by the tool it targets
type Request interface {
	ToolName() string
}

type SaveSessionDataRequest struct {
	ID            string `json:"id"`
	NumberSession string `json:"number_session"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	Path          string `json:"path"`
	CareerCoach   bool   `json:"careerCoach,omitempty"`
}

func (SaveSessionDataRequest) ToolName() string { return ToolSaveSessionData }

type GetSessionDataRequest struct {
	ID            string `json:"id"`
	NumberSession string `json:"number_session"`
}

func (GetSessionDataRequest) ToolName() string { return ToolGetSessionData }

type GetAllUserSessionsRequest struct {
	ID string `json:"id"`
}

func (GetAllUserSessionsRequest) ToolName() string { return ToolGetAllUserSessions }

type SaveResumeRequest struct {
	ID          string `json:"id"`
	Session     string `json:"session"`
	Document    string `json:"document"`
	ContentType string `json:"content_type,omitempty"`
}

func (SaveResumeRequest) ToolName() string { return ToolSaveResume }

type GetResumeRequest struct {
	ID      string `json:"id"`
	Session string `json:"session"`
}

func (GetResumeRequest) ToolName() string { return ToolGetResume }

type InferSkillRequest struct {
	Document string `json:"document"`
}

func (InferSkillRequest) ToolName() string { return ToolInferSkill }

type SearchJobsRequest struct {
	jobsearch.Query
}

func (SearchJobsRequest) ToolName() string { return ToolSearchJobs }

// SessionView is the get-session-data payload
type SessionView struct {
	ID            string          `json:"id"`
	NumberSession string          `json:"number_session"`
	QAndA         []store.QAEntry `json:"q_and_a"`
}

type GetSessionDataResponse struct {
	Success bool         `json:"success"`
	Session *SessionView `json:"session,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type SaveResumeResponse struct {
	Message   string `json:"message"`
	StorageID string `json:"storage_id"`
}

type GetResumeResponse struct {
	Found       bool   `json:"found"`
	Document    string `json:"document,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	StorageID   string `json:"storage_id,omitempty"`
}

// Client calls catalogue tools with typed requests and responses
type Client struct {
	exec *Executor
}

// NewClient creates a Client over exec
func NewClient(exec *Executor) *Client {
	return &Client{exec: exec}
}

// Call encodes req to a parameter map, invokes its tool and decodes the
// output into out. Output that does not decode yields ErrMalformedResponse.
func (c *Client) Call(ctx context.Context, req Request, out interface{}) error {
	params, err := encodeParams(req)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrValidation, req.ToolName(), err)
	}

	value, err := c.exec.Invoke(ctx, req.ToolName(), params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := decodeOutput(value, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, req.ToolName(), err)
	}
	return nil
}

func encodeParams(req Request) (map[string]interface{}, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{}
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	return params, nil
}

func decodeOutput(value interface{}, out interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("empty output")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// SaveSessionData appends one entry and returns the acknowledgement
func (c *Client) SaveSessionData(ctx context.Context, req SaveSessionDataRequest) (string, error) {
	var ack string
	if err := c.Call(ctx, req, &ack); err != nil {
		return "", err
	}
	return ack, nil
}

// GetSessionData returns nil, nil when the session does not exist
func (c *Client) GetSessionData(ctx context.Context, userID, sessionNumber string) (*SessionView, error) {
	var resp GetSessionDataResponse
	if err := c.Call(ctx, GetSessionDataRequest{ID: userID, NumberSession: sessionNumber}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, nil
	}
	if resp.Session == nil {
		return nil, fmt.Errorf("%w: %s: success without session", ErrMalformedResponse, ToolGetSessionData)
	}
	return resp.Session, nil
}

func (c *Client) GetAllUserSessions(ctx context.Context, userID string) ([]store.Session, error) {
	var sessions []store.Session
	if err := c.Call(ctx, GetAllUserSessionsRequest{ID: userID}, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SaveResume stores raw document bytes and returns the storage ID
func (c *Client) SaveResume(ctx context.Context, userID, sessionNumber string, document []byte, contentType string) (string, error) {
	var resp SaveResumeResponse
	req := SaveResumeRequest{
		ID:          userID,
		Session:     sessionNumber,
		Document:    base64.StdEncoding.EncodeToString(document),
		ContentType: contentType,
	}
	if err := c.Call(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.StorageID, nil
}

// GetResume returns the stored document bytes, or nil when none was uploaded
func (c *Client) GetResume(ctx context.Context, userID, sessionNumber string) ([]byte, error) {
	var resp GetResumeResponse
	if err := c.Call(ctx, GetResumeRequest{ID: userID, Session: sessionNumber}, &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.Document)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, ToolGetResume, err)
	}
	return data, nil
}

func (c *Client) InferSkill(ctx context.Context, document []byte) (string, error) {
	var label string
	if err := c.Call(ctx, InferSkillRequest{Document: base64.StdEncoding.EncodeToString(document)}, &label); err != nil {
		return "", err
	}
	return label, nil
}

func (c *Client) SearchJobs(ctx context.Context, q jobsearch.Query) ([]jobsearch.Posting, error) {
	var postings []jobsearch.Posting
	if err := c.Call(ctx, SearchJobsRequest{Query: q}, &postings); err != nil {
		return nil, err
	}
	return postings, nil
}
