// Package orchestrator drives the career-intake interview: one state machine
// per session, advanced one turn at a time inside that session's lane.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/ikigai/internal/observability"
	"github.com/harun/ikigai/internal/tracing"
	"github.com/harun/ikigai/pkg/commandqueue"
	"github.com/harun/ikigai/pkg/generation"
	"github.com/harun/ikigai/pkg/jobsearch"
	"github.com/harun/ikigai/pkg/lexicon"
	"github.com/harun/ikigai/pkg/resume"
	"github.com/harun/ikigai/pkg/statestore"
	"github.com/harun/ikigai/pkg/toolgateway"
)

// StageCareerCoach routes a turn to the career coach
const StageCareerCoach = "careerCoach"

// TurnRequest is one inbound user turn
type TurnRequest struct {
	UserInput     string
	UserID        string
	SessionNumber string
	Path          Path
	Stage         string
}

// TurnResponse is the orchestrator's reply
type TurnResponse struct {
	Message string `json:"message"`
	Done    bool   `json:"done"`
	Mode    string `json:"mode,omitempty"`
}

// Gateway is the subset of the tool gateway client the interview uses
type Gateway interface {
	SaveSessionData(ctx context.Context, req toolgateway.SaveSessionDataRequest) (string, error)
	GetSessionData(ctx context.Context, userID, sessionNumber string) (*toolgateway.SessionView, error)
	GetResume(ctx context.Context, userID, sessionNumber string) ([]byte, error)
	InferSkill(ctx context.Context, document []byte) (string, error)
	SearchJobs(ctx context.Context, q jobsearch.Query) ([]jobsearch.Posting, error)
}

// Generator is the language-generation surface the interview uses
type Generator interface {
	GenerateQuestionSet(ctx context.Context, topics []generation.Topic, perTopic int) ([]generation.Question, error)
	AnswerFreeform(ctx context.Context, question string, history []generation.Exchange) (string, error)
	Synthesize(ctx context.Context, kind generation.Kind, inputs generation.Inputs) (string, error)
}

// TextExtractor reduces a résumé to text
type TextExtractor interface {
	ExtractText(data []byte) string
}

// LexiconSource yields the lexicon currently in effect
type LexiconSource interface {
	Current() *lexicon.Lexicon
}

type staticLexicon struct{ lex *lexicon.Lexicon }

func (s staticLexicon) Current() *lexicon.Lexicon { return s.lex }

// Orchestrator runs interview turns
type Orchestrator struct {
	gateway   Gateway
	generator Generator
	states    statestore.Store
	queue     *commandqueue.CommandQueue
	lexicon   LexiconSource
	extractor TextExtractor
	topics    []generation.Topic
	logger    zerolog.Logger

	coachMu sync.Mutex
	coached map[string]bool
}

// Option is a functional option for configuring the Orchestrator
type Option func(*Orchestrator)

// WithLexicon sets the lexicon source. Defaults to lexicon.Default().
func WithLexicon(src LexiconSource) Option {
	return func(o *Orchestrator) {
		o.lexicon = src
	}
}

// WithExtractor sets the résumé text extractor. Defaults to resume.Extractor.
func WithExtractor(e TextExtractor) Option {
	return func(o *Orchestrator) {
		o.extractor = e
	}
}

// WithTopics overrides the Ikigai topics used for the completed path
func WithTopics(topics []generation.Topic) Option {
	return func(o *Orchestrator) {
		o.topics = topics
	}
}

// WithLogger sets the base logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an Orchestrator
func New(gateway Gateway, generator Generator, states statestore.Store, queue *commandqueue.CommandQueue, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:   gateway,
		generator: generator,
		states:    states,
		queue:     queue,
		lexicon:   staticLexicon{lex: lexicon.Default()},
		extractor: resume.Extractor{},
		topics:    generation.IkigaiTopics,
		logger:    zerolog.Nop(),
		coached:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "orchestrator").Logger()
	observability.EnsureRegistered()
	return o
}

// SessionKey identifies the transient state of a session
func SessionKey(userID, sessionNumber string) string {
	return userID + ":" + sessionNumber
}

// RunTurn dispatches on stage and path
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	if req.Stage == StageCareerCoach {
		return o.RunCareerCoachTurn(ctx, req.UserInput, req.UserID, req.SessionNumber, req.Path)
	}
	switch req.Path {
	case PathSimplified:
		return o.RunSimplifiedTurn(ctx, req.UserInput, req.UserID, req.SessionNumber)
	case PathCompleted:
		return o.RunCompletedTurn(ctx, req.UserInput, req.UserID, req.SessionNumber)
	default:
		return TurnResponse{}, fmt.Errorf("%w: unknown path %q", ErrInvalidArgument, req.Path)
	}
}

// RunSimplifiedTurn advances a simplified-path interview
func (o *Orchestrator) RunSimplifiedTurn(ctx context.Context, userInput, userID, sessionNumber string) (TurnResponse, error) {
	return o.runInLane(ctx, userID, sessionNumber, PathSimplified, func(ctx context.Context) (TurnResponse, error) {
		return o.interviewTurn(ctx, userInput, userID, sessionNumber, PathSimplified)
	})
}

// RunCompletedTurn advances a completed-path interview
func (o *Orchestrator) RunCompletedTurn(ctx context.Context, userInput, userID, sessionNumber string) (TurnResponse, error) {
	return o.runInLane(ctx, userID, sessionNumber, PathCompleted, func(ctx context.Context) (TurnResponse, error) {
		return o.interviewTurn(ctx, userInput, userID, sessionNumber, PathCompleted)
	})
}

// runInLane serializes turns of one session and records turn metrics
func (o *Orchestrator) runInLane(ctx context.Context, userID, sessionNumber string, path Path, turn func(ctx context.Context) (TurnResponse, error)) (TurnResponse, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionNumber) == "" {
		return TurnResponse{}, fmt.Errorf("%w: user and session are required", ErrInvalidArgument)
	}
	if !path.valid() {
		return TurnResponse{}, fmt.Errorf("%w: unknown path %q", ErrInvalidArgument, path)
	}

	key := SessionKey(userID, sessionNumber)
	ctx = tracing.NewTurnContext(ctx, userID, key)
	ctx, span := tracing.StartSpan(ctx, "ikigai.orchestrator", "orchestrator.turn", attribute.String("path", string(path)))
	defer span.End()

	start := time.Now()
	value, err := o.queue.Enqueue(ctx, commandqueue.SessionLane(key), func(ctx context.Context) (interface{}, error) {
		return turn(ctx)
	}, nil)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.RecordTurn(string(path), outcome, time.Since(start))
	if err != nil {
		return TurnResponse{}, err
	}

	resp, ok := value.(TurnResponse)
	if !ok {
		return TurnResponse{}, fmt.Errorf("unexpected turn result %T", value)
	}
	if resp.Done {
		span.SetAttributes(attribute.String("mode", resp.Mode))
	}
	return resp, nil
}

// interviewTurn is one step of the interview state machine. It runs inside
// the session lane, so the state read here is not touched concurrently.
func (o *Orchestrator) interviewTurn(ctx context.Context, userInput, userID, sessionNumber string, path Path) (TurnResponse, error) {
	logger := tracing.LoggerFromContext(ctx, o.logger)
	key := SessionKey(userID, sessionNumber)

	st, err := o.states.Get(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load interview state, starting over")
		st = nil
	}
	if st != nil {
		if _, ok := st.Current(); !ok {
			logger.Warn().Int("step", st.Step).Int("flow", len(st.Flow)).Msg("Interview state is past its flow, starting over")
			st = nil
		}
	}
	if st == nil {
		st, err = o.initState(ctx, userID, sessionNumber, path)
		if err != nil {
			return TurnResponse{}, err
		}
		logger.Info().Int("flow", len(st.Flow)).Int("primary", st.PrimaryCount).Msg("Interview started")
	} else if Path(st.Path) != path {
		logger.Warn().Str("state_path", st.Path).Str("request_path", string(path)).Msg("Turn path differs from the interview path")
	}

	current, _ := st.Current()

	if userInput == InitSentinel {
		if err := o.saveState(ctx, key, st); err != nil {
			return TurnResponse{}, err
		}
		return TurnResponse{Message: current.Question}, nil
	}

	// Acknowledgement of the conclusion ends the interview.
	if st.Concluded {
		o.persist(ctx, userID, sessionNumber, st.Path, current.Question, userInput, false)
		st.Answers = append(st.Answers, userInput)
		st.Step++
		if err := o.states.Delete(ctx, key); err != nil {
			logger.Error().Err(err).Msg("Failed to delete interview state")
		}
		logger.Info().Msg("Interview complete, switching to career coach")
		return TurnResponse{Message: transitionText, Done: true, Mode: ModeCareerCoach}, nil
	}

	if o.lexicon.Current().IsQuestion(userInput) {
		answer, err := o.answerOffScript(ctx, userID, sessionNumber, userInput)
		if err != nil {
			return TurnResponse{}, err
		}
		if err := o.saveState(ctx, key, st); err != nil {
			return TurnResponse{}, err
		}
		return TurnResponse{Message: answer}, nil
	}

	o.persist(ctx, userID, sessionNumber, st.Path, current.Question, userInput, false)
	st.Answers = append(st.Answers, userInput)
	st.Step++

	var message string
	switch {
	case st.PrimaryCount > 0 && !st.Suggested && st.Step == st.PrimaryCount:
		message, err = o.jobSuggestion(ctx, userID, sessionNumber, st)
		if err != nil {
			return TurnResponse{}, err
		}
		st.Splice(statestore.QuestionRecord{Question: message, Kind: statestore.KindJobSuggestion})
		st.Suggested = true

	case st.Step == len(st.Flow):
		message, err = o.jobConclusion(ctx, userID, sessionNumber, st)
		if err != nil {
			return TurnResponse{}, err
		}
		st.Splice(statestore.QuestionRecord{Question: message, Kind: statestore.KindJobConclusion})
		st.Concluded = true

	default:
		next, _ := st.Current()
		message = next.Question
	}

	if err := o.saveState(ctx, key, st); err != nil {
		return TurnResponse{}, err
	}
	return TurnResponse{Message: message}, nil
}

func (o *Orchestrator) saveState(ctx context.Context, key string, st *statestore.SessionState) error {
	if err := o.states.Put(ctx, key, st); err != nil {
		return fmt.Errorf("save interview state: %w", err)
	}
	return nil
}

// initState builds the flow for a new interview
func (o *Orchestrator) initState(ctx context.Context, userID, sessionNumber string, path Path) (*statestore.SessionState, error) {
	logger := tracing.LoggerFromContext(ctx, o.logger)
	st := &statestore.SessionState{Path: string(path), Answers: []string{}}

	var primary []string
	switch path {
	case PathCompleted:
		generated, err := o.generator.GenerateQuestionSet(ctx, o.topics, questionsPerTopic)
		var under *generation.UnderGeneratedError
		if err != nil && !errors.As(err, &under) {
			logger.Error().Err(err).Msg("Question generation failed")
		}
		var filled int
		primary, filled = fillQuestionSet(o.topics, generated, questionsPerTopic)
		if filled > 0 {
			logger.Error().
				Int("generated", len(primary)-filled).
				Int("filled", filled).
				Msg("Question set under-generated, filled from fallback questions")
		}

	case PathSimplified:
		doc, err := o.gateway.GetResume(ctx, userID, sessionNumber)
		if errors.Is(err, toolgateway.ErrMalformedResponse) {
			return nil, err
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Could not check for a résumé, asking preliminary questions")
		}
		if len(doc) == 0 {
			primary = preliminaryQuestions
		}
	}

	st.PrimaryCount = len(primary)
	st.Flow = append(primaryRecords(primary), logisticsRecords()...)
	return st, nil
}

// persist appends a QAEntry through the gateway. Failures are logged only.
func (o *Orchestrator) persist(ctx context.Context, userID, sessionNumber, path, question, answer string, careerCoach bool) {
	_, err := o.gateway.SaveSessionData(ctx, toolgateway.SaveSessionDataRequest{
		ID:            userID,
		NumberSession: sessionNumber,
		Question:      question,
		Answer:        answer,
		Path:          path,
		CareerCoach:   careerCoach,
	})
	if err != nil {
		observability.RecordPersistFailure()
		tracing.LoggerFromContext(ctx, o.logger).Error().Err(err).Msg("Failed to persist answer")
	}
}

// history returns the persisted exchanges of a session, or nil when they
// cannot be read. Only a malformed gateway response is returned as an error.
func (o *Orchestrator) history(ctx context.Context, userID, sessionNumber string) ([]generation.Exchange, error) {
	view, err := o.gateway.GetSessionData(ctx, userID, sessionNumber)
	if errors.Is(err, toolgateway.ErrMalformedResponse) {
		return nil, err
	}
	if err != nil {
		tracing.LoggerFromContext(ctx, o.logger).Warn().Err(err).Msg("Failed to read session history")
		return nil, nil
	}
	if view == nil {
		return nil, nil
	}

	exchanges := make([]generation.Exchange, 0, len(view.QAndA))
	for _, e := range view.QAndA {
		exchanges = append(exchanges, generation.Exchange{Question: e.Question, Answer: e.Answer})
	}
	return exchanges, nil
}

// resumeText returns the extracted résumé, resume.NotProvided when none was
// uploaded, and the raw document.
func (o *Orchestrator) resumeText(ctx context.Context, userID, sessionNumber string) (string, []byte, error) {
	doc, err := o.gateway.GetResume(ctx, userID, sessionNumber)
	if errors.Is(err, toolgateway.ErrMalformedResponse) {
		return "", nil, err
	}
	if err != nil {
		tracing.LoggerFromContext(ctx, o.logger).Warn().Err(err).Msg("Failed to read résumé")
		return resume.NotProvided, nil, nil
	}
	if len(doc) == 0 {
		return resume.NotProvided, nil, nil
	}
	return o.extractor.ExtractText(doc), doc, nil
}

func (o *Orchestrator) answerOffScript(ctx context.Context, userID, sessionNumber, question string) (string, error) {
	history, err := o.history(ctx, userID, sessionNumber)
	if err != nil {
		return "", err
	}

	answer, err := o.generator.AnswerFreeform(ctx, question, history)
	if err != nil || strings.TrimSpace(answer) == "" {
		tracing.LoggerFromContext(ctx, o.logger).Warn().Err(err).Msg("Off-script answer unavailable, using fallback")
		return offScriptFallback, nil
	}
	return answer, nil
}
