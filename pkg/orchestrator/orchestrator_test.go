package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/ikigai/pkg/commandqueue"
	"github.com/harun/ikigai/pkg/generation"
	"github.com/harun/ikigai/pkg/jobsearch"
	"github.com/harun/ikigai/pkg/resume"
	"github.com/harun/ikigai/pkg/statestore"
	"github.com/harun/ikigai/pkg/store"
	"github.com/harun/ikigai/pkg/toolgateway"
)

type fakeGenerator struct {
	mu        sync.Mutex
	questions []generation.Question
	genErr    error
	answer    string
	synth     map[generation.Kind]string
	synthErr  error
	calls     map[string]int
	inputs    map[generation.Kind]generation.Inputs
}

func newFakeGenerator() *fakeGenerator {
	g := &fakeGenerator{
		answer: "ANSWER",
		synth: map[generation.Kind]string{
			generation.KindJobSuggestion: "SUGGESTION",
			generation.KindJobConclusion: "CONCLUSION",
			generation.KindPlan:          "PLAN",
		},
		calls:  map[string]int{},
		inputs: map[generation.Kind]generation.Inputs{},
	}
	for _, topic := range generation.IkigaiTopics {
		for i := 1; i <= questionsPerTopic; i++ {
			g.questions = append(g.questions, generation.Question{Topic: topic.Name, Text: fmt.Sprintf("%s question %d?", topic.Name, i)})
		}
	}
	return g
}

func (g *fakeGenerator) GenerateQuestionSet(ctx context.Context, topics []generation.Topic, perTopic int) ([]generation.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["questions"]++
	return g.questions, g.genErr
}

func (g *fakeGenerator) AnswerFreeform(ctx context.Context, question string, history []generation.Exchange) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["answer"]++
	return g.answer, nil
}

func (g *fakeGenerator) Synthesize(ctx context.Context, kind generation.Kind, inputs generation.Inputs) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[string(kind)]++
	g.inputs[kind] = inputs
	if g.synthErr != nil {
		return "", g.synthErr
	}
	return g.synth[kind], nil
}

func (g *fakeGenerator) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *fakeGenerator) lastInputs(kind generation.Kind) generation.Inputs {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inputs[kind]
}

type fakeJobs struct {
	mu      sync.Mutex
	queries []jobsearch.Query
	result  []jobsearch.Posting
	err     error
}

func (f *fakeJobs) Search(ctx context.Context, q jobsearch.Query) ([]jobsearch.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.result, f.err
}

type fakeProfession struct{ label string }

func (f fakeProfession) InferProfession(ctx context.Context, resumeText string) (string, error) {
	return f.label, nil
}

type harness struct {
	orch   *Orchestrator
	repo   *store.SQLiteStore
	states statestore.Store
	gen    *fakeGenerator
	jobs   *fakeJobs
	client *toolgateway.Client
}

func setupTestOrchestrator(t *testing.T) *harness {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "ikigai.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	jobs := &fakeJobs{result: []jobsearch.Posting{{Title: "Go Developer", Company: "Acme", URL: "https://jobs.example/1"}}}
	exec := toolgateway.New(zerolog.Nop(), 0)
	require.NoError(t, toolgateway.RegisterCatalogue(exec, toolgateway.Deps{
		Store:      repo,
		Profession: fakeProfession{label: "Backend Developer"},
		Jobs:       jobs,
	}))

	states, err := statestore.New(statestore.DriverMemory)
	require.NoError(t, err)
	t.Cleanup(func() { states.Close() })

	queue := commandqueue.New()
	t.Cleanup(func() { queue.Close() })

	gen := newFakeGenerator()
	client := toolgateway.NewClient(exec)

	return &harness{
		orch:   New(client, gen, states, queue),
		repo:   repo,
		states: states,
		gen:    gen,
		jobs:   jobs,
		client: client,
	}
}

func (h *harness) historyLen(t *testing.T, userID, sessionNumber string) int {
	t.Helper()
	session, err := h.repo.GetSession(context.Background(), userID, sessionNumber)
	if errors.Is(err, store.ErrNotFound) {
		return 0
	}
	require.NoError(t, err)
	return len(session.History)
}

func (h *harness) state(t *testing.T, userID, sessionNumber string) *statestore.SessionState {
	t.Helper()
	st, err := h.states.Get(context.Background(), SessionKey(userID, sessionNumber))
	require.NoError(t, err)
	return st
}

func TestCompletedPathEndToEnd(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()
	run := func(input string) TurnResponse {
		resp, err := h.orch.RunCompletedTurn(ctx, input, "u1", "1")
		require.NoError(t, err)
		return resp
	}

	resp := run(InitSentinel)
	assert.Equal(t, "passion question 1?", resp.Message)
	assert.False(t, resp.Done)
	assert.Equal(t, 0, h.historyLen(t, "u1", "1"), "__INIT__ persists nothing")

	resp = run(InitSentinel)
	assert.Equal(t, "passion question 1?", resp.Message, "__INIT__ does not advance")
	assert.Equal(t, 0, h.state(t, "u1", "1").Step)

	prevFlow := 0
	for i := 1; i <= 12; i++ {
		resp = run(fmt.Sprintf("answer number %d", i))
		assert.False(t, resp.Done)
		assert.Equal(t, i, h.historyLen(t, "u1", "1"))

		st := h.state(t, "u1", "1")
		assert.LessOrEqual(t, st.Step, len(st.Flow))
		assert.GreaterOrEqual(t, len(st.Flow), prevFlow)
		prevFlow = len(st.Flow)
	}
	assert.Equal(t, "SUGGESTION", resp.Message)
	assert.Len(t, h.gen.lastInputs(generation.KindJobSuggestion).History, 12)

	resp = run("sounds good")
	assert.Equal(t, logisticsText(fieldCountry), resp.Message)

	for _, answer := range []string{"Italia", "Milano", "full time", "no", "30k"} {
		resp = run(answer)
		assert.False(t, resp.Done)
	}
	assert.Equal(t, "CONCLUSION", resp.Message)
	assert.Equal(t, 18, h.historyLen(t, "u1", "1"))

	st := h.state(t, "u1", "1")
	require.NotNil(t, st)
	assert.True(t, st.Concluded)
	assert.Len(t, st.Flow, 19)

	require.Len(t, h.jobs.queries, 1)
	assert.Equal(t, jobsearch.Query{
		Country: "Italia", Location: "Milano", JobType: "full time", Company: "no", Salary: "30k",
		Skills: generation.DefaultProfession,
	}, h.jobs.queries[0])

	conclusion := h.gen.lastInputs(generation.KindJobConclusion)
	assert.Equal(t, []generation.Preference{
		{Label: "Country", Value: "it"},
		{Label: "City", Value: "Milano"},
		{Label: "Contract type", Value: "full time"},
		{Label: "Company", Value: ""},
		{Label: "Minimum salary", Value: "30k"},
	}, conclusion.Preferences)
	assert.Equal(t, []string{"Go Developer | Acme | https://jobs.example/1"}, conclusion.Postings)

	resp = run("thank you")
	assert.True(t, resp.Done)
	assert.Equal(t, ModeCareerCoach, resp.Mode)
	assert.Equal(t, transitionText, resp.Message)
	assert.Nil(t, h.state(t, "u1", "1"), "state is deleted after the hand-over")

	session, err := h.repo.GetSession(ctx, "u1", "1")
	require.NoError(t, err)
	require.Len(t, session.History, 19)
	assert.Equal(t, "completed", session.Path)
	assert.Equal(t, "SUGGESTION", session.History[12].Question)
	assert.Equal(t, "sounds good", session.History[12].Answer)
	assert.Equal(t, "CONCLUSION", session.History[18].Question)
	assert.Equal(t, "thank you", session.History[18].Answer)
}

func TestOffScriptQuestionsDoNotAdvance(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()

	_, err := h.orch.RunCompletedTurn(ctx, "I love music", "u1", "1")
	require.NoError(t, err)

	for _, q := range []string{"What is Ikigai?", "why do you ask", "come funziona questo colloquio", "Is this anonymous?"} {
		resp, err := h.orch.RunCompletedTurn(ctx, q, "u1", "1")
		require.NoError(t, err)
		assert.Equal(t, "ANSWER", resp.Message, q)
	}

	assert.Equal(t, 1, h.historyLen(t, "u1", "1"))
	assert.Equal(t, 1, h.state(t, "u1", "1").Step)

	resp, err := h.orch.RunCompletedTurn(ctx, InitSentinel, "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, "passion question 2?", resp.Message)
}

func TestOffScriptFallback(t *testing.T) {
	h := setupTestOrchestrator(t)
	h.gen.answer = ""

	resp, err := h.orch.RunSimplifiedTurn(context.Background(), "what happens next?", "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, offScriptFallback, resp.Message)
}

func TestSimplifiedPathWithoutResume(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()

	resp, err := h.orch.RunSimplifiedTurn(ctx, InitSentinel, "u2", "1")
	require.NoError(t, err)
	assert.Equal(t, skillsQuestion, resp.Message)

	answers := []string{"Go programming", "hiking", "computer science degree"}
	for _, a := range answers {
		resp, err = h.orch.RunSimplifiedTurn(ctx, a, "u2", "1")
		require.NoError(t, err)
	}
	assert.Equal(t, "SUGGESTION", resp.Message)

	for _, a := range []string{"ok", "Italy", "Roma", "part-time", "non lo so", "n/a"} {
		resp, err = h.orch.RunSimplifiedTurn(ctx, a, "u2", "1")
		require.NoError(t, err)
	}
	assert.Equal(t, "CONCLUSION", resp.Message)

	require.Len(t, h.jobs.queries, 1)
	assert.Equal(t, "Go programming", h.jobs.queries[0].Skills)
	assert.Equal(t, "Italy", h.jobs.queries[0].Country)
	assert.Equal(t, "not provided", h.gen.lastInputs(generation.KindJobConclusion).ResumeText)
}

func TestSimplifiedPathWithResumeSkipsPreliminary(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()

	_, err := h.repo.SaveResume(ctx, store.Resume{UserID: "u3", SessionNumber: "1", Data: []byte("Ten years building Go services"), ContentType: "text/plain"})
	require.NoError(t, err)

	resp, err := h.orch.RunSimplifiedTurn(ctx, InitSentinel, "u3", "1")
	require.NoError(t, err)
	assert.Equal(t, logisticsText(fieldCountry), resp.Message)

	for _, a := range []string{"Italia", "Torino", "full time", "Acme", "40.000"} {
		resp, err = h.orch.RunSimplifiedTurn(ctx, a, "u3", "1")
		require.NoError(t, err)
	}
	assert.Equal(t, "CONCLUSION", resp.Message)
	assert.Equal(t, 0, h.gen.count(string(generation.KindJobSuggestion)))

	require.Len(t, h.jobs.queries, 1)
	assert.Equal(t, "Backend Developer", h.jobs.queries[0].Skills, "skill inferred from the résumé")
	assert.Equal(t, "Ten years building Go services", h.gen.lastInputs(generation.KindJobConclusion).ResumeText)

	resp, err = h.orch.RunSimplifiedTurn(ctx, "great", "u3", "1")
	require.NoError(t, err)
	assert.True(t, resp.Done)
	assert.Equal(t, 6, h.historyLen(t, "u3", "1"))
}

func TestUnderGeneratedQuestionSetIsFilled(t *testing.T) {
	h := setupTestOrchestrator(t)
	h.gen.questions = []generation.Question{{Topic: "passion", Text: "What do you love?"}}
	h.gen.genErr = &generation.UnderGeneratedError{Want: 12, Partial: h.gen.questions}

	_, err := h.orch.RunCompletedTurn(context.Background(), InitSentinel, "u1", "1")
	require.NoError(t, err)

	st := h.state(t, "u1", "1")
	require.Len(t, st.Flow, 17)
	assert.Equal(t, 12, st.PrimaryCount)
	assert.Equal(t, "What do you love?", st.Flow[0].Question)
	assert.Equal(t, fallbackQuestions["passion"][1], st.Flow[1].Question)
	assert.Equal(t, fallbackQuestions["profession"][2], st.Flow[11].Question)
	assert.Equal(t, statestore.KindLogistics, st.Flow[12].Kind)
}

func TestCheckpointFallbacks(t *testing.T) {
	h := setupTestOrchestrator(t)
	h.gen.synthErr = errors.New("provider down")
	h.jobs.err = jobsearch.ErrNoJobsMatched
	ctx := context.Background()

	var resp TurnResponse
	var err error
	for _, a := range []string{"skills", "interests", "background"} {
		resp, err = h.orch.RunSimplifiedTurn(ctx, a, "u1", "1")
		require.NoError(t, err)
	}
	assert.Equal(t, suggestionFallback, resp.Message)

	for _, a := range []string{"ok", "Italy", "Roma", "part-time", "no", "no"} {
		resp, err = h.orch.RunSimplifiedTurn(ctx, a, "u1", "1")
		require.NoError(t, err)
	}
	assert.Equal(t, conclusionFallback, resp.Message)

	resp, err = h.orch.RunSimplifiedTurn(ctx, "ok", "u1", "1")
	require.NoError(t, err)
	assert.True(t, resp.Done)
}

func TestCareerCoachEndToEnd(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, h.repo.AppendEntry(ctx, "u1", "1", "completed", store.QAEntry{Question: "What do you love?", Answer: "Music"}))

	resp, err := h.orch.RunTurn(ctx, TurnRequest{UserInput: "hello", UserID: "u1", SessionNumber: "1", Path: PathCompleted, Stage: StageCareerCoach})
	require.NoError(t, err)
	assert.Equal(t, "PLAN", resp.Message)
	assert.Equal(t, ModeCareerCoach, resp.Mode)
	assert.Len(t, h.gen.lastInputs(generation.KindPlan).History, 1)

	resp, err = h.orch.RunCareerCoachTurn(ctx, "How do I start?", "u1", "1", PathCompleted)
	require.NoError(t, err)
	assert.Equal(t, "ANSWER", resp.Message)
	assert.Equal(t, 1, h.gen.count(string(generation.KindPlan)), "plan is generated once")

	session, err := h.repo.GetSession(ctx, "u1", "1")
	require.NoError(t, err)
	require.Len(t, session.History, 3)
	assert.Equal(t, store.QAEntry{Question: "PLAN", Answer: "hello", PhaseTag: store.PhaseCareerCoach, Timestamp: session.History[1].Timestamp}, session.History[1])
	assert.Equal(t, "ANSWER", session.History[2].Question)
	assert.Equal(t, "How do I start?", session.History[2].Answer)
	assert.Equal(t, store.PhaseCareerCoach, session.History[2].PhaseTag)
}

func TestConcurrentTurnsSameSessionAreSerialized(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.orch.RunSimplifiedTurn(ctx, fmt.Sprintf("reply %d", i), "u1", "1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	session, err := h.repo.GetSession(ctx, "u1", "1")
	require.NoError(t, err)

	questions := []string{}
	for _, e := range session.History {
		questions = append(questions, e.Question)
	}
	expected := append([]string{}, preliminaryQuestions...)
	expected = append(expected, "SUGGESTION")
	for _, q := range logisticsQuestions {
		expected = append(expected, q.Text)
	}
	expected = append(expected, "CONCLUSION")
	assert.Equal(t, expected, questions)
	assert.Nil(t, h.state(t, "u1", "1"))
}

// unavailableGateway fails selected gateway calls with a transient error
type unavailableGateway struct {
	Gateway
	failSave  bool
	failReads bool
}

func (g unavailableGateway) SaveSessionData(ctx context.Context, req toolgateway.SaveSessionDataRequest) (string, error) {
	if g.failSave {
		return "", fmt.Errorf("%w: save-session-data: database is locked", toolgateway.ErrTransientIO)
	}
	return g.Gateway.SaveSessionData(ctx, req)
}

func (g unavailableGateway) GetSessionData(ctx context.Context, userID, sessionNumber string) (*toolgateway.SessionView, error) {
	if g.failReads {
		return nil, fmt.Errorf("%w: get-session-data: timeout", toolgateway.ErrTransientIO)
	}
	return g.Gateway.GetSessionData(ctx, userID, sessionNumber)
}

func (g unavailableGateway) GetResume(ctx context.Context, userID, sessionNumber string) ([]byte, error) {
	if g.failReads {
		return nil, fmt.Errorf("%w: get-resume: timeout", toolgateway.ErrTransientIO)
	}
	return g.Gateway.GetResume(ctx, userID, sessionNumber)
}

func TestPersistFailureStillAdvances(t *testing.T) {
	h := setupTestOrchestrator(t)
	h.orch.gateway = unavailableGateway{Gateway: h.client, failSave: true}
	ctx := context.Background()

	resp, err := h.orch.RunCompletedTurn(ctx, "I love music", "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, "passion question 2?", resp.Message)

	resp, err = h.orch.RunCompletedTurn(ctx, "Helping people", "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, "passion question 3?", resp.Message)

	st := h.state(t, "u1", "1")
	assert.Equal(t, 2, st.Step)
	assert.Equal(t, []string{"I love music", "Helping people"}, st.Answers)
	assert.Equal(t, 0, h.historyLen(t, "u1", "1"), "nothing reached the store")
}

func TestReadFailuresDegradeToFallbackInputs(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()

	_, err := h.repo.SaveResume(ctx, store.Resume{UserID: "u1", SessionNumber: "1", Data: []byte("Ten years building Go services"), ContentType: "text/plain"})
	require.NoError(t, err)
	h.orch.gateway = unavailableGateway{Gateway: h.client, failReads: true}

	resp, err := h.orch.RunSimplifiedTurn(ctx, InitSentinel, "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, skillsQuestion, resp.Message, "an unreadable résumé is treated as missing")

	resp, err = h.orch.RunSimplifiedTurn(ctx, "Is this anonymous?", "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, "ANSWER", resp.Message)

	for _, a := range []string{"Go programming", "hiking", "computer science degree"} {
		resp, err = h.orch.RunSimplifiedTurn(ctx, a, "u1", "1")
		require.NoError(t, err)
	}
	assert.Equal(t, "SUGGESTION", resp.Message)
	assert.Equal(t, resume.NotProvided, h.gen.lastInputs(generation.KindJobSuggestion).ResumeText)

	for _, a := range []string{"ok", "Italy", "Roma", "part-time", "no", "no"} {
		resp, err = h.orch.RunSimplifiedTurn(ctx, a, "u1", "1")
		require.NoError(t, err)
	}
	assert.Equal(t, "CONCLUSION", resp.Message)

	require.Len(t, h.jobs.queries, 1)
	assert.Equal(t, "Go programming", h.jobs.queries[0].Skills)
	assert.Equal(t, "Italy", h.jobs.queries[0].Country)

	conclusion := h.gen.lastInputs(generation.KindJobConclusion)
	assert.Equal(t, resume.NotProvided, conclusion.ResumeText)
	assert.Len(t, conclusion.History, 9, "history falls back to the answers held in state")
}

func TestExpiredStateRestartsKeepingHistory(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()

	for _, a := range []string{"Music", "Teaching", "Travel"} {
		_, err := h.orch.RunCompletedTurn(ctx, a, "u1", "1")
		require.NoError(t, err)
	}
	require.Equal(t, 3, h.historyLen(t, "u1", "1"))

	require.NoError(t, h.states.Delete(ctx, SessionKey("u1", "1")))

	resp, err := h.orch.RunCompletedTurn(ctx, InitSentinel, "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, "passion question 1?", resp.Message)
	assert.Equal(t, 0, h.state(t, "u1", "1").Step)
	assert.Equal(t, 3, h.historyLen(t, "u1", "1"))

	_, err = h.orch.RunCompletedTurn(ctx, "Cooking", "u1", "1")
	require.NoError(t, err)

	session, err := h.repo.GetSession(ctx, "u1", "1")
	require.NoError(t, err)
	require.Len(t, session.History, 4)
	assert.Equal(t, "Music", session.History[0].Answer)
	assert.Equal(t, "passion question 1?", session.History[3].Question)
	assert.Equal(t, "Cooking", session.History[3].Answer)
}

func TestStatePastItsFlowStartsOver(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, h.states.Put(ctx, SessionKey("u1", "1"), &statestore.SessionState{
		Path: string(PathCompleted),
		Step: 4,
		Flow: []statestore.QuestionRecord{{Question: "old?"}, {Question: "older?"}},
	}))

	resp, err := h.orch.RunCompletedTurn(ctx, InitSentinel, "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, "passion question 1?", resp.Message)

	st := h.state(t, "u1", "1")
	assert.Equal(t, 0, st.Step)
	assert.Len(t, st.Flow, 17)
}

type malformedGateway struct {
	Gateway
}

func (malformedGateway) GetSessionData(ctx context.Context, userID, sessionNumber string) (*toolgateway.SessionView, error) {
	return nil, fmt.Errorf("%w: get-session-data: bad shape", toolgateway.ErrMalformedResponse)
}

func TestMalformedGatewayResponseFailsTurn(t *testing.T) {
	h := setupTestOrchestrator(t)
	h.orch.gateway = malformedGateway{Gateway: h.client}

	_, err := h.orch.RunCompletedTurn(context.Background(), "what is this?", "u1", "1")
	assert.ErrorIs(t, err, toolgateway.ErrMalformedResponse)
}

func TestInvalidArguments(t *testing.T) {
	h := setupTestOrchestrator(t)
	ctx := context.Background()

	_, err := h.orch.RunTurn(ctx, TurnRequest{UserInput: "x", SessionNumber: "1", Path: PathCompleted})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = h.orch.RunTurn(ctx, TurnRequest{UserInput: "x", UserID: "u", SessionNumber: "1", Path: "express"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
