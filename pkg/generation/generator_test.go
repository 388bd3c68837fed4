package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func testBudgets() Budgets {
	return Budgets{Questions: 600, Answer: 300, Profession: 20, JobSuggestion: 500, JobConclusion: 700, Plan: 900}
}

func promptMentions(s string) interface{} {
	return mock.MatchedBy(func(p Prompt) bool {
		for _, m := range p.Messages {
			if strings.Contains(m.Content, s) {
				return true
			}
		}
		return false
	})
}

func TestGenerateQuestionSet(t *testing.T) {
	t.Run("exact count", func(t *testing.T) {
		c := &mockCompleter{}
		c.On("Complete", mock.Anything, promptMentions("passion")).
			Return("1. What do you love?\n2. What excites you?\n3. What would you do for free?\n4. Extra question?", nil)
		c.On("Complete", mock.Anything, promptMentions("mission")).Return("M1?\nM2?\nM3?", nil)
		c.On("Complete", mock.Anything, promptMentions("vocation")).Return("V1?\nV2?\nV3?", nil)
		c.On("Complete", mock.Anything, promptMentions("profession")).Return("P1?\nP2?\nP3?", nil)

		g := NewGenerator(c, testBudgets(), zerolog.Nop())
		questions, err := g.GenerateQuestionSet(context.Background(), IkigaiTopics, 3)

		require.NoError(t, err)
		assert.Len(t, questions, 12)
		assert.Equal(t, "passion", questions[0].Topic)
		assert.Equal(t, "profession", questions[11].Topic)
		assert.Equal(t, "What do you love?", questions[0].Text)
		c.AssertNumberOfCalls(t, "Complete", 4)
	})

	t.Run("under-generation carries partial list", func(t *testing.T) {
		c := &mockCompleter{}
		c.On("Complete", mock.Anything, promptMentions("passion")).Return("What do you love?\nWhat excites you?", nil)
		c.On("Complete", mock.Anything, promptMentions("mission")).Return("", errors.New("boom"))
		c.On("Complete", mock.Anything, promptMentions("vocation")).Return("V1?\nV2?\nV3?", nil)
		c.On("Complete", mock.Anything, promptMentions("profession")).Return("P1?\nP2?\nP3?", nil)

		g := NewGenerator(c, testBudgets(), zerolog.Nop())
		questions, err := g.GenerateQuestionSet(context.Background(), IkigaiTopics, 3)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnderGenerated)

		var under *UnderGeneratedError
		require.True(t, errors.As(err, &under))
		assert.Equal(t, 12, under.Want)
		assert.Len(t, under.Partial, 8)
		assert.Equal(t, questions, under.Partial)
	})

	t.Run("repeats across topics are dropped", func(t *testing.T) {
		c := &mockCompleter{}
		c.On("Complete", mock.Anything, mock.Anything).
			Return("What do you love?\nWhat excites you?\nWhat would you do for free?", nil)

		g := NewGenerator(c, testBudgets(), zerolog.Nop())
		questions, err := g.GenerateQuestionSet(context.Background(), IkigaiTopics, 3)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnderGenerated)
		require.Len(t, questions, 3)
		for _, q := range questions {
			assert.Equal(t, "passion", q.Topic)
		}
	})

	t.Run("a repeat is replaced by the next distinct line", func(t *testing.T) {
		c := &mockCompleter{}
		c.On("Complete", mock.Anything, promptMentions("passion")).Return("What do you love?\nA?\nB?", nil)
		c.On("Complete", mock.Anything, promptMentions("mission")).Return("WHAT DO YOU LOVE?\nC?\nD?\nE?", nil)
		c.On("Complete", mock.Anything, promptMentions("vocation")).Return("F?\nG?\nH?", nil)
		c.On("Complete", mock.Anything, promptMentions("profession")).Return("I?\nJ?\nK?", nil)

		g := NewGenerator(c, testBudgets(), zerolog.Nop())
		questions, err := g.GenerateQuestionSet(context.Background(), IkigaiTopics, 3)

		require.NoError(t, err)
		require.Len(t, questions, 12)
		assert.Equal(t, "C?", questions[3].Text)
		assert.Equal(t, "E?", questions[5].Text)
	})
}

func TestInferProfession(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   string
	}{
		{"plain label", "Backend Developer", nil, "Backend Developer"},
		{"decorated label", "**Data Analyst.**\nBecause of SQL skills", nil, "Data Analyst"},
		{"empty output", "  \n ", nil, DefaultProfession},
		{"too long", strings.Repeat("x", 80), nil, strings.Repeat("x", 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mockCompleter{}
			c.On("Complete", mock.Anything, mock.Anything).Return(tt.output, tt.err)

			got, err := NewGenerator(c, testBudgets(), zerolog.Nop()).InferProfession(context.Background(), "ten years of Go")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("empty résumé skips the call", func(t *testing.T) {
		c := &mockCompleter{}
		got, err := NewGenerator(c, testBudgets(), zerolog.Nop()).InferProfession(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, DefaultProfession, got)
		c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	})

	t.Run("failure returns default with error", func(t *testing.T) {
		c := &mockCompleter{}
		c.On("Complete", mock.Anything, mock.Anything).Return("", ErrGeneration)

		got, err := NewGenerator(c, testBudgets(), zerolog.Nop()).InferProfession(context.Background(), "cv")
		assert.ErrorIs(t, err, ErrGeneration)
		assert.Equal(t, DefaultProfession, got)
	})
}

func TestSynthesizeUsesKindBudget(t *testing.T) {
	budgets := testBudgets()
	cases := map[Kind]int{
		KindJobSuggestion: budgets.JobSuggestion,
		KindJobConclusion: budgets.JobConclusion,
		KindPlan:          budgets.Plan,
	}

	for kind, budget := range cases {
		t.Run(string(kind), func(t *testing.T) {
			c := &mockCompleter{}
			c.On("Complete", mock.Anything, mock.MatchedBy(func(p Prompt) bool {
				return p.MaxTokens == budget
			})).Return("text", nil)

			out, err := NewGenerator(c, budgets, zerolog.Nop()).Synthesize(context.Background(), kind, Inputs{
				History:     []Exchange{{Question: "What do you love?", Answer: "Music"}},
				Preferences: []Preference{{Label: "Country", Value: "it"}, {Label: "Company"}},
				Postings:    []string{"Go Developer at Acme (Milano) https://example.com/1"},
			})
			require.NoError(t, err)
			assert.Equal(t, "text", out)
			c.AssertExpectations(t)
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		_, err := NewGenerator(&mockCompleter{}, budgets, zerolog.Nop()).Synthesize(context.Background(), Kind("poem"), Inputs{})
		assert.Error(t, err)
	})
}

func TestSynthesisPromptContent(t *testing.T) {
	_, user := synthesisPrompt(KindJobConclusion, Inputs{
		Preferences: []Preference{{Label: "Salary", Value: ""}},
		Profession:  "Chef",
	})

	assert.Contains(t, user, "Salary: no preference")
	assert.Contains(t, user, "Searched role: Chef")
	assert.Contains(t, user, "No postings matched")
}

func TestAnswerFreeformIncludesHistory(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, promptMentions("A: Cooking")).Return("Sure.", nil)

	out, err := NewGenerator(c, testBudgets(), zerolog.Nop()).AnswerFreeform(context.Background(), "Why ask?",
		[]Exchange{{Question: "What do you love?", Answer: "Cooking"}})

	require.NoError(t, err)
	assert.Equal(t, "Sure.", out)
}
