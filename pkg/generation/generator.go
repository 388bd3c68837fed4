package generation

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/harun/ikigai/internal/tracing"
)

// DefaultProfession is returned when no profession can be inferred.
const DefaultProfession = "Project Manager"

const maxProfessionLength = 60

// Question is one generated interview question
type Question struct {
	Topic string
	Text  string
}

// Budgets bounds the output tokens of each call site
type Budgets struct {
	Questions     int
	Answer        int
	Profession    int
	JobSuggestion int
	JobConclusion int
	Plan          int
}

// Generator implements the interview's language-generation operations
type Generator struct {
	completer Completer
	budgets   Budgets
	logger    zerolog.Logger
}

// NewGenerator creates a generator on top of a completer, usually a *Runner
func NewGenerator(completer Completer, budgets Budgets, logger zerolog.Logger) *Generator {
	return &Generator{
		completer: completer,
		budgets:   budgets,
		logger:    logger.With().Str("component", "generation").Logger(),
	}
}

// GenerateQuestionSet asks for perTopic questions on every topic. A question
// already taken for an earlier topic is skipped, compared case-insensitively.
// When fewer than len(topics)*perTopic usable questions come back it returns
// an *UnderGeneratedError holding what was produced.
func (g *Generator) GenerateQuestionSet(ctx context.Context, topics []Topic, perTopic int) ([]Question, error) {
	logger := tracing.LoggerFromContext(ctx, g.logger)
	want := len(topics) * perTopic
	questions := make([]Question, 0, want)
	seen := make(map[string]struct{}, want)

	for _, topic := range topics {
		text, err := g.completer.Complete(ctx, Prompt{
			System:    interviewerSystem,
			Messages:  []Message{{Role: "user", Content: questionSetPrompt(topic, perTopic)}},
			MaxTokens: g.budgets.Questions,
		})
		if err != nil {
			logger.Error().Err(err).Str("topic", topic.Name).Msg("Question generation failed")
			continue
		}

		taken := 0
		for _, q := range ParseQuestionList(text) {
			if taken == perTopic {
				break
			}
			key := strings.ToLower(q)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			questions = append(questions, Question{Topic: topic.Name, Text: q})
			taken++
		}
		if taken < perTopic {
			logger.Warn().Str("topic", topic.Name).Int("want", perTopic).Int("got", taken).Msg("Topic produced too few distinct questions")
		}
	}

	if len(questions) < want {
		return questions, &UnderGeneratedError{Want: want, Partial: questions}
	}
	return questions, nil
}

// AnswerFreeform answers an off-script question with the interview history as context
func (g *Generator) AnswerFreeform(ctx context.Context, question string, history []Exchange) (string, error) {
	return g.completer.Complete(ctx, Prompt{
		System: interviewerSystem + " Answer the user's question briefly, using the interview so far as context.",
		Messages: []Message{
			{Role: "user", Content: "Interview so far:\n" + formatHistory(history)},
			{Role: "assistant", Content: "Understood."},
			{Role: "user", Content: question},
		},
		MaxTokens: g.budgets.Answer,
	})
}

// InferProfession returns a short job title for the résumé text, or
// DefaultProfession when the text is empty or nothing usable comes back.
func (g *Generator) InferProfession(ctx context.Context, resumeText string) (string, error) {
	if strings.TrimSpace(resumeText) == "" {
		return DefaultProfession, nil
	}

	out, err := g.completer.Complete(ctx, Prompt{
		System:    professionSystem,
		Messages:  []Message{{Role: "user", Content: professionPrompt(resumeText)}},
		MaxTokens: g.budgets.Profession,
	})
	if err != nil {
		return DefaultProfession, err
	}

	if label := cleanProfession(out); label != "" {
		return label, nil
	}
	return DefaultProfession, nil
}

func cleanProfession(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.ReplaceAll(line, "**", "")
		line = strings.TrimFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > maxProfessionLength {
			line = strings.TrimSpace(string([]rune(line)[:maxProfessionLength]))
		}
		return line
	}
	return ""
}

// Synthesize writes the long-form text for a checkpoint
func (g *Generator) Synthesize(ctx context.Context, kind Kind, inputs Inputs) (string, error) {
	budget, ok := g.budget(kind)
	if !ok {
		return "", fmt.Errorf("unknown synthesis kind %q", kind)
	}

	system, user := synthesisPrompt(kind, inputs)
	return g.completer.Complete(ctx, Prompt{
		System:    system,
		Messages:  []Message{{Role: "user", Content: user}},
		MaxTokens: budget,
	})
}

func (g *Generator) budget(kind Kind) (int, bool) {
	switch kind {
	case KindJobSuggestion:
		return g.budgets.JobSuggestion, true
	case KindJobConclusion:
		return g.budgets.JobConclusion, true
	case KindPlan:
		return g.budgets.Plan, true
	}
	return 0, false
}
