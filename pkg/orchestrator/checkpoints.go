package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/ikigai/internal/observability"
	"github.com/harun/ikigai/internal/tracing"
	"github.com/harun/ikigai/pkg/generation"
	"github.com/harun/ikigai/pkg/jobsearch"
	"github.com/harun/ikigai/pkg/statestore"
	"github.com/harun/ikigai/pkg/toolgateway"
)

const maxPostingsInPrompt = 10

// localHistory pairs every answered flow entry with its answer
func localHistory(st *statestore.SessionState) []generation.Exchange {
	n := len(st.Answers)
	if n > len(st.Flow) {
		n = len(st.Flow)
	}
	exchanges := make([]generation.Exchange, 0, n)
	for i := 0; i < n; i++ {
		exchanges = append(exchanges, generation.Exchange{Question: st.Flow[i].Question, Answer: st.Answers[i]})
	}
	return exchanges
}

// answerTo returns the latest answer given to question
func answerTo(history []generation.Exchange, question string) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Question == question {
			return history[i].Answer, true
		}
	}
	return "", false
}

func (o *Orchestrator) jobSuggestion(ctx context.Context, userID, sessionNumber string, st *statestore.SessionState) (string, error) {
	logger := tracing.LoggerFromContext(ctx, o.logger)

	resumeText, _, err := o.resumeText(ctx, userID, sessionNumber)
	if err != nil {
		return "", err
	}

	message, err := o.generator.Synthesize(ctx, generation.KindJobSuggestion, generation.Inputs{
		ResumeText: resumeText,
		History:    localHistory(st),
	})
	if err != nil || strings.TrimSpace(message) == "" {
		logger.Error().Err(err).Msg("Job suggestion failed, using fallback")
		observability.RecordCheckpoint(string(statestore.KindJobSuggestion), true)
		return suggestionFallback, nil
	}

	observability.RecordCheckpoint(string(statestore.KindJobSuggestion), false)
	return message, nil
}

func (o *Orchestrator) jobConclusion(ctx context.Context, userID, sessionNumber string, st *statestore.SessionState) (string, error) {
	logger := tracing.LoggerFromContext(ctx, o.logger)
	lex := o.lexicon.Current()

	persisted, err := o.history(ctx, userID, sessionNumber)
	if err != nil {
		return "", err
	}
	local := localHistory(st)
	lookup := func(question string) string {
		if answer, ok := answerTo(persisted, question); ok {
			return answer
		}
		answer, _ := answerTo(local, question)
		return answer
	}
	history := persisted
	if len(history) == 0 {
		history = local
	}

	resumeText, doc, err := o.resumeText(ctx, userID, sessionNumber)
	if err != nil {
		return "", err
	}

	skill, err := o.skill(ctx, lex.Clean(lookup(skillsQuestion)), doc)
	if err != nil {
		return "", err
	}

	query := jobsearch.Query{
		Country:  lookup(logisticsText(fieldCountry)),
		Location: lookup(logisticsText(fieldCity)),
		JobType:  lookup(logisticsText(fieldContract)),
		Company:  lookup(logisticsText(fieldCompany)),
		Salary:   lookup(logisticsText(fieldSalary)),
		Skills:   skill,
	}

	postings, err := o.gateway.SearchJobs(ctx, query)
	switch {
	case errors.Is(err, toolgateway.ErrMalformedResponse):
		return "", err
	case errors.Is(err, jobsearch.ErrNoJobsMatched):
		logger.Info().Str("skills", skill).Msg("No jobs matched")
	case err != nil:
		logger.Warn().Err(err).Msg("Job search failed")
	}

	preferences := make([]generation.Preference, 0, len(logisticsQuestions))
	for _, q := range logisticsQuestions {
		value := lex.Clean(lookup(q.Text))
		if q.Field == fieldCountry {
			value = lex.CountryCode(value)
		}
		preferences = append(preferences, generation.Preference{Label: q.Label, Value: value})
	}

	message, err := o.generator.Synthesize(ctx, generation.KindJobConclusion, generation.Inputs{
		ResumeText:  resumeText,
		History:     history,
		Preferences: preferences,
		Postings:    describePostings(postings),
		Profession:  skill,
	})
	if err != nil || strings.TrimSpace(message) == "" {
		logger.Error().Err(err).Msg("Job conclusion failed, using fallback")
		observability.RecordCheckpoint(string(statestore.KindJobConclusion), true)
		return conclusionFallback, nil
	}

	observability.RecordCheckpoint(string(statestore.KindJobConclusion), false)
	return message, nil
}

// skill returns the stated skill, else the profession inferred from the
// résumé, else the default profession.
func (o *Orchestrator) skill(ctx context.Context, stated string, doc []byte) (string, error) {
	if stated != "" {
		return stated, nil
	}
	if len(doc) == 0 {
		return generation.DefaultProfession, nil
	}

	label, err := o.gateway.InferSkill(ctx, doc)
	if errors.Is(err, toolgateway.ErrMalformedResponse) {
		return "", err
	}
	if err != nil || strings.TrimSpace(label) == "" {
		tracing.LoggerFromContext(ctx, o.logger).Warn().Err(err).Msg("Skill inference failed, using default profession")
		return generation.DefaultProfession, nil
	}
	return label, nil
}

func describePostings(postings []jobsearch.Posting) []string {
	if len(postings) > maxPostingsInPrompt {
		postings = postings[:maxPostingsInPrompt]
	}

	lines := make([]string, 0, len(postings))
	for _, p := range postings {
		parts := []string{p.Title}
		if p.Company != "" {
			parts = append(parts, p.Company)
		}
		if p.Location != "" {
			parts = append(parts, p.Location)
		}
		if p.ContractType != "" {
			parts = append(parts, p.ContractType)
		}
		if p.SalaryMin > 0 || p.SalaryMax > 0 {
			parts = append(parts, fmt.Sprintf("salary %.0f-%.0f", p.SalaryMin, p.SalaryMax))
		}
		if p.URL != "" {
			parts = append(parts, p.URL)
		}
		lines = append(lines, strings.Join(parts, " | "))
	}
	return lines
}
