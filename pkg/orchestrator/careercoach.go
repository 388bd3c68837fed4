package orchestrator

import (
	"context"
	"strings"

	"github.com/harun/ikigai/internal/observability"
	"github.com/harun/ikigai/internal/tracing"
	"github.com/harun/ikigai/pkg/generation"
)

const checkpointPlan = "plan"

// RunCareerCoachTurn serves the career-coach phase. The first turn of a
// session produces the career plan; later turns answer the user against the
// stored history. Every exchange is persisted tagged as career coach.
func (o *Orchestrator) RunCareerCoachTurn(ctx context.Context, userInput, userID, sessionNumber string, path Path) (TurnResponse, error) {
	if path == "" {
		path = PathCompleted
	}
	return o.runInLane(ctx, userID, sessionNumber, path, func(ctx context.Context) (TurnResponse, error) {
		return o.coachTurn(ctx, userInput, userID, sessionNumber, path)
	})
}

func (o *Orchestrator) coachTurn(ctx context.Context, userInput, userID, sessionNumber string, path Path) (TurnResponse, error) {
	logger := tracing.LoggerFromContext(ctx, o.logger)
	key := SessionKey(userID, sessionNumber)

	history, err := o.history(ctx, userID, sessionNumber)
	if err != nil {
		return TurnResponse{}, err
	}

	if !o.planned(key) {
		resumeText, _, err := o.resumeText(ctx, userID, sessionNumber)
		if err != nil {
			return TurnResponse{}, err
		}

		plan, err := o.generator.Synthesize(ctx, generation.KindPlan, generation.Inputs{
			ResumeText: resumeText,
			History:    history,
		})
		fallback := err != nil || strings.TrimSpace(plan) == ""
		if fallback {
			logger.Error().Err(err).Msg("Career plan failed, using fallback")
			plan = planFallback
		}
		observability.RecordCheckpoint(checkpointPlan, fallback)

		o.persist(ctx, userID, sessionNumber, string(path), plan, userInput, true)
		o.markPlanned(key)
		return TurnResponse{Message: plan, Mode: ModeCareerCoach}, nil
	}

	answer, err := o.generator.AnswerFreeform(ctx, userInput, history)
	if err != nil || strings.TrimSpace(answer) == "" {
		logger.Warn().Err(err).Msg("Career coach answer unavailable, using fallback")
		answer = coachAnswerFallback
	}

	o.persist(ctx, userID, sessionNumber, string(path), answer, userInput, true)
	return TurnResponse{Message: answer, Mode: ModeCareerCoach}, nil
}

func (o *Orchestrator) planned(key string) bool {
	o.coachMu.Lock()
	defer o.coachMu.Unlock()
	return o.coached[key]
}

func (o *Orchestrator) markPlanned(key string) {
	o.coachMu.Lock()
	defer o.coachMu.Unlock()
	o.coached[key] = true
}
