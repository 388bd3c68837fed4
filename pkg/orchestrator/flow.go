package orchestrator

import (
	"github.com/harun/ikigai/pkg/generation"
	"github.com/harun/ikigai/pkg/statestore"
)

// Path is the onboarding variant of an interview
type Path string

const (
	PathSimplified Path = "simplified"
	PathCompleted  Path = "completed"
)

func (p Path) valid() bool {
	return p == PathSimplified || p == PathCompleted
}

const (
	// InitSentinel requests the pending message without answering it.
	InitSentinel = "__INIT__"

	// ModeCareerCoach is reported once the interview hands over to the coach.
	ModeCareerCoach = "career_coach"

	questionsPerTopic = 3
)

// Logistics fields, in the order they are asked.
const (
	fieldCountry  = "country"
	fieldCity     = "city"
	fieldContract = "contract"
	fieldCompany  = "company"
	fieldSalary   = "salary"
)

type logisticsQuestion struct {
	Field string
	Label string
	Text  string
}

var logisticsQuestions = []logisticsQuestion{
	{Field: fieldCountry, Label: "Country", Text: "In which country would you like to work?"},
	{Field: fieldCity, Label: "City", Text: "Which city or area would you prefer to work in?"},
	{Field: fieldContract, Label: "Contract type", Text: "What kind of contract are you looking for: full-time, part-time, permanent or freelance?"},
	{Field: fieldCompany, Label: "Company", Text: "Is there a company you would especially like to work for?"},
	{Field: fieldSalary, Label: "Minimum salary", Text: "What is the minimum yearly salary you would accept?"},
}

func logisticsText(field string) string {
	for _, q := range logisticsQuestions {
		if q.Field == field {
			return q.Text
		}
	}
	return ""
}

const skillsQuestion = "What are your main skills?"

var preliminaryQuestions = []string{
	skillsQuestion,
	"What are your interests, at work and outside it?",
	"Tell me briefly about your education and work background.",
}

// fallbackQuestions replace generated questions a topic did not get.
var fallbackQuestions = map[string][]string{
	"passion": {
		"Which activities make you lose track of time?",
		"What would you keep doing even if nobody paid you for it?",
		"Which topics do you enjoy learning about in your free time?",
	},
	"mission": {
		"Which problems in the world would you most like to help solve?",
		"Which causes or communities matter most to you?",
		"What change would you like your work to bring to other people?",
	},
	"vocation": {
		"Which of your skills do people ask you for help with?",
		"Which kind of work do you think people would gladly pay you for?",
		"Which jobs or sectors have you been curious to try?",
	},
	"profession": {
		"What are you particularly good at?",
		"Which achievements in your studies or work are you proudest of?",
		"Which tools, methods or subjects do you master best?",
	},
}

const (
	offScriptFallback   = "I'm not sure how to answer that right now."
	suggestionFallback  = "Thank you for your answers! I couldn't prepare job suggestions right now, but let's continue with a few practical questions about your job search."
	conclusionFallback  = "Thank you! I couldn't complete the job search right now. Your personal career coach will help you plan the next steps."
	transitionText      = "Your interview is complete. Let's move on to your personal career coach: send any message to receive your career plan."
	planFallback        = "I couldn't prepare your career plan right now. Tell me which goal you would like to work on first and we'll start from there."
	coachAnswerFallback = "I'm not sure how to answer that right now. Could you rephrase your question?"
)

func primaryRecords(texts []string) []statestore.QuestionRecord {
	records := make([]statestore.QuestionRecord, 0, len(texts))
	for _, text := range texts {
		records = append(records, statestore.QuestionRecord{Question: text, Kind: statestore.KindPrimary})
	}
	return records
}

func logisticsRecords() []statestore.QuestionRecord {
	records := make([]statestore.QuestionRecord, 0, len(logisticsQuestions))
	for _, q := range logisticsQuestions {
		records = append(records, statestore.QuestionRecord{Question: q.Text, Kind: statestore.KindLogistics})
	}
	return records
}

// fillQuestionSet keeps up to perTopic generated questions per topic, in
// topic order, and tops each topic up from the fallback set. It reports how
// many fallbacks were used.
func fillQuestionSet(topics []generation.Topic, generated []generation.Question, perTopic int) ([]string, int) {
	byTopic := make(map[string][]string, len(topics))
	for _, q := range generated {
		byTopic[q.Topic] = append(byTopic[q.Topic], q.Text)
	}

	texts := make([]string, 0, len(topics)*perTopic)
	filled := 0
	for _, topic := range topics {
		got := byTopic[topic.Name]
		if len(got) > perTopic {
			got = got[:perTopic]
		}
		texts = append(texts, got...)

		fallbacks := fallbackQuestions[topic.Name]
		for i := len(got); i < perTopic; i++ {
			text := "Tell me more about your " + topic.Name + "."
			if i < len(fallbacks) {
				text = fallbacks[i]
			}
			texts = append(texts, text)
			filled++
		}
	}
	return texts, filled
}
