package generation

import (
	"fmt"
	"strings"
)

// Topic is one quadrant of the Ikigai framework
type Topic struct {
	Name        string
	Description string
}

// IkigaiTopics are the four quadrants used to seed the open-ended block.
var IkigaiTopics = []Topic{
	{Name: "passion", Description: "what the person loves doing"},
	{Name: "mission", Description: "what the person believes the world needs"},
	{Name: "vocation", Description: "what the person could be paid for"},
	{Name: "profession", Description: "what the person is good at"},
}

const interviewerSystem = "You are a warm, concise career counsellor running an Ikigai-based career interview. " +
	"Reply in the language the user writes in; default to English."

func questionSetPrompt(topic Topic, count int) string {
	return fmt.Sprintf(
		"Write %d short, open-ended interview questions about %s (%s). "+
			"Output only the questions, one per line, each ending with a question mark. "+
			"No introduction, no numbering, no headers.",
		count, topic.Name, topic.Description)
}

const professionSystem = "You classify résumés. Answer with a single job title of at most five words, nothing else."

func professionPrompt(resumeText string) string {
	return "Which job title best describes the person in this résumé?\n\n" + resumeText
}

// Exchange is one question/answer pair used as context
type Exchange struct {
	Question string
	Answer   string
}

func formatHistory(history []Exchange) string {
	if len(history) == 0 {
		return "(no answers yet)"
	}
	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", h.Question, h.Answer)
	}
	return b.String()
}

// Kind selects a synthesis template
type Kind string

const (
	KindJobSuggestion Kind = "job_suggestion"
	KindJobConclusion Kind = "job_conclusion"
	KindPlan          Kind = "plan"
)

// Preference is one normalized job-search preference
type Preference struct {
	Label string
	Value string
}

// Inputs carries the structured material for a synthesis call
type Inputs struct {
	ResumeText  string
	History     []Exchange
	Preferences []Preference
	Postings    []string
	Profession  string
}

func synthesisPrompt(kind Kind, in Inputs) (system, user string) {
	var b strings.Builder

	if in.ResumeText != "" {
		fmt.Fprintf(&b, "Résumé:\n%s\n\n", in.ResumeText)
	}
	fmt.Fprintf(&b, "Interview so far:\n%s\n", formatHistory(in.History))

	switch kind {
	case KindJobSuggestion:
		b.WriteString("Suggest three to five job roles that fit this person, one short sentence each explaining the fit. " +
			"End by telling them a few practical questions about their job search follow.")
		return interviewerSystem, b.String()

	case KindJobConclusion:
		if len(in.Preferences) > 0 {
			b.WriteString("\nJob search preferences:\n")
			for _, p := range in.Preferences {
				value := p.Value
				if value == "" {
					value = "no preference"
				}
				fmt.Fprintf(&b, "- %s: %s\n", p.Label, value)
			}
		}
		if in.Profession != "" {
			fmt.Fprintf(&b, "\nSearched role: %s\n", in.Profession)
		}
		if len(in.Postings) > 0 {
			b.WriteString("\nMatching postings:\n")
			for _, p := range in.Postings {
				fmt.Fprintf(&b, "- %s\n", p)
			}
			b.WriteString("\nPresent the most relevant postings with their links and explain why each fits. ")
		} else {
			b.WriteString("\nNo postings matched. Explain briefly and suggest how to widen the search. ")
		}
		b.WriteString("Close by offering a personalised career plan as the next step.")
		return interviewerSystem, b.String()

	default:
		b.WriteString("Write a personalised, step-by-step career plan for the next six months: " +
			"goals, skills to build, concrete actions and milestones. Keep it under 400 words.")
		return "You are an experienced career coach. " + interviewerSystem, b.String()
	}
}
