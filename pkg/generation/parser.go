package generation

import (
	"regexp"
	"strings"
)

var (
	headerPrefix  = regexp.MustCompile(`^#{1,6}\s*`)
	bulletPrefix  = regexp.MustCompile(`^[-*•+–]\s+`)
	numberPrefix  = regexp.MustCompile(`^\(?\d{1,2}[.)\]:-]\s*`)
	labeledPrefix = regexp.MustCompile(`(?i)^(q|question|domanda)\s*\d{0,2}\s*[:.)-]\s*`)

	preambleStart = regexp.MustCompile(`(?i)^(sure|certainly|of course|okay|ok|here are|here is|here's|ecco|certo|certamente|va bene|hope|spero)\b`)
	mentionsList  = regexp.MustCompile(`(?i)\b(questions?|domande|domanda)\b`)
)

const minImperativeWords = 5

// ParseQuestionList recovers a clean question list from model output.
//
// The text is read line by line. On each line, repeatedly until nothing
// changes, it strips: markdown header markers (#), bullets (- * • + –),
// numbering ("1.", "2)", "(3)", "4:"), labels ("Q1:", "Question 2 -",
// "Domanda 3."), bold/underline markers (** and __) and wrapping quotes.
// A line is then dropped when it is blank, ends with ":" (a section
// header), or is a preamble/outro: it opens like "Sure", "Here are" or
// "Ecco", or talks about the questions themselves, without ending in "?".
//
// When any remaining line ends with "?", only those lines are kept.
// Otherwise lines of at least five words are accepted, which admits
// imperative prompts such as "Describe a project you are proud of."
// Duplicates are dropped case-insensitively, keeping the first occurrence.
// Order is preserved.
func ParseQuestionList(text string) []string {
	var candidates []string
	asked := false

	for _, raw := range strings.Split(text, "\n") {
		line := cleanLine(raw)
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		if isQuestion(line) {
			asked = true
		} else if isPreamble(line) {
			continue
		}
		candidates = append(candidates, line)
	}

	var questions []string
	seen := make(map[string]struct{})
	for _, line := range candidates {
		if asked && !isQuestion(line) {
			continue
		}
		if !asked && len(strings.Fields(line)) < minImperativeWords {
			continue
		}

		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		questions = append(questions, line)
	}

	return questions
}

func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	for {
		prev := line
		line = headerPrefix.ReplaceAllString(line, "")
		line = bulletPrefix.ReplaceAllString(line, "")
		line = numberPrefix.ReplaceAllString(line, "")
		line = labeledPrefix.ReplaceAllString(line, "")
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "__", "")
		line = trimQuotes(strings.TrimSpace(line))
		if line == prev {
			return line
		}
	}
}

func trimQuotes(s string) string {
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}, {"«", "»"}}
	for _, p := range pairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}

func isQuestion(line string) bool {
	return strings.HasSuffix(line, "?")
}

func isPreamble(line string) bool {
	return preambleStart.MatchString(line) || mentionsList.MatchString(line)
}
