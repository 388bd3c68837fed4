// Package lexicon holds the bilingual word lists the interview relies on:
// interrogative words for off-script detection, "no answer" tokens and the
// country synonym table used to build job-search queries.
package lexicon

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Lexicon is a set of word lists. A zero value matches nothing; use Default.
type Lexicon struct {
	QuestionWords  []string          `json:"question_words"`
	NoAnswerTokens []string          `json:"no_answer_tokens"`
	Countries      map[string]string `json:"countries"`
	DefaultCountry string            `json:"default_country"`

	noAnswer map[string]struct{}
}

// Default returns the built-in English and Italian lexicon.
func Default() *Lexicon {
	l := &Lexicon{
		QuestionWords: []string{
			"what", "why", "how", "when", "where", "who",
			"che", "come", "perché", "perche", "quando", "dove", "chi", "cosa",
		},
		NoAnswerTokens: []string{
			"no", "none", "n/a", "na", "-", "nothing", "any", "anywhere", "whatever",
			"i don't know", "i dont know", "don't know", "dont know", "idk", "not sure",
			"no preference", "doesn't matter", "does not matter",
			"nessuno", "nessuna", "niente", "qualsiasi", "ovunque", "indifferente",
			"non lo so", "non so", "boh", "nessuna preferenza", "non importa",
		},
		Countries:      defaultCountries(),
		DefaultCountry: "it",
	}
	l.index()
	return l
}

func defaultCountries() map[string]string {
	table := map[string][]string{
		"it": {"italy", "italia", "italian", "ita"},
		"gb": {"united kingdom", "uk", "great britain", "britain", "england", "regno unito", "inghilterra", "gran bretagna"},
		"us": {"united states", "usa", "us", "america", "stati uniti", "stati uniti d'america"},
		"de": {"germany", "germania", "deutschland"},
		"fr": {"france", "francia"},
		"es": {"spain", "spagna", "españa", "espana"},
		"nl": {"netherlands", "holland", "olanda", "paesi bassi"},
		"at": {"austria"},
		"be": {"belgium", "belgio"},
		"ch": {"switzerland", "svizzera"},
		"pl": {"poland", "polonia"},
		"ca": {"canada"},
		"au": {"australia"},
		"nz": {"new zealand", "nuova zelanda"},
		"br": {"brazil", "brasile"},
		"mx": {"mexico", "messico"},
		"in": {"india"},
		"sg": {"singapore"},
		"za": {"south africa", "sudafrica"},
	}

	countries := make(map[string]string)
	for code, names := range table {
		countries[code] = code
		for _, name := range names {
			countries[name] = code
		}
	}
	return countries
}

// Load reads a JSON lexicon file. Lists present in the file replace the
// built-in ones; country entries are merged into the built-in table.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon: %w", err)
	}

	var file Lexicon
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}

	l := Default()
	if len(file.QuestionWords) > 0 {
		l.QuestionWords = file.QuestionWords
	}
	if len(file.NoAnswerTokens) > 0 {
		l.NoAnswerTokens = file.NoAnswerTokens
	}
	for name, code := range file.Countries {
		l.Countries[normalize(name)] = strings.ToLower(code)
	}
	if file.DefaultCountry != "" {
		l.DefaultCountry = strings.ToLower(file.DefaultCountry)
	}
	l.index()
	return l, nil
}

func (l *Lexicon) index() {
	l.noAnswer = make(map[string]struct{}, len(l.NoAnswerTokens))
	for _, t := range l.NoAnswerTokens {
		l.noAnswer[normalize(t)] = struct{}{}
	}
	for i, w := range l.QuestionWords {
		l.QuestionWords[i] = strings.ToLower(w)
	}
}

// IsQuestion reports whether input reads as a question: it ends with "?"
// or starts with an interrogative word followed by a space or "?".
func (l *Lexicon) IsQuestion(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, w := range l.QuestionWords {
		if strings.HasPrefix(lower, w+" ") || strings.HasPrefix(lower, w+"?") {
			return true
		}
	}
	return false
}

// IsNoAnswer reports whether s means "no preference".
func (l *Lexicon) IsNoAnswer(s string) bool {
	n := normalize(s)
	if n == "" {
		return true
	}
	_, ok := l.noAnswer[n]
	return ok
}

// Clean returns s trimmed, or "" when it is a no-answer token.
func (l *Lexicon) Clean(s string) string {
	if l.IsNoAnswer(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

// CountryCode maps a free-text country to its two-letter code, falling
// back to DefaultCountry for empty or unknown input.
func (l *Lexicon) CountryCode(s string) string {
	if l.IsNoAnswer(s) {
		return l.DefaultCountry
	}
	if code, ok := l.Countries[normalize(s)]; ok {
		return code
	}
	return l.DefaultCountry
}

// normalize lowercases, unifies apostrophes, trims trailing punctuation
// and collapses whitespace.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	s = strings.TrimRight(s, ".!;, ")
	return strings.Join(strings.Fields(s), " ")
}
