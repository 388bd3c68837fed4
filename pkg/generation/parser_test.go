package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuestionList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "plain lines",
			input:    "What do you love doing?\nWhat are you good at?",
			expected: []string{"What do you love doing?", "What are you good at?"},
		},
		{
			name:     "numbering and bullets",
			input:    "1. What do you love doing?\n2) What are you good at?\n- What would you do for free?\n• Which cause moves you?",
			expected: []string{"What do you love doing?", "What are you good at?", "What would you do for free?", "Which cause moves you?"},
		},
		{
			name:     "headers and header-only lines dropped",
			input:    "## Passion\nPassion questions:\n### 1. What makes you lose track of time?",
			expected: []string{"What makes you lose track of time?"},
		},
		{
			name:     "bold markers and quotes",
			input:    "**1. \"What energizes you at work?\"**\n“Which problem would you like to solve?”",
			expected: []string{"What energizes you at work?", "Which problem would you like to solve?"},
		},
		{
			name:     "labels in both languages",
			input:    "Q1: What do you value most?\nDomanda 2. Cosa ti appassiona?",
			expected: []string{"What do you value most?", "Cosa ti appassiona?"},
		},
		{
			name:     "blank lines and case-insensitive duplicates",
			input:    "\n  \nWhat drives you?\n\nwhat DRIVES you?\n",
			expected: []string{"What drives you?"},
		},
		{
			name:     "imperative prompts kept, short fragments dropped",
			input:    "Here you go\nDescribe a project you are proud of.\nVocation",
			expected: []string{"Describe a project you are proud of."},
		},
		{
			name:     "preamble does not take a question slot",
			input:    "Sure! Here are three questions about your passion.\n1. What do you love?\n2. What excites you?\n3. What makes you lose time?",
			expected: []string{"What do you love?", "What excites you?", "What makes you lose time?"},
		},
		{
			name:     "italian preamble and outro dropped",
			input:    "Ecco alcune domande per te.\nCosa ti appassiona?\nCosa sai fare meglio?\nSpero che queste domande ti siano utili.",
			expected: []string{"Cosa ti appassiona?", "Cosa sai fare meglio?"},
		},
		{
			name:     "imperative lines ignored when real questions exist",
			input:    "Describe a project you are proud of today.\nWhat do you love?",
			expected: []string{"What do you love?"},
		},
		{
			name:     "preamble dropped among imperative prompts",
			input:    "Here are some prompts for your reflection today.\nDescribe a project you are proud of.\nTell me about a day you felt useful.",
			expected: []string{"Describe a project you are proud of.", "Tell me about a day you felt useful."},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseQuestionList(tt.input))
		})
	}
}
