package jobsearch

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/harun/ikigai/pkg/lexicon"
)

// Query holds the user's free-text job-search preferences
type Query struct {
	Country  string `json:"country"`
	Location string `json:"location"`
	JobType  string `json:"jobType"`
	Company  string `json:"company"`
	Salary   string `json:"salary"`
	Skills   string `json:"skills"`
}

// Normalized is a Query mapped onto provider filters
type Normalized struct {
	Country   string
	What      string
	Where     string
	Company   string
	FullTime  bool
	PartTime  bool
	Contract  bool
	Permanent bool
	SalaryMin int
}

var salaryNumber = regexp.MustCompile(`(\d[\d.,' ]*)\s*(k)?`)

// NormalizeQuery blanks no-preference answers, maps the country through the
// lexicon, turns the job type into filter flags and a numeric salary into a
// minimum.
func NormalizeQuery(lex *lexicon.Lexicon, q Query) Normalized {
	n := Normalized{
		Country: lex.CountryCode(q.Country),
		What:    lex.Clean(q.Skills),
		Where:   lex.Clean(q.Location),
		Company: lex.Clean(q.Company),
	}

	jobType := strings.ToLower(lex.Clean(q.JobType))
	n.PartTime = strings.Contains(jobType, "part")
	n.FullTime = strings.Contains(jobType, "full") || strings.Contains(jobType, "tempo pieno")
	n.Permanent = strings.Contains(jobType, "permanent") || strings.Contains(jobType, "indeterminato")
	n.Contract = strings.Contains(jobType, "contract") || strings.Contains(jobType, "freelance") ||
		(strings.Contains(jobType, "determinato") && !n.Permanent)

	n.SalaryMin = ParseSalary(lex.Clean(q.Salary))
	return n
}

// ParseSalary reads the first number in s, ignoring thousands separators
// and honoring a "k" suffix. Returns 0 when s holds no number.
func ParseSalary(s string) int {
	m := salaryNumber.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0
	}

	raw := strings.TrimSpace(m[1])
	if m[2] == "k" {
		raw = strings.NewReplacer(" ", "", "'", "", ",", ".").Replace(raw)
		f, err := strconv.ParseFloat(strings.TrimRight(raw, "."), 64)
		if err != nil {
			return 0
		}
		return int(f * 1000)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return v
}
