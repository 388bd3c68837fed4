package jobsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/harun/ikigai/internal/observability"
	"github.com/harun/ikigai/internal/tracing"
	"github.com/harun/ikigai/pkg/lexicon"
)

// Posting is one job advert
type Posting struct {
	Title        string  `json:"title"`
	Company      string  `json:"company"`
	Location     string  `json:"location"`
	ContractType string  `json:"contract_type"`
	SalaryMin    float64 `json:"salary_min"`
	SalaryMax    float64 `json:"salary_max"`
	Description  string  `json:"description"`
	URL          string  `json:"url"`
}

// LexiconSource yields the lexicon currently in effect
type LexiconSource interface {
	Current() *lexicon.Lexicon
}

// Config holds Adzuna client settings
type Config struct {
	BaseURL        string
	AppID          string
	AppKey         string
	ResultsPerPage int
	Timeout        time.Duration
}

// Client searches the Adzuna jobs API
type Client struct {
	client         *resty.Client
	appID          string
	appKey         string
	resultsPerPage int
	lexicon        LexiconSource
	logger         zerolog.Logger
}

// NewClient creates a new Adzuna client
func NewClient(cfg Config, lex LexiconSource, logger zerolog.Logger) *Client {
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")

	return &Client{
		client:         client,
		appID:          cfg.AppID,
		appKey:         cfg.AppKey,
		resultsPerPage: cfg.ResultsPerPage,
		lexicon:        lex,
		logger:         logger.With().Str("component", "jobsearch").Logger(),
	}
}

type adzunaResponse struct {
	Count   int `json:"count"`
	Results []struct {
		Title        string  `json:"title"`
		Description  string  `json:"description"`
		RedirectURL  string  `json:"redirect_url"`
		ContractType string  `json:"contract_type"`
		ContractTime string  `json:"contract_time"`
		SalaryMin    float64 `json:"salary_min"`
		SalaryMax    float64 `json:"salary_max"`
		Company      struct {
			DisplayName string `json:"display_name"`
		} `json:"company"`
		Location struct {
			DisplayName string `json:"display_name"`
		} `json:"location"`
	} `json:"results"`
}

// Search normalizes q and queries the first result page
func (c *Client) Search(ctx context.Context, q Query) ([]Posting, error) {
	n := NormalizeQuery(c.lexicon.Current(), q)
	logger := tracing.LoggerFromContext(ctx, c.logger)

	postings, err := c.search(ctx, n)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNoJobsMatched):
		outcome = "no_match"
	default:
		outcome = "error"
	}
	observability.RecordJobSearch(n.Country, outcome, len(postings))

	logger.Info().
		Str("country", n.Country).
		Str("what", n.What).
		Str("where", n.Where).
		Int("results", len(postings)).
		Str("outcome", outcome).
		Msg("Job search completed")

	return postings, err
}

func (c *Client) search(ctx context.Context, n Normalized) ([]Posting, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("country", n.Country).
		SetQueryParams(c.params(n)).
		Get("/{country}/search/1")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: provider returned %d", ErrTransport, resp.StatusCode())
	}

	var body adzunaResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrTransport, err)
	}
	if len(body.Results) == 0 {
		return nil, ErrNoJobsMatched
	}

	postings := make([]Posting, 0, len(body.Results))
	for _, r := range body.Results {
		contract := r.ContractType
		if r.ContractTime != "" {
			contract = strings.TrimSpace(contract + " " + r.ContractTime)
		}
		postings = append(postings, Posting{
			Title:        plainText(r.Title),
			Company:      r.Company.DisplayName,
			Location:     r.Location.DisplayName,
			ContractType: contract,
			SalaryMin:    r.SalaryMin,
			SalaryMax:    r.SalaryMax,
			Description:  plainText(r.Description),
			URL:          r.RedirectURL,
		})
	}
	return postings, nil
}

func (c *Client) params(n Normalized) map[string]string {
	params := map[string]string{
		"app_id":           c.appID,
		"app_key":          c.appKey,
		"results_per_page": strconv.Itoa(c.resultsPerPage),
	}
	if n.What != "" {
		params["what"] = n.What
	}
	if n.Where != "" {
		params["where"] = n.Where
	}
	if n.Company != "" {
		params["company"] = n.Company
	}
	if n.SalaryMin > 0 {
		params["salary_min"] = strconv.Itoa(n.SalaryMin)
	}
	for flag, set := range map[string]bool{
		"full_time": n.FullTime,
		"part_time": n.PartTime,
		"contract":  n.Contract,
		"permanent": n.Permanent,
	} {
		if set {
			params[flag] = "1"
		}
	}
	return params
}

// plainText strips markup from provider snippets
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
