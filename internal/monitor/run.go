package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"leadwatch/internal/ai"
	"leadwatch/internal/apify"
	"leadwatch/internal/filtering"
	"leadwatch/internal/logger"
	"leadwatch/internal/store"
	"leadwatch/internal/util"

	"go.uber.org/zap"
)

const (
	minResultsPerKeyword     = 1
	maxResultsPerKeyword     = 50
	defaultResultsPerKeyword = 20

	// Per-call budgets so one hung adapter call cannot stall the scheduler.
	searchTimeout   = 6 * time.Minute
	classifyTimeout = 2 * time.Minute
)

// SearchProvider fetches candidate posts for a keyword search.
type SearchProvider interface {
	Search(ctx context.Context, params *apify.SearchParams) (*apify.Posts, error)
}

// LeadStore persists qualified leads.
type LeadStore interface {
	UpsertIfNew(ctx context.Context, lead *store.Lead) (bool, error)
}

// RunConfig describes one monitoring sweep across the configured keywords.
type RunConfig struct {
	Keywords          []string
	JobTitles         []string
	Industries        []string
	ResultsPerKeyword int
	DateFilter        string
	SortType          string
	UseJobTitleFilter bool
}

// Validate normalizes the config in place and reports whether it can run.
func (c *RunConfig) Validate() error {
	var keywords []string
	for _, kw := range c.Keywords {
		if strings.TrimSpace(kw) != "" {
			keywords = append(keywords, kw)
		}
	}
	c.Keywords = keywords

	if len(c.Keywords) == 0 {
		return fmt.Errorf("%w: at least one search keyword is required", ErrConfigInvalid)
	}

	if c.ResultsPerKeyword == 0 {
		c.ResultsPerKeyword = defaultResultsPerKeyword
	}
	if c.ResultsPerKeyword < minResultsPerKeyword {
		c.ResultsPerKeyword = minResultsPerKeyword
	}
	if c.ResultsPerKeyword > maxResultsPerKeyword {
		c.ResultsPerKeyword = maxResultsPerKeyword
	}

	if c.DateFilter == "" {
		c.DateFilter = apify.DateFilterPast24h
	}
	if c.SortType == "" {
		c.SortType = apify.SortByDatePosted
	}

	return nil
}

// RunError records an isolated failure inside an otherwise successful run.
type RunError struct {
	Keyword string `json:"keyword,omitempty"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// RunSummary reports what one sweep did.
type RunSummary struct {
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        time.Time  `json:"finished_at"`
	Keywords          []string   `json:"keywords"`
	CandidatesFetched int        `json:"candidates_fetched"`
	FilteredOut       int        `json:"filtered_out"`
	Classified        int        `json:"classified"`
	Duplicates        int        `json:"duplicates"`
	LeadsCreated      int        `json:"leads_created"`
	Errors            []RunError `json:"errors,omitempty"`
}

// Runner executes monitoring sweeps. Runs are serialized on a single mutex,
// a sweep requested while another is in flight waits its turn.
type Runner struct {
	search     SearchProvider
	classifier ai.Classifier
	leads      LeadStore
	logger     *zap.Logger

	runMu sync.Mutex

	statusMu      sync.Mutex
	lastSummary   *RunSummary
	onLeadCreated func(*store.Lead)
}

func NewRunner(search SearchProvider, classifier ai.Classifier, leads LeadStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		search:     search,
		classifier: classifier,
		leads:      leads,
		logger:     logger,
	}
}

// OnLeadCreated registers a callback invoked for every newly stored lead.
func (r *Runner) OnLeadCreated(fn func(*store.Lead)) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.onLeadCreated = fn
}

// LastRun returns the summary of the most recently finished sweep, or nil.
func (r *Runner) LastRun() *RunSummary {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.lastSummary
}

// Run executes one sweep. Provider and classifier failures are isolated and
// recorded in the summary, a storage failure aborts the remainder of the
// sweep but still returns the partial summary alongside the error.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*RunSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.runMu.Lock()
	defer r.runMu.Unlock()

	summary := &RunSummary{
		StartedAt: time.Now().UTC(),
		Keywords:  cfg.Keywords,
	}

	r.logger.Info("monitoring sweep started",
		zap.Strings("keywords", cfg.Keywords),
		zap.Int("results_per_keyword", cfg.ResultsPerKeyword),
	)

	var runErr error

keywords:
	for _, keyword := range cfg.Keywords {
		searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
		posts, err := r.search.Search(searchCtx, &apify.SearchParams{
			Keyword:    keyword,
			SortType:   cfg.SortType,
			DateFilter: cfg.DateFilter,
			Limit:      cfg.ResultsPerKeyword,
		})
		cancel()
		if err != nil {
			r.logger.Warn("keyword search failed", zap.String(logger.FieldKeyword, keyword), zap.Error(err))
			summary.Errors = append(summary.Errors, RunError{Keyword: keyword, Stage: "search", Message: err.Error()})
			continue
		}

		summary.CandidatesFetched += posts.Len()

		for _, post := range posts.Items {
			if cfg.UseJobTitleFilter && !filtering.TitleMatches(post.Author.Headline, cfg.JobTitles) {
				summary.FilteredOut++
				continue
			}

			stored, err := r.processCandidate(ctx, keyword, post, cfg, summary)
			if err != nil {
				runErr = err
				break keywords
			}
			if stored {
				summary.LeadsCreated++
			}
		}
	}

	summary.FinishedAt = time.Now().UTC()

	r.statusMu.Lock()
	r.lastSummary = summary
	r.statusMu.Unlock()

	r.logger.Info("monitoring sweep finished",
		zap.Int("candidates", summary.CandidatesFetched),
		zap.Int("filtered_out", summary.FilteredOut),
		zap.Int("classified", summary.Classified),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("leads_created", summary.LeadsCreated),
		zap.Int("errors", len(summary.Errors)),
	)

	return summary, runErr
}

func (r *Runner) processCandidate(ctx context.Context, keyword string, post *apify.Post, cfg RunConfig, summary *RunSummary) (bool, error) {
	classifyCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	verdict, err := r.classifier.Classify(classifyCtx, &ai.Request{
		Content:       post.Text,
		AuthorName:    post.Author.Name,
		AuthorTitle:   post.Author.Headline,
		AuthorCompany: post.Company(),
		Keywords:      cfg.Keywords,
	})
	if err != nil {
		r.logger.Warn("classification failed",
			zap.String(logger.FieldKeyword, keyword),
			zap.String("author", post.Author.Name),
			zap.Error(err),
		)
		summary.Errors = append(summary.Errors, RunError{Keyword: keyword, Stage: "classify", Message: err.Error()})
		return false, nil
	}

	summary.Classified++

	if !verdict.Relevant {
		r.logger.Debug("candidate rejected by classifier",
			zap.String("author", post.Author.Name),
			zap.String("rationale", verdict.Rationale),
		)
		return false, nil
	}

	matches := filtering.Detect(post.Text, post.Author.Headline, post.Company(), filtering.Terms{
		Keywords:   cfg.Keywords,
		JobTitles:  cfg.JobTitles,
		Industries: cfg.Industries,
	})

	handle := post.Author.Username
	if handle == "" {
		handle = post.Author.ProfileURL
	}

	lead := &store.Lead{
		Identity:          store.IdentityKey(post.ActivityID, post.Link()),
		AuthorName:        post.Author.Name,
		AuthorHandle:      handle,
		AuthorTitle:       post.Author.Headline,
		Company:           post.Company(),
		Content:           post.Text,
		PostURL:           post.Link(),
		BudgetMention:     util.BudgetMention(post.Text),
		MatchedKeywords:   matches.Keywords,
		MatchedRoles:      matches.Roles,
		MatchedIndustries: matches.Industries,
		Rationale:         verdict.Rationale,
		DiscoveredAt:      time.Now().UTC(),
	}

	stored, err := r.leads.UpsertIfNew(ctx, lead)
	if err != nil {
		return false, fmt.Errorf("store lead %s: %w", lead.Identity, err)
	}

	if !stored {
		summary.Duplicates++
		return false, nil
	}

	r.logger.Info("new lead",
		zap.String("author", lead.AuthorName),
		zap.String("company", lead.Company),
		zap.String("url", lead.PostURL),
	)

	r.statusMu.Lock()
	callback := r.onLeadCreated
	r.statusMu.Unlock()
	if callback != nil {
		callback(lead)
	}

	return true, nil
}
