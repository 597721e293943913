// Package analysis turns fetched articles into structured reading notes
// using the AI service: summaries, tags, priority and note topics.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pario-ai/readq/pkg/events"
	"github.com/pario-ai/readq/pkg/models"
)

const (
	wordsPerMinute  = 200
	defaultTagLimit = 5

	analysisTemperature = 0.3
	analysisMaxTokens   = 8192
	topicTemperature    = 0.5
	topicMaxTokens      = 1024
	tagTemperature      = 0.3
	tagMaxTokens        = 4096
)

// Failure messages reported in pipeline outputs.
const (
	MsgExtractFailed = "Failed to extract content from URL"
	MsgNoService     = "AI service not initialized"
	MsgParseAnalysis = "Failed to parse analysis response"
	MsgParseTopics   = "Failed to parse note topics response"
	MsgNoTopics      = "No note topics could be generated"
	msgAnalyzeFailed = "Failed to analyze content"
	msgTopicsFailed  = "Failed to generate note topics"
	msgTagsFailed    = "Failed to get tag suggestions"
)

// Generator is the slice of the AI service the pipelines call.
type Generator interface {
	SimpleGenerateForFeature(ctx context.Context, feature models.Feature, prompt, systemPrompt string, opts *models.RequestOptions, currentSpend *float64) (models.ProviderResponse, error)
	FeatureConfig(feature models.Feature) models.FeatureModel
}

// Ledger records the usage of each generation.
type Ledger interface {
	TrackUsage(provider, model string, inputTokens, outputTokens int, feature models.Feature) models.UsageRecord
	CurrentSpend() float64
}

// Analyzer runs the URL analysis, note topic and tag pipelines.
type Analyzer struct {
	gen     Generator
	ledger  Ledger
	fetcher Fetcher
	emitter *events.Emitter
	spend   func() float64
	log     zerolog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithFetcher replaces the HTTP page fetcher.
func WithFetcher(f Fetcher) Option {
	return func(a *Analyzer) { a.fetcher = f }
}

// WithEmitter publishes analysis lifecycle events on e.
func WithEmitter(e *events.Emitter) Option {
	return func(a *Analyzer) { a.emitter = e }
}

// WithSpend sets how the spend checked against the budget is measured.
// The default is the ledger's lifetime spend.
func WithSpend(fn func() float64) Option {
	return func(a *Analyzer) { a.spend = fn }
}

// WithLogger sets the analyzer logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) { a.log = l }
}

// New returns an Analyzer. gen may be nil, in which case AI pipelines fail
// and tag suggestion falls back to keyword matching.
func New(gen Generator, ledger Ledger, opts ...Option) *Analyzer {
	a := &Analyzer{
		gen:    gen,
		ledger: ledger,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fetcher == nil {
		a.fetcher = NewHTTPFetcher(fetchTimeout)
	}
	if a.emitter == nil {
		a.emitter = events.New(events.WithLogger(a.log))
	}
	if a.spend == nil && ledger != nil {
		a.spend = ledger.CurrentSpend
	}
	return a
}

// AnalyzeURLInput identifies the item to analyze.
type AnalyzeURLInput struct {
	ItemID       string   `json:"itemId"`
	URL          string   `json:"url"`
	ExistingTags []string `json:"existingTags,omitempty"`
	Language     string   `json:"language,omitempty"`
}

// AnalyzeURLOutput carries the analysis or the reason there is none.
type AnalyzeURLOutput struct {
	Success  bool                    `json:"success"`
	Analysis *models.ContentAnalysis `json:"analysis,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// AnalyzeURL fetches in.URL, asks the url-analysis model for a structured
// reading and records the usage. It publishes analysis:started and then
// exactly one of analysis:completed or analysis:failed. Every failure,
// including a budget violation, is reported in the output.
func (a *Analyzer) AnalyzeURL(ctx context.Context, in AnalyzeURLInput) (out AnalyzeURLOutput) {
	a.emitter.Emit(events.AnalysisStarted{ItemID: in.ItemID})

	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Str("item", in.ItemID).Msg("analysis panicked")
			out = a.analysisFailed(in.ItemID, fmt.Sprint(r))
		}
	}()

	page, err := a.fetcher.Fetch(ctx, in.URL)
	if err != nil {
		a.log.Warn().Err(err).Str("url", in.URL).Msg("fetch failed")
		page = Page{}
	}
	if strings.TrimSpace(page.Content) == "" {
		return a.analysisFailed(in.ItemID, MsgExtractFailed)
	}
	if a.gen == nil {
		return a.analysisFailed(in.ItemID, MsgNoService)
	}

	resp, err := a.generate(ctx, models.FeatureURLAnalysis, analysisPromptFor(page), analysisTemperature, analysisMaxTokens)
	if err != nil {
		return a.analysisFailed(in.ItemID, err.Error())
	}
	if !resp.Success {
		return a.analysisFailed(in.ItemID, orDefault(resp.Error, msgAnalyzeFailed))
	}

	result, err := ParseAnalysis(resp.Content)
	if err != nil {
		a.log.Warn().Err(err).Str("item", in.ItemID).Msg("unparseable analysis reply")
		return a.analysisFailed(in.ItemID, MsgParseAnalysis)
	}
	route := a.track(models.FeatureURLAnalysis, resp)

	analysis := models.NewContentAnalysis(models.ContentAnalysis{
		ItemID:               in.ItemID,
		Title:                orDefault(result.Title, page.Title),
		Summary:              result.Summary,
		KeyInsights:          result.KeyInsights,
		SuggestedTags:        MergeTags(in.ExistingTags, result.SuggestedTags),
		SuggestedPriority:    result.SuggestedPriority,
		EstimatedReadingTime: readingTime(result.EstimatedReadingTime, page.WordCount),
		Language:             orDefault(result.Language, in.Language),
		Provider:             string(route.Provider),
		Model:                route.Model,
		TokensUsed:           resp.TokensUsed,
	})

	a.emitter.Emit(events.AnalysisCompleted{ItemID: in.ItemID, Summary: analysis.Summary})
	a.log.Info().Str("item", in.ItemID).Str("model", route.Model).Int("tokens", resp.Tokens()).Msg("analysis completed")
	return AnalyzeURLOutput{Success: true, Analysis: analysis}
}

func (a *Analyzer) analysisFailed(itemID, msg string) AnalyzeURLOutput {
	a.emitter.Emit(events.AnalysisFailed{ItemID: itemID, Error: msg})
	return AnalyzeURLOutput{Error: msg}
}

// NoteTopicsInput is the reading a set of permanent notes is drawn from.
type NoteTopicsInput struct {
	ItemID    string                  `json:"itemId"`
	Title     string                  `json:"title"`
	URL       string                  `json:"url,omitempty"`
	Analysis  *models.ContentAnalysis `json:"analysis,omitempty"`
	UserNotes string                  `json:"userNotes,omitempty"`
}

// NoteTopicsOutput carries the suggested topics.
type NoteTopicsOutput struct {
	Success bool               `json:"success"`
	Topics  []models.NoteTopic `json:"topics"`
	Error   string             `json:"error,omitempty"`
}

// SuggestNoteTopics proposes permanent note topics for a reading using the
// insight-extraction model.
func (a *Analyzer) SuggestNoteTopics(ctx context.Context, in NoteTopicsInput) (out NoteTopicsOutput) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Str("item", in.ItemID).Msg("note topics panicked")
			out = NoteTopicsOutput{Topics: []models.NoteTopic{}, Error: fmt.Sprint(r)}
		}
	}()
	fail := func(msg string) NoteTopicsOutput {
		return NoteTopicsOutput{Topics: []models.NoteTopic{}, Error: msg}
	}

	if a.gen == nil {
		return fail(MsgNoService)
	}
	resp, err := a.generate(ctx, models.FeatureInsightExtraction, noteTopicPromptFor(in), topicTemperature, topicMaxTokens)
	if err != nil {
		return fail(err.Error())
	}
	if !resp.Success {
		return fail(orDefault(resp.Error, msgTopicsFailed))
	}
	a.track(models.FeatureInsightExtraction, resp)

	topics, err := ParseNoteTopics(resp.Content)
	if err != nil {
		a.log.Warn().Err(err).Str("item", in.ItemID).Msg("unparseable note topics reply")
		return fail(MsgParseTopics)
	}
	if len(topics) == 0 {
		return fail(MsgNoTopics)
	}
	return NoteTopicsOutput{Success: true, Topics: topics}
}

// SuggestTagsInput is the content to tag and the tags already known.
type SuggestTagsInput struct {
	Content      string   `json:"content"`
	ExistingTags []string `json:"existingTags,omitempty"`
	VaultTags    []string `json:"vaultTags,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

// SuggestTagsOutput carries the new tags.
type SuggestTagsOutput struct {
	Success       bool     `json:"success"`
	SuggestedTags []string `json:"suggestedTags"`
	Error         string   `json:"error,omitempty"`
}

// SuggestTags proposes tags not already on the item, preferring vault tags.
// Without a generator it matches vault tags against the content instead.
func (a *Analyzer) SuggestTags(ctx context.Context, in SuggestTagsInput) (out SuggestTagsOutput) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Msg("tag suggestion panicked")
			out = SuggestTagsOutput{SuggestedTags: []string{}, Error: fmt.Sprint(r)}
		}
	}()
	fail := func(msg string) SuggestTagsOutput {
		return SuggestTagsOutput{SuggestedTags: []string{}, Error: msg}
	}

	if a.gen == nil {
		return SuggestTagsOutput{Success: true, SuggestedTags: KeywordTags(in.Content, in.VaultTags)}
	}
	resp, err := a.generate(ctx, models.FeatureTagSuggestion, tagPromptFor(in), tagTemperature, tagMaxTokens)
	if err != nil {
		return fail(err.Error())
	}
	if !resp.Success {
		return fail(orDefault(resp.Error, msgTagsFailed))
	}
	a.track(models.FeatureTagSuggestion, resp)

	limit := in.Limit
	if limit <= 0 {
		limit = defaultTagLimit
	}
	existing := make(map[string]bool, len(in.ExistingTags))
	for _, t := range in.ExistingTags {
		existing[strings.ToLower(t)] = true
	}
	tags := make([]string, 0, limit)
	for _, t := range ParseTags(resp.Content) {
		if len(tags) == limit {
			break
		}
		if !existing[t] {
			tags = append(tags, t)
		}
	}
	return SuggestTagsOutput{Success: true, SuggestedTags: tags}
}

func (a *Analyzer) generate(ctx context.Context, feature models.Feature, prompt string, temperature float64, maxTokens int) (models.ProviderResponse, error) {
	var spend *float64
	if a.spend != nil {
		s := a.spend()
		spend = &s
	}
	opts := &models.RequestOptions{Temperature: &temperature, MaxTokens: &maxTokens}
	resp, err := a.gen.SimpleGenerateForFeature(ctx, feature, prompt, "", opts, spend)
	if err != nil {
		a.log.Warn().Err(err).Str("feature", string(feature)).Msg("generation refused")
		return resp, err
	}
	return resp, nil
}

// track splits the reported tokens 70/30 into input and output and records
// them against the feature's route. Cached replies carry no tokens.
func (a *Analyzer) track(feature models.Feature, resp models.ProviderResponse) models.FeatureModel {
	route := a.gen.FeatureConfig(feature)
	total := resp.Tokens()
	if total <= 0 || a.ledger == nil {
		return route
	}
	in, out := SplitTokens(total)
	a.ledger.TrackUsage(string(route.Provider), route.Model, in, out, feature)
	return route
}

// SplitTokens approximates the input/output split of a combined count:
// floor(70%) input, the rest output.
func SplitTokens(total int) (input, output int) {
	input = total * 7 / 10
	return input, total - input
}

// MergeTags unions existing and suggested tags, existing first, case-folded
// and without duplicates.
func MergeTags(existing, suggested []string) []string {
	seen := make(map[string]bool, len(existing)+len(suggested))
	out := make([]string, 0, len(existing)+len(suggested))
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, t := range existing {
		add(t)
	}
	for _, t := range suggested {
		add(t)
	}
	return out
}

// KeywordTags returns up to five vault tags that occur in content.
func KeywordTags(content string, vaultTags []string) []string {
	lower := strings.ToLower(content)
	out := []string{}
	for _, t := range vaultTags {
		if len(out) == defaultTagLimit {
			break
		}
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			out = append(out, t)
		}
	}
	return out
}

// EstimateReadingTime is max(1, ceil(words/200)) minutes.
func EstimateReadingTime(words int) int {
	m := (words + wordsPerMinute - 1) / wordsPerMinute
	return max(m, 1)
}

func readingTime(reported *int, words int) *int {
	if reported != nil && *reported > 0 {
		m := *reported
		return &m
	}
	m := EstimateReadingTime(words)
	return &m
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
