package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is the reading priority suggested for an item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority matches s case-insensitively against the known priorities.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, true
	}
	return "", false
}

// PriorityOrDefault parses s and falls back to medium.
func PriorityOrDefault(s string) Priority {
	if p, ok := ParsePriority(s); ok {
		return p
	}
	return PriorityMedium
}

// NoteTopic is a suggested permanent note derived from a reading.
type NoteTopic struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	KeyPoints     []string `json:"keyPoints"`
	SuggestedTags []string `json:"suggestedTags"`
}

// ContentAnalysis is the AI-derived enrichment of one reading item.
type ContentAnalysis struct {
	ID                   string
	ItemID               string
	Title                string
	Summary              string
	KeyInsights          []string
	SuggestedTags        []string
	SuggestedPriority    *Priority
	EstimatedReadingTime *int
	Language             string
	AnalyzedAt           time.Time
	Provider             string
	Model                string
	TokensUsed           *int
	NoteTopics           []NoteTopic
}

// ContentAnalysisData is the persisted form of a ContentAnalysis.
type ContentAnalysisData struct {
	ID                   string      `json:"id"`
	ItemID               string      `json:"itemId"`
	Title                string      `json:"title,omitempty"`
	Summary              string      `json:"summary"`
	KeyInsights          []string    `json:"keyInsights"`
	SuggestedTags        []string    `json:"suggestedTags"`
	SuggestedPriority    string      `json:"suggestedPriority,omitempty"`
	EstimatedReadingTime *int        `json:"estimatedReadingTime,omitempty"`
	Language             string      `json:"language,omitempty"`
	AnalyzedAt           string      `json:"analyzedAt"`
	Provider             string      `json:"provider"`
	Model                string      `json:"model"`
	TokensUsed           *int        `json:"tokensUsed,omitempty"`
	NoteTopics           []NoteTopic `json:"noteTopics,omitempty"`
}

// NewContentAnalysis stamps a fresh analysis with an id and the current time.
func NewContentAnalysis(a ContentAnalysis) *ContentAnalysis {
	a.ID = "analysis_" + uuid.NewString()
	a.AnalyzedAt = time.Now().UTC()
	a.KeyInsights = copyStrings(a.KeyInsights)
	a.SuggestedTags = copyStrings(a.SuggestedTags)
	return &a
}

// ToData converts the analysis to its persisted form.
func (a *ContentAnalysis) ToData() ContentAnalysisData {
	d := ContentAnalysisData{
		ID:                   a.ID,
		ItemID:               a.ItemID,
		Title:                a.Title,
		Summary:              a.Summary,
		KeyInsights:          copyStrings(a.KeyInsights),
		SuggestedTags:        copyStrings(a.SuggestedTags),
		EstimatedReadingTime: a.EstimatedReadingTime,
		Language:             a.Language,
		AnalyzedAt:           a.AnalyzedAt.UTC().Format(time.RFC3339Nano),
		Provider:             a.Provider,
		Model:                a.Model,
		TokensUsed:           a.TokensUsed,
		NoteTopics:           copyTopics(a.NoteTopics),
	}
	if a.SuggestedPriority != nil {
		d.SuggestedPriority = string(*a.SuggestedPriority)
	}
	return d
}

// ContentAnalysisFromData rebuilds an analysis from its persisted form.
func ContentAnalysisFromData(d ContentAnalysisData) (*ContentAnalysis, error) {
	analyzedAt, err := time.Parse(time.RFC3339Nano, d.AnalyzedAt)
	if err != nil {
		return nil, fmt.Errorf("parse analyzedAt: %w", err)
	}
	a := &ContentAnalysis{
		ID:                   d.ID,
		ItemID:               d.ItemID,
		Title:                d.Title,
		Summary:              d.Summary,
		KeyInsights:          copyStrings(d.KeyInsights),
		SuggestedTags:        copyStrings(d.SuggestedTags),
		EstimatedReadingTime: d.EstimatedReadingTime,
		Language:             d.Language,
		AnalyzedAt:           analyzedAt,
		Provider:             d.Provider,
		Model:                d.Model,
		TokensUsed:           d.TokensUsed,
		NoteTopics:           copyTopics(d.NoteTopics),
	}
	if p, ok := ParsePriority(d.SuggestedPriority); ok {
		a.SuggestedPriority = &p
	}
	return a, nil
}

// AttachNoteTopics stores generated note topics on the analysis.
func (a *ContentAnalysis) AttachNoteTopics(topics []NoteTopic) {
	a.NoteTopics = copyTopics(topics)
}

// HasInsights reports whether any key insights were extracted.
func (a *ContentAnalysis) HasInsights() bool { return len(a.KeyInsights) > 0 }

// HasSuggestedTags reports whether any tags were suggested.
func (a *ContentAnalysis) HasSuggestedTags() bool { return len(a.SuggestedTags) > 0 }

// ReadingTimeDisplay renders the estimated reading time, e.g. "45 min" or "1 h 30 min".
func (a *ContentAnalysis) ReadingTimeDisplay() string {
	if a.EstimatedReadingTime == nil || *a.EstimatedReadingTime <= 0 {
		return ""
	}
	m := *a.EstimatedReadingTime
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	if m%60 == 0 {
		return fmt.Sprintf("%d h", m/60)
	}
	return fmt.Sprintf("%d h %d min", m/60, m%60)
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyTopics(in []NoteTopic) []NoteTopic {
	if in == nil {
		return nil
	}
	out := make([]NoteTopic, len(in))
	for i, t := range in {
		out[i] = NoteTopic{
			Title:         t.Title,
			Description:   t.Description,
			KeyPoints:     copyStrings(t.KeyPoints),
			SuggestedTags: copyStrings(t.SuggestedTags),
		}
	}
	return out
}
