package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxPromptContent  = 8000
	truncationMarker  = "\n\n[Content truncated...]"
	maxTagContent     = 4000
	maxVaultTags      = 50
	placeholderNone   = "None"
	placeholderNoURL  = "N/A"
	placeholderNoInfo = "None provided"
)

const analysisPrompt = `You are a reading content analyzer. Analyze the following web content and provide a structured analysis.

Content:
---
{content}
---

Provide your analysis in the following JSON format (respond ONLY with valid JSON, no markdown):
{
  "title": "Extracted or improved title",
  "summary": "3-5 sentence summary of the main points",
  "keyInsights": ["insight 1", "insight 2", "insight 3"],
  "suggestedTags": ["tag1", "tag2", "tag3"],
  "suggestedPriority": "high" | "medium" | "low",
  "estimatedReadingTime": <number in minutes>,
  "language": "detected language code (ko, en, etc.)"
}

Guidelines:
- Summary should capture the essential message
- Key insights should be actionable or memorable points
- Tags should be lowercase, single words or hyphenated phrases
- Priority should be based on: depth of content (high for deep analysis), relevance to knowledge building (high for foundational concepts), time-sensitivity (high for rapidly changing topics)
- Reading time is based on average reading speed (200 words/min for English, 500 characters/min for Korean)
- Detect content language and respond in the same language for summary and insights`

const noteTopicPrompt = `You are a PKM (Personal Knowledge Management) expert helping to identify permanent note topics from reading content.

Reading content:
---
Title: {title}
URL: {url}

Summary: {summary}

Key Insights:
{insights}

User Notes:
{userNotes}
---

Based on this content, suggest 2-4 distinct permanent note topics. Each topic should:
1. Be a single, atomic concept that can stand alone
2. Be generalizable beyond this specific source
3. Connect to broader knowledge domains
4. Be actionable or contain wisdom that can be applied

Respond ONLY with valid JSON (no markdown):
{
  "topics": [
    {
      "title": "Clear, specific topic title",
      "description": "2-3 sentences explaining the core idea",
      "keyPoints": ["point 1", "point 2", "point 3"],
      "suggestedTags": ["tag1", "tag2"]
    }
  ]
}`

const tagPrompt = `You are a PKM (Personal Knowledge Management) tag suggester.

Analyze the following content and suggest relevant tags.

Content:
---
{content}
---

Existing vault tags for reference (prefer these when appropriate):
{vaultTags}

Current tags on this item:
{existingTags}

Requirements:
1. Suggest 3-5 relevant tags
2. Prefer existing vault tags when they match the content well
3. Create new tags only when existing tags don't cover important concepts
4. Tags should be lowercase, single words or hyphenated phrases
5. Focus on topics, themes, and key concepts

Respond ONLY with a JSON array of tag strings, no markdown:
["tag1", "tag2", "tag3"]`

// fill substitutes each {name} placeholder once. Values are not rescanned.
func fill(tmpl string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// AnalysisContent renders a page into the bounded block sent for analysis.
// Anything past 8000 characters is cut and marked as truncated.
func AnalysisContent(p Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", p.Title)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n\n", p.Description)
	}
	b.WriteString("Content:\n")
	b.WriteString(p.Content)

	s := b.String()
	if utf8.RuneCountInString(s) > maxPromptContent {
		s = truncate(s, maxPromptContent) + truncationMarker
	}
	return s
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func analysisPromptFor(p Page) string {
	return fill(analysisPrompt, "{content}", AnalysisContent(p))
}

func noteTopicPromptFor(in NoteTopicsInput) string {
	url := in.URL
	if url == "" {
		url = placeholderNoURL
	}
	var summary, insights string
	if in.Analysis != nil {
		summary = in.Analysis.Summary
		insights = strings.Join(in.Analysis.KeyInsights, "\n- ")
	}
	if insights == "" {
		insights = placeholderNoInfo
	}
	notes := in.UserNotes
	if notes == "" {
		notes = placeholderNone
	}
	return fill(noteTopicPrompt,
		"{title}", in.Title,
		"{url}", url,
		"{summary}", summary,
		"{insights}", insights,
		"{userNotes}", notes,
	)
}

func tagPromptFor(in SuggestTagsInput) string {
	vault := in.VaultTags
	if len(vault) > maxVaultTags {
		vault = vault[:maxVaultTags]
	}
	return fill(tagPrompt,
		"{content}", truncate(in.Content, maxTagContent),
		"{vaultTags}", joinOr(vault, placeholderNone),
		"{existingTags}", joinOr(in.ExistingTags, placeholderNone),
	)
}

func joinOr(vals []string, empty string) string {
	if len(vals) == 0 {
		return empty
	}
	return strings.Join(vals, ", ")
}
