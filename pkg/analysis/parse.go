package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pario-ai/readq/pkg/models"
)

// ErrNotObject is returned when an analysis reply is valid JSON but not an object.
var ErrNotObject = errors.New("reply is not a JSON object")

// AnalysisResult is the typed reading of an analysis reply. Fields the model
// got wrong fall back individually: arrays to empty, strings to "", and the
// priority and reading time are dropped.
type AnalysisResult struct {
	Title                string
	Summary              string
	KeyInsights          []string
	SuggestedTags        []string
	SuggestedPriority    *models.Priority
	EstimatedReadingTime *int
	Language             string
}

type analysisReply struct {
	Title                json.RawMessage `json:"title"`
	Summary              json.RawMessage `json:"summary"`
	KeyInsights          json.RawMessage `json:"keyInsights"`
	SuggestedTags        json.RawMessage `json:"suggestedTags"`
	SuggestedPriority    json.RawMessage `json:"suggestedPriority"`
	EstimatedReadingTime json.RawMessage `json:"estimatedReadingTime"`
	Language             json.RawMessage `json:"language"`
}

// StripFences removes a surrounding ```json or ``` markdown fence.
func StripFences(reply string) string {
	s := strings.TrimSpace(reply)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseAnalysis decodes a model reply into an AnalysisResult.
func ParseAnalysis(reply string) (AnalysisResult, error) {
	body := []byte(StripFences(reply))
	if !isObject(body) {
		if !json.Valid(body) {
			return AnalysisResult{}, fmt.Errorf("parse analysis: invalid JSON")
		}
		return AnalysisResult{}, fmt.Errorf("parse analysis: %w", ErrNotObject)
	}
	var r analysisReply
	if err := json.Unmarshal(body, &r); err != nil {
		return AnalysisResult{}, fmt.Errorf("parse analysis: %w", err)
	}

	out := AnalysisResult{
		Title:       asString(r.Title),
		Summary:     asString(r.Summary),
		KeyInsights: stringItems(r.KeyInsights),
		Language:    asString(r.Language),
	}
	for _, t := range stringItems(r.SuggestedTags) {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out.SuggestedTags = append(out.SuggestedTags, t)
		}
	}
	if out.SuggestedTags == nil {
		out.SuggestedTags = []string{}
	}
	if p, ok := models.ParsePriority(asString(r.SuggestedPriority)); ok {
		out.SuggestedPriority = &p
	}
	var minutes float64
	if json.Unmarshal(r.EstimatedReadingTime, &minutes) == nil && len(r.EstimatedReadingTime) > 0 && !isNull(r.EstimatedReadingTime) {
		m := int(math.Round(minutes))
		out.EstimatedReadingTime = &m
	}
	return out, nil
}

type topicReply struct {
	Title         json.RawMessage `json:"title"`
	Description   json.RawMessage `json:"description"`
	KeyPoints     json.RawMessage `json:"keyPoints"`
	SuggestedTags json.RawMessage `json:"suggestedTags"`
}

// ParseNoteTopics accepts {"topics":[...]} or a bare array. Every field is
// coerced to text and topics without a title are dropped. A reply that holds
// no topic array yields an empty slice.
func ParseNoteTopics(reply string) ([]models.NoteTopic, error) {
	body := []byte(StripFences(reply))
	if !json.Valid(body) {
		return nil, fmt.Errorf("parse note topics: invalid JSON")
	}
	list := body
	if isObject(body) {
		var wrapper struct {
			Topics json.RawMessage `json:"topics"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, fmt.Errorf("parse note topics: %w", err)
		}
		list = wrapper.Topics
	}

	var items []json.RawMessage
	if json.Unmarshal(list, &items) != nil {
		return []models.NoteTopic{}, nil
	}
	topics := make([]models.NoteTopic, 0, len(items))
	for _, raw := range items {
		var t topicReply
		if !isObject(raw) || json.Unmarshal(raw, &t) != nil {
			continue
		}
		title := asText(t.Title)
		if title == "" {
			continue
		}
		topics = append(topics, models.NoteTopic{
			Title:         title,
			Description:   asText(t.Description),
			KeyPoints:     textItems(t.KeyPoints),
			SuggestedTags: textItems(t.SuggestedTags),
		})
	}
	return topics, nil
}

var (
	tagSplit = regexp.MustCompile(`[,\n]`)
	tagNoise = strings.NewReplacer(`"`, "", "[", "", "]", "", "#", "")
)

// ParseTags reads a JSON array of tags. A reply that is not JSON is split on
// commas and newlines instead, keeping entries shorter than 30 characters.
func ParseTags(reply string) []string {
	body := []byte(StripFences(reply))
	if json.Valid(body) {
		var out []string
		for _, t := range stringItems(body) {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				out = append(out, t)
			}
		}
		return out
	}

	var out []string
	for _, part := range tagSplit.Split(reply, -1) {
		t := strings.ToLower(strings.TrimSpace(tagNoise.Replace(part)))
		if t != "" && utf8.RuneCountInString(t) < 30 {
			out = append(out, t)
		}
	}
	return out
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}

func isNull(b json.RawMessage) bool {
	return string(bytes.TrimSpace(b)) == "null"
}

// asString returns raw when it is a JSON string, else "".
func asString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// asText renders any JSON scalar as text. Null, objects and arrays give "".
func asText(raw json.RawMessage) string {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64, bool:
		return strings.TrimSpace(string(raw))
	}
	return ""
}

// stringItems keeps the string elements of a JSON array.
func stringItems(raw json.RawMessage) []string {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// textItems renders every scalar element of a JSON array as text.
func textItems(raw json.RawMessage) []string {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, asText(it))
	}
	return out
}
