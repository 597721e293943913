package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/registry"
)

const timeLayout = "2006-01-02 15:04:05"

func formatCostSummary(s models.CostSummary) string {
	if s.RecordCount == 0 {
		return "No usage recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total cost:    $%.4f\n", s.TotalCost)
	fmt.Fprintf(&b, "Requests:      %d\n", s.RecordCount)
	fmt.Fprintf(&b, "Input tokens:  %d\n", s.TotalInputTokens)
	fmt.Fprintf(&b, "Output tokens: %d\n", s.TotalOutputTokens)
	writeBreakdown(&b, "Provider", s.ByProvider)
	writeBreakdown(&b, "Model", s.ByModel)
	return b.String()
}

func writeBreakdown(b *strings.Builder, label string, costs map[string]float64) {
	if len(costs) == 0 {
		return
	}
	keys := make([]string, 0, len(costs))
	for k := range costs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "\n%-30s %12s\n", label, "Cost")
	b.WriteString(strings.Repeat("-", 43) + "\n")
	for _, k := range keys {
		fmt.Fprintf(b, "%-30s %12s\n", k, fmt.Sprintf("$%.4f", costs[k]))
	}
}

func formatBudget(s models.BudgetStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Period:       %s\n", s.Period)
	fmt.Fprintf(&b, "Spent:        $%.4f\n", s.Spent)
	fmt.Fprintf(&b, "Period spent: $%.4f\n", s.PeriodSpent)
	if s.Limit == nil {
		b.WriteString("Limit:        none\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Limit:        $%.2f\n", *s.Limit)
	if s.Remaining != nil {
		fmt.Fprintf(&b, "Remaining:    $%.4f\n", *s.Remaining)
	}
	if s.UsagePercent != nil {
		fmt.Fprintf(&b, "Usage:        %.1f%%\n", *s.UsagePercent)
	}
	if s.Exceeded {
		b.WriteString("Status:       EXCEEDED\n")
	}
	return b.String()
}

func formatHistory(records []models.UsageRecord) string {
	if len(records) == 0 {
		return "No usage recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-8s %-28s %-22s %8s %8s %10s\n",
		"Time", "Provider", "Model", "Feature", "Input", "Output", "Cost")
	b.WriteString(strings.Repeat("-", 110) + "\n")
	for _, r := range records {
		feature := r.Feature
		if feature == "" {
			feature = "-"
		}
		fmt.Fprintf(&b, "%-20s %-8s %-28s %-22s %8d %8d %10s\n",
			r.Timestamp.Local().Format(timeLayout), r.Provider, r.Model, feature,
			r.InputTokens, r.OutputTokens, fmt.Sprintf("$%.6f", r.Cost))
	}
	return b.String()
}

type modelRow struct {
	key string
	cfg registry.ModelConfig
}

func formatModels(rows []modelRow) string {
	if len(rows) == 0 {
		return "No models found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-8s %-10s %10s %10s %10s\n",
		"Key", "Provider", "Tier", "In $/1M", "Out $/1M", "Context")
	b.WriteString(strings.Repeat("-", 77) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-24s %-8s %-10s %10.2f %10.2f %10d\n",
			r.key, r.cfg.Provider, r.cfg.Tier, r.cfg.InputCostPer1M, r.cfg.OutputCostPer1M, r.cfg.MaxInputTokens)
	}
	return b.String()
}

func formatCacheStats(s models.CacheStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entries:  %d\n", s.Entries)
	fmt.Fprintf(&b, "Hits:     %d\n", s.Hits)
	fmt.Fprintf(&b, "Misses:   %d\n", s.Misses)
	fmt.Fprintf(&b, "Hit rate: %.1f%%\n", s.HitRate())
	return b.String()
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-8s %-28s %-14s %-7s %-22s %8s %8s\n",
		"Time", "Provider", "Model", "Key", "Status", "Error", "Tokens", "Latency")
	b.WriteString(strings.Repeat("-", 122) + "\n")
	for _, e := range entries {
		status := "ok"
		switch {
		case !e.Success:
			status = "failed"
		case e.Cached:
			status = "cached"
		}
		code := e.ErrorCode
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(&b, "%-20s %-8s %-28s %-14s %-7s %-22s %8d %6dms\n",
			e.CreatedAt.Local().Format(timeLayout), e.Provider, e.Model, e.APIKeyPrefix,
			status, code, e.TotalTokens, e.LatencyMs)
	}
	return b.String()
}

func formatAnalysis(a *models.ContentAnalysis) string {
	var b strings.Builder
	if a.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", a.Title)
	}
	fmt.Fprintf(&b, "%s\n", a.Summary)
	if len(a.KeyInsights) > 0 {
		b.WriteString("\nKey insights:\n")
		for _, k := range a.KeyInsights {
			fmt.Fprintf(&b, "- %s\n", k)
		}
	}
	if len(a.SuggestedTags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(a.SuggestedTags, ", "))
	}
	if a.SuggestedPriority != nil {
		fmt.Fprintf(&b, "Priority: %s\n", *a.SuggestedPriority)
	}
	if rt := a.ReadingTimeDisplay(); rt != "" {
		fmt.Fprintf(&b, "Reading time: %s\n", rt)
	}
	if a.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", a.Language)
	}
	fmt.Fprintf(&b, "\nItem %s analyzed by %s/%s\n", a.ItemID, a.Provider, a.Model)
	return b.String()
}
