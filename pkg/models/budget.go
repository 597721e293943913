package models

// BudgetPeriod defines the time window a spending ceiling applies to.
type BudgetPeriod string

const (
	BudgetLifetime BudgetPeriod = "lifetime"
	BudgetDaily    BudgetPeriod = "daily"
	BudgetMonthly  BudgetPeriod = "monthly"
)

// Valid reports whether p is a known period.
func (p BudgetPeriod) Valid() bool {
	switch p {
	case BudgetLifetime, BudgetDaily, BudgetMonthly:
		return true
	}
	return false
}

// BudgetStatus shows current spend against the configured ceiling.
type BudgetStatus struct {
	Period       BudgetPeriod `json:"period"`
	Limit        *float64     `json:"limit,omitempty"`
	Spent        float64      `json:"spent"`
	PeriodSpent  float64      `json:"period_spent"`
	Remaining    *float64     `json:"remaining,omitempty"`
	UsagePercent *float64     `json:"usage_percent,omitempty"`
	Exceeded     bool         `json:"exceeded"`
}
