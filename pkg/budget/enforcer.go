package budget

import (
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/readq/pkg/aierr"
	"github.com/pario-ai/readq/pkg/models"
)

// ErrBudgetExceeded is matched by every budget violation.
var ErrBudgetExceeded = errors.New("budget exceeded")

// ExceededError reports the spend and limit at the time of the violation.
type ExceededError struct {
	CurrentSpend float64
	Limit        float64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("Budget limit exceeded. Current spend: $%.4f, limit: $%.2f", e.CurrentSpend, e.Limit)
}

// Is makes errors.Is(err, ErrBudgetExceeded) succeed.
func (e *ExceededError) Is(target error) bool { return target == ErrBudgetExceeded }

// Code returns the error taxonomy code.
func (e *ExceededError) Code() aierr.Code { return aierr.CodeBudgetExceeded }

// Check returns an *ExceededError when a positive limit is configured, a
// spend is known and the spend has reached the limit.
func Check(limit, spend *float64) error {
	if limit == nil || *limit <= 0 || spend == nil {
		return nil
	}
	if *spend >= *limit {
		return &ExceededError{CurrentSpend: *spend, Limit: *limit}
	}
	return nil
}

// SpendSource reports money already spent.
type SpendSource interface {
	CurrentSpend() float64
	SpendForPeriod(start, end time.Time) float64
}

// Enforcer measures spend over a budget period.
type Enforcer struct {
	period models.BudgetPeriod
	spend  SpendSource
	now    func() time.Time
}

// New creates an Enforcer. An unknown period is treated as lifetime.
func New(period models.BudgetPeriod, spend SpendSource) *Enforcer {
	if !period.Valid() {
		period = models.BudgetLifetime
	}
	return &Enforcer{period: period, spend: spend, now: time.Now}
}

// Period returns the window the enforcer measures.
func (e *Enforcer) Period() models.BudgetPeriod { return e.period }

// Spend returns the spend inside the current period.
func (e *Enforcer) Spend() float64 {
	if e.period == models.BudgetLifetime {
		return e.spend.CurrentSpend()
	}
	now := e.now().UTC()
	return e.spend.SpendForPeriod(PeriodStart(e.period, now), now)
}

// Check returns an *ExceededError if the period spend has reached limit.
func (e *Enforcer) Check(limit *float64) error {
	s := e.Spend()
	return Check(limit, &s)
}

// Status returns the spend for the period against limit.
func (e *Enforcer) Status(limit *float64) models.BudgetStatus {
	st := models.BudgetStatus{
		Period:      e.period,
		Spent:       e.spend.CurrentSpend(),
		PeriodSpent: e.Spend(),
	}
	if limit == nil || *limit <= 0 {
		return st
	}
	l := *limit
	remaining := l - st.PeriodSpent
	if remaining < 0 {
		remaining = 0
	}
	pct := st.PeriodSpent / l * 100
	st.Limit = &l
	st.Remaining = &remaining
	st.UsagePercent = &pct
	st.Exceeded = st.PeriodSpent >= l
	return st
}

// PeriodStart returns the UTC start of the period containing now. Lifetime
// periods start at the zero time.
func PeriodStart(period models.BudgetPeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case models.BudgetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.BudgetDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}
