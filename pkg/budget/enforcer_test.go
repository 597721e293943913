package budget

import (
	"errors"
	"testing"
	"time"

	"github.com/pario-ai/readq/pkg/aierr"
	"github.com/pario-ai/readq/pkg/models"
)

type fakeLedger struct {
	total  float64
	period float64
	start  time.Time
}

func (f *fakeLedger) CurrentSpend() float64 { return f.total }

func (f *fakeLedger) SpendForPeriod(start, _ time.Time) float64 {
	f.start = start
	return f.period
}

func TestCheckUnderBudget(t *testing.T) {
	if err := Check(models.Float(5), models.Float(4.99)); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckExceeded(t *testing.T) {
	err := Check(models.Float(5), models.Float(5))
	if err == nil {
		t.Fatal("expected budget exceeded error")
	}
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
	var ee *ExceededError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExceededError, got %T", err)
	}
	if ee.CurrentSpend != 5 || ee.Limit != 5 {
		t.Errorf("unexpected details %+v", ee)
	}
	if ee.Code() != aierr.CodeBudgetExceeded {
		t.Errorf("code = %s", ee.Code())
	}
}

func TestCheckWithoutLimitOrSpend(t *testing.T) {
	cases := []struct {
		name         string
		limit, spend *float64
	}{
		{"no limit", nil, models.Float(100)},
		{"zero limit", models.Float(0), models.Float(100)},
		{"negative limit", models.Float(-1), models.Float(100)},
		{"unknown spend", models.Float(5), nil},
	}
	for _, c := range cases {
		if err := Check(c.limit, c.spend); err != nil {
			t.Errorf("%s: expected no error, got %v", c.name, err)
		}
	}
}

func TestEnforcerLifetime(t *testing.T) {
	l := &fakeLedger{total: 3, period: 1}
	e := New("", l)
	if e.Period() != models.BudgetLifetime {
		t.Fatalf("period = %s", e.Period())
	}
	if got := e.Spend(); got != 3 {
		t.Errorf("spend = %v, want 3", got)
	}
	if err := e.Check(models.Float(2)); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected exceeded, got %v", err)
	}
}

func TestEnforcerMonthly(t *testing.T) {
	l := &fakeLedger{total: 10, period: 1}
	e := New(models.BudgetMonthly, l)
	e.now = func() time.Time { return time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC) }

	if err := e.Check(models.Float(2)); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC); !l.start.Equal(want) {
		t.Errorf("start = %v, want %v", l.start, want)
	}
}

func TestStatus(t *testing.T) {
	l := &fakeLedger{total: 6, period: 6}
	st := New(models.BudgetDaily, l).Status(models.Float(4))

	if st.Limit == nil || *st.Limit != 4 {
		t.Fatalf("limit = %v", st.Limit)
	}
	if *st.Remaining != 0 {
		t.Errorf("remaining = %v, want 0", *st.Remaining)
	}
	if *st.UsagePercent != 150 {
		t.Errorf("usage = %v, want 150", *st.UsagePercent)
	}
	if !st.Exceeded {
		t.Error("expected exceeded")
	}

	none := New(models.BudgetDaily, l).Status(nil)
	if none.Limit != nil || none.Remaining != nil || none.Exceeded {
		t.Errorf("unexpected status without limit: %+v", none)
	}
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2025, 7, 9, 23, 30, 0, 0, time.FixedZone("X", 3*3600))
	if got := PeriodStart(models.BudgetDaily, now); !got.Equal(time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("daily = %v", got)
	}
	if got := PeriodStart(models.BudgetMonthly, now); !got.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly = %v", got)
	}
	if got := PeriodStart(models.BudgetLifetime, now); !got.IsZero() {
		t.Errorf("lifetime = %v", got)
	}
}
