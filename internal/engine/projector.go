package engine

import (
	"time"

	"trezo/internal/core"
)

// BucketUnit is the calendar granularity of a projection.
type BucketUnit string

const (
	UnitDay      BucketUnit = "day"
	UnitWeek     BucketUnit = "week"
	UnitMonth    BucketUnit = "month"
	UnitBimonth  BucketUnit = "bimonth"
	UnitQuarter  BucketUnit = "quarter"
	UnitSemester BucketUnit = "semester"
	UnitYear     BucketUnit = "year"
)

// PastBuckets is how many already-elapsed buckets a projection includes
// ahead of the current one, for context in the chart.
const PastBuckets = 2

// Bucket is one projected period. Realized flows come from payment
// records dated inside the bucket; remaining flows from unsettled
// obligations due inside it.
type Bucket struct {
	Start            core.Date  `json:"start"`
	End              core.Date  `json:"end"`
	RealizedInflow   core.Money `json:"realizedInflow"`
	RemainingInflow  core.Money `json:"remainingInflow"`
	RealizedOutflow  core.Money `json:"realizedOutflow"`
	RemainingOutflow core.Money `json:"remainingOutflow"`
	Balance          core.Money `json:"balance"`
}

// Projection is a bucketed cash-position forecast.
type Projection struct {
	StartingBalance core.Money `json:"startingBalance"`
	Buckets         []Bucket   `json:"buckets"`
}

func (u BucketUnit) Valid() bool {
	switch u {
	case UnitDay, UnitWeek, UnitMonth, UnitBimonth, UnitQuarter, UnitSemester, UnitYear:
		return true
	}
	return false
}

// alignedStart floors a day onto the unit's calendar boundary: Monday
// for weeks, the 1st for month-based units, Jan 1 for years.
func (u BucketUnit) alignedStart(t time.Time) time.Time {
	y, m, d := t.Date()
	switch u {
	case UnitDay:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case UnitWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case UnitMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case UnitBimonth:
		return time.Date(y, time.Month((int(m)-1)/2*2+1), 1, 0, 0, 0, 0, time.UTC)
	case UnitQuarter:
		return time.Date(y, time.Month((int(m)-1)/3*3+1), 1, 0, 0, 0, 0, time.UTC)
	case UnitSemester:
		return time.Date(y, time.Month((int(m)-1)/6*6+1), 1, 0, 0, 0, 0, time.UTC)
	case UnitYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// next advances a bucket start by one bucket.
func (u BucketUnit) next(t time.Time) time.Time {
	switch u {
	case UnitDay:
		return t.AddDate(0, 0, 1)
	case UnitWeek:
		return t.AddDate(0, 0, 7)
	case UnitMonth:
		return t.AddDate(0, 1, 0)
	case UnitBimonth:
		return t.AddDate(0, 2, 0)
	case UnitQuarter:
		return t.AddDate(0, 3, 0)
	case UnitSemester:
		return t.AddDate(0, 6, 0)
	case UnitYear:
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

// ProjectPositions buckets realized and remaining flows over horizon
// buckets of the given unit, PastBuckets of which precede the current
// one. The starting balance folds every payment dated before the first
// bucket into the accounts' initial balances. Past buckets propagate
// realized flow only; the current and future buckets add the remaining
// amounts of still-unsettled obligations.
func ProjectPositions(accounts []core.CashAccount, obligations []core.Obligation, unit BucketUnit, horizon int, now time.Time) Projection {
	if !unit.Valid() {
		unit = UnitMonth
	}
	if horizon < 1 {
		horizon = 1
	}
	currentStart := unit.alignedStart(now)
	chartStart := currentStart
	for i := 0; i < PastBuckets; i++ {
		chartStart = unit.alignedStart(chartStart.AddDate(0, 0, -1))
	}

	starting := core.Money{}
	for _, acc := range accounts {
		starting = starting.Add(acc.InitialBalance)
	}
	for _, a := range obligations {
		for _, p := range a.Payments {
			if !p.PaymentDate.IsEmpty() && p.PaymentDate.Time.Before(chartStart) {
				if a.Direction == core.Inflow {
					starting = starting.Add(p.PaidAmount)
				} else {
					starting = starting.Sub(p.PaidAmount)
				}
			}
		}
	}

	today := core.DateOf(now)
	balance := starting
	buckets := make([]Bucket, 0, horizon)
	start := chartStart
	for i := 0; i < horizon; i++ {
		end := unit.next(start)
		b := Bucket{Start: core.DateOf(start), End: core.DateOf(end)}
		for _, a := range obligations {
			for _, p := range a.Payments {
				if p.PaymentDate.IsEmpty() || !p.PaymentDate.In(start, end) {
					continue
				}
				if a.Direction == core.Inflow {
					b.RealizedInflow = b.RealizedInflow.Add(p.PaidAmount)
				} else {
					b.RealizedOutflow = b.RealizedOutflow.Add(p.PaidAmount)
				}
			}
			remaining := a.Remaining()
			if a.IsSettled() || remaining.IsZero() || !a.DueDate.In(start, end) {
				continue
			}
			if a.Direction == core.Inflow {
				b.RemainingInflow = b.RemainingInflow.Add(remaining)
			} else {
				b.RemainingOutflow = b.RemainingOutflow.Add(remaining)
			}
		}

		// A bucket ending on or before today is entirely past and
		// contributes realized flow only.
		net := b.RealizedInflow.Sub(b.RealizedOutflow)
		if b.End.Time.After(today.Time) {
			net = net.Add(b.RemainingInflow).Sub(b.RemainingOutflow)
		}
		balance = balance.Add(net)
		b.Balance = balance
		buckets = append(buckets, b)
		start = end
	}
	return Projection{StartingBalance: starting, Buckets: buckets}
}

// ProjectScenarioPositions repeats the projection with a scenario's
// derived obligation set in place of the base one.
func ProjectScenarioPositions(accounts []core.CashAccount, baseActuals []core.Obligation, deltas []core.ScenarioDelta, projectID string, unit BucketUnit, horizon int, now time.Time) Projection {
	scenarioActuals := DeriveScenarioObligations(baseActuals, deltas, projectID, core.DefaultHorizon(now))
	return ProjectPositions(accounts, scenarioActuals, unit, horizon, now)
}
