package core

import "time"

// HorizonYears bounds how far an open-ended recurring definition is
// expanded into obligations. A resource bound, not a business rule.
const HorizonYears = 5

// DefaultHorizon returns the expansion cap for open-ended definitions,
// HorizonYears forward from now.
func DefaultHorizon(now time.Time) Date {
	return DateOf(now.AddDate(HorizonYears, 0, 0))
}

// Occurrence is one concrete calendar event of a definition, carrying
// the per-occurrence amount.
type Occurrence struct {
	Date   Date  `json:"date"`
	Amount Money `json:"amount"`
}

// step advances a recurrence date by one stride of the frequency.
// Month-based strides normalize overflow (Jan 31 + 1 month = Mar 3),
// matching calendar arithmetic the rest of the resolver assumes.
func (f Frequency) step(t time.Time) time.Time {
	switch f {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	case Bimonthly:
		return t.AddDate(0, 2, 0)
	case Quarterly:
		return t.AddDate(0, 3, 0)
	case Semiannual:
		return t.AddDate(0, 6, 0)
	case Annual:
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(100, 0, 0)
}

// matchesWeekday applies a daily entry's weekday allow-list. An empty
// list counts every day.
func matchesWeekday(e BudgetEntry, t time.Time) bool {
	if e.Frequency != Daily || len(e.DaysOfWeek) == 0 {
		return true
	}
	for _, wd := range e.DaysOfWeek {
		if t.Weekday() == wd {
			return true
		}
	}
	return false
}

// AmountForPeriod computes the monetary total attributable to the
// half-open window [periodStart, periodEnd). It is a display-time
// aggregate: obligations are never created or sized from it, only from
// ExpandOccurrences, so an occurrence's amount is counted once.
func AmountForPeriod(e BudgetEntry, periodStart, periodEnd time.Time) Money {
	if !e.Frequency.Valid() {
		return Money{}
	}

	switch e.Frequency {
	case OneOff:
		if !e.Date.IsEmpty() && e.Date.In(periodStart, periodEnd) {
			return e.Amount
		}
		return Money{}
	case Irregular, Provision:
		var total Money
		for _, p := range e.Payments {
			if !p.Date.IsEmpty() && p.Date.In(periodStart, periodEnd) {
				total = total.Add(p.Amount)
			}
		}
		return total
	}

	if e.StartDate.IsEmpty() {
		return Money{}
	}

	calcStart := periodStart
	if e.StartDate.Time.After(calcStart) {
		calcStart = e.StartDate.Time
	}
	calcEnd := periodEnd
	if !e.EndDate.IsEmpty() {
		// End date is inclusive: the exclusive bound is the next day.
		endExclusive := e.EndDate.AddDate(0, 0, 1)
		if endExclusive.Before(calcEnd) {
			calcEnd = endExclusive
		}
	}
	if calcEnd.Before(calcStart) {
		return Money{}
	}

	var total Money
	for current := e.StartDate.Time; current.Before(calcEnd); current = e.Frequency.step(current) {
		if !current.Before(calcStart) && matchesWeekday(e, current) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// ExpandOccurrences produces one dated, fully-amounted occurrence per
// calendar event of the definition, up to horizonEnd (inclusive) for
// open-ended recurring entries. An explicit end date takes precedence
// over the horizon. Provision definitions expand through the ledger's
// provision generator, not here.
func ExpandOccurrences(e BudgetEntry, horizonEnd Date) []Occurrence {
	switch e.Frequency {
	case OneOff:
		if e.Date.IsEmpty() {
			return nil
		}
		return []Occurrence{{Date: e.Date, Amount: e.Amount}}
	case Irregular:
		var occs []Occurrence
		for _, p := range e.Payments {
			if p.Date.IsEmpty() || p.Amount.IsZero() {
				continue
			}
			occs = append(occs, Occurrence{Date: p.Date, Amount: p.Amount})
		}
		return occs
	case Provision:
		return nil
	}

	if e.StartDate.IsEmpty() {
		return nil
	}
	bound := horizonEnd.Time
	if !e.EndDate.IsEmpty() {
		bound = e.EndDate.Time
	}

	var occs []Occurrence
	for current := e.StartDate.Time; !current.After(bound); current = e.Frequency.step(current) {
		if matchesWeekday(e, current) {
			occs = append(occs, Occurrence{Date: DateOf(current), Amount: e.Amount})
		}
	}
	return occs
}
