package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

const (
	OneOff     Frequency = "one_off"
	Daily      Frequency = "daily"
	Weekly     Frequency = "weekly"
	Monthly    Frequency = "monthly"
	Bimonthly  Frequency = "bimonthly"
	Quarterly  Frequency = "quarterly"
	Semiannual Frequency = "semiannual"
	Annual     Frequency = "annual"
	Irregular  Frequency = "irregular"
	Provision  Frequency = "provision"
)

const (
	StatusPending           Status = "pending"
	StatusPartiallyPaid     Status = "partially_paid"
	StatusPartiallyReceived Status = "partially_received"
	StatusPaid              Status = "paid"
	StatusReceived          Status = "received"
)

const (
	AccountBank        AccountCategory = "bank"
	AccountCash        AccountCategory = "cash"
	AccountMobileMoney AccountCategory = "mobile_money"
	AccountSavings     AccountCategory = "savings"
	AccountProvisions  AccountCategory = "provisions"
)

type (
	Direction       string
	Frequency       string
	Status          string
	AccountCategory string

	// Date is a calendar day. The time component is always midnight UTC.
	Date struct {
		time.Time
	}

	// ExplicitPayment is one dated amount of an irregular or provision
	// definition's explicit schedule.
	ExplicitPayment struct {
		Date   Date  `json:"date"`
		Amount Money `json:"amount"`
	}

	// ProvisionDetails configures a sinking-fund definition: installments
	// accumulate on the provision account until the final payment date.
	ProvisionDetails struct {
		FinalPaymentDate   Date   `json:"finalPaymentDate"`
		ProvisionAccountID string `json:"provisionAccountId"`
	}

	// BudgetEntry is a declarative recurring or one-off income/expense
	// definition. Obligations are derived from it, never stored on it.
	BudgetEntry struct {
		ID          string            `json:"id"`
		Direction   Direction         `json:"direction"`
		Category    string            `json:"category"`
		Frequency   Frequency         `json:"frequency"`
		Amount      Money             `json:"amount"`
		Date        Date              `json:"date"`
		StartDate   Date              `json:"startDate"`
		EndDate     Date              `json:"endDate"`
		Counterpart string            `json:"counterpart"`
		Description string            `json:"description"`
		DaysOfWeek  []time.Weekday    `json:"daysOfWeek,omitempty"`
		Payments    []ExplicitPayment `json:"payments,omitempty"`
		Provision   *ProvisionDetails `json:"provisionDetails,omitempty"`
		IsOffBudget bool              `json:"isOffBudget,omitempty"`
	}

	// PaymentRecord is a real settlement event applied against an obligation.
	PaymentRecord struct {
		ID             string `json:"id"`
		PaidAmount     Money  `json:"paidAmount"`
		PaymentDate    Date   `json:"paymentDate"`
		AccountID      string `json:"accountId"`
		IsFinalPayment bool   `json:"isFinalPayment,omitempty"`
	}

	// Obligation is a concrete, dated, amount-bearing instance owed or
	// expected, derived from exactly one owning BudgetEntry.
	Obligation struct {
		ID                      string            `json:"id"`
		BudgetID                string            `json:"budgetId"`
		ProjectID               string            `json:"projectId"`
		Direction               Direction         `json:"direction"`
		Category                string            `json:"category"`
		DueDate                 Date              `json:"dueDate"`
		Amount                  Money             `json:"amount"`
		Counterpart             string            `json:"counterpart"`
		Description             string            `json:"description"`
		Status                  Status            `json:"status"`
		Payments                []PaymentRecord   `json:"payments"`
		IsProvision             bool              `json:"isProvision,omitempty"`
		IsFinalProvisionPayment bool              `json:"isFinalProvisionPayment,omitempty"`
		IsOffBudget             bool              `json:"isOffBudget,omitempty"`
		Provision               *ProvisionDetails `json:"provisionDetails,omitempty"`
	}

	CashAccount struct {
		ID                 string          `json:"id"`
		ProjectID          string          `json:"projectId"`
		Category           AccountCategory `json:"category"`
		Name               string          `json:"name"`
		InitialBalance     Money           `json:"initialBalance"`
		InitialBalanceDate Date            `json:"initialBalanceDate"`
	}

	// Tier is a counterpart directory record (client or supplier).
	Tier struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Kind string `json:"kind"`
	}

	Project struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		IsArchived bool   `json:"isArchived"`
	}

	Scenario struct {
		ID          string `json:"id"`
		ProjectID   string `json:"projectId"`
		Name        string `json:"name"`
		Description string `json:"description"`
		IsVisible   bool   `json:"isVisible"`
	}

	// ScenarioDelta layers a what-if edit over base definitions. A tombstone
	// hides the base entry; any other delta carries the complete effective
	// entry, either overriding a base id or appearing as a pure addition.
	ScenarioDelta struct {
		EntryID   string      `json:"entryId"`
		IsDeleted bool        `json:"isDeleted,omitempty"`
		Entry     BudgetEntry `json:"entry"`
	}

	SubCategory struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Category struct {
		ID      string        `json:"id"`
		Name    string        `json:"name"`
		IsFixed bool          `json:"isFixed"`
		Sub     []SubCategory `json:"subCategories"`
	}

	CategoryTree struct {
		Revenue []Category `json:"revenue"`
		Expense []Category `json:"expense"`
	}

	Settings struct {
		DisplayUnit   string `json:"displayUnit"`
		DecimalPlaces int    `json:"decimalPlaces"`
		Currency      string `json:"currency"`
		TimeUnit      string `json:"timeUnit"`
		HorizonLength int    `json:"horizonLength"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyCategory    = errors.New("empty category")
	ErrUnknownFrequency = errors.New("unknown frequency")
	ErrUnknownDirection = errors.New("unknown direction")
)

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// IsEmpty reports whether the date is unset (optional dates are zero).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d falls strictly after other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// In reports whether d falls inside the half-open window [start, end).
func (d Date) In(start, end time.Time) bool {
	return !d.Time.Before(start) && d.Time.Before(end)
}

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return ErrInvalidDate
	}
	d.Time = t
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Direction) Valid() bool {
	return d == Inflow || d == Outflow
}

func (f Frequency) Valid() bool {
	switch f {
	case OneOff, Daily, Weekly, Monthly, Bimonthly, Quarterly, Semiannual, Annual, Irregular, Provision:
		return true
	}
	return false
}

// Periodic reports whether the frequency expands by stepping a fixed
// stride from the start date.
func (f Frequency) Periodic() bool {
	switch f {
	case Daily, Weekly, Monthly, Bimonthly, Quarterly, Semiannual, Annual:
		return true
	}
	return false
}

// IsSettled reports whether the status is terminal.
func (s Status) IsSettled() bool {
	return s == StatusPaid || s == StatusReceived
}

// SettledStatus returns the terminal status matching an obligation's
// direction: paid for outflows, received for inflows.
func SettledStatus(d Direction) Status {
	if d == Inflow {
		return StatusReceived
	}
	return StatusPaid
}

// PartialStatus returns the in-progress status matching a direction.
func PartialStatus(d Direction) Status {
	if d == Inflow {
		return StatusPartiallyReceived
	}
	return StatusPartiallyPaid
}

// TotalPaid sums the obligation's payment records.
func (o Obligation) TotalPaid() Money {
	var total Money
	for _, p := range o.Payments {
		total = total.Add(p.PaidAmount)
	}
	return total
}

// Remaining is the unpaid portion, never negative.
func (o Obligation) Remaining() Money {
	rem := o.Amount.Sub(o.TotalPaid())
	if rem.Cents < 0 {
		return Money{}
	}
	return rem
}

// IsSettled reports whether the obligation reached a terminal status.
func (o Obligation) IsSettled() bool {
	return o.Status.IsSettled()
}

func (e BudgetEntry) Validate() error {
	if !e.Direction.Valid() {
		return ErrUnknownDirection
	}
	if !e.Frequency.Valid() {
		return ErrUnknownFrequency
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	switch e.Frequency {
	case OneOff:
		if e.Date.IsEmpty() {
			return errors.New("one-off entry requires a date")
		}
		return e.Amount.Validate()
	case Irregular:
		if len(e.Payments) == 0 {
			return errors.New("irregular entry requires an explicit payment list")
		}
		for _, p := range e.Payments {
			if p.Date.IsEmpty() {
				return ErrInvalidDate
			}
			if err := p.Amount.Validate(); err != nil {
				return err
			}
		}
		return nil
	case Provision:
		if e.Provision == nil {
			return errors.New("provision entry requires provision details")
		}
		if e.Provision.FinalPaymentDate.IsEmpty() {
			return errors.New("provision entry requires a final payment date")
		}
		if len(e.Payments) == 0 {
			return errors.New("provision entry requires transfer installments")
		}
		if err := e.Amount.Validate(); err != nil {
			return err
		}
		var sum Money
		for _, p := range e.Payments {
			sum = sum.Add(p.Amount)
		}
		if sum != e.Amount {
			return errors.New("provision installments must sum to the total amount")
		}
		return nil
	default:
		if e.StartDate.IsEmpty() {
			return errors.New("recurring entry requires a start date")
		}
		if !e.EndDate.IsEmpty() && e.EndDate.Before(e.StartDate) {
			return errors.New("end date must not precede start date")
		}
		return e.Amount.Validate()
	}
}

func (p PaymentRecord) Validate() error {
	if p.PaymentDate.IsEmpty() {
		return ErrInvalidDate
	}
	return p.PaidAmount.Validate()
}

func (a CashAccount) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("empty account name")
	}
	switch a.Category {
	case AccountBank, AccountCash, AccountMobileMoney, AccountSavings, AccountProvisions:
	default:
		return errors.New("unknown account category")
	}
	return nil
}
