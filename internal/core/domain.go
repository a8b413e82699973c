package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Income is the only category denoting inflow; every other category is outflow.
const Income Category = "Income"

const maxCategoryLen = 64

type (
	// Date is a calendar day at midnight UTC.
	Date struct {
		time.Time
	}

	// Category is a validated, user-extensible category label.
	Category string

	// Movement is a single financial transaction.
	Movement struct {
		ID          string
		Date        Date
		Amount      decimal.Decimal // magnitude only, sign comes from Category
		Category    Category
		Description string
	}

	// RawMovement is a movement as read from a store, before parsing.
	RawMovement struct {
		ID          string `json:"id,omitempty"`
		Date        string `json:"date"`
		Amount      string `json:"amount"`
		Category    string `json:"category"`
		Description string `json:"description,omitempty"`
	}

	// CategoryBudget is a monthly target for a category. An empty UserID
	// marks a global default.
	CategoryBudget struct {
		UserID   string
		Category Category
		Target   decimal.Decimal
	}

	// PricePoint is one daily market observation.
	PricePoint struct {
		Date  Date
		Close float64
	}

	// Rejected records a movement that could not be used, with the reason.
	Rejected struct {
		Index int
		Raw   RawMovement
		Err   error
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrCategoryTooLong = errors.New("category too long (max 64 characters)")
	ErrInvalidPrice    = errors.New("invalid price")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year(), d.Month(), d.Day()+n)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateFormat)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NewCategory trims and validates a category label.
func NewCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyCategory
	}
	if len(s) > maxCategoryLen {
		return "", ErrCategoryTooLong
	}
	return Category(s), nil
}

// IsIncome reports whether the category denotes inflow.
func (c Category) IsIncome() bool {
	return c == Income
}

func (c Category) String() string {
	return string(c)
}

func (m Movement) Validate() error {
	if err := m.Date.Validate(); err != nil {
		return err
	}
	if m.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if strings.TrimSpace(string(m.Category)) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// ParseMovement converts a raw record into a Movement.
func ParseMovement(raw RawMovement) (Movement, error) {
	d, err := ParseDay(raw.Date)
	if err != nil {
		return Movement{}, err
	}
	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return Movement{}, err
	}
	cat, err := NewCategory(raw.Category)
	if err != nil {
		return Movement{}, err
	}
	return Movement{
		ID:          raw.ID,
		Date:        d,
		Amount:      amount,
		Category:    cat,
		Description: strings.TrimSpace(raw.Description),
	}, nil
}

// ParseMovements parses every record, keeping the valid ones and reporting
// the rest instead of failing.
func ParseMovements(raws []RawMovement) ([]Movement, []Rejected) {
	out := make([]Movement, 0, len(raws))
	var rejected []Rejected
	for i, raw := range raws {
		m, err := ParseMovement(raw)
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Raw: raw, Err: err})
			continue
		}
		out = append(out, m)
	}
	return out, rejected
}

// ParseAmount parses a non-negative decimal amount. Both dot (12.34) and
// comma (12,34) decimal separators are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

func (p PricePoint) Validate() error {
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if !(p.Close > 0) {
		return ErrInvalidPrice
	}
	return nil
}

func (r Rejected) Error() string {
	return "movement " + r.Raw.ID + " at " + r.Raw.Date + ": " + r.Err.Error()
}

func (r Rejected) Unwrap() error {
	return r.Err
}

func (r Rejected) MarshalJSON() ([]byte, error) {
	reason := ""
	if r.Err != nil {
		reason = r.Err.Error()
	}
	return json.Marshal(struct {
		Index  int         `json:"index"`
		Raw    RawMovement `json:"raw"`
		Reason string      `json:"reason"`
	}{r.Index, r.Raw, reason})
}
