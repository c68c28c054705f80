package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
	PaymentPartial PaymentStatus = "partial"
	PaymentWaived  PaymentStatus = "waived"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentOverdue, PaymentPartial, PaymentWaived:
		return true
	}
	return false
}

const (
	PaymentModeCash   = "cash"
	PaymentModeOnline = "online"
)

// FeeStructure is the fee label and amount attached to a billing.
type FeeStructure struct {
	Name    string  `json:"name" validate:"required"`
	Amount  float64 `json:"amount" validate:"gte=0"`
	DueDate string  `json:"due_date,omitempty"`
	Period  string  `json:"period,omitempty"`
}

type Billing struct {
	ID                string        `json:"id"`
	StudentID         string        `json:"student_id"`
	BranchID          string        `json:"branch_id"`
	FeeStructure      FeeStructure  `json:"fee_structure"`
	Status            PaymentStatus `json:"status"`
	AmountPaid        float64       `json:"amount_paid"`
	PaidAt            *time.Time    `json:"paid_at,omitempty"`
	PaymentMode       string        `json:"payment_mode"`
	TransactionNumber string        `json:"transaction_number,omitempty"`
	ReceiptKey        string        `json:"receipt_s3_key,omitempty"`
	ReceiptURL        string        `json:"receipt_url,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Payment is the input of the pay transition.
type Payment struct {
	AmountPaid        float64 `json:"amount_paid" validate:"gte=0"`
	PaymentMode       string  `json:"payment_mode"`
	TransactionNumber string  `json:"transaction_number"`
}

// Pay moves the billing to paid and stamps payment metadata. The transaction
// number is kept only for online payments.
func (b *Billing) Pay(p Payment, at time.Time) error {
	mode := strings.ToLower(strings.TrimSpace(p.PaymentMode))
	if mode == "" {
		mode = PaymentModeCash
	}
	if mode != PaymentModeCash && mode != PaymentModeOnline {
		return fmt.Errorf("%w: payment_mode must be cash or online", ErrValidation)
	}
	if p.AmountPaid < 0 {
		return fmt.Errorf("%w: amount_paid must not be negative", ErrValidation)
	}
	b.Status = PaymentPaid
	b.AmountPaid = p.AmountPaid
	b.PaidAt = &at
	b.PaymentMode = mode
	b.TransactionNumber = ""
	if mode == PaymentModeOnline {
		b.TransactionNumber = strings.TrimSpace(p.TransactionNumber)
	}
	b.UpdatedAt = at
	return nil
}

const (
	ComponentFixed      = "fixed"
	ComponentPercentage = "percentage"
)

// FeeComponent is one line of a fee-structure template. Percentage components
// take a share of what remains after the fixed ones.
type FeeComponent struct {
	Name       string   `json:"name" validate:"required"`
	Type       string   `json:"type" validate:"oneof=fixed percentage"`
	Percentage *float64 `json:"percentage,omitempty"`
	Amount     *float64 `json:"amount,omitempty"`
}

// FeeStructureTemplate is a named breakdown kept in settings.
type FeeStructureTemplate struct {
	Name       string         `json:"name" validate:"required"`
	TotalFees  *float64       `json:"total_fees,omitempty"`
	Components []FeeComponent `json:"components" validate:"dive"`
}

// ComponentAmount is one apportioned receipt line.
type ComponentAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Apportion splits total across the template's components. Fixed amounts are
// taken as-is, percentages apply to max(0, total-fixed), and when the lines do
// not add up to total within 0.01 every line is scaled by total/sum. A nil
// template yields a single line named fallbackName.
func Apportion(template *FeeStructureTemplate, total float64, fallbackName string) []ComponentAmount {
	if template == nil || len(template.Components) == 0 {
		return []ComponentAmount{{Name: fallbackName, Amount: round2(total)}}
	}

	fixedTotal := 0.0
	for _, c := range template.Components {
		if c.Type == ComponentFixed && c.Amount != nil {
			fixedTotal += *c.Amount
		}
	}
	base := math.Max(0, total-fixedTotal)

	out := make([]ComponentAmount, 0, len(template.Components))
	sum := 0.0
	for _, c := range template.Components {
		var amount float64
		switch c.Type {
		case ComponentFixed:
			if c.Amount != nil {
				amount = *c.Amount
			}
		case ComponentPercentage:
			if c.Percentage != nil {
				amount = round2(base * *c.Percentage / 100)
			}
		}
		out = append(out, ComponentAmount{Name: c.Name, Amount: amount})
		sum += amount
	}

	if sum > 0 && math.Abs(sum-total) > 0.01 {
		factor := total / sum
		for i := range out {
			out[i].Amount = round2(out[i].Amount * factor)
		}
	}
	return out
}

// FindTemplate matches a template by exact name.
func FindTemplate(templates []FeeStructureTemplate, name string) *FeeStructureTemplate {
	for i := range templates {
		if templates[i].Name == name {
			return &templates[i]
		}
	}
	return nil
}

// ReceiptContext carries everything a renderer needs besides the billing.
type ReceiptContext struct {
	SchoolName      string
	SchoolAddress   string
	ReceiptNumber   string
	Date            time.Time
	StudentName     string
	AdmissionNumber string
	ClassName       string
	BranchName      string
	Components      []ComponentAmount
	Total           float64
	AmountInWords   string
	PaymentMode     string
	TransactionNo   string
}

var (
	wordOnes  = []string{"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine"}
	wordTens  = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
	wordTeens = []string{"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
)

func words99(n int) string {
	switch {
	case n < 10:
		return wordOnes[n]
	case n < 20:
		return wordTeens[n-10]
	}
	return joinWords(wordTens[n/10], wordOnes[n%10])
}

func words999(n int) string {
	if n < 100 {
		return words99(n)
	}
	return joinWords(wordOnes[n/100], "Hundred", words99(n%100))
}

func wordsBelowLakh(n int) string {
	if n < 1000 {
		return words999(n)
	}
	return joinWords(words999(n/1000), "Thousand", words999(n%1000))
}

func joinWords(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// AmountInWords spells a rupee amount in the Indian numbering system,
// e.g. 125000 -> "Rupees One Lakh Twenty Five Thousand Only".
func AmountInWords(amount float64) string {
	n := int(math.Round(amount))
	switch {
	case n < 0:
		return "Rupees (Negative) Only"
	case n == 0:
		return "Rupees Zero Only"
	case n >= 10000000:
		return joinWords("Rupees", wordsBelowLakh(n/10000000), "Crore", lakhPart(n%10000000), "Only")
	}
	return joinWords("Rupees", lakhPart(n), "Only")
}

func lakhPart(n int) string {
	if n < 100000 {
		return wordsBelowLakh(n)
	}
	return joinWords(wordsBelowLakh(n/100000), "Lakh", wordsBelowLakh(n%100000))
}

// ReceiptNumber is the short printed receipt number, the id's last three characters.
func ReceiptNumber(billingID string) string {
	if billingID == "" {
		return "-"
	}
	if len(billingID) <= 3 {
		return billingID
	}
	return billingID[len(billingID)-3:]
}
