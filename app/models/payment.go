package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment is one invoice of a customer's plan.
type Payment struct {
	ID         string        `gorm:"type:char(36);primaryKey" json:"id"`
	UserID     string        `gorm:"type:char(36);not null;index" json:"user_id"`
	Amount     float64       `gorm:"type:decimal(10,2);not null" json:"amount"`
	DueDate    time.Time     `gorm:"type:date;not null;index" json:"due_date"`
	PaidAt     *time.Time    `gorm:"default:null" json:"paid_at"`
	Status     PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ExternalID *string       `gorm:"type:varchar(191);default:null" json:"external_id"`
	InvoiceURL *string       `gorm:"type:varchar(500);default:null" json:"invoice_url"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsOpen reports whether the payment still needs to be paid.
func (p *Payment) IsOpen() bool {
	return p.Status == PaymentPending || p.Status == PaymentOverdue
}

// PaymentSummary aggregates a customer's payment history for the billing page.
type PaymentSummary struct {
	Payments    []Payment `json:"payments"`
	TotalPaid   float64   `json:"total_paid"`
	NextPayment *Payment  `json:"next_payment"`
}

// SummarizePayments expects payments ordered by due date, newest first.
func SummarizePayments(payments []Payment) PaymentSummary {
	out := PaymentSummary{Payments: payments}
	for i := range payments {
		p := payments[i]
		if p.Status == PaymentPaid {
			out.TotalPaid += p.Amount
		}
		if out.NextPayment == nil && p.IsOpen() {
			out.NextPayment = &payments[i]
		}
	}
	return out
}
