package dto

import "github.com/shopspring/decimal"

type ReceiptResponse struct {
	ID             string          `json:"id"`
	Number         int             `json:"number"`
	MemberID       string          `json:"member_id"`
	PaymentID      *string         `json:"payment_id,omitempty"`
	SubscriptionID *string         `json:"subscription_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	Status         string          `json:"status"`
	PDFPath        *string         `json:"pdf_path,omitempty"`
	EmailedTo      *string         `json:"emailed_to,omitempty"`
	CreatedAt      string          `json:"created_at"`
}
