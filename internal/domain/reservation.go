package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation is a customer's hold on a length of fabric. It is created once and never updated.
type Reservation struct {
	ID              string          `json:"id"`
	ProductRecordID string          `json:"product_record_id"`
	ProductName     string          `json:"product_name,omitempty"`
	QuantityMeters  decimal.Decimal `json:"quantity_meters"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	CreatedAt       time.Time       `json:"created_at"`
}
