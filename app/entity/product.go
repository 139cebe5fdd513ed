package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       uint64
	Name     string
	Price    decimal.Decimal
	Stock    int32
	ImageURL string
	Active   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
