package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"paywatch/internal/parse"
)

// PaymentRecord is a persisted, canonical, deduplicated payment. Rows
// are append-only; nothing in this package updates or deletes them.
type PaymentRecord struct {
	ID             int64
	Fingerprint    string
	Provider       parse.Provider
	Sender         string
	Amount         string
	AmountValue    *decimal.Decimal
	ReceivedAt     *time.Time
	ReceivedAtRaw  *string
	DisplayMessage string
	CreatedAt      time.Time
}

// DailyVolume aggregates recorded payments for one civil day.
type DailyVolume struct {
	Day   time.Time
	Count int64
	Total decimal.Decimal
}
