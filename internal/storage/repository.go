package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"paywatch/internal/parse"
	"paywatch/internal/record"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")

	// ErrDuplicatePayment indicates an insert lost to an existing row
	// with the same fingerprint or display message. The uniqueness
	// constraint lives in the schema, so a check-then-insert race still
	// resolves to exactly one stored row.
	ErrDuplicatePayment = errors.New("storage: duplicate payment")
)

const (
	insertPaymentSQL = `INSERT INTO payments (
        fingerprint,
        provider,
        sender,
        amount,
        amount_value,
        received_at,
        received_at_raw,
        display_message
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	hasSeenSQL = `SELECT EXISTS (SELECT 1 FROM payments WHERE fingerprint = $1);`

	listRecentPaymentsSQL = `SELECT
        id,
        fingerprint,
        provider,
        sender,
        amount,
        amount_value,
        received_at,
        received_at_raw,
        display_message,
        created_at
    FROM payments
    ORDER BY created_at DESC
    LIMIT $1;`

	listPaymentsBetweenSQL = `SELECT
        id,
        fingerprint,
        provider,
        sender,
        amount,
        amount_value,
        received_at,
        received_at_raw,
        display_message,
        created_at
    FROM payments
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at;`

	countPaymentsSQL = `SELECT COUNT(*) FROM payments;`

	dailyVolumesSQL = `SELECT
        date_trunc('day', created_at) AS day,
        COUNT(*),
        COALESCE(SUM(amount_value), 0)::text
    FROM payments
    WHERE created_at >= $1
      AND created_at < $2
    GROUP BY day
    ORDER BY day;`
)

// PaymentStore defines the dedup and persistence contract consumed by
// the import pipeline.
type PaymentStore interface {
	HasSeen(ctx context.Context, fingerprint string) (bool, error)
	Record(ctx context.Context, payment record.Payment) (PaymentRecord, error)
}

// PaymentReader exposes the read side used by the operational commands.
type PaymentReader interface {
	ListRecentPayments(ctx context.Context, limit int) ([]PaymentRecord, error)
	ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]PaymentRecord, error)
	DailyVolumes(ctx context.Context, from, to time.Time) ([]DailyVolume, error)
	CountPayments(ctx context.Context) (int64, error)
}

// Store provides PostgreSQL-backed payment persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// HasSeen reports whether a payment with this fingerprint was recorded.
func (s *Store) HasSeen(ctx context.Context, fingerprint string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var seen bool
	if scanErr := pool.QueryRow(ctx, hasSeenSQL, fingerprint).Scan(&seen); scanErr != nil {
		return false, fmt.Errorf("has seen: %w", scanErr)
	}
	return seen, nil
}

// Record inserts a canonical payment. A concurrent writer inserting the
// same fingerprint (or display message) first surfaces as
// ErrDuplicatePayment rather than a storage failure.
func (s *Store) Record(ctx context.Context, payment record.Payment) (PaymentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return PaymentRecord{}, err
	}

	var amountValue interface{}
	if payment.HasAmount {
		amountValue = payment.AmountValue.String()
	}

	var receivedAt interface{}
	if payment.ReceivedAt != nil {
		receivedAt = *payment.ReceivedAt
	}

	var receivedAtRaw interface{}
	if payment.ReceivedAtRaw != "" {
		receivedAtRaw = payment.ReceivedAtRaw
	}

	rec := PaymentRecord{
		Fingerprint:    payment.Fingerprint,
		Provider:       payment.Provider,
		Sender:         payment.Sender,
		Amount:         payment.Amount,
		DisplayMessage: payment.DisplayMessage,
		ReceivedAt:     payment.ReceivedAt,
	}
	if payment.HasAmount {
		v := payment.AmountValue
		rec.AmountValue = &v
	}
	if payment.ReceivedAtRaw != "" {
		raw := payment.ReceivedAtRaw
		rec.ReceivedAtRaw = &raw
	}

	row := pool.QueryRow(ctx, insertPaymentSQL,
		payment.Fingerprint,
		string(payment.Provider),
		payment.Sender,
		payment.Amount,
		amountValue,
		receivedAt,
		receivedAtRaw,
		payment.DisplayMessage,
	)

	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(scanErr, &pgErr) && pgErr.Code == "23505" {
			return PaymentRecord{}, ErrDuplicatePayment
		}
		return PaymentRecord{}, fmt.Errorf("insert payment: %w", scanErr)
	}

	return rec, nil
}

// ListRecentPayments lists the most recently recorded payments.
func (s *Store) ListRecentPayments(ctx context.Context, limit int) ([]PaymentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPaymentsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent payments: %w", queryErr)
	}
	defer rows.Close()

	return collectPayments(rows, limit)
}

// ListPaymentsBetween lists payments recorded inside a time window.
func (s *Store) ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]PaymentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPaymentsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list payments between: %w", queryErr)
	}
	defer rows.Close()

	return collectPayments(rows, 0)
}

// DailyVolumes aggregates count and total amount per day for a window.
func (s *Store) DailyVolumes(ctx context.Context, from, to time.Time) ([]DailyVolume, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, dailyVolumesSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("daily volumes: %w", queryErr)
	}
	defer rows.Close()

	volumes := make([]DailyVolume, 0)
	for rows.Next() {
		var vol DailyVolume
		var totalStr string
		if err := rows.Scan(&vol.Day, &vol.Count, &totalStr); err != nil {
			return nil, err
		}
		total, convErr := decimal.NewFromString(totalStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse daily total: %w", convErr)
		}
		vol.Total = total
		volumes = append(volumes, vol)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return volumes, nil
}

// CountPayments counts stored payments.
func (s *Store) CountPayments(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countPaymentsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count payments: %w", scanErr)
	}
	return count, nil
}

func collectPayments(rows pgx.Rows, capacityHint int) ([]PaymentRecord, error) {
	payments := make([]PaymentRecord, 0, capacityHint)
	for rows.Next() {
		rec, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return payments, nil
}

func scanPayment(rows pgx.Rows) (PaymentRecord, error) {
	var (
		rec           PaymentRecord
		provider      string
		amountValue   sql.NullString
		receivedAt    sql.NullTime
		receivedAtRaw sql.NullString
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.Fingerprint,
		&provider,
		&rec.Sender,
		&rec.Amount,
		&amountValue,
		&receivedAt,
		&receivedAtRaw,
		&rec.DisplayMessage,
		&rec.CreatedAt,
	); err != nil {
		return PaymentRecord{}, err
	}

	rec.Provider = parse.Provider(provider)

	if amountValue.Valid {
		value, err := decimal.NewFromString(amountValue.String)
		if err != nil {
			return PaymentRecord{}, fmt.Errorf("parse amount value: %w", err)
		}
		rec.AmountValue = &value
	}
	if receivedAt.Valid {
		t := receivedAt.Time
		rec.ReceivedAt = &t
	}
	if receivedAtRaw.Valid {
		raw := receivedAtRaw.String
		rec.ReceivedAtRaw = &raw
	}

	return rec, nil
}

var _ PaymentStore = (*Store)(nil)
var _ PaymentReader = (*Store)(nil)
