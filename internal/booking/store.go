package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krishamaze/repairshop-api/internal/common"
	"github.com/krishamaze/repairshop-api/internal/pricing"
	"github.com/krishamaze/repairshop-api/internal/quote"
)

var (
	// ErrNotFound is returned when the booking id does not exist.
	ErrNotFound = errors.New("booking: not found")
	// ErrStaleQuote is returned on save when the caller's revision is behind
	// the stored one. The stored quote is never overwritten silently.
	ErrStaleQuote = errors.New("booking: quote revision is stale")
)

// storeFailure wraps a driver error so the façade translates it into the
// canonical error body instead of leaking SQL details to clients.
func storeFailure(err error) error {
	return common.NewAppError(common.CodeInternal, "booking storage failed", http.StatusInternalServerError, err)
}

// Status values a booking moves through.
const (
	StatusEnquiry = "enquiry"
	StatusQuoted  = "quoted"
)

// Booking is a repair enquiry with its draft quote state.
type Booking struct {
	ID         uuid.UUID             `json:"id"`
	Device     quote.Device          `json:"device"`
	Connector  pricing.ConnectorType `json:"connector"`
	Status     string                `json:"status"`
	QuoteState json.RawMessage       `json:"-"`
	Revision   int64                 `json:"revision"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}

// Store persists bookings and their draft quote state.
type Store interface {
	CreateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (Booking, error)
	SaveDraft(ctx context.Context, id uuid.UUID, state []byte) error
	SaveQuote(ctx context.Context, id uuid.UUID, state []byte, expectedRevision int64) (int64, error)
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	Pool *pgxpool.Pool
}

// CreateBooking inserts a new enquiry row with an empty revision.
func (s PGStore) CreateBooking(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = StatusEnquiry
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO bookings (id, product_name, model_number, release_year, connector, status, quote_state, revision, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.Device.ProductName, b.Device.ModelNumber, b.Device.ReleaseYear,
		string(b.Connector), b.Status, b.QuoteState, b.Revision, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return storeFailure(err)
	}
	return nil
}

// GetBooking loads a booking by id.
func (s PGStore) GetBooking(ctx context.Context, id uuid.UUID) (Booking, error) {
	var (
		b         Booking
		connector string
	)
	err := s.Pool.QueryRow(ctx,
		`SELECT id, product_name, model_number, release_year, connector, status, quote_state, revision, created_at, updated_at
		 FROM bookings WHERE id = $1`, id,
	).Scan(&b.ID, &b.Device.ProductName, &b.Device.ModelNumber, &b.Device.ReleaseYear,
		&connector, &b.Status, &b.QuoteState, &b.Revision, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, storeFailure(err)
	}
	b.Connector = pricing.ConnectorType(connector)
	return b, nil
}

// SaveDraft persists the working quote state without touching the revision.
// Drafts are the autosave path; only an explicit save bumps the revision.
func (s PGStore) SaveDraft(ctx context.Context, id uuid.UUID, state []byte) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE bookings SET quote_state = $2, updated_at = now() WHERE id = $1`,
		id, state,
	)
	if err != nil {
		return storeFailure(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveQuote persists the quote state and bumps the revision, but only when
// the caller saw the current revision. The guard runs in the UPDATE itself
// so two concurrent saves cannot both win.
func (s PGStore) SaveQuote(ctx context.Context, id uuid.UUID, state []byte, expectedRevision int64) (int64, error) {
	var newRevision int64
	err := s.Pool.QueryRow(ctx,
		`UPDATE bookings
		 SET quote_state = $2, revision = revision + 1, status = $3, updated_at = now()
		 WHERE id = $1 AND revision = $4
		 RETURNING revision`,
		id, state, StatusQuoted, expectedRevision,
	).Scan(&newRevision)
	if err == nil {
		return newRevision, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, storeFailure(err)
	}
	// No row matched: either the booking is gone or the revision moved on.
	if _, getErr := s.GetBooking(ctx, id); getErr != nil {
		return 0, getErr
	}
	return 0, ErrStaleQuote
}
