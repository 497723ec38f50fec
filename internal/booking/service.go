package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krishamaze/repairshop-api/internal/catalog"
	"github.com/krishamaze/repairshop-api/internal/events"
	"github.com/krishamaze/repairshop-api/internal/obs"
	"github.com/krishamaze/repairshop-api/internal/pricing"
	"github.com/krishamaze/repairshop-api/internal/quote"
)

var (
	// ErrVarietyNotFound is returned when the requested variety is not among
	// the catalog's current options for the issue. The staff UI was showing
	// an outdated option list.
	ErrVarietyNotFound = errors.New("booking: spare variety not found in catalog")
	// ErrSelectionOutdated is returned when the booking changed while the
	// catalog fetch was in flight. The fetched result is discarded and the
	// quote state is left untouched.
	ErrSelectionOutdated = errors.New("booking: booking changed during catalog lookup")
)

// Service owns the booking workflow: creating enquiries, mutating the draft
// quote through the aggregator, and explicit revision-checked saves.
type Service struct {
	Store   Store
	Catalog catalog.Client
	Events  *events.Bus
	Logger  zerolog.Logger
	Metrics *obs.QuoteMetrics

	// Now is overridable for deterministic age-tier pricing in tests.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateParams describes a new repair enquiry.
type CreateParams struct {
	ProductName string
	ModelNumber string
	ReleaseYear int
	Issues      []quote.IssueKind
}

// Create registers a booking and seeds its empty quote. The device's charger
// connector is resolved from the catalog once, here, and fixed for the
// quote's lifetime; devices without a priced charger spare get the "other"
// connector and surface UnsupportedConnector only if charger work is priced.
func (s *Service) Create(ctx context.Context, params CreateParams) (Booking, error) {
	if s.Store == nil || s.Catalog == nil {
		return Booking{}, errors.New("booking: service not configured")
	}
	params.ProductName = strings.TrimSpace(params.ProductName)
	if params.ProductName == "" {
		return Booking{}, fmt.Errorf("%w: product name is required", quote.ErrInvalidAmount)
	}

	connector, err := s.resolveConnector(ctx, params.ProductName, params.ModelNumber)
	if err != nil {
		return Booking{}, err
	}

	device := quote.Device{
		ProductName: params.ProductName,
		ModelNumber: strings.TrimSpace(params.ModelNumber),
		ReleaseYear: params.ReleaseYear,
	}
	q := quote.New(device, connector)
	if err := q.MarkIssues(params.Issues...); err != nil {
		return Booking{}, err
	}
	state, err := json.Marshal(q)
	if err != nil {
		return Booking{}, fmt.Errorf("booking: encode quote state: %w", err)
	}

	b := Booking{Device: device, Connector: connector, Status: StatusEnquiry, QuoteState: state}
	if err := s.Store.CreateBooking(ctx, &b); err != nil {
		return Booking{}, err
	}
	s.emit(ctx, events.TopicBookingCreated, b.ID, map[string]any{
		"product":   device.ProductName,
		"connector": string(connector),
	})
	return b, nil
}

func (s *Service) resolveConnector(ctx context.Context, product, model string) (pricing.ConnectorType, error) {
	varieties, err := s.Catalog.SpareOptions(ctx, product, quote.IssueChargerPort, model)
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.CatalogFailures.Inc()
		}
		return "", err
	}
	for _, v := range varieties {
		if v.Connector != "" {
			return v.Connector, nil
		}
	}
	return pricing.ConnectorOther, nil
}

// Get returns the booking and its rendered quote snapshot.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Booking, quote.Snapshot, error) {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, quote.Snapshot{}, err
	}
	q, err := s.rehydrate(b)
	if err != nil {
		return Booking{}, quote.Snapshot{}, err
	}
	return b, q.Snapshot(), nil
}

// SelectSpare resolves the variety through the catalog and records the
// selection. The catalog fetch can be slow, so after it resolves the booking
// is re-loaded and the fetched result is discarded when the booking's device
// or issue set no longer matches the state the fetch was initiated for.
func (s *Service) SelectSpare(ctx context.Context, id uuid.UUID, issue quote.IssueKind, varietyID string) (quote.Snapshot, error) {
	snap, err := s.selectSpare(ctx, id, issue, varietyID)
	s.observe("select_spare", err)
	return snap, err
}

func (s *Service) selectSpare(ctx context.Context, id uuid.UUID, issue quote.IssueKind, varietyID string) (quote.Snapshot, error) {
	before, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return quote.Snapshot{}, err
	}
	beforeQuote, err := s.rehydrate(before)
	if err != nil {
		return quote.Snapshot{}, err
	}

	varieties, err := s.Catalog.SpareOptions(ctx, before.Device.ProductName, issue, before.Device.ModelNumber)
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.CatalogFailures.Inc()
		}
		return quote.Snapshot{}, err
	}

	after, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return quote.Snapshot{}, err
	}
	afterQuote, err := s.rehydrate(after)
	if err != nil {
		return quote.Snapshot{}, err
	}
	if after.Device != before.Device || !sameIssueSet(beforeQuote.MarkedIssues(), afterQuote.MarkedIssues()) {
		return quote.Snapshot{}, ErrSelectionOutdated
	}

	variety, ok := findVariety(varieties, varietyID)
	if !ok {
		return quote.Snapshot{}, ErrVarietyNotFound
	}

	switch issue {
	case quote.IssueDisplay:
		err = afterQuote.SelectDisplay(variety.ID, variety.Label, variety.UnitPrice)
	case quote.IssueBattery:
		err = afterQuote.SelectBattery(variety.ID, variety.Label, variety.Capacity)
	case quote.IssueChargerPort:
		err = afterQuote.SelectCharger(variety.ID, variety.Label)
	default:
		err = fmt.Errorf("%w: %q", quote.ErrUnknownIssue, issue)
	}
	if err != nil {
		return quote.Snapshot{}, err
	}
	return s.persistDraft(ctx, id, afterQuote)
}

func findVariety(varieties []catalog.SpareVariety, id string) (catalog.SpareVariety, bool) {
	for _, v := range varieties {
		if v.ID == id {
			return v, true
		}
	}
	return catalog.SpareVariety{}, false
}

func sameIssueSet(a, b []quote.IssueKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Deselect clears a spare selection and its dependent extra.
func (s *Service) Deselect(ctx context.Context, id uuid.UUID, issue quote.IssueKind) (quote.Snapshot, error) {
	return s.mutate(ctx, id, "deselect_spare", func(q *quote.Quote) error {
		return q.Deselect(issue)
	})
}

// ToggleExtra switches an add-on charge on or off.
func (s *Service) ToggleExtra(ctx context.Context, id uuid.UUID, option quote.ExtraOption, on bool) (quote.Snapshot, error) {
	return s.mutate(ctx, id, "toggle_extra", func(q *quote.Quote) error {
		return q.ToggleExtra(option, on)
	})
}

// AddOtherIssue appends a free-form priced line item.
func (s *Service) AddOtherIssue(ctx context.Context, id uuid.UUID, name string, amount pricing.Money) (quote.Snapshot, string, error) {
	var itemID string
	snap, err := s.mutate(ctx, id, "add_other_issue", func(q *quote.Quote) error {
		var addErr error
		itemID, addErr = q.AddOtherIssue(name, amount)
		return addErr
	})
	return snap, itemID, err
}

// RemoveOtherIssue deletes a free-form line item.
func (s *Service) RemoveOtherIssue(ctx context.Context, id uuid.UUID, itemID string) (quote.Snapshot, error) {
	return s.mutate(ctx, id, "remove_other_issue", func(q *quote.Quote) error {
		return q.RemoveOtherIssue(itemID)
	})
}

// SetAdvance records the upfront payment.
func (s *Service) SetAdvance(ctx context.Context, id uuid.UUID, amount pricing.Money) (quote.Snapshot, error) {
	return s.mutate(ctx, id, "set_advance", func(q *quote.Quote) error {
		return q.SetAdvance(amount)
	})
}

// Save commits the draft quote under an explicit revision check. A caller
// holding an older revision gets ErrStaleQuote instead of overwriting a
// newer save.
func (s *Service) Save(ctx context.Context, id uuid.UUID, revision int64) (Booking, quote.Snapshot, error) {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		s.observe("save", err)
		return Booking{}, quote.Snapshot{}, err
	}
	q, err := s.rehydrate(b)
	if err != nil {
		s.observe("save", err)
		return Booking{}, quote.Snapshot{}, err
	}
	state, err := json.Marshal(q)
	if err != nil {
		s.observe("save", err)
		return Booking{}, quote.Snapshot{}, fmt.Errorf("booking: encode quote state: %w", err)
	}
	newRevision, err := s.Store.SaveQuote(ctx, id, state, revision)
	s.observe("save", err)
	if err != nil {
		return Booking{}, quote.Snapshot{}, err
	}
	b.Revision = newRevision
	b.Status = StatusQuoted
	b.QuoteState = state
	snap := q.Snapshot()
	s.emit(ctx, events.TopicQuoteSaved, id, map[string]any{
		"revision": newRevision,
		"total":    snap.Total,
		"state":    snap.State,
	})
	return b, snap, nil
}

// mutate runs one aggregator mutation against the persisted draft:
// load, rehydrate, apply, persist, snapshot.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, operation string, fn func(*quote.Quote) error) (quote.Snapshot, error) {
	snap, err := s.mutateDraft(ctx, id, fn)
	s.observe(operation, err)
	return snap, err
}

func (s *Service) mutateDraft(ctx context.Context, id uuid.UUID, fn func(*quote.Quote) error) (quote.Snapshot, error) {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return quote.Snapshot{}, err
	}
	q, err := s.rehydrate(b)
	if err != nil {
		return quote.Snapshot{}, err
	}
	if err := fn(q); err != nil {
		return quote.Snapshot{}, err
	}
	return s.persistDraft(ctx, id, q)
}

func (s *Service) persistDraft(ctx context.Context, id uuid.UUID, q *quote.Quote) (quote.Snapshot, error) {
	state, err := json.Marshal(q)
	if err != nil {
		return quote.Snapshot{}, fmt.Errorf("booking: encode quote state: %w", err)
	}
	if err := s.Store.SaveDraft(ctx, id, state); err != nil {
		return quote.Snapshot{}, err
	}
	snap := q.Snapshot()
	s.emit(ctx, events.TopicQuotePriced, id, map[string]any{
		"total": snap.Total,
		"state": snap.State,
	})
	return snap, nil
}

func (s *Service) rehydrate(b Booking) (*quote.Quote, error) {
	q := quote.New(b.Device, b.Connector)
	if len(b.QuoteState) > 0 {
		if err := json.Unmarshal(b.QuoteState, q); err != nil {
			return nil, err
		}
	}
	q.Now = s.now
	return q, nil
}

// emit publishes a domain event. Event failures are logged, never propagated:
// the mutation already committed.
func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg("event emission failed")
	}
}

func (s *Service) observe(operation string, err error) {
	if s.Metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.Metrics.Mutations.WithLabelValues(operation, outcome).Inc()
}
