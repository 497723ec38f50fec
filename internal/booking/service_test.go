package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/krishamaze/repairshop-api/internal/booking"
	"github.com/krishamaze/repairshop-api/internal/catalog"
	"github.com/krishamaze/repairshop-api/internal/pricing"
	"github.com/krishamaze/repairshop-api/internal/quote"
)

var fixedNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]booking.Booking
}

func newMemStore() *memStore {
	return &memStore{bookings: map[uuid.UUID]booking.Booking{}}
}

func (s *memStore) CreateBooking(_ context.Context, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *memStore) GetBooking(_ context.Context, id uuid.UUID) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (s *memStore) SaveDraft(_ context.Context, id uuid.UUID, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return booking.ErrNotFound
	}
	b.QuoteState = state
	s.bookings[id] = b
	return nil
}

func (s *memStore) SaveQuote(_ context.Context, id uuid.UUID, state []byte, expectedRevision int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return 0, booking.ErrNotFound
	}
	if b.Revision != expectedRevision {
		return 0, booking.ErrStaleQuote
	}
	b.Revision++
	b.QuoteState = state
	b.Status = booking.StatusQuoted
	s.bookings[id] = b
	return b.Revision, nil
}

type stubCatalog struct {
	varieties map[quote.IssueKind][]catalog.SpareVariety
	err       error
	onFetch   func()
}

func (c *stubCatalog) SpareOptions(_ context.Context, _ string, issue quote.IssueKind, _ string) ([]catalog.SpareVariety, error) {
	if c.onFetch != nil {
		c.onFetch()
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.varieties[issue], nil
}

func testCatalog() *stubCatalog {
	return &stubCatalog{varieties: map[quote.IssueKind][]catalog.SpareVariety{
		quote.IssueDisplay: {
			{ID: "disp-og", Issue: quote.IssueDisplay, Label: "Display (OG quality)", UnitPrice: 1200_00},
			{ID: "disp-a", Issue: quote.IssueDisplay, Label: "Display (A quality)", UnitPrice: 900_00},
		},
		quote.IssueBattery: {
			{ID: "batt-std", Issue: quote.IssueBattery, Label: "Battery", UnitPrice: 950_00, Capacity: 4000},
		},
		quote.IssueChargerPort: {
			{ID: "chg-1", Issue: quote.IssueChargerPort, Label: "Charger port", Connector: pricing.ConnectorTypeC},
		},
	}}
}

func newTestService(cat catalog.Client) (*booking.Service, *memStore) {
	store := newMemStore()
	svc := &booking.Service{
		Store:   store,
		Catalog: cat,
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return fixedNow },
	}
	return svc, store
}

func createTestBooking(t *testing.T, svc *booking.Service) booking.Booking {
	t.Helper()
	b, err := svc.Create(context.Background(), booking.CreateParams{
		ProductName: "Galaxy M31",
		ModelNumber: "SM-M315F",
		ReleaseYear: 2019,
		Issues:      []quote.IssueKind{quote.IssueDisplay, quote.IssueBattery, quote.IssueChargerPort},
	})
	require.NoError(t, err)
	return b
}

func TestCreateResolvesConnectorFromCatalog(t *testing.T) {
	svc, store := newTestService(testCatalog())

	b := createTestBooking(t, svc)
	require.Equal(t, pricing.ConnectorTypeC, b.Connector)
	require.Equal(t, booking.StatusEnquiry, b.Status)
	require.Equal(t, int64(0), b.Revision)

	stored, err := store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.QuoteState)
}

func TestCreateWithoutChargerSpareFallsBackToOther(t *testing.T) {
	cat := testCatalog()
	cat.varieties[quote.IssueChargerPort] = nil
	svc, _ := newTestService(cat)

	b := createTestBooking(t, svc)
	require.Equal(t, pricing.ConnectorOther, b.Connector)
}

func TestCreateCatalogUnavailable(t *testing.T) {
	svc, _ := newTestService(&stubCatalog{err: catalog.ErrUnavailable})

	_, err := svc.Create(context.Background(), booking.CreateParams{ProductName: "Galaxy M31", ReleaseYear: 2019})
	require.ErrorIs(t, err, catalog.ErrUnavailable)
}

func TestFullQuoteFlow(t *testing.T) {
	svc, _ := newTestService(testCatalog())
	b := createTestBooking(t, svc)
	ctx := context.Background()

	_, err := svc.SelectSpare(ctx, b.ID, quote.IssueDisplay, "disp-og")
	require.NoError(t, err)
	_, err = svc.SelectSpare(ctx, b.ID, quote.IssueBattery, "batt-std")
	require.NoError(t, err)
	_, err = svc.ToggleExtra(ctx, b.ID, quote.ExtraBatteryService, true)
	require.NoError(t, err)
	_, err = svc.SelectSpare(ctx, b.ID, quote.IssueChargerPort, "chg-1")
	require.NoError(t, err)
	_, err = svc.ToggleExtra(ctx, b.ID, quote.ExtraCCBoard, true)
	require.NoError(t, err)
	_, _, err = svc.AddOtherIssue(ctx, b.ID, "Water damage", 300_00)
	require.NoError(t, err)
	snap, err := svc.SetAdvance(ctx, b.ID, 1000_00)
	require.NoError(t, err)

	require.Equal(t, pricing.Money(3350_00), snap.Total)
	require.NotNil(t, snap.Balance)
	require.Equal(t, pricing.Money(2350_00), *snap.Balance)
	require.Equal(t, quote.StateComplete, snap.State)
	require.Len(t, snap.Items, 6)
}

func TestSelectSpareVarietyNotFound(t *testing.T) {
	svc, _ := newTestService(testCatalog())
	b := createTestBooking(t, svc)

	_, err := svc.SelectSpare(context.Background(), b.ID, quote.IssueDisplay, "disp-nope")
	require.ErrorIs(t, err, booking.ErrVarietyNotFound)
}

func TestSelectSpareDiscardsStaleFetch(t *testing.T) {
	cat := testCatalog()
	svc, _ := newTestService(cat)
	b := createTestBooking(t, svc)
	ctx := context.Background()

	// Simulate a concurrent edit landing while the catalog fetch is in
	// flight: the marked issue set changes between fetch start and resolve.
	cat.onFetch = func() {
		cat.onFetch = nil
		_, _, err := svc.AddOtherIssue(ctx, b.ID, "Back glass", 500_00)
		require.NoError(t, err)
	}

	_, err := svc.SelectSpare(ctx, b.ID, quote.IssueDisplay, "disp-og")
	require.ErrorIs(t, err, booking.ErrSelectionOutdated)

	// The fetched result was discarded: no display selection landed.
	_, snap, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	for _, item := range snap.Items {
		require.NotEqual(t, "disp-og", item.ReferenceID)
	}
}

func TestSaveBumpsRevisionAndDetectsConflict(t *testing.T) {
	svc, _ := newTestService(testCatalog())
	b := createTestBooking(t, svc)
	ctx := context.Background()

	_, err := svc.SelectSpare(ctx, b.ID, quote.IssueDisplay, "disp-og")
	require.NoError(t, err)

	saved, _, err := svc.Save(ctx, b.ID, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), saved.Revision)
	require.Equal(t, booking.StatusQuoted, saved.Status)

	_, _, err = svc.Save(ctx, b.ID, 0)
	require.ErrorIs(t, err, booking.ErrStaleQuote)
}

func TestSetAdvanceRejectedLeavesDraftUntouched(t *testing.T) {
	svc, _ := newTestService(testCatalog())
	b := createTestBooking(t, svc)
	ctx := context.Background()

	_, err := svc.SelectSpare(ctx, b.ID, quote.IssueDisplay, "disp-a")
	require.NoError(t, err)

	_, err = svc.SetAdvance(ctx, b.ID, 5000_00)
	require.ErrorIs(t, err, quote.ErrInvalidAdvance)

	_, snap, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(900_00), snap.Total)
	require.NotNil(t, snap.Balance)
	require.Equal(t, pricing.Money(900_00), *snap.Balance)
}

func TestBatteryServiceRequiresBattery(t *testing.T) {
	svc, _ := newTestService(testCatalog())
	b := createTestBooking(t, svc)

	_, err := svc.ToggleExtra(context.Background(), b.ID, quote.ExtraBatteryService, true)
	require.ErrorIs(t, err, quote.ErrParentSpareRequired)
}

func TestDeselectBatteryDropsServiceCharge(t *testing.T) {
	svc, _ := newTestService(testCatalog())
	b := createTestBooking(t, svc)
	ctx := context.Background()

	_, err := svc.SelectSpare(ctx, b.ID, quote.IssueBattery, "batt-std")
	require.NoError(t, err)
	_, err = svc.ToggleExtra(ctx, b.ID, quote.ExtraBatteryService, true)
	require.NoError(t, err)

	snap, err := svc.Deselect(ctx, b.ID, quote.IssueBattery)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(0), snap.Total)
	require.Empty(t, snap.Items)
}
