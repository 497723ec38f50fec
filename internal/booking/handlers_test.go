package booking_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/krishamaze/repairshop-api/internal/booking"
	"github.com/krishamaze/repairshop-api/internal/common"
)

func newTestRouter(t *testing.T) (*chi.Mux, *booking.Service) {
	t.Helper()
	svc, _ := newTestService(testCatalog())
	r := chi.NewRouter()
	r.Route("/api/v1", booking.NewHandler(svc).Routes)
	return r, svc
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func createBookingHTTP(t *testing.T, r http.Handler) string {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/api/v1/bookings", map[string]any{
		"productName": "Galaxy M31",
		"modelNumber": "SM-M315F",
		"releaseYear": 2019,
		"issues":      []string{"display", "battery", "charger_port"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.ID)
	return body.Data.ID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := errorBody(t, rec)
	return code
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

func TestCreateBookingValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/bookings", map[string]any{
		"productName": "",
		"releaseYear": 2019,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestQuoteMutationRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createBookingHTTP(t, r)
	base := fmt.Sprintf("/api/v1/bookings/%s/quote", id)

	rec := doJSON(t, r, http.MethodPost, base+"/spares", map[string]any{
		"issue": "display", "varietyId": "disp-og",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Total int64  `json:"totalPayment"`
			State string `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, int64(1200_00), body.Data.Total)
	require.Equal(t, "partial", body.Data.State)

	rec = doJSON(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdvanceRejectedOverTotal(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createBookingHTTP(t, r)
	base := fmt.Sprintf("/api/v1/bookings/%s/quote", id)

	rec := doJSON(t, r, http.MethodPost, base+"/spares", map[string]any{
		"issue": "display", "varietyId": "disp-a",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodPut, base+"/advance", map[string]any{"amount": 5000_00})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_ADVANCE", errorCode(t, rec))
}

func TestSaveConflictReturnsStaleQuote(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createBookingHTTP(t, r)
	base := fmt.Sprintf("/api/v1/bookings/%s/quote", id)

	rec := doJSON(t, r, http.MethodPost, base+"/spares", map[string]any{
		"issue": "display", "varietyId": "disp-og",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodPut, base, map[string]any{"revision": 0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodPut, base, map[string]any{"revision": 0})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "STALE_QUOTE", errorCode(t, rec))
}

func TestBatteryServiceWithoutBattery(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createBookingHTTP(t, r)
	base := fmt.Sprintf("/api/v1/bookings/%s/quote", id)

	rec := doJSON(t, r, http.MethodPost, base+"/extras", map[string]any{
		"option": "battery_service", "enabled": true,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOtherIssueLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createBookingHTTP(t, r)
	base := fmt.Sprintf("/api/v1/bookings/%s/quote", id)

	rec := doJSON(t, r, http.MethodPost, base+"/other-issues", map[string]any{
		"name": "Water damage", "amount": 300_00,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		Data struct {
			ItemID string `json:"itemId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.ItemID)

	rec = doJSON(t, r, http.MethodDelete, base+"/other-issues/"+body.Data.ItemID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, base+"/other-issues/"+body.Data.ItemID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOtherIssueBlankNameGetsCuratedMessage(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createBookingHTTP(t, r)

	rec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%s/quote/other-issues", id), map[string]any{
		"name": " ", "amount": 100_00,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, message := errorBody(t, rec)
	require.Equal(t, "VALIDATION_ERROR", code)
	require.Equal(t, "line items need a name and a non-negative amount", message)
}

// downStore fails every operation the way the pg store does when the
// database is unreachable.
type downStore struct{}

func (downStore) fail() error {
	return common.NewAppError(common.CodeInternal, "booking storage failed",
		http.StatusInternalServerError, errors.New("dial tcp: connection refused"))
}

func (s downStore) CreateBooking(context.Context, *booking.Booking) error { return s.fail() }

func (s downStore) GetBooking(context.Context, uuid.UUID) (booking.Booking, error) {
	return booking.Booking{}, s.fail()
}

func (s downStore) SaveDraft(context.Context, uuid.UUID, []byte) error { return s.fail() }

func (s downStore) SaveQuote(context.Context, uuid.UUID, []byte, int64) (int64, error) {
	return 0, s.fail()
}

func TestStoreFailureTranslatedViaAppError(t *testing.T) {
	svc := &booking.Service{Store: downStore{}, Catalog: testCatalog(), Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Route("/api/v1", booking.NewHandler(svc).Routes)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/bookings/7b7f54de-66a1-4d67-9c1c-6f0f4f3f8f11/quote", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	code, message := errorBody(t, rec)
	require.Equal(t, "INTERNAL", code)
	require.Equal(t, "booking storage failed", message)
}

func TestUnknownBookingIs404(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/bookings/7b7f54de-66a1-4d67-9c1c-6f0f4f3f8f11/quote", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
