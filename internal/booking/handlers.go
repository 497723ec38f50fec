package booking

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/krishamaze/repairshop-api/internal/catalog"
	"github.com/krishamaze/repairshop-api/internal/common"
	"github.com/krishamaze/repairshop-api/internal/pricing"
	"github.com/krishamaze/repairshop-api/internal/quote"
)

// Handler exposes the booking and quote mutation routes.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler with a ready validator.
func NewHandler(service *Service) *Handler {
	return &Handler{Service: service, Validate: validator.New()}
}

// Routes mounts the booking routes on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/bookings", h.Create)
	r.Get("/bookings/{id}", h.Get)
	r.Route("/bookings/{id}/quote", func(r chi.Router) {
		r.Get("/", h.GetQuote)
		r.Put("/", h.Save)
		r.Post("/spares", h.SelectSpare)
		r.Delete("/spares/{issue}", h.Deselect)
		r.Post("/extras", h.ToggleExtra)
		r.Post("/other-issues", h.AddOtherIssue)
		r.Delete("/other-issues/{itemId}", h.RemoveOtherIssue)
		r.Put("/advance", h.SetAdvance)
	})
}

type createRequest struct {
	ProductName string   `json:"productName" validate:"required,min=1,max=120"`
	ModelNumber string   `json:"modelNumber" validate:"max=60"`
	ReleaseYear int      `json:"releaseYear" validate:"required,min=2000,max=2100"`
	Issues      []string `json:"issues" validate:"dive,oneof=display battery charger_port other"`
}

// Create handles POST /bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid booking payload", err.Error())
		return
	}
	issues := make([]quote.IssueKind, 0, len(req.Issues))
	for _, issue := range req.Issues {
		issues = append(issues, quote.IssueKind(issue))
	}
	b, err := h.Service.Create(r.Context(), CreateParams{
		ProductName: req.ProductName,
		ModelNumber: req.ModelNumber,
		ReleaseYear: req.ReleaseYear,
		Issues:      issues,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": b})
}

// Get handles GET /bookings/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	b, snap, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"booking": b,
		"quote":   snap,
	}})
}

// GetQuote handles GET /bookings/{id}/quote.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	_, snap, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

type selectSpareRequest struct {
	Issue     string `json:"issue" validate:"required,oneof=display battery charger_port"`
	VarietyID string `json:"varietyId" validate:"required"`
}

// SelectSpare handles POST /bookings/{id}/quote/spares.
func (h *Handler) SelectSpare(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req selectSpareRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid spare selection payload", err.Error())
		return
	}
	snap, err := h.Service.SelectSpare(r.Context(), id, quote.IssueKind(req.Issue), req.VarietyID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// Deselect handles DELETE /bookings/{id}/quote/spares/{issue}.
func (h *Handler) Deselect(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	snap, err := h.Service.Deselect(r.Context(), id, quote.IssueKind(chi.URLParam(r, "issue")))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

type toggleExtraRequest struct {
	Option  string `json:"option" validate:"required,oneof=cc_board battery_service"`
	Enabled *bool  `json:"enabled" validate:"required"`
}

// ToggleExtra handles POST /bookings/{id}/quote/extras.
func (h *Handler) ToggleExtra(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req toggleExtraRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid extra toggle payload", err.Error())
		return
	}
	snap, err := h.Service.ToggleExtra(r.Context(), id, quote.ExtraOption(req.Option), *req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

type otherIssueRequest struct {
	Name   string        `json:"name" validate:"required,min=1,max=200"`
	Amount pricing.Money `json:"amount" validate:"min=0"`
}

// AddOtherIssue handles POST /bookings/{id}/quote/other-issues.
func (h *Handler) AddOtherIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req otherIssueRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid other-issue payload", err.Error())
		return
	}
	snap, itemID, err := h.Service.AddOtherIssue(r.Context(), id, req.Name, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"itemId": itemID,
		"quote":  snap,
	}})
}

// RemoveOtherIssue handles DELETE /bookings/{id}/quote/other-issues/{itemId}.
func (h *Handler) RemoveOtherIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	snap, err := h.Service.RemoveOtherIssue(r.Context(), id, chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// advanceRequest skips struct validation on purpose: negative or oversized
// amounts must come back as INVALID_ADVANCE from the aggregator, not as a
// generic validation error.
type advanceRequest struct {
	Amount pricing.Money `json:"amount"`
}

// SetAdvance handles PUT /bookings/{id}/quote/advance.
func (h *Handler) SetAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req advanceRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	snap, err := h.Service.SetAdvance(r.Context(), id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

type saveRequest struct {
	Revision *int64 `json:"revision" validate:"required"`
}

// Save handles PUT /bookings/{id}/quote, the explicit revision-checked save.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req saveRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "revision is required", nil)
		return
	}
	b, snap, err := h.Service.Save(r.Context(), id, *req.Revision)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"booking": b,
		"quote":   snap,
	}})
}

func (h *Handler) bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid booking id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// writeError translates domain errors into the API's stable error codes.
// Every failure path here guarantees the quote state described by the error
// was left untouched.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "booking not found", nil)
	case errors.Is(err, ErrStaleQuote):
		common.JSONError(w, http.StatusConflict, common.CodeStaleQuote, "quote was saved by someone else, reload and retry", nil)
	case errors.Is(err, ErrSelectionOutdated):
		common.JSONError(w, http.StatusConflict, common.CodeSelectionOutdated, "booking changed during the catalog lookup, retry the selection", nil)
	case errors.Is(err, ErrVarietyNotFound):
		common.JSONError(w, http.StatusConflict, common.CodeSelectionOutdated, "spare variety is no longer offered for this device", nil)
	case errors.Is(err, pricing.ErrUnsupportedConnector):
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeUnsupportedConnector, "no price available for this device's connector", nil)
	case errors.Is(err, catalog.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, common.CodeCatalogUnavailable, "spare catalog is unavailable, try again", nil)
	case errors.Is(err, quote.ErrInvalidAdvance):
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidAdvance, "advance must be between zero and the quote total", nil)
	case errors.Is(err, quote.ErrParentSpareRequired):
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidation, "select the battery variety before adding the service charge", nil)
	case errors.Is(err, quote.ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "line item not found", nil)
	case errors.Is(err, quote.ErrInvalidAmount):
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "line items need a name and a non-negative amount", nil)
	case errors.Is(err, quote.ErrUnknownIssue):
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "unknown issue kind or extra option", nil)
	default:
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "something went wrong", nil)
	}
}
