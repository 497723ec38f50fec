package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/krishamaze/repairshop-api/internal/common"
	"github.com/krishamaze/repairshop-api/internal/quote"
)

// Handler exposes the spare catalog lookup to the staff UI.
type Handler struct {
	Client Client
}

// SpareOptions handles GET /spares?product=&issue=&model=.
//
// An empty data array is a successful response: the UI uses it to trigger
// the manual pricing-request workflow, so it must not become an error.
func (h Handler) SpareOptions(w http.ResponseWriter, r *http.Request) {
	if h.Client == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog client not configured", nil)
		return
	}
	q := r.URL.Query()
	product := strings.TrimSpace(q.Get("product"))
	if product == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "product is required", nil)
		return
	}
	issue := quote.IssueKind(strings.TrimSpace(q.Get("issue")))
	switch issue {
	case quote.IssueDisplay, quote.IssueBattery, quote.IssueChargerPort:
	default:
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "issue must be display, battery or charger_port", nil)
		return
	}

	varieties, err := h.Client.SpareOptions(r.Context(), product, issue, q.Get("model"))
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			common.JSONError(w, http.StatusBadGateway, common.CodeCatalogUnavailable, "spare catalog is unavailable, try again", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "unable to look up spares", nil)
		return
	}
	if varieties == nil {
		varieties = []SpareVariety{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": varieties})
}
