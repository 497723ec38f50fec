package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/krishamaze/repairshop-api/internal/pricing"
	"github.com/krishamaze/repairshop-api/internal/quote"
	"github.com/krishamaze/repairshop-api/internal/resilience"
)

// ErrUnavailable indicates the catalog lookup failed. An empty result set is
// NOT an error: it means no spares are priced for the product and issue, and
// the manual pricing-request workflow applies. Callers branch on this
// distinction, so it must never be collapsed.
var ErrUnavailable = errors.New("catalog: lookup unavailable")

// SpareVariety is one priced option for a given issue.
type SpareVariety struct {
	ID        string                `json:"id"`
	Issue     quote.IssueKind       `json:"issue"`
	Label     string                `json:"label"`
	UnitPrice pricing.Money         `json:"unitPrice"`
	Capacity  int64                 `json:"capacity,omitempty"`
	Connector pricing.ConnectorType `json:"connector,omitempty"`
}

// Client resolves priced spare varieties for a product and issue kind.
type Client interface {
	SpareOptions(ctx context.Context, product string, issue quote.IssueKind, model string) ([]SpareVariety, error)
}

// spareRecord is the wire shape returned by the legacy pricing backend.
// Prices come over as decimal major units.
type spareRecord struct {
	ID        string  `json:"id"`
	Issue     string  `json:"issue"`
	Label     string  `json:"label"`
	Price     float64 `json:"price"`
	Capacity  int64   `json:"capacity"`
	Connector string  `json:"connector"`
}

// HTTPClient fetches spare options from the catalog backend through the
// retrying, circuit-broken transport.
type HTTPClient struct {
	BaseURL string
	Doer    resilience.HTTPClient
}

// SpareOptions calls GET {base}/api/getprice/{product}/{issue}?model=.
func (c HTTPClient) SpareOptions(ctx context.Context, product string, issue quote.IssueKind, model string) ([]SpareVariety, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return nil, fmt.Errorf("%w: product is required", ErrUnavailable)
	}
	endpoint := fmt.Sprintf("%s/api/getprice/%s/%s",
		strings.TrimRight(c.BaseURL, "/"),
		url.PathEscape(product),
		url.PathEscape(string(issue)),
	)
	if model = strings.TrimSpace(model); model != "" {
		endpoint += "?model=" + url.QueryEscape(model)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Doer.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status)
	}

	var records []spareRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	varieties := make([]SpareVariety, 0, len(records))
	for _, rec := range records {
		connector, _ := pricing.ParseConnector(rec.Connector)
		varieties = append(varieties, SpareVariety{
			ID:        rec.ID,
			Issue:     quote.IssueKind(rec.Issue),
			Label:     rec.Label,
			UnitPrice: pricing.ToMinor(rec.Price),
			Capacity:  rec.Capacity,
			Connector: connector,
		})
	}
	return varieties, nil
}

// MockClient returns canned varieties and is useful for development and tests.
type MockClient struct{}

// SpareOptions returns static options regardless of the product.
func (MockClient) SpareOptions(_ context.Context, product string, issue quote.IssueKind, _ string) ([]SpareVariety, error) {
	switch issue {
	case quote.IssueDisplay:
		return []SpareVariety{
			{ID: "disp-og", Issue: issue, Label: "Display (OG quality)", UnitPrice: 1200_00},
			{ID: "disp-a", Issue: issue, Label: "Display (A quality)", UnitPrice: 900_00},
		}, nil
	case quote.IssueBattery:
		return []SpareVariety{
			{ID: "batt-std", Issue: issue, Label: "Battery", UnitPrice: 950_00, Capacity: 4000},
		}, nil
	case quote.IssueChargerPort:
		return []SpareVariety{
			{ID: "chg-1", Issue: issue, Label: "Charger port", Connector: pricing.ConnectorTypeC},
		}, nil
	}
	_ = product
	return []SpareVariety{}, nil
}
