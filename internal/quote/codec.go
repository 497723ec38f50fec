package quote

import (
	"encoding/json"
	"fmt"

	"github.com/krishamaze/repairshop-api/internal/pricing"
)

// document is the persisted wire shape of a quote. Kept separate from the
// aggregate so the in-memory invariants never depend on JSON tags.
type document struct {
	Device    Device                          `json:"device"`
	Connector pricing.ConnectorType           `json:"connector"`
	Issues    []IssueKind                     `json:"issues"`
	Display   *selection                      `json:"display,omitempty"`
	Battery   *selection                      `json:"battery,omitempty"`
	Charger   *selection                      `json:"charger,omitempty"`
	Extras    map[ExtraOption]pricing.Money   `json:"extras,omitempty"`
	Others    []otherIssue                    `json:"otherIssues,omitempty"`
	Advance   pricing.Money                   `json:"advance"`
}

// MarshalJSON serialises the quote for persistence.
func (q *Quote) MarshalJSON() ([]byte, error) {
	doc := document{
		Device:    q.device,
		Connector: q.connector,
		Issues:    q.MarkedIssues(),
		Display:   q.display,
		Battery:   q.battery,
		Charger:   q.charger,
		Others:    q.others,
		Advance:   q.advance,
	}
	if len(q.extras) > 0 {
		doc.Extras = q.extras
	}
	return json.Marshal(doc)
}

// UnmarshalJSON rehydrates a persisted quote. Extras whose parent spare is
// missing from the stored state are dropped to restore the coupling
// invariant.
func (q *Quote) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("quote: decode state: %w", err)
	}
	q.device = doc.Device
	q.connector = doc.Connector
	q.issues = map[IssueKind]bool{}
	for _, kind := range doc.Issues {
		q.issues[kind] = true
	}
	q.display = doc.Display
	q.battery = doc.Battery
	q.charger = doc.Charger
	q.extras = map[ExtraOption]pricing.Money{}
	for option, amount := range doc.Extras {
		q.extras[option] = amount
	}
	if q.battery == nil {
		delete(q.extras, ExtraBatteryService)
	}
	if q.charger == nil {
		delete(q.extras, ExtraCCBoard)
	}
	q.others = doc.Others
	q.advance = doc.Advance
	q.reconcileAdvance()
	return nil
}
