package quote

import "github.com/krishamaze/repairshop-api/internal/pricing"

// LineItemKind distinguishes quote line item origins.
type LineItemKind string

const (
	LineSelectedSpare LineItemKind = "selected_spare"
	LineExtraOption   LineItemKind = "extra_option"
	LineOtherIssue    LineItemKind = "other_issue"
)

// LineItem is one priced component of the snapshot. ReferenceID ties back to
// the catalog variety for spares and extras, or to the locally generated id
// for other-issue items.
type LineItem struct {
	Kind        LineItemKind  `json:"kind"`
	ReferenceID string        `json:"referenceId"`
	Label       string        `json:"label"`
	Amount      pricing.Money `json:"amount"`
	IssueName   string        `json:"issueName,omitempty"`
}

// Snapshot is the read-only view of a quote handed to the presentation
// layer. Amounts are minor units.
type Snapshot struct {
	Device    Device         `json:"device"`
	Connector string         `json:"connector"`
	Issues    []IssueKind    `json:"selectedIssueKinds"`
	Items     []LineItem     `json:"lineItems"`
	Total     pricing.Money  `json:"totalPayment"`
	Advance   *pricing.Money `json:"advancePayment,omitempty"`
	Balance   *pricing.Money `json:"balancePayment,omitempty"`
	State     State          `json:"state"`
}

// Snapshot renders the current quote state. Spare and extra items come out
// in a fixed category order; other-issue items keep insertion order.
func (q *Quote) Snapshot() Snapshot {
	snap := Snapshot{
		Device:    q.device,
		Connector: string(q.connector),
		Issues:    q.MarkedIssues(),
		Total:     q.Total(),
		State:     q.CurrentState(),
	}
	if q.display != nil {
		snap.Items = append(snap.Items, LineItem{
			Kind:        LineSelectedSpare,
			ReferenceID: q.display.VarietyID,
			Label:       q.display.Label,
			Amount:      q.display.Amount,
		})
	}
	if q.battery != nil {
		snap.Items = append(snap.Items, LineItem{
			Kind:        LineSelectedSpare,
			ReferenceID: q.battery.VarietyID,
			Label:       q.battery.Label,
			Amount:      q.battery.Amount,
		})
		if amount, ok := q.extras[ExtraBatteryService]; ok {
			snap.Items = append(snap.Items, LineItem{
				Kind:        LineExtraOption,
				ReferenceID: string(ExtraBatteryService),
				Label:       "Battery service charge",
				Amount:      amount,
			})
		}
	}
	if q.charger != nil {
		snap.Items = append(snap.Items, LineItem{
			Kind:        LineSelectedSpare,
			ReferenceID: q.charger.VarietyID,
			Label:       q.charger.Label,
			Amount:      q.charger.Amount,
		})
		if amount, ok := q.extras[ExtraCCBoard]; ok {
			snap.Items = append(snap.Items, LineItem{
				Kind:        LineExtraOption,
				ReferenceID: string(ExtraCCBoard),
				Label:       "CC board",
				Amount:      amount,
			})
		}
	}
	for _, item := range q.others {
		snap.Items = append(snap.Items, LineItem{
			Kind:        LineOtherIssue,
			ReferenceID: item.ID,
			Label:       item.Name,
			Amount:      item.Amount,
			IssueName:   item.Name,
		})
	}
	if advance, ok := q.Advance(); ok {
		snap.Advance = &advance
	}
	if balance, ok := q.Balance(); ok {
		snap.Balance = &balance
	}
	return snap
}
