package quote

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/krishamaze/repairshop-api/internal/pricing"
)

// IssueKind is a category of repair a quote can price.
type IssueKind string

const (
	IssueDisplay     IssueKind = "display"
	IssueBattery     IssueKind = "battery"
	IssueChargerPort IssueKind = "charger_port"
	IssueOther       IssueKind = "other"
)

// ExtraOption is an add-on charge contingent on a parent spare selection.
type ExtraOption string

const (
	ExtraCCBoard        ExtraOption = "cc_board"
	ExtraBatteryService ExtraOption = "battery_service"
)

// State describes how far quote pricing has progressed.
type State string

const (
	StateEmpty    State = "empty"
	StatePartial  State = "partial"
	StateComplete State = "complete"
)

var (
	// ErrInvalidAdvance is returned when the advance payment is negative or
	// exceeds the current total. The quote is left unchanged.
	ErrInvalidAdvance = errors.New("quote: advance must be between zero and the current total")
	// ErrParentSpareRequired is returned when the battery service charge is
	// toggled on without a selected battery variety.
	ErrParentSpareRequired = errors.New("quote: extra option requires its parent spare selection")
	// ErrInvalidAmount rejects negative or missing line amounts.
	ErrInvalidAmount = errors.New("quote: amount must not be negative")
	// ErrItemNotFound is returned when an other-issue id does not exist.
	ErrItemNotFound = errors.New("quote: line item not found")
	// ErrUnknownIssue rejects operations on issue kinds the quote cannot price.
	ErrUnknownIssue = errors.New("quote: unknown issue kind")
)

// Device identifies the product being quoted. Immutable once a quote begins.
type Device struct {
	ProductName string `json:"productName"`
	ModelNumber string `json:"modelNumber,omitempty"`
	ReleaseYear int    `json:"releaseYear"`
}

type selection struct {
	VarietyID string        `json:"varietyId"`
	Label     string        `json:"label"`
	Amount    pricing.Money `json:"amount"`
}

type otherIssue struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Amount pricing.Money `json:"amount"`
}

// Quote is the aggregate pricing state for one booking's repair. It is
// mutated only through its typed methods; every mutation validates first and
// commits atomically, so a failed call never leaves partial state behind.
//
// A Quote is not safe for concurrent use. One staff session owns it at a
// time, matching the booking workflow.
type Quote struct {
	device    Device
	connector pricing.ConnectorType
	issues    map[IssueKind]bool
	display   *selection
	battery   *selection
	charger   *selection
	extras    map[ExtraOption]pricing.Money
	others    []otherIssue
	advance   pricing.Money

	// Now is overridable for deterministic age-tier pricing in tests.
	Now func() time.Time
	// NewID generates ids for other-issue items.
	NewID func() string
}

// New creates an empty quote for the device. The connector is derived from
// catalog data for the device's charger spare and fixed for the quote's
// lifetime.
func New(device Device, connector pricing.ConnectorType) *Quote {
	return &Quote{
		device:    device,
		connector: connector,
		issues:    map[IssueKind]bool{},
		extras:    map[ExtraOption]pricing.Money{},
	}
}

func (q *Quote) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now()
}

func (q *Quote) newID() string {
	if q.NewID != nil {
		return q.NewID()
	}
	return uuid.NewString()
}

// Device returns the device the quote prices.
func (q *Quote) Device() Device { return q.device }

// Connector returns the device's charger connector type.
func (q *Quote) Connector() pricing.ConnectorType { return q.connector }

// MarkIssues records issue kinds the customer or staff marked relevant.
// Marked kinds drive which categories count towards the Complete state.
func (q *Quote) MarkIssues(kinds ...IssueKind) error {
	for _, kind := range kinds {
		switch kind {
		case IssueDisplay, IssueBattery, IssueChargerPort, IssueOther:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownIssue, kind)
		}
	}
	for _, kind := range kinds {
		q.issues[kind] = true
	}
	return nil
}

// MarkedIssues returns the marked issue kinds in a stable order.
func (q *Quote) MarkedIssues() []IssueKind {
	out := make([]IssueKind, 0, len(q.issues))
	for _, kind := range []IssueKind{IssueDisplay, IssueBattery, IssueChargerPort, IssueOther} {
		if q.issues[kind] {
			out = append(out, kind)
		}
	}
	return out
}

// IssueMarked reports whether the issue kind is marked on this quote.
func (q *Quote) IssueMarked(kind IssueKind) bool { return q.issues[kind] }

// SelectDisplay records the chosen display variety. Selection is exclusive:
// a new variety replaces the prior one, mirroring a radio-button choice.
func (q *Quote) SelectDisplay(varietyID, label string, amount pricing.Money) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	q.issues[IssueDisplay] = true
	q.display = &selection{VarietyID: varietyID, Label: label, Amount: amount}
	q.reconcileAdvance()
	return nil
}

// SelectBattery records the chosen battery variety. The effective amount is
// derived from the raw capacity at selection time, never the catalog's raw
// price, so a priced battery is distinguishable from a declined one.
func (q *Quote) SelectBattery(varietyID, label string, capacity int64) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: battery capacity must be positive", ErrInvalidAmount)
	}
	q.issues[IssueBattery] = true
	q.battery = &selection{VarietyID: varietyID, Label: label, Amount: pricing.BatteryEffectivePrice(capacity)}
	q.reconcileAdvance()
	return nil
}

// SelectCharger toggles the charger-port spare on. Charger spares have a
// single priced variety per device, so this behaves like a checkbox rather
// than a variety choice. Fails with pricing.ErrUnsupportedConnector when the
// device's connector has no price tier; the quote is left unchanged.
func (q *Quote) SelectCharger(varietyID, label string) error {
	base, err := pricing.ChargerPrice(q.device.ReleaseYear, q.connector, q.now())
	if err != nil {
		return err
	}
	if label == "" {
		label = "Charger port"
	}
	q.issues[IssueChargerPort] = true
	q.charger = &selection{VarietyID: varietyID, Label: label, Amount: base}
	q.reconcileAdvance()
	return nil
}

// Deselect clears the selection for the issue kind along with any dependent
// extra option. The coupling is bidirectional: removing the parent spare
// always removes the extra.
func (q *Quote) Deselect(kind IssueKind) error {
	switch kind {
	case IssueDisplay:
		q.display = nil
	case IssueBattery:
		q.battery = nil
		delete(q.extras, ExtraBatteryService)
	case IssueChargerPort:
		q.charger = nil
		delete(q.extras, ExtraCCBoard)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIssue, kind)
	}
	q.reconcileAdvance()
	return nil
}

// ToggleExtra switches an add-on charge on or off.
//
// Toggling the CC-board on auto-selects the charger-port spare when it is
// not yet selected, keeping the legacy checkbox coupling. The battery
// service charge cannot auto-select a battery because the aggregator has no
// candidate variety to pick; callers must select the battery first.
func (q *Quote) ToggleExtra(option ExtraOption, on bool) error {
	switch option {
	case ExtraCCBoard:
		if !on {
			delete(q.extras, ExtraCCBoard)
			q.reconcileAdvance()
			return nil
		}
		amount, err := pricing.CCBoardPrice(q.device.ReleaseYear, q.connector, q.now())
		if err != nil {
			return err
		}
		if q.charger == nil {
			if err := q.SelectCharger("", ""); err != nil {
				return err
			}
		}
		q.extras[ExtraCCBoard] = amount
		return nil
	case ExtraBatteryService:
		if !on {
			delete(q.extras, ExtraBatteryService)
			q.reconcileAdvance()
			return nil
		}
		if q.battery == nil {
			return ErrParentSpareRequired
		}
		q.extras[ExtraBatteryService] = pricing.BatteryServiceCharge()
		return nil
	}
	return fmt.Errorf("%w: unknown extra option %q", ErrUnknownIssue, option)
}

// ExtraEnabled reports whether the extra option is currently toggled on.
func (q *Quote) ExtraEnabled(option ExtraOption) bool {
	_, ok := q.extras[option]
	return ok
}

// AddOtherIssue appends a free-form priced line item and returns its id.
func (q *Quote) AddOtherIssue(name string, amount pricing.Money) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: issue name is required", ErrInvalidAmount)
	}
	if amount < 0 {
		return "", ErrInvalidAmount
	}
	id := q.newID()
	q.issues[IssueOther] = true
	q.others = append(q.others, otherIssue{ID: id, Name: name, Amount: amount})
	return id, nil
}

// RemoveOtherIssue deletes a free-form line item by id.
func (q *Quote) RemoveOtherIssue(id string) error {
	for i, item := range q.others {
		if item.ID == id {
			q.others = append(q.others[:i], q.others[i+1:]...)
			q.reconcileAdvance()
			return nil
		}
	}
	return ErrItemNotFound
}

// SetAdvance records the upfront payment. Rejected without mutation when
// negative or above the current total.
func (q *Quote) SetAdvance(amount pricing.Money) error {
	if amount < 0 || amount > q.Total() {
		return ErrInvalidAdvance
	}
	q.advance = amount
	return nil
}

// reconcileAdvance keeps the recorded advance within the current total. A
// total-reducing mutation (removal, deselection, cheaper re-selection) must
// not leave the advance above the total, so the surplus is dropped and the
// balance stays non-negative.
func (q *Quote) reconcileAdvance() {
	if total := q.Total(); q.advance > total {
		q.advance = total
	}
}

// Total recomputes the quote total from scratch. Line-item counts are
// single-digit, so there is nothing to gain from incremental maintenance.
func (q *Quote) Total() pricing.Money {
	var total pricing.Money
	if q.display != nil {
		total += q.display.Amount
	}
	if q.battery != nil {
		total += q.battery.Amount
		total += q.extras[ExtraBatteryService]
	}
	if q.charger != nil {
		total += q.charger.Amount
		total += q.extras[ExtraCCBoard]
	}
	for _, item := range q.others {
		total += item.Amount
	}
	return total
}

// Advance returns the recorded advance payment. The second return value is
// false when the quote has no total yet, in which case the advance is not
// applicable rather than numerically zero.
func (q *Quote) Advance() (pricing.Money, bool) {
	if q.Total() == 0 {
		return 0, false
	}
	return q.advance, true
}

// Balance derives the amount still due. Only defined once the total is
// positive; the bool reports applicability.
func (q *Quote) Balance() (pricing.Money, bool) {
	total := q.Total()
	if total == 0 {
		return 0, false
	}
	return total - q.advance, true
}

// CurrentState reports where the quote sits in the pricing lifecycle.
func (q *Quote) CurrentState() State {
	if q.display == nil && q.battery == nil && q.charger == nil && len(q.others) == 0 {
		return StateEmpty
	}
	for kind := range q.issues {
		if !q.issueResolved(kind) {
			return StatePartial
		}
	}
	return StateComplete
}

func (q *Quote) issueResolved(kind IssueKind) bool {
	switch kind {
	case IssueDisplay:
		return q.display != nil
	case IssueBattery:
		return q.battery != nil
	case IssueChargerPort:
		return q.charger != nil
	case IssueOther:
		return len(q.others) > 0
	}
	return false
}
