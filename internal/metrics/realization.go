package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
)

// Outcome is the classification of one order group.
type Outcome string

const (
	OutcomeRealized  Outcome = "realized"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeReturned  Outcome = "returned"
	OutcomeAnomalous Outcome = "anomalous"
)

// Realization is the verdict on an order group plus its order level
// quantities.
type Realization struct {
	Outcome          Outcome         `json:"outcome"`
	TotalQuantity    int             `json:"total_quantity"`
	ReturnedQuantity int             `json:"returned_quantity"`
	KeptQuantity     int             `json:"kept_quantity"`
	RetentionRatio   decimal.Decimal `json:"retention_ratio"`
	Reason           string          `json:"reason,omitempty"`
}

// Realized reports whether the order counts toward revenue.
func (r Realization) Realized() bool {
	return r.Outcome == OutcomeRealized
}

// RealizationClassifier decides which order groups count toward revenue.
//
// Returns are judged at order level: an accepted return request excludes the
// whole order even when no line carries a returned quantity, so a multi-item
// order is never partially credited.
type RealizationClassifier struct {
	vocab               statusVocabulary
	countPartialReturns bool
}

// NewRealizationClassifier compiles the status vocabulary of cfg.
func NewRealizationClassifier(cfg Config) *RealizationClassifier {
	return &RealizationClassifier{
		vocab:               newStatusVocabulary(cfg),
		countPartialReturns: cfg.CountPartialReturns,
	}
}

// Classify returns the realization of g and the diagnostics raised while
// reading it. It never fails; malformed groups come back as anomalous.
func (c *RealizationClassifier) Classify(g OrderGroup) (Realization, []Diagnostic) {
	var diags []Diagnostic
	header := g.Header()

	if g.ID == "" {
		diags = append(diags, Diagnostic{Code: DiagMissingOrderID, Detail: fmt.Sprintf("%d line(s) without order id", len(g.Lines))})
	}

	r := Realization{}
	var problems []string
	for _, line := range g.Lines {
		switch {
		case line.Quantity < 0 || line.ReturnQuantity < 0:
			problems = append(problems, fmt.Sprintf("%s: negative quantity (%d ordered, %d returned)", lineLabel(line), line.Quantity, line.ReturnQuantity))
		case line.OriginalPrice.IsNegative():
			problems = append(problems, fmt.Sprintf("%s: negative original price %s", lineLabel(line), line.OriginalPrice))
		case line.ReturnQuantity > line.Quantity:
			diags = append(diags, Diagnostic{
				OrderID: g.ID,
				Code:    DiagReturnExceedsOrdered,
				Detail:  fmt.Sprintf("%s: %d returned of %d ordered", lineLabel(line), line.ReturnQuantity, line.Quantity),
			})
		}
		r.TotalQuantity += line.Quantity
		r.ReturnedQuantity += line.ReturnQuantity
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return Realization{Outcome: OutcomeAnomalous, Reason: strings.Join(problems, "; ")}, diags
	}

	r.KeptQuantity = max(r.TotalQuantity-r.ReturnedQuantity, 0)
	r.RetentionRatio = ratio(decimal.NewFromInt(int64(r.KeptQuantity)), decimal.NewFromInt(int64(r.TotalQuantity)))

	if !c.vocab.isKnownOrderStatus(header.OrderStatus) {
		diags = append(diags, Diagnostic{OrderID: g.ID, Code: DiagUnknownOrderStatus, Detail: header.OrderStatus})
	}
	if !c.vocab.isKnownReturnStatus(header.ReturnStatus) {
		diags = append(diags, Diagnostic{OrderID: g.ID, Code: DiagUnknownReturnStatus, Detail: header.ReturnStatus})
	}

	switch {
	case c.vocab.isCancelled(header.OrderStatus):
		r.Outcome = OutcomeCancelled
		r.Reason = header.CancelReason
	case c.vocab.isReturnAccepted(header.ReturnStatus):
		r.Outcome = OutcomeReturned
		r.Reason = header.ReturnStatus
	case r.ReturnedQuantity > 0 && (!c.countPartialReturns || r.KeptQuantity == 0):
		r.Outcome = OutcomeReturned
		r.Reason = header.ReturnStatus
	default:
		r.Outcome = OutcomeRealized
	}

	return r, diags
}

// lineLabel names a line by content so messages do not depend on line order.
func lineLabel(line domain.OrderLine) string {
	if strings.TrimSpace(line.SKU) == "" {
		return "line without SKU"
	}
	return fmt.Sprintf("SKU %q", line.SKU)
}
