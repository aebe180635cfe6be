package metrics

import "sort"

// DiagnosticCode identifies an input anomaly that was defaulted instead of
// failing the computation.
type DiagnosticCode string

const (
	DiagUnknownOrderStatus   DiagnosticCode = "unknown_order_status"
	DiagUnknownReturnStatus  DiagnosticCode = "unknown_return_status"
	DiagMissingOrderID       DiagnosticCode = "missing_order_id"
	DiagReturnExceedsOrdered DiagnosticCode = "return_exceeds_ordered"
	DiagUnparsableDate       DiagnosticCode = "unparsable_date"
	DiagMissingDate          DiagnosticCode = "missing_date"
)

// Diagnostic records a defaulted input for manual audit.
type Diagnostic struct {
	OrderID string         `json:"order_id"`
	Code    DiagnosticCode `json:"code"`
	Detail  string         `json:"detail"`
}

// Anomaly is an order group excluded from every sum because its data could
// not be interpreted.
type Anomaly struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func sortDiagnostics(d []Diagnostic) {
	sort.SliceStable(d, func(i, j int) bool {
		if d[i].OrderID != d[j].OrderID {
			return d[i].OrderID < d[j].OrderID
		}
		if d[i].Code != d[j].Code {
			return d[i].Code < d[j].Code
		}
		return d[i].Detail < d[j].Detail
	})
}

func sortAnomalies(a []Anomaly) {
	sort.SliceStable(a, func(i, j int) bool {
		if a[i].OrderID != a[j].OrderID {
			return a[i].OrderID < a[j].OrderID
		}
		return a[i].Reason < a[j].Reason
	})
}
