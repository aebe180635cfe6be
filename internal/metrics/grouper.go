package metrics

import (
	"strings"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
)

// OrderGroup is the set of export lines sharing one order identifier.
//
// Order level attributes (status, return status, cancel reason, fees, shop
// voucher, total amount, dates, province) are taken from the first line only.
// The export replicates them on every line, they are not per-line values and
// must never be summed. Per-line attributes (prices, quantities, rebates) are
// read from every line.
type OrderGroup struct {
	ID    string
	Lines []domain.OrderLine
}

// Header returns the line carrying the order level attributes.
func (g OrderGroup) Header() domain.OrderLine {
	if len(g.Lines) == 0 {
		return domain.OrderLine{OrderID: g.ID}
	}
	return g.Lines[0]
}

// GroupOrders partitions lines by order identifier. Groups are returned in
// order of first appearance so iteration is reproducible. Identifiers are
// whitespace-trimmed; lines without one all land in the group keyed "".
func GroupOrders(lines []domain.OrderLine) []OrderGroup {
	index := make(map[string]int, len(lines))
	groups := make([]OrderGroup, 0, len(lines))

	for _, line := range lines {
		id := strings.TrimSpace(line.OrderID)
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, OrderGroup{ID: id})
		}
		groups[i].Lines = append(groups[i].Lines, line)
	}

	return groups
}
