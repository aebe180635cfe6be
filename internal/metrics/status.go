package metrics

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// statusSet matches export status labels regardless of Unicode composition,
// letter case and surrounding whitespace. Spreadsheet tools sometimes save
// Vietnamese diacritics decomposed (NFD), which breaks byte equality.
type statusSet map[string]struct{}

func normalizeStatus(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return norm.NFC.String(cases.Fold().String(s))
}

func newStatusSet(labels ...[]string) statusSet {
	set := make(statusSet)
	for _, group := range labels {
		for _, label := range group {
			if key := normalizeStatus(label); key != "" {
				set[key] = struct{}{}
			}
		}
	}
	return set
}

func (s statusSet) contains(label string) bool {
	_, ok := s[normalizeStatus(label)]
	return ok
}

// statusVocabulary is the compiled form of the status lists in Config.
type statusVocabulary struct {
	cancelled      statusSet
	returnAccepted statusSet
	knownOrder     statusSet
	knownReturn    statusSet
}

func newStatusVocabulary(cfg Config) statusVocabulary {
	return statusVocabulary{
		cancelled:      newStatusSet(cfg.CancelledStatuses),
		returnAccepted: newStatusSet(cfg.ReturnAcceptedStatuses),
		knownOrder:     newStatusSet(cfg.KnownOrderStatuses, cfg.CancelledStatuses),
		knownReturn:    newStatusSet(cfg.KnownReturnStatuses, cfg.ReturnAcceptedStatuses),
	}
}

func (v statusVocabulary) isCancelled(status string) bool {
	return v.cancelled.contains(status)
}

func (v statusVocabulary) isReturnAccepted(status string) bool {
	return v.returnAccepted.contains(status)
}

func (v statusVocabulary) isKnownOrderStatus(status string) bool {
	return v.knownOrder.contains(status)
}

// isKnownReturnStatus treats a blank return status as known, it means no
// return was requested.
func (v statusVocabulary) isKnownReturnStatus(status string) bool {
	return normalizeStatus(status) == "" || v.knownReturn.contains(status)
}
