// Package chat answers user turns: it picks a grounding strategy, gathers and
// assembles context, streams the completion and records the exchange.
package chat

import "strings"

// Strategy is the grounding approach used for a turn.
type Strategy int

const (
	// Plain answers from the conversation alone.
	Plain Strategy = iota
	// StoreFiltered grounds on documents attached to the user's thread.
	StoreFiltered
	// DocumentScoped grounds on shared documents, optionally limited to a domain.
	DocumentScoped
	// DomainFAQ grounds on the FAQ documents of one configured domain.
	DomainFAQ
	// WebAugmented grounds on live web search results.
	WebAugmented
)

// String returns the name used in configuration and metrics.
func (s Strategy) String() string {
	switch s {
	case StoreFiltered:
		return "data"
	case DocumentScoped:
		return "doc"
	case DomainFAQ:
		return "gpts"
	case WebAugmented:
		return "web"
	default:
		return "plain"
	}
}

// Route maps a client mode to a strategy. Unknown and empty modes get Plain.
func Route(mode string) Strategy {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "data", "mssql":
		return StoreFiltered
	case "doc":
		return DocumentScoped
	case "gpts":
		return DomainFAQ
	case "web":
		return WebAugmented
	default:
		return Plain
	}
}
