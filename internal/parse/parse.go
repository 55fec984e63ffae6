// Package parse classifies free-form payment-notification bodies into
// provider-tagged candidates. Each provider is a keyword policy over the
// shared field extractors; the dispatcher tries providers in a fixed
// precedence order and the first match wins.
package parse

import (
	"strings"

	"paywatch/internal/extract"
)

// Provider identifies the peer-payment service that produced a message.
type Provider string

const (
	ProviderZelle     Provider = "Zelle"
	ProviderVenmo     Provider = "Venmo"
	ProviderCashApp   Provider = "Cash App"
	ProviderAppleCash Provider = "Apple Cash"
	// ProviderOther is the catch-all for payment-shaped messages not
	// claimed by a named provider.
	ProviderOther Provider = "Other"
)

// Candidate is a provisionally-parsed payment, immutable once built.
// Amount is the display string ("$45.00") and may be empty when no
// amount was found; Sender always carries a printable value.
type Candidate struct {
	Provider  Provider
	Amount    string
	HasAmount bool
	Sender    string
	Timestamp extract.Timestamp
}

// Parser is the two-step provider contract: a cheap keyword pre-filter
// followed by full field extraction.
type Parser struct {
	provider Provider
	keywords []string
}

// Canonical keyword list per provider. Keyword sets still overlap with
// the catch-all on purpose; precedence in Classify resolves the
// overlap. A generic cue lives in a named provider's list only when an
// earlier provider cannot steal a later provider's messages with it.
var (
	zelleParser = Parser{
		provider: ProviderZelle,
		keywords: []string{"zelle", "received money", "you received"},
	}
	venmoParser = Parser{
		provider: ProviderVenmo,
		keywords: []string{"venmo", "paid you", "money from"},
	}
	cashAppParser = Parser{
		provider: ProviderCashApp,
		keywords: []string{"cash app", "cashapp", "sent you money"},
	}
	appleCashParser = Parser{
		provider: ProviderAppleCash,
		keywords: []string{"apple cash", "apple pay", "apple payment"},
	}
	otherParser = Parser{
		provider: ProviderOther,
		keywords: []string{"payment", "paid you", "sent you", "you received", "received money", "money from", "transaction"},
	}
)

// Order is load-bearing: a body mentioning both Zelle and generic
// payment language must resolve to Zelle, not Other.
var parsers = []Parser{zelleParser, venmoParser, cashAppParser, appleCashParser, otherParser}

// Provider reports which provider this parser claims messages for.
func (p Parser) Provider() Provider {
	return p.provider
}

// Matches is a case-insensitive substring test against the provider's
// keyword list. It is a pre-filter, not a guarantee of field extraction.
func (p Parser) Matches(body string) bool {
	lower := strings.ToLower(body)
	for _, kw := range p.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Parse runs the shared extractors against a matching body. Missing
// fields never abort the match once the keyword pre-filter has passed;
// they yield sentinel or absent values instead.
func (p Parser) Parse(body string) (Candidate, bool) {
	if !p.Matches(body) {
		return Candidate{}, false
	}

	amount, hasAmount := extract.Amount(body)

	return Candidate{
		Provider:  p.provider,
		Amount:    amount,
		HasAmount: hasAmount,
		Sender:    extract.Sender(body),
		Timestamp: extract.ExtractTimestamp(body),
	}, true
}

// Classify dispatches a body through the providers in precedence order
// and returns the first candidate. At most one provider claims a body;
// a body claimed by none is not a payment notification.
func Classify(body string) (Candidate, bool) {
	for _, p := range parsers {
		if candidate, ok := p.Parse(body); ok {
			return candidate, true
		}
	}
	return Candidate{}, false
}
