// Package record derives the canonical form of a parsed payment: a
// deterministic fingerprint used for deduplication and the exact display
// message delivered to the notice channel.
package record

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paywatch/internal/extract"
	"paywatch/internal/parse"
)

// UnknownAmount is the printable sentinel for a payment whose body
// carried no parsable dollar amount.
const UnknownAmount = "Unknown Amount"

// UnknownTime is rendered when a body carried no timestamp at all.
const UnknownTime = "Unknown"

// DisplayTimeLayout renders parsed instants in the fixed UTC-8 offset.
const DisplayTimeLayout = "2006-01-02 03:04 PM"

// fingerprintSep joins the fingerprint components. It cannot occur in a
// provider name, an extracted sender, an amount, or a rendered time.
const fingerprintSep = "|"

// Payment is the canonical, deduplicated form of a candidate. Fields
// are fixed at build time; the persisted row adds only storage metadata.
type Payment struct {
	Fingerprint    string
	Provider       parse.Provider
	Sender         string
	Amount         string
	AmountValue    decimal.Decimal
	HasAmount      bool
	ReceivedAt     *time.Time
	ReceivedAtRaw  string
	DisplayMessage string
}

// Build computes the composite-key fingerprint
// (provider|sender|amount|time) and the display message for a candidate.
// The same candidate always yields the same fingerprint and message.
func Build(c parse.Candidate) Payment {
	amount := c.Amount
	if !c.HasAmount {
		amount = UnknownAmount
	}

	timeKey := RenderTimestamp(c.Timestamp)

	p := Payment{
		Fingerprint: strings.Join([]string{string(c.Provider), c.Sender, amount, timeKey}, fingerprintSep),
		Provider:    c.Provider,
		Sender:      c.Sender,
		Amount:      amount,
		HasAmount:   c.HasAmount,
	}

	if c.HasAmount {
		if v, err := extract.AmountValue(c.Amount); err == nil {
			p.AmountValue = v
		}
	}

	switch c.Timestamp.Kind {
	case extract.TimestampParsed:
		t := c.Timestamp.Time
		p.ReceivedAt = &t
	case extract.TimestampRaw:
		p.ReceivedAtRaw = c.Timestamp.Raw
	}

	p.DisplayMessage = renderDisplay(p.Provider, p.Sender, amount, timeKey)
	return p
}

// RenderTimestamp renders an extraction result for display and for the
// fingerprint time component: parsed instants in fixed UTC-8 civil
// time, unparsed text verbatim, absent as the Unknown token.
func RenderTimestamp(ts extract.Timestamp) string {
	switch ts.Kind {
	case extract.TimestampParsed:
		return ts.Time.In(extract.PacificFixed).Format(DisplayTimeLayout)
	case extract.TimestampRaw:
		return ts.Raw
	default:
		return UnknownTime
	}
}

func renderDisplay(provider parse.Provider, sender, amount, timeKey string) string {
	b := strings.Builder{}
	b.WriteString("*")
	b.WriteString(string(provider))
	b.WriteString(" Payment Received*\n")
	b.WriteString("From: ")
	b.WriteString(sender)
	b.WriteString("\n")
	b.WriteString("Amount: ")
	b.WriteString(amount)
	b.WriteString("\n")
	b.WriteString("Time: ")
	b.WriteString(timeKey)
	return b.String()
}
