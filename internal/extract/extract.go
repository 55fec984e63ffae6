// Package extract provides the regex field extractors shared by every
// provider parser: currency amount, sender name, and long-form timestamp.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownSender is the sentinel used when no sender cue matches. The
// record always carries a printable sender, never an empty string.
const UnknownSender = "Unknown Sender"

// TimestampLayout is the long-form date-time found in provider emails,
// e.g. "February 3, 2024 1:14 PM".
const TimestampLayout = "January 2, 2006 3:04 PM"

// PacificFixed is the fixed UTC-8 offset used for all civil-time
// rendering. No daylight-saving adjustment.
var PacificFixed = time.FixedZone("UTC-8", -8*60*60)

var (
	amountPattern = regexp.MustCompile(`\$([0-9][0-9,]*\.[0-9]{2})`)

	// Cue phrase precedes the name: "payment from John Doe". The
	// optional colon keeps rendered "From: X" lines re-extractable.
	senderAfterCue = regexp.MustCompile(`(?i)(?:payment from|money from|received from|from|sender):?\s+([A-Za-z][A-Za-z .'-]*)`)

	// Name precedes the cue phrase: "John Smith paid you".
	senderBeforeCue = regexp.MustCompile(`(?i)([A-Za-z][A-Za-z .'-]*[A-Za-z.])\s+(?:sent you|paid you)`)

	timestampPattern = regexp.MustCompile(`(?i)([A-Za-z]+\s+[0-9]{1,2},\s+[0-9]{4}\s+[0-9]{1,2}:[0-9]{2}(?:\s*(?:AM|PM))?)`)
)

// Captured names run greedily over letters and spaces, so connective
// words following the real name must be cut off afterwards. RE2 has no
// lookahead to stop the capture at the boundary itself.
var nameStopWords = map[string]struct{}{
	"via": {}, "on": {}, "at": {}, "to": {}, "through": {}, "using": {}, "for": {},
}

// Amount returns the first dollar amount in document order with the
// leading $ re-attached, e.g. "$1,234.56". ok is false when the body
// carries no parsable amount.
func Amount(body string) (value string, ok bool) {
	m := amountPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return "$" + m[1], true
}

// AmountValue converts an extracted amount string into a decimal for
// arithmetic. The leading $ and thousands separators are stripped.
func AmountValue(amount string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimPrefix(amount, "$"), ",", "")
	return decimal.NewFromString(cleaned)
}

// Sender extracts the counterparty name from a natural-language cue
// phrase. Bodies phrase the name either after the cue ("from John Doe")
// or before it ("John Smith paid you"); whichever form matches earliest
// in the body wins. No match yields the UnknownSender sentinel.
func Sender(body string) string {
	type hit struct {
		start int
		name  string
	}
	var hits []hit

	if loc := senderBeforeCue.FindStringSubmatchIndex(body); loc != nil {
		hits = append(hits, hit{start: loc[0], name: body[loc[2]:loc[3]]})
	}
	if loc := senderAfterCue.FindStringSubmatchIndex(body); loc != nil {
		hits = append(hits, hit{start: loc[0], name: body[loc[2]:loc[3]]})
	}

	best := hit{start: -1}
	for _, h := range hits {
		if best.start < 0 || h.start < best.start {
			best = h
		}
	}
	if best.start < 0 {
		return UnknownSender
	}

	name := trimName(best.name)
	if name == "" {
		return UnknownSender
	}
	return name
}

func trimName(raw string) string {
	words := strings.Fields(raw)
	kept := words[:0]
	for _, w := range words {
		if _, stop := nameStopWords[strings.ToLower(w)]; stop {
			break
		}
		kept = append(kept, w)
	}
	return strings.Trim(strings.Join(kept, " "), " .")
}

// TimestampKind discriminates the three outcomes of timestamp extraction.
type TimestampKind int

const (
	// TimestampAbsent means no timestamp text was found in the body.
	TimestampAbsent TimestampKind = iota
	// TimestampParsed means the text parsed into an absolute instant.
	TimestampParsed
	// TimestampRaw means timestamp text was found but did not parse;
	// the raw text is preserved rather than dropped.
	TimestampRaw
)

// Timestamp is the explicit result of timestamp extraction. Callers
// choose sentinels on purpose instead of inheriting a silent default.
type Timestamp struct {
	Kind TimestampKind
	Time time.Time
	Raw  string
}

// ExtractTimestamp finds a long-form date-time and attempts to parse it
// in the fixed UTC-8 zone. Format mismatch keeps the matched text raw.
func ExtractTimestamp(body string) Timestamp {
	m := timestampPattern.FindStringSubmatch(body)
	if m == nil {
		return Timestamp{Kind: TimestampAbsent}
	}

	raw := normalizeSpaces(m[1])
	t, err := time.ParseInLocation(TimestampLayout, normalizeMeridiem(raw), PacificFixed)
	if err != nil {
		return Timestamp{Kind: TimestampRaw, Raw: raw}
	}
	return Timestamp{Kind: TimestampParsed, Time: t, Raw: raw}
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeMeridiem(s string) string {
	if len(s) < 2 {
		return s
	}
	suffix := s[len(s)-2:]
	if strings.EqualFold(suffix, "AM") || strings.EqualFold(suffix, "PM") {
		return s[:len(s)-2] + strings.ToUpper(suffix)
	}
	return s
}
