package parse

import (
	"testing"

	"paywatch/internal/extract"
)

func TestClassifyZelle(t *testing.T) {
	body := "You received $45.00 from John Doe via Zelle on February 3, 2024 1:14 PM."

	c, ok := Classify(body)
	if !ok {
		t.Fatal("expected a provider match")
	}
	if c.Provider != ProviderZelle {
		t.Fatalf("expected Zelle, got %s", c.Provider)
	}
	if c.Amount != "$45.00" || !c.HasAmount {
		t.Fatalf("expected $45.00, got %q (has=%v)", c.Amount, c.HasAmount)
	}
	if c.Sender != "John Doe" {
		t.Fatalf("expected John Doe, got %q", c.Sender)
	}
	if c.Timestamp.Kind != extract.TimestampParsed {
		t.Fatalf("expected parsed timestamp, got kind %d", c.Timestamp.Kind)
	}
}

func TestClassifyVenmo(t *testing.T) {
	body := "John Smith paid you $27.50 on February 4, 2024 9:32 AM."

	c, ok := Classify(body)
	if !ok {
		t.Fatal("expected a provider match")
	}
	if c.Provider != ProviderVenmo {
		t.Fatalf("expected Venmo, got %s", c.Provider)
	}
	if c.Amount != "$27.50" {
		t.Fatalf("expected $27.50, got %q", c.Amount)
	}
	if c.Sender != "John Smith" {
		t.Fatalf("expected John Smith, got %q", c.Sender)
	}
}

func TestZellePrecedesCatchAll(t *testing.T) {
	body := "Zelle payment alert: a payment transaction was completed."

	c, ok := Classify(body)
	if !ok {
		t.Fatal("expected a provider match")
	}
	if c.Provider != ProviderZelle {
		t.Fatalf("body with both Zelle and generic payment keywords must resolve to Zelle, got %s", c.Provider)
	}
}

func TestPartialExtractionNeverAborts(t *testing.T) {
	// Cash App keywords but no parsable dollar amount.
	body := "Cash App: Dana sent you money."

	c, ok := Classify(body)
	if !ok {
		t.Fatal("missing amount must not drop the message at parse stage")
	}
	if c.Provider != ProviderCashApp {
		t.Fatalf("expected Cash App, got %s", c.Provider)
	}
	if c.HasAmount {
		t.Fatalf("expected absent amount, got %q", c.Amount)
	}
	if c.Sender != "Dana" {
		t.Fatalf("expected Dana, got %q", c.Sender)
	}
	if c.Timestamp.Kind != extract.TimestampAbsent {
		t.Fatalf("expected absent timestamp, got kind %d", c.Timestamp.Kind)
	}
}

func TestClassifyAppleCash(t *testing.T) {
	body := "Apple Cash: you got $12.00 from Kim Lee on March 1, 2024 2:00 PM."

	c, ok := Classify(body)
	if !ok {
		t.Fatal("expected a provider match")
	}
	if c.Provider != ProviderAppleCash {
		t.Fatalf("expected Apple Cash, got %s", c.Provider)
	}
}

func TestCatchAllClaimsPaymentShapedMessages(t *testing.T) {
	body := "A wire transaction of $99.99 posted to your account."

	c, ok := Classify(body)
	if !ok {
		t.Fatal("expected the catch-all to claim the message")
	}
	if c.Provider != ProviderOther {
		t.Fatalf("expected Other, got %s", c.Provider)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	body := "Your package has shipped and will arrive Thursday."

	if _, ok := Classify(body); ok {
		t.Fatal("non-payment message must not be claimed")
	}
}

func TestMatchesIsCaseInsensitive(t *testing.T) {
	if !zelleParser.Matches("ZELLE notice") {
		t.Fatal("keyword match must be case-insensitive")
	}
	if zelleParser.Matches("nothing relevant") {
		t.Fatal("unexpected keyword match")
	}
}

func TestParseDeclinesWithoutKeywords(t *testing.T) {
	if _, ok := venmoParser.Parse("just an ordinary note"); ok {
		t.Fatal("parse must decline when the pre-filter fails")
	}
}
