package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"paywatch/internal/extract"
	"paywatch/internal/record"
	"paywatch/internal/storage"
)

// Show prints the most recently recorded payments.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	payments, err := store.ListRecentPayments(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		fmt.Fprintln(os.Stdout, "no payments recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Recorded (UTC)\tProvider\tSender\tAmount\tReceived")

	for _, p := range payments {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			p.CreatedAt.UTC().Format(time.RFC3339),
			p.Provider,
			p.Sender,
			p.Amount,
			sanitizeInline(receivedColumn(p)),
		)
	}

	writer.Flush()

	total, err := store.CountPayments(ctx)
	if err != nil {
		return err
	}
	if total > int64(len(payments)) {
		fmt.Fprintf(os.Stdout, "showing %d of %d recorded payments\n", len(payments), total)
	}
	return nil
}

func receivedColumn(p storage.PaymentRecord) string {
	switch {
	case p.ReceivedAt != nil:
		return p.ReceivedAt.In(extract.PacificFixed).Format(record.DisplayTimeLayout)
	case p.ReceivedAtRaw != nil:
		return *p.ReceivedAtRaw
	default:
		return record.UnknownTime
	}
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
