package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"paywatch/internal/storage"
)

// Export renders payment history as CSV and/or a PNG daily-volume chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.AddDate(0, 0, -30)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	if opts.CSVPath != "" {
		payments, err := store.ListPaymentsBetween(ctx, from, to)
		if err != nil {
			return err
		}
		if len(payments) > opts.MaxPoints {
			payments = payments[len(payments)-opts.MaxPoints:]
		}
		a.Logger.Info().Int("payments", len(payments)).Msg("exporting payment history")
		if err := writePaymentsCSV(opts.CSVPath, payments); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		volumes, err := store.DailyVolumes(ctx, from, to)
		if err != nil {
			return err
		}
		if len(volumes) == 0 {
			a.Logger.Info().Msg("no payments found for chart window")
			return nil
		}
		if err := writeVolumesPNG(opts.PNGPath, volumes); err != nil {
			return err
		}
	}

	return nil
}

func writePaymentsCSV(path string, payments []storage.PaymentRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"recorded_at", "provider", "sender", "amount", "received_at", "fingerprint"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range payments {
		received := ""
		switch {
		case p.ReceivedAt != nil:
			received = p.ReceivedAt.UTC().Format(time.RFC3339)
		case p.ReceivedAtRaw != nil:
			received = *p.ReceivedAtRaw
		}

		row := []string{
			p.CreatedAt.UTC().Format(time.RFC3339),
			string(p.Provider),
			p.Sender,
			p.Amount,
			received,
			p.Fingerprint,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func writeVolumesPNG(path string, volumes []storage.DailyVolume) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	xs := make([]time.Time, 0, len(volumes))
	ys := make([]float64, 0, len(volumes))
	for _, vol := range volumes {
		xs = append(xs, vol.Day)
		total, _ := vol.Total.Float64()
		ys = append(ys, total)
	}

	graph := chart.Chart{
		Title: "Daily payment volume (USD)",
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "total",
				XValues: xs,
				YValues: ys,
			},
		},
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
