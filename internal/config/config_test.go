package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, "app:\n  name: paywatch\n"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Poller.Interval != 30*time.Second {
		t.Errorf("expected default 30s poll interval, got %s", cfg.Poller.Interval)
	}
	if cfg.Poller.LookbackDays != 1 {
		t.Errorf("expected 1 lookback day, got %d", cfg.Poller.LookbackDays)
	}
	if !cfg.QuietHours.Enabled || cfg.QuietHours.Start != "00:00" || cfg.QuietHours.End != "09:00" {
		t.Errorf("unexpected quiet hours defaults: %+v", cfg.QuietHours)
	}
	if cfg.QuietHours.RecheckInterval != time.Minute {
		t.Errorf("expected 60s quiet re-check, got %s", cfg.QuietHours.RecheckInterval)
	}
	if cfg.Slack.Enabled {
		t.Error("slack must be disabled by default")
	}
	if cfg.Slack.APIBase != "https://slack.com/api" {
		t.Errorf("unexpected slack api base %q", cfg.Slack.APIBase)
	}
	if cfg.Inbox.PageSize != 10 {
		t.Errorf("expected inbox page size 10, got %d", cfg.Inbox.PageSize)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
poller:
  interval: 45s
quiet_hours:
  enabled: false
slack:
  enabled: true
  api_token: xoxb-test
  channel_id: C12345
database:
  dsn: postgres://local/paywatch
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Poller.Interval != 45*time.Second {
		t.Errorf("expected 45s interval, got %s", cfg.Poller.Interval)
	}
	if cfg.QuietHours.Enabled {
		t.Error("expected quiet hours disabled")
	}
	if !cfg.Slack.Enabled || cfg.Slack.APIToken != "xoxb-test" {
		t.Errorf("unexpected slack config: %+v", cfg.Slack)
	}
	if cfg.Database.DSN != "postgres://local/paywatch" {
		t.Errorf("unexpected dsn %q", cfg.Database.DSN)
	}
}

func TestValidateRejectsSlackWithoutToken(t *testing.T) {
	path := writeConfigFile(t, `
slack:
  enabled: true
  channel_id: C12345
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for enabled slack without api_token")
	}
}

func TestValidateRejectsBadQuietClock(t *testing.T) {
	path := writeConfigFile(t, `
quiet_hours:
  enabled: true
  start: "25:99"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid quiet_hours.start")
	}
}

func TestValidateRejectsNonpositiveInterval(t *testing.T) {
	path := writeConfigFile(t, `
poller:
  interval: 0s
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for zero poll interval")
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"9am", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}

	if got := cfg.ResolveMaxPoints(0); got != 500 {
		t.Errorf("expected config default 500, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(25); got != 25 {
		t.Errorf("expected override 25, got %d", got)
	}
}
