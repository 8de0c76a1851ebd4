package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadFailsWithoutExchanges(t *testing.T) {
	clearEnv(t, "ENGINE_EXCHANGES")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when ENGINE_EXCHANGES is unset")
	}
}

func TestLoadAppliesDefaultsForReplayExchange(t *testing.T) {
	clearEnv(t, "ENGINE_EXCHANGES", "BYBIT_LIVE", "BYBIT_REPLAY_SOURCE", "WARMUP_CANDLES", "EXECUTION_VARIANCE_HALF_LIFE", "EXECUTION_TREND_HALF_LIFE", "EXECUTION_ACCEL_HALF_LIFE")
	os.Setenv("ENGINE_EXCHANGES", "bybit")
	os.Setenv("BYBIT_REPLAY_SOURCE", "candles_2024")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Engine.Exchanges) != 1 || cfg.Engine.Exchanges[0].Name != "bybit" {
		t.Fatalf("unexpected exchanges: %+v", cfg.Engine.Exchanges)
	}
	if cfg.Engine.Exchanges[0].Live {
		t.Fatal("expected replay exchange to default to non-live")
	}
	if cfg.Engine.BeatInterval <= 0 {
		t.Fatal("expected a positive default beat interval")
	}
}

func TestLoadRejectsLiveExchangeWithoutCredentials(t *testing.T) {
	clearEnv(t, "ENGINE_EXCHANGES", "BYBIT_LIVE", "BYBIT_API_KEY", "BYBIT_SECRET")
	os.Setenv("ENGINE_EXCHANGES", "bybit")
	os.Setenv("BYBIT_LIVE", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for a live exchange missing credentials")
	}
}

func TestLoadRejectsWarmupShorterThanHalfLifeWindow(t *testing.T) {
	clearEnv(t, "ENGINE_EXCHANGES", "BYBIT_REPLAY_SOURCE", "WARMUP_CANDLES", "EXECUTION_VARIANCE_HALF_LIFE")
	os.Setenv("ENGINE_EXCHANGES", "bybit")
	os.Setenv("BYBIT_REPLAY_SOURCE", "candles_2024")
	os.Setenv("WARMUP_CANDLES", "10")
	os.Setenv("EXECUTION_VARIANCE_HALF_LIFE", "50")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when warmup window is shorter than 4x the longest half-life")
	}
}

func TestSplitCSVTrimsAndDropsEmpty(t *testing.T) {
	got := splitCSV(" bybit , , okx")
	want := []string{"bybit", "okx"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
