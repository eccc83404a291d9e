package config

import (
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if cfg.Port != "8081" || cfg.Location != time.UTC || cfg.PostedDatePolicy != "today" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.BackgroundSync || cfg.SyncTick != 5*time.Minute || cfg.BackgroundInterval != 30*time.Minute {
		t.Errorf("sync defaults = %v %v %v", cfg.BackgroundSync, cfg.SyncTick, cfg.BackgroundInterval)
	}
	if cfg.FetchTimeout != 90*time.Second || cfg.StaleRunAfter != 2*time.Hour {
		t.Errorf("timeouts = %v %v", cfg.FetchTimeout, cfg.StaleRunAfter)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:4200" {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"PORT":               "9000",
		"USER_KEYWORDS":      " cloud, cybersecurity ,,",
		"PREFERRED_STATES":   "TX,CA",
		"BACKGROUND_SYNC":    "false",
		"SYNC_TICK":          "1m",
		"POSTED_DATE_POLICY": "NONE",
	}))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if cfg.Port != "9000" || cfg.BackgroundSync || cfg.SyncTick != time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
	if strings.Join(cfg.UserKeywords, "|") != "cloud|cybersecurity" {
		t.Errorf("keywords = %q", cfg.UserKeywords)
	}
	if strings.Join(cfg.PreferredStates, "|") != "TX|CA" {
		t.Errorf("states = %q", cfg.PreferredStates)
	}
	if cfg.PostedDatePolicy != "none" {
		t.Errorf("policy = %q", cfg.PostedDatePolicy)
	}
}

func TestFromLookup_InvalidValuesJoined(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{
		"SYNC_TICK":          "soon",
		"BACKGROUND_SYNC":    "maybe",
		"TIMEZONE":           "Mars/Olympus",
		"POSTED_DATE_POLICY": "yesterday",
	}))
	if err == nil {
		t.Fatal("want error")
	}
	for _, key := range []string{"SYNC_TICK", "BACKGROUND_SYNC", "TIMEZONE", "POSTED_DATE_POLICY"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}
