package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if got := cfg.ChannelNames(); len(got) != 2 || got[0] != "amazon" || got[1] != "mercari" {
		t.Fatalf("channels: %v", got)
	}
	if cfg.Location().String() != "Asia/Tokyo" {
		t.Fatalf("timezone: %s", cfg.Location())
	}

	amazon, err := cfg.Channel(" Amazon ")
	if err != nil {
		t.Fatalf("channel lookup: %v", err)
	}
	if amazon.Name != "amazon" || amazon.DataStartRow != 3 || len(amazon.Columns.SalePrice) != 2 {
		t.Fatalf("amazon: %+v", amazon)
	}
	for _, r := range amazon.Rules {
		if r.Match != MatchModeExact {
			t.Fatalf("rule %q should default to exact, got %q", r.Label, r.Match)
		}
	}

	mercari, _ := cfg.Channel("mercari")
	if mercari.DefaultAction != RuleActionAllocateFuzzyQuantity || !mercari.ExcludeWhenSkuMissing {
		t.Fatalf("mercari: %+v", mercari)
	}
	if cfg.FbaInventory.Result != "V" || cfg.FbaInventory.Message != "W" {
		t.Fatalf("fba layout: %+v", cfg.FbaInventory)
	}
}

func TestChannelUnknown(t *testing.T) {
	cfg, _ := DefaultConfig()
	if _, err := cfg.Channel("rakuten"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestMatchRulePrefersExact(t *testing.T) {
	ch := ChannelConfig{Rules: []ClassificationRule{
		{Label: "キャンセル", Match: MatchModeContains, Action: RuleActionCancelGroup},
		{Label: "キャンセル料", Match: MatchModeExact, Action: RuleActionExclude},
	}}
	r, ok := ch.MatchRule(" キャンセル料 ")
	if !ok || r.Action != RuleActionExclude {
		t.Fatalf("exact rule should win: %+v ok=%v", r, ok)
	}
	r, ok = ch.MatchRule("注文キャンセル")
	if !ok || r.Action != RuleActionCancelGroup {
		t.Fatalf("contains rule: %+v ok=%v", r, ok)
	}
	if _, ok := ch.MatchRule("注文"); ok {
		t.Fatalf("no rule should match")
	}
}

const minimalYAML = `
ledger:
  sheet: ledger
  columns:
    sku: "A"
    received: "B"
    on_sale: "C"
    sold_or_disposed: "D"
channels:
  shop:
    sheet: ${SHOP_SHEET}
    columns:
      status: "A"
      ledger_refs: "B"
      processed_date: "C"
      type: "D"
      sku: "E"
    rules:
      - label: order
        action: allocate
    labels:
      allocated: done
      excluded: skip
      refunded: refund
      cross_reference: ref
`

func TestParseConfigExpandsEnv(t *testing.T) {
	t.Setenv("SHOP_SHEET", "Shop Sales")
	cfg, err := ParseConfig([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	shop, _ := cfg.Channel("shop")
	if shop.Sheet != "Shop Sales" {
		t.Fatalf("sheet=%q", shop.Sheet)
	}
	if cfg.Ledger.DataStartRow != 3 || cfg.DateFormat != "2006/01/02" {
		t.Fatalf("defaults not applied: %+v", cfg.Ledger)
	}
	if len(shop.QuantityUnits) == 0 {
		t.Fatalf("quantity units default missing")
	}
}

func TestParseConfigValidation(t *testing.T) {
	t.Setenv("SHOP_SHEET", "Shop")
	cases := map[string]string{
		"bad column":     strings.Replace(minimalYAML, `sku: "E"`, `sku: "e5"`, 1),
		"bad action":     strings.Replace(minimalYAML, "action: allocate", "action: teleport", 1),
		"missing labels": strings.Replace(minimalYAML, "      allocated: done\n", "", 1),
		"duplicate rule": strings.Replace(minimalYAML, "        action: allocate\n", "        action: allocate\n      - label: order\n        action: exclude\n", 1),
		"no channels":    strings.SplitN(minimalYAML, "channels:", 2)[0],
	}
	for name, doc := range cases {
		_, err := ParseConfig([]byte(doc))
		if err == nil {
			t.Fatalf("%s: expected an error", name)
		}
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
	}
}

func TestParseConfigTimezone(t *testing.T) {
	t.Setenv("SHOP_SHEET", "Shop")
	t.Setenv("RECON_TIMEZONE", "Nowhere/Never")
	if _, err := ParseConfig([]byte(minimalYAML)); err == nil {
		t.Fatalf("invalid timezone should fail validation")
	}
	t.Setenv("RECON_TIMEZONE", "UTC")
	cfg, err := ParseConfig([]byte(minimalYAML))
	if err != nil || cfg.Location().String() != "UTC" {
		t.Fatalf("timezone override: cfg=%v err=%v", cfg, err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("SHOP_SHEET", "Shop")
	path := filepath.Join(t.TempDir(), "channels.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := cfg.Channel("shop"); err != nil {
		t.Fatalf("shop: %v", err)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file should fail")
	}
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("RECON_REQUIRE_RUN_LOCK", "TRUE")
	t.Setenv("RECON_PUBLISH_SUMMARY", "")
	if !RequireRunLock() || PublishRunSummary() {
		t.Fatalf("flags: lock=%v publish=%v", RequireRunLock(), PublishRunSummary())
	}
}
