// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package spec

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/catalog/configs"
	"github.com/zintix-labs/candyreels/errs"
)

func defaultRaw(t *testing.T) string {
	t.Helper()
	raw, err := fs.ReadFile(configs.FS, "candy_fortune_reels.yaml")
	if err != nil {
		t.Fatalf("read default config: %v", err)
	}
	return string(raw)
}

func mustLoad(t *testing.T, raw string) *GameSetting {
	t.Helper()
	gs, err := GetGameSettingByYAML([]byte(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return gs
}

func expectFatal(t *testing.T, raw string) {
	t.Helper()
	_, err := GetGameSettingByYAML([]byte(raw))
	if err == nil {
		t.Fatalf("expected config error")
	}
	e, ok := errs.AsErr(err)
	if !ok || e.ErrLv != errs.Fatal {
		t.Fatalf("config errors must be fatal, got %v", err)
	}
}

func TestDefaultConfigLoads(t *testing.T) {
	gs := mustLoad(t, defaultRaw(t))
	cat := gs.Catalog()
	if cat.Len() != 7 {
		t.Fatalf("expected 7 kinds, got %d", cat.Len())
	}
	jelly, ok := cat.Lookup("jelly")
	if !ok || jelly != 1 {
		t.Fatalf("jelly must be kind 1, got %d", jelly)
	}
	if !cat.BaseValueOf(jelly).Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("unexpected jelly base value %s", cat.BaseValueOf(jelly))
	}
	wild, _ := cat.Lookup("rainbow")
	if !cat.IsSpecial(wild).IsWild() || cat.IsSpecial(jelly).IsWild() {
		t.Fatalf("wild flag mismatch")
	}
	bomb, _ := cat.Lookup("bomb")
	if !cat.IsSpecial(bomb).IsRemovableOnly() {
		t.Fatalf("bomb must be removable only")
	}
	if len(cat.BonusKinds()) != 1 {
		t.Fatalf("expected one bonus kind")
	}
	w := cat.Weights(gs.FreeSpins.BonusWeight)
	bonus := cat.BonusKinds()[0]
	if w[bonus-1] != gs.FreeSpins.BonusWeight {
		t.Fatalf("bonus weight override not applied")
	}
	if cat.Weights(-1)[bonus-1] != cat.WeightOf(bonus) {
		t.Fatalf("negative bonus weight must keep catalog weight")
	}
}

func TestFreeSpinGrant(t *testing.T) {
	gs := mustLoad(t, defaultRaw(t))
	fsCfg := gs.FreeSpins
	cases := map[int]int{4: 0, 5: 10, 6: 11, 12: 17, 36: 30}
	for size, want := range cases {
		if got := fsCfg.Grant(size); got != want {
			t.Fatalf("grant(%d)=%d want %d", size, got, want)
		}
	}
}

func TestBetValidate(t *testing.T) {
	gs := mustLoad(t, defaultRaw(t))
	bad := []string{"0", "-1", "0.05", "100.01", "0.123"}
	for _, b := range bad {
		if err := gs.Bet.Validate(decimal.RequireFromString(b)); !errors.Is(err, errs.ErrInvalidBet) {
			t.Fatalf("bet %s must be rejected, got %v", b, err)
		}
	}
	for _, b := range []string{"0.1", "1", "2.5", "100"} {
		if err := gs.Bet.Validate(decimal.RequireFromString(b)); err != nil {
			t.Fatalf("bet %s must be accepted: %v", b, err)
		}
	}
	if got := gs.Bet.Money(decimal.RequireFromString("1.239")); got.String() != "1.23" {
		t.Fatalf("money must truncate, got %s", got)
	}
}

func TestStrictDecoding(t *testing.T) {
	expectFatal(t, defaultRaw(t)+"\nunknown_field: 1\n")
}

func TestInvalidSettings(t *testing.T) {
	raw := defaultRaw(t)
	cases := map[string][2]string{
		"first tier":        {"{ min_count: 5,  factor: 1 }", "{ min_count: 6,  factor: 1 }"},
		"decreasing factor": {"{ min_count: 7,  factor: 1.5 }", "{ min_count: 7,  factor: 0.5 }"},
		"wild pays":         {"weight: 3,  base_value: 0, wild: true", "weight: 3,  base_value: 1, wild: true"},
		"dup name":          {"name: gummy,", "name: jelly,"},
		"zero step":         {"step: 1", "step: 0"},
		"zero max":          {"max: 128", "max: 0"},
		"min size":          {"min_size: 5", "min_size: 0"},
		"trigger size":      {"trigger_size: 5", "trigger_size: 3"},
		"bet range":         {"min: 0.10", "min: 500"},
	}
	for name, c := range cases {
		if !strings.Contains(raw, c[0]) {
			t.Fatalf("%s: fixture text %q not found", name, c[0])
		}
		t.Run(name, func(t *testing.T) {
			expectFatal(t, strings.Replace(raw, c[0], c[1], 1))
		})
	}
}

func TestOutOfRangeSymbolPanics(t *testing.T) {
	gs := mustLoad(t, defaultRaw(t))
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for empty symbol")
		}
	}()
	gs.Catalog().WeightOf(Empty)
}
