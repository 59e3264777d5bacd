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

package catalog

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/candyreels/catalog/configs"
	"github.com/zintix-labs/candyreels/errs"
)

func TestRegisterAllEmbedded(t *testing.T) {
	c, err := New(configs.FS)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if err := c.RegisterAll(); err != nil {
		t.Fatalf("register all: %v", err)
	}
	c.Freeze()
	e, ok := c.GetByName(" Candy_Fortune_Reels ")
	if !ok || e.GID != 1001 {
		t.Fatalf("unexpected entry: %+v", e)
	}
	gs, err := c.GameSettingByID(1001)
	if err != nil {
		t.Fatalf("setting: %v", err)
	}
	again, _ := c.GameSettingByName("candy_fortune_reels")
	if gs != again {
		t.Fatalf("settings must be parsed once and shared")
	}
	sums, err := c.Summaries()
	if err != nil || len(sums) != 1 {
		t.Fatalf("summaries: %v %+v", err, sums)
	}
	if sums[0].Rows != 6 || sums[0].Cols != 6 || sums[0].MinBet != "0.1" {
		t.Fatalf("unexpected summary: %+v", sums[0])
	}
	if err := c.RegisterAll(); err == nil {
		t.Fatalf("frozen catalog must reject registration")
	}
}

func TestUnknownGame(t *testing.T) {
	c, _ := New(configs.FS)
	_ = c.RegisterAll()
	if _, err := c.GameSettingByID(42); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMultiFSRules(t *testing.T) {
	raw, err := fs.ReadFile(configs.FS, "candy_fortune_reels.yaml")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	nested := fstest.MapFS{"sub/a.yaml": {Data: raw}}
	if _, err := New(nested); err == nil {
		t.Fatalf("nested config dir must be rejected")
	}
	a := fstest.MapFS{"game.yaml": {Data: raw}}
	b := fstest.MapFS{"game.yaml": {Data: raw}}
	if _, err := New(a, b); err == nil {
		t.Fatalf("duplicate file name across sources must be rejected")
	}
	dup := fstest.MapFS{"a.yaml": {Data: raw}, "b.yaml": {Data: raw}, "notes.txt": {Data: []byte("x")}}
	c, err := New(dup)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.RegisterAll(); !errors.Is(err, ErrDupID) {
		t.Fatalf("duplicate game id must be rejected, got %v", err)
	}
	if len(c.IDs()) != 0 {
		t.Fatalf("failed registration must not leave partial entries")
	}
}
