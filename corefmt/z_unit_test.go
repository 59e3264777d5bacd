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

package corefmt

import (
	"bytes"
	"testing"

	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/core"
)

func TestSnapshotTextRoundTrip(t *testing.T) {
	c := core.NewSeeded(5)
	c.Uint64()
	snap, err := c.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	back, err := DecodeBase64URL(EncodeBase64URL(snap))
	if err != nil || !bytes.Equal(back, snap) {
		t.Fatalf("round trip failed: %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeBase64URL("***")
	e, ok := errs.AsErr(err)
	if !ok || e.ErrLv != errs.Warn {
		t.Fatalf("expected warn level error, got %v", err)
	}
}
