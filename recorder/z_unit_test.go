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

package recorder

import (
	"math"
	"testing"

	"github.com/zintix-labs/candyreels/stats"
)

func TestRecordCascade(t *testing.T) {
	r, err := NewSpinRecorder("candy", 1, 100, 0)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	r.Record(Spin{Bet: 100, Win: 0, Tumbles: 0})
	r.Record(Spin{Bet: 100, Win: 250, BaseWin: 250, Tumbles: 3, PeakMult: 4})
	r.Record(Spin{Bet: 100, Win: 40, BaseWin: 40, Tumbles: 14, PeakMult: 9})

	rep := r.Done()
	rep.Done()
	c := rep.Cascade
	if c.Tumbles != 17 || c.MaxTumbles != 14 || c.PeakMult != 9 {
		t.Fatalf("unexpected cascade totals %+v", c)
	}
	if c.TumbleCollect[0] != 1 || c.TumbleCollect[3] != 1 || c.TumbleCollect[stats.TumbleBuckets] != 1 {
		t.Fatalf("unexpected tumble distribution %v", c.TumbleCollect)
	}
	if math.Abs(c.AvgPeakMult-14.0/3.0) > 1e-12 {
		t.Fatalf("avg peak mult %.6f", c.AvgPeakMult)
	}
	if len(c.TumbleDist) != stats.TumbleBuckets+1 {
		t.Fatalf("tumble dist not filled")
	}
}

func TestMergeKeepsCascade(t *testing.T) {
	a, _ := NewSpinRecorder("candy", 1, 100, 0)
	b, _ := NewSpinRecorder("candy", 1, 100, 0)
	a.Record(Spin{Bet: 100, Tumbles: 1, PeakMult: 2})
	b.Record(Spin{Bet: 100, Tumbles: 2, PeakMult: 5})
	b.Record(Spin{Bet: 100})

	m, err := MergeSpinRecorder([]*SpinRecorder{a, b})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if m.Basic.Rounds != 3 || m.Cascade.Tumbles != 3 || m.Cascade.PeakMult != 5 || m.Cascade.PeakMultSum != 8 {
		t.Fatalf("unexpected merge %+v %+v", m.Basic, m.Cascade)
	}

	c, _ := NewSpinRecorder("other", 2, 100, 0)
	if _, err := MergeSpinRecorder([]*SpinRecorder{a, c}); err == nil {
		t.Fatalf("merging different games must fail")
	}
}

func TestPlayerLeavesOnBustOrCashout(t *testing.T) {
	r, _ := NewSpinRecorder("candy", 1, 100, 2)
	if leave := r.RecordWithPlayer(Spin{Bet: 100, Win: 0}); leave {
		t.Fatalf("one bet left, player must stay")
	}
	if leave := r.RecordWithPlayer(Spin{Bet: 100, Win: 0}); !leave || !r.Player.Bust {
		t.Fatalf("player must bust at zero balance")
	}

	w, _ := NewSpinRecorder("candy", 1, 100, 2)
	if leave := w.RecordWithPlayer(Spin{Bet: 100, Win: 500, BaseWin: 500}); !leave || !w.Player.Cashout {
		t.Fatalf("player must cash out at 3x, balance %d", w.Player.Balance)
	}
}
