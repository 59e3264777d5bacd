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

package core

import r2 "math/rand/v2"

// golden 為 splitmix64 的增量；seed 展開兩次得到 PCG 的 128-bit 狀態。
const golden = 0x9e3779b97f4a7c15

// PCG64 以標準庫 PCG 為狀態來源，bounded 取樣交給 math/rand/v2 的無偏實作。
//
// 狀態只存在 src；rnd 不持有額外狀態，所以 Snapshot/Restore 只需處理 src。
type PCG64 struct {
	src *r2.PCG
	rnd *r2.Rand
}

// newPCG64WithSeed 同一 seed 產生同一序列
func newPCG64WithSeed(seed int64) *PCG64 {
	x := uint64(seed) ^ golden
	src := r2.NewPCG(splitmix64(x), splitmix64(x^0xDA942042E4DD58B5))
	return &PCG64{src: src, rnd: r2.New(src)}
}

func (r *PCG64) Uint64() uint64 {
	return r.src.Uint64()
}

// UintN [0,n)；n == 0 回傳 0
func (r *PCG64) UintN(n uint) uint {
	if n == 0 {
		return 0
	}
	return uint(r.rnd.Uint64N(uint64(n)))
}

// IntN [0,n)；n <= 0 回傳 -1
func (r *PCG64) IntN(n int) int {
	if n <= 0 {
		return -1
	}
	return int(r.rnd.Uint64N(uint64(n)))
}

// Float64 [0,1)，53 bits 精度
func (r *PCG64) Float64() float64 {
	return r.rnd.Float64()
}

func (r *PCG64) Snapshot() ([]byte, error) {
	return r.src.MarshalBinary()
}

func (r *PCG64) Restore(data []byte) error {
	return r.src.UnmarshalBinary(data)
}

func splitmix64(x uint64) uint64 {
	x += golden
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
