package stats

import (
	"sort"
	"sync"
)

const (
	maxLutMult int = 2000
	maxMult    int = 10000
	maxLutSize int = 1 << 22 // LUT 上限（約 4M 格），超過改用二分搜尋
)

// WinBuckets
//
// 用來快速定位得分 ->  DistRecord 位置
//
// 請勿修改預設值
//   - win區間: 贏倍區間 [0,0], (0,1), [1,2), [2,5), ..., [2000,10000), [10000, +inf)
type WinBuckets struct {
	mu           sync.Mutex
	winBucket    []int
	winBucketStr []string
	winBucketMap map[int]*WinBucket
}

type WinBucket struct {
	maxCheckWin      int
	lutMaxWin        int
	winBucketByScore []int
	winBucketLUT     []int // 押注單位太大時為 nil
	justOverIdx      int
	maxIdx           int
}

// Buckets
//
// 用來快速定位得分 ->  DistRecord 位置
//
// 請勿修改預設值
//   - win區間: 贏倍區間 [0,0], (0,1), [1,2), [2,5), ..., [2000,10000), [10000, +inf)
var Buckets *WinBuckets = &WinBuckets{
	winBucket:    []int{0, 1, 2, 5, 10, 20, 50, 100, 300, 500, 1000, 2000, 10000},
	winBucketStr: []string{"[0,0]", "(0,1)", "[1,2)", "[2,5)", "[5,10)", "[10,20)", "[20,50)", "[50,100)", "[100,300)", "[300,500)", "[500,1000)", "[1000,2000)", "[2000,10000)", "[10000,+inf)"},
	winBucketMap: make(map[int]*WinBucket),
}

func (b *WinBuckets) WinBucketStr() []string {
	return b.winBucketStr
}

// GetBucketByBetUnit 取得（或建立）押注單位 bu 的分桶器；可併發呼叫。
func (b *WinBuckets) GetBucketByBetUnit(bu int) *WinBucket {
	b.mu.Lock()
	defer b.mu.Unlock()
	result, exist := b.winBucketMap[bu]
	if !exist {
		result = b.buildBucket(bu)
		b.winBucketMap[bu] = result
	}
	return result
}

func (b *WinBuckets) buildBucket(bu int) *WinBucket {
	// 把「倍數邊界」轉成「贏分邊界」
	winGp := make([]int, len(b.winBucket))
	for i, v := range b.winBucket {
		winGp[i] = bu * v
	}
	result := &WinBucket{
		maxCheckWin:      bu * maxMult,
		winBucketByScore: winGp,
		justOverIdx:      len(winGp) - 1,
		maxIdx:           len(winGp),
	}

	// 我們只建到 2000 倍
	maxLut := bu * maxLutMult
	if maxLut > maxLutSize {
		return result
	}

	lut := make([]int, maxLut) // lut[win] = idx
	idx := 1
	last := len(winGp) - 1
	for i := 1; i < maxLut; i++ {
		// 僅在還有更高邊界時才前進 idx，避免越界讀取
		for idx < last && i >= winGp[idx] {
			idx++
		}
		lut[i] = idx
	}
	result.lutMaxWin = maxLut
	result.winBucketLUT = lut
	return result
}

// Index 回傳贏分 win 所在的分桶
func (wb *WinBucket) Index(win int) int {
	if win <= 0 {
		return 0
	}
	if win >= wb.maxCheckWin {
		return wb.maxIdx
	}
	if wb.winBucketLUT != nil && win < wb.lutMaxWin {
		return wb.winBucketLUT[win]
	}
	// 第一個邊界 > win 的位置即為分桶編號（winGp[0] = 0 < win）
	return sort.SearchInts(wb.winBucketByScore, win+1)
}
