package projection

import (
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"VaultLedger/internal/types"
)

// HarvestEntry is one completed harvest of a worker.
type HarvestEntry struct {
	Sequence    int64         `json:"sequence"`
	Worker      types.Address `json:"worker"`
	Reward      sdkmath.Int   `json:"reward"`
	Harvested   sdkmath.Int   `json:"harvested"`
	TreasuryFee sdkmath.Int   `json:"treasury_fee"`
	ClientFees  sdkmath.Int   `json:"client_fees"`
	Credited    sdkmath.Int   `json:"credited"`
	Residual    sdkmath.Int   `json:"residual"`
	Positions   int           `json:"positions"`
	Timestamp   time.Time     `json:"timestamp"`
}

// HarvestHistory keeps the most recent harvests in memory, bounded by
// capacity. Safe for concurrent use.
type HarvestHistory struct {
	mu       sync.RWMutex
	capacity int
	entries  []HarvestEntry
}

func NewHarvestHistory(capacity int) *HarvestHistory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &HarvestHistory{capacity: capacity}
}

// Add records a harvest, dropping the oldest entry when full.
func (h *HarvestHistory) Add(entry HarvestEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if over := len(h.entries) - h.capacity; over > 0 {
		h.entries = append(h.entries[:0], h.entries[over:]...)
	}
}

// QueryByWorker returns up to limit harvests of worker, newest first. An
// empty worker matches every worker.
func (h *HarvestHistory) QueryByWorker(worker types.Address, limit int) []HarvestEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]HarvestEntry, 0)
	for i := len(h.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if worker == "" || h.entries[i].Worker == worker {
			result = append(result, h.entries[i])
		}
	}
	return result
}

func (h *HarvestHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
