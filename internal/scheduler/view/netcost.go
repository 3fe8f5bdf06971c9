package view

import "math"

// MigrationCost describes the memory activity of a VM. The zero value is
// not an idle VM: use DefaultNetworkSettings to fill missing attributes.
type MigrationCost struct {
	// MemUsed is the memory to transfer.
	MemUsed float64
	// HotDirtySize is the working set dirtied during HotDirtyDuration.
	HotDirtySize     float64
	HotDirtyDuration float64
	// ColdDirtyRate is the rate at which the rest of the memory gets dirty.
	ColdDirtyRate float64
}

// MigrationDuration estimates the live migration of a VM over a path with
// the given bandwidth. The transfer first copies the resident memory while
// cold pages keep getting dirty, then the hot working set. The result is
// rounded and at least 1.
//
// efficiency scales the raw bandwidth down to the observed throughput.
func MigrationDuration(c MigrationCost, bandwidth int, efficiency float64) int {
	bw := float64(bandwidth) / efficiency
	hotRate := c.HotDirtySize / c.HotDirtyDuration
	base := c.MemUsed / bw

	var total float64
	if base > c.HotDirtyDuration {
		cold := (c.HotDirtySize + (base-c.HotDirtyDuration)*c.ColdDirtyRate) / (bw - c.ColdDirtyRate)
		hot := c.HotDirtySize / bw * (hotRate / (bw - hotRate))
		total = base + cold + hot
	} else {
		total = base + (hotRate*base)/(bw-hotRate)
	}
	if math.IsNaN(total) || math.IsInf(total, 0) || total > math.MaxInt32 {
		return math.MaxInt32
	}
	return max(1, int(math.Round(total)))
}
