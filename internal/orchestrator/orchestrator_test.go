package orchestrator

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/gondola/availability-service/config"
	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/metrics"
)

// repeatStore builds n store ids for the units helper
func repeatStore(id int64, n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = id
	}
	return ids
}

// unitsFor builds one work unit per store id, in order, the way the loader
// hands them out
func unitsFor(storeIDs []int64) []database.ProbeWorkUnit {
	units := make([]database.ProbeWorkUnit, 0, len(storeIDs))
	for i, id := range storeIDs {
		units = append(units, database.ProbeWorkUnit{
			Ean:       fmt.Sprintf("779%010d", i),
			SkuItemID: fmt.Sprintf("%d", 1000+i),
			SellerID:  "1",
			StoreID:   id,
		})
	}
	return units
}

func TestPartitionBatches(t *testing.T) {
	tests := []struct {
		name     string
		stores   []int64
		minSize  int
		maxSize  int
		expected []int // batch sizes, in order
	}{
		{
			name:     "Empty work set",
			stores:   nil,
			minSize:  2,
			maxSize:  4,
			expected: []int{},
		},
		{
			name:     "Single short batch",
			stores:   repeatStore(1, 3),
			minSize:  2,
			maxSize:  10,
			expected: []int{3},
		},
		{
			name:     "Max size cuts within one store",
			stores:   repeatStore(1, 10),
			minSize:  2,
			maxSize:  4,
			expected: []int{4, 4, 2},
		},
		{
			name:     "Store boundary cuts past min size",
			stores:   append(repeatStore(1, 3), repeatStore(2, 3)...),
			minSize:  2,
			maxSize:  10,
			expected: []int{3, 3},
		},
		{
			name:     "Store change below min size does not cut",
			stores:   []int64{1, 2, 3},
			minSize:  2,
			maxSize:  10,
			expected: []int{2, 1},
		},
		{
			name:     "Defaults applied when sizes are zero",
			stores:   repeatStore(1, 45),
			minSize:  0,
			maxSize:  0,
			expected: []int{20, 20, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := partitionBatches(unitsFor(tt.stores), tt.minSize, tt.maxSize)
			if len(batches) != len(tt.expected) {
				t.Fatalf("partitionBatches() produced %d batches, want %d", len(batches), len(tt.expected))
			}
			total := 0
			for i, b := range batches {
				if len(b) != tt.expected[i] {
					t.Errorf("batch %d has %d units, want %d", i, len(b), tt.expected[i])
				}
				total += len(b)
			}
			if total != len(tt.stores) {
				t.Errorf("batches carry %d units, want all %d", total, len(tt.stores))
			}
		})
	}
}

func TestPartitionBatchesGroupsByStore(t *testing.T) {
	units := unitsFor(append(repeatStore(10, 5), repeatStore(20, 5)...))

	batches := partitionBatches(units, 2, 50)

	if len(batches) != 2 {
		t.Fatalf("partitionBatches() produced %d batches, want 2", len(batches))
	}
	for i, batch := range batches {
		for _, u := range batch {
			if u.StoreID != batch[0].StoreID {
				t.Errorf("batch %d mixes stores %d and %d", i, batch[0].StoreID, u.StoreID)
			}
		}
	}
}

func TestPartitionBatchesPreservesOrder(t *testing.T) {
	units := unitsFor(repeatStore(1, 9))

	batches := partitionBatches(units, 2, 4)

	seen := 0
	for _, batch := range batches {
		for _, u := range batch {
			if u.Ean != units[seen].Ean {
				t.Fatalf("unit %d out of order: got %s, want %s", seen, u.Ean, units[seen].Ean)
			}
			seen++
		}
	}
}

// TestCommitterTally verifies the outcome counters: available wins over an
// error message, error rows need a message, everything else is unavailable.
func TestCommitterTally(t *testing.T) {
	results := make(chan database.AvailabilityResult)
	c := newCommitter(results, metrics.NewRecorder(), zerolog.Nop())

	msg := "503:throttled"
	c.tally(database.AvailabilityResult{IsAvailable: true})
	c.tally(database.AvailabilityResult{IsAvailable: true, ErrorMessage: &msg})
	c.tally(database.AvailabilityResult{ErrorMessage: &msg})
	c.tally(database.AvailabilityResult{})
	c.tally(database.AvailabilityResult{})

	assert.Equal(t, 2, c.okRows)
	assert.Equal(t, 1, c.errorRows)
	assert.Equal(t, 2, c.unavailable)
}

// TestPrimarySalesChannel verifies that the first configured channel wins and
// an unconfigured retailer probes channel 1.
func TestPrimarySalesChannel(t *testing.T) {
	tests := []struct {
		name     string
		channels string
		expected int
	}{
		{"First of several", "5,1", 5},
		{"Single channel", "2", 2},
		{"Empty defaults to one", "", 1},
		{"Garbage defaults to one", "abc", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(database.Retailer{Host: "www.vea.com.ar", SalesChannels: tt.channels},
				&config.Config{}, metrics.NewRecorder(), zerolog.Nop())
			assert.Equal(t, tt.expected, o.primarySalesChannel())
		})
	}
}
