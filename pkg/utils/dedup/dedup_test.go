package dedup_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/seabird-lab/beacon/pkg/utils/dedup"
)

func TestRecentSet_DuplicateSuppressed(t *testing.T) {
	s := dedup.New(time.Minute, 16)

	gt.Bool(t, s.Observe("ev-1")).True()
	gt.Bool(t, s.Observe("ev-1")).False()
	gt.Bool(t, s.Observe("ev-1")).False()
}

func TestRecentSet_DistinctIDsBothPass(t *testing.T) {
	s := dedup.New(time.Minute, 16)

	// Distinct IDs inside the window must both be admitted, unlike a
	// blanket cooldown.
	gt.Bool(t, s.Observe("ev-1")).True()
	gt.Bool(t, s.Observe("ev-2")).True()
	gt.Bool(t, s.Observe("ev-3")).True()
}

func TestRecentSet_ExpiryReadmits(t *testing.T) {
	s := dedup.New(20*time.Millisecond, 16)

	gt.Bool(t, s.Observe("ev-1")).True()
	gt.Bool(t, s.Observe("ev-1")).False()

	time.Sleep(40 * time.Millisecond)

	gt.Bool(t, s.Observe("ev-1")).True()
}

func TestRecentSet_CapacityEvictsOldest(t *testing.T) {
	s := dedup.New(time.Minute, 3)

	for i := 0; i < 4; i++ {
		gt.Bool(t, s.Observe(fmt.Sprintf("ev-%d", i))).True()
	}

	// ev-0 was evicted to make room for ev-3, so it reads as new again.
	gt.Bool(t, s.Observe("ev-0")).True()
	// ev-3 is still held.
	gt.Bool(t, s.Observe("ev-3")).False()
	gt.Number(t, s.Len()).Equal(3)
}
