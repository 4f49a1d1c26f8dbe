package root

import (
	"sync/atomic"
	"time"

	"github.com/sekas/sekas/pkg/sekaserr"
)

// reservationWindow is how far ahead of the persisted max_txn_id the root
// leader reserves on each bump (spec §4.5: "+5e9").
const reservationWindow = uint64(5_000_000_000)

// bumpInterval is how often the background bumper persists a new max.
const bumpInterval = 30 * time.Second

// Persist durably stores a new max_txn_id value, e.g. into the root group's
// schema via the Group Engine.
type Persist func(maxTxnID uint64) error

// TxnAllocator hands out transaction start_version values drawn from a
// persisted reservation window, grounded on spec §4.5's alloc_txn_id CAS
// loop. Zero value is not usable; construct via NewTxnAllocator.
type TxnAllocator struct {
	next    atomic.Uint64
	max     atomic.Uint64
	persist Persist
}

// NewTxnAllocator seeds next=max=seed and performs the initial bump.
func NewTxnAllocator(seed uint64, persist Persist) (*TxnAllocator, error) {
	a := &TxnAllocator{persist: persist}
	a.next.Store(seed)
	a.max.Store(seed)
	if err := a.Bump(); err != nil {
		return nil, err
	}
	return a, nil
}

// Bump persists new_max = max(persisted_max, wall_clock_nanos) + window and
// release-stores it into max.
func (a *TxnAllocator) Bump() error {
	wallClock := uint64(time.Now().UnixNano())
	current := a.max.Load()
	newMax := current
	if wallClock > newMax {
		newMax = wallClock
	}
	newMax += reservationWindow
	if err := a.persist(newMax); err != nil {
		return err
	}
	a.max.Store(newMax)
	return nil
}

// RunBumper spawns a goroutine that bumps every bumpInterval until stop is
// closed, grounded on spec §4.5 step 3.
func (a *TxnAllocator) RunBumper(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(bumpInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := a.Bump(); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop aborts any pending allocators by release-storing max=0, per spec
// §4.5 step 6 ("On lease loss ... release-store max_txn_id=0").
func (a *TxnAllocator) Stop() {
	a.max.Store(0)
}

// Alloc reserves n consecutive txn ids, returning the first. It busy-polls
// when the reservation window is exhausted (spec §4.5: "yield and retry"
// without backoff — the window is refreshed by the independent bumper), and
// fails fast with NotLeader once max has been zeroed by a lease loss.
func (a *TxnAllocator) Alloc(n uint64) (uint64, error) {
	for {
		max := a.max.Load()
		if max == 0 {
			return 0, sekaserr.NotLeader(0, 0, "")
		}
		next := a.next.Load()
		if next+n > max {
			time.Sleep(time.Millisecond)
			continue
		}
		if a.next.CompareAndSwap(next, next+n) {
			return next, nil
		}
		// CAS lost the race; retry without yielding (spec §4.5).
	}
}
