package arena

import (
	"github.com/pkg/errors"
)

// SetUserData attaches an arbitrary value to the live allocation starting at
// p. The value travels with the allocation if Resize moves it, shows up in
// VisitAllRuns and the detailed JSON map, and is discarded when the
// allocation is released.
func (h *Heap) SetUserData(p Pointer, userData any) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.liveAllocationAt(p) {
		return errors.Errorf("offset %d is not a live allocation, so no user data can be attached to it", p)
	}

	h.userData.Put(p, userData)
	return nil
}

// UserData returns the value SetUserData attached to the live allocation
// starting at p, or nil when none was attached.
func (h *Heap) UserData(p Pointer) (any, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if !h.liveAllocationAt(p) {
		return nil, errors.Errorf("offset %d is not a live allocation, so it has no user data", p)
	}

	userData, _ := h.userData.Get(p)
	return userData, nil
}

// liveAllocationAt walks the heap and reports whether p is the payload start
// of a live allocation. Interior payload bytes can masquerade as plausible
// block headers, so only a walk can answer this reliably. The caller must
// hold the heap lock.
func (h *Heap) liveAllocationAt(p Pointer) bool {
	live := false
	h.forEachRun(func(c uint16, blocks uint16) bool {
		if h.pointerForBlock(c) != p {
			return true
		}
		live = !h.isFree(c)
		return false
	})

	return live
}

func (h *Heap) moveUserData(old Pointer, to Pointer) {
	userData, ok := h.userData.Get(old)
	if !ok {
		return
	}

	h.userData.Delete(old)
	h.userData.Put(to, userData)
}
