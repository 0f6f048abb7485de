package syncer

// unbounded disables the period budget.
const unbounded = -1

// allocator hands out slots for newly created records.
// Every new record consumes a total slot; records dated in the current reset
// period also consume a period slot. The walker stops when either reaches zero.
type allocator struct {
	total  int
	period int
}

func newAllocator(total, period int) *allocator {
	if total < 0 {
		total = 0
	}
	if period < unbounded {
		period = 0
	}
	return &allocator{total: total, period: period}
}

// Available reports whether another new record may be created.
func (a *allocator) Available() bool {
	return a.total > 0 && a.period != 0
}

// Take consumes a slot. current marks a record in the current reset period.
func (a *allocator) Take(current bool) bool {
	if !a.Available() {
		return false
	}
	a.total--
	if current && a.period > 0 {
		a.period--
	}
	return true
}
