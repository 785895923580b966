package pipeline

import "github.com/drblury/recordgate/internal/engine/record"

// Counters are the running totals for one lane (or, after merging, one
// run). They are plain values owned by a single goroutine; nothing here
// needs a lock.
type Counters struct {
	Received        uint64
	Valid           uint64
	InvalidByReason map[record.FailureReason]uint64
}

// NewCounters returns zeroed counters with the reason map allocated.
func NewCounters() Counters {
	return Counters{InvalidByReason: make(map[record.FailureReason]uint64)}
}

func (c *Counters) observe(v record.Verdict) {
	c.Received++
	if v.IsValid() {
		c.Valid++
		return
	}
	if c.InvalidByReason == nil {
		c.InvalidByReason = make(map[record.FailureReason]uint64)
	}
	c.InvalidByReason[v.Reason]++
}

// Invalid returns the total across all failure reasons.
func (c *Counters) Invalid() uint64 {
	var total uint64
	for _, n := range c.InvalidByReason {
		total += n
	}
	return total
}

// Merge folds another lane's counters into c. The merge is commutative
// and associative, so lane completion order does not matter.
func (c *Counters) Merge(other Counters) {
	c.Received += other.Received
	c.Valid += other.Valid
	if len(other.InvalidByReason) == 0 {
		return
	}
	if c.InvalidByReason == nil {
		c.InvalidByReason = make(map[record.FailureReason]uint64, len(other.InvalidByReason))
	}
	for reason, n := range other.InvalidByReason {
		c.InvalidByReason[reason] += n
	}
}

// Consistent reports whether received equals valid plus all invalids.
// It holds after every run, whatever the input mix.
func (c *Counters) Consistent() bool {
	return c.Received == c.Valid+c.Invalid()
}
