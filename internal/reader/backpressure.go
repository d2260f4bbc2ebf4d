// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reader

// pacer adjusts the in-flight block window the same way CalcBaseFee adjusts
// a base fee: move the window toward a target consumption rate by a bounded
// step each time the receiver acks a batch, instead of jumping straight to
// whatever the receiver asked for. This damps oscillation when the consumer
// (the state receiver's job queue) alternates between bursty and idle.
type pacer struct {
	window    uint32
	min       uint32
	max       uint32
	step      uint32
	target    uint32 // desired steady-state queue depth on the consumer side
}

// newPacer returns a pacer starting at min, ramping toward max in steps of
// step, trying to keep the consumer's queue depth near target.
func newPacer(min, max, step, target uint32) *pacer {
	if min == 0 {
		min = 1
	}
	if max < min {
		max = min
	}
	if step == 0 {
		step = 1
	}
	return &pacer{window: min, min: min, max: max, step: step, target: target}
}

// next reports the ack size to request given the consumer's current queue
// depth: shrink the window if the consumer is falling behind (depth above
// target), grow it if the consumer has headroom (depth below target),
// otherwise hold steady. The window never leaves [min, max].
func (p *pacer) next(queueDepth uint32) uint32 {
	switch {
	case queueDepth > p.target:
		if p.window > p.min+p.step {
			p.window -= p.step
		} else {
			p.window = p.min
		}
	case queueDepth < p.target:
		if p.window+p.step < p.max {
			p.window += p.step
		} else {
			p.window = p.max
		}
	}
	return p.window
}
