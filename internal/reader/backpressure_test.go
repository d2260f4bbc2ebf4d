// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reader

import "testing"

func TestPacerRampsTowardTargetWithinBounds(t *testing.T) {
	p := newPacer(10, 100, 10, 50)
	if got := p.next(0); got != 20 {
		t.Fatalf("expected window to grow from 10 to 20, got %d", got)
	}
	for i := 0; i < 20; i++ {
		p.next(0)
	}
	if p.window > p.max {
		t.Fatalf("window %d exceeded max %d", p.window, p.max)
	}

	for i := 0; i < 20; i++ {
		p.next(1000)
	}
	if p.window < p.min {
		t.Fatalf("window %d fell below min %d", p.window, p.min)
	}
}

func TestPacerHoldsSteadyAtTarget(t *testing.T) {
	p := newPacer(10, 100, 10, 50)
	p.window = 50
	if got := p.next(50); got != 50 {
		t.Fatalf("expected window to hold at 50, got %d", got)
	}
}
