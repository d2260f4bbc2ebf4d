// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jobqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDrainIsNonIncreasingPriorityFIFOWithinTies(t *testing.T) {
	q := New()
	var order []string

	q.Add(func(context.Context) error { order = append(order, "a:10"); return nil }, 10, "a")
	q.Add(func(context.Context) error { order = append(order, "b:50"); return nil }, 50, "b")
	q.Add(func(context.Context) error { order = append(order, "c:50"); return nil }, 50, "c")
	q.Add(func(context.Context) error { order = append(order, "d:70"); return nil }, 70, "d")
	q.Add(func(context.Context) error { order = append(order, "e:10"); return nil }, 10, "e")

	require.NoError(t, q.Drain(context.Background()))
	require.Equal(t, []string{"d:70", "b:50", "c:50", "a:10", "e:10"}, order)
	require.Equal(t, 0, q.Len())
}

func TestDrainStopsAtFirstError(t *testing.T) {
	q := New()
	ran := 0
	q.Add(func(context.Context) error { ran++; return nil }, 70, "first")
	q.Add(func(context.Context) error { ran++; return assertErr }, 50, "second")
	q.Add(func(context.Context) error { ran++; return nil }, 10, "third")

	err := q.Drain(context.Background())
	require.ErrorIs(t, err, assertErr)
	require.Equal(t, 2, ran)
}

var assertErr = context.Canceled
