// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveDecodeRecordsOkOutcome(t *testing.T) {
	DeserializeRequests.Reset()

	err := ObserveDecode("action", func() error { return nil })
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(DeserializeRequests.WithLabelValues("action", "ok")))
}

func TestObserveDecodeRecordsErrorOutcome(t *testing.T) {
	DeserializeRequests.Reset()

	err := ObserveDecode("table_delta", func() error { return errors.New("boom") })
	require.Error(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(DeserializeRequests.WithLabelValues("table_delta", "error")))
}
