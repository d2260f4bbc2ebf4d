// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contractdb

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWhereToJSONRoundTrip(t *testing.T) {
	w := Where{{Column: "asset_id", Value: uint64(42)}, {Column: "contract", Value: "atomicassets"}}
	raw, err := whereToJSON(w)
	require.NoError(t, err)

	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &back))
	require.EqualValues(t, 42, back["asset_id"])
	require.Equal(t, "atomicassets", back["contract"])

	restored := mapToWhere(back)
	require.Len(t, restored, 2)
}

func TestDBErrorUnwraps(t *testing.T) {
	base := errors.New("connection reset")
	wrapped := &DBError{Op: "insert offers", Err: base}
	require.ErrorIs(t, wrapped, base)
	require.Contains(t, wrapped.Error(), "insert offers")
}
