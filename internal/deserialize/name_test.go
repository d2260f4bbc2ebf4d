// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameToString(t *testing.T) {
	cases := []struct {
		name string
		v    uint64
		want string
	}{
		{name: "zero", v: 0, want: ""},
		{name: "eosio", v: 6138663577826885632, want: "eosio"},
		{name: "eosio.token", v: 6138663591592764928, want: "eosio.token"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, NameToString(c.v))
		})
	}
}

func TestNameToStringStripsTrailingPadding(t *testing.T) {
	// A name with trailing dot padding must have that padding stripped,
	// not rendered as literal dots.
	got := NameToString(6138663577826885632) // "eosio"
	require.NotContains(t, got, ".....")
}
