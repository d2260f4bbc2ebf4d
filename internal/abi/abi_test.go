// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestLookupMissesWithoutInstall(t *testing.T) {
	c := openTestCache(t)
	_, ok := c.Lookup("eosio.token", 100)
	require.False(t, ok)
}

func TestLookupReturnsLargestHeightAtOrBelowTarget(t *testing.T) {
	c := openTestCache(t)
	v1 := New("eosio.token", nil, nil, nil, []byte("v1"))
	v2 := New("eosio.token", nil, nil, nil, []byte("v2"))
	require.NoError(t, c.Install("eosio.token", 100, v1))
	require.NoError(t, c.Install("eosio.token", 200, v2))

	found, ok := c.Lookup("eosio.token", 150)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), found.Raw())

	found, ok = c.Lookup("eosio.token", 250)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), found.Raw())

	_, ok = c.Lookup("eosio.token", 50)
	require.False(t, ok, "target below the earliest installed height has no effective ABI")
}

func TestInstallAtSameHeightReplaces(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Install("eosio.token", 100, New("eosio.token", nil, nil, nil, []byte("old"))))
	require.NoError(t, c.Install("eosio.token", 100, New("eosio.token", nil, nil, nil, []byte("new"))))

	found, ok := c.Lookup("eosio.token", 100)
	require.True(t, ok)
	require.Equal(t, []byte("new"), found.Raw())
}

func TestLookupIsolatedPerContract(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Install("eosio.token", 100, New("eosio.token", nil, nil, nil, []byte("token"))))

	_, ok := c.Lookup("atomicassets", 100)
	require.False(t, ok)
}
