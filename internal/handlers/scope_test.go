// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterMatchesWildcards(t *testing.T) {
	require.True(t, Filter{Account: "*", Name: "transfer"}.Matches("eosio.token", "transfer"))
	require.True(t, Filter{Account: "eosio.token", Name: "*"}.Matches("eosio.token", "issue"))
	require.False(t, Filter{Account: "eosio.token", Name: "transfer"}.Matches("eosio.token", "issue"))
}

func TestParseFilter(t *testing.T) {
	f := ParseFilter("eosio.token:transfer", true)
	require.Equal(t, Filter{Account: "eosio.token", Name: "transfer", Deserialize: true}, f)

	wildcard := ParseFilter("*", false)
	require.Equal(t, Filter{Account: "*", Name: "*", Deserialize: false}, wildcard)
}

func TestScopeMatchActionReturnsFirstMatch(t *testing.T) {
	s := Scope{Actions: []Filter{
		{Account: "atomicassets", Name: "logmint"},
		{Account: "*", Name: "*"},
	}}
	f, ok := s.MatchAction("atomicassets", "logmint")
	require.True(t, ok)
	require.Equal(t, "logmint", f.Name)

	_, ok = s.MatchAction("somethingelse", "noop")
	require.True(t, ok, "wildcard fallback entry should still match")
}

func TestMergedUnionsScopes(t *testing.T) {
	a := Scope{Actions: []Filter{{Account: "a", Name: "x"}}}
	b := Scope{Tables: []Filter{{Account: "b", Name: "y"}}}
	m := Merged(a, b)

	require.Len(t, m.Actions, 1)
	require.Len(t, m.Tables, 1)
}

func TestMergedDedupesIdenticalFilters(t *testing.T) {
	dup := Filter{Account: "eosio.token", Name: "transfer", Deserialize: true}
	a := Scope{Actions: []Filter{dup, {Account: "a", Name: "x"}}}
	b := Scope{Actions: []Filter{dup}}

	m := Merged(a, b)
	require.Equal(t, []Filter{dup, {Account: "a", Name: "x"}}, m.Actions, "duplicate filters collapse, first-seen order is kept")
}
