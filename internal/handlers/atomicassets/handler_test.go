// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicassets

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eosio-contract-api/chain-indexer-go/internal/chainrpc"
	"github.com/eosio-contract-api/chain-indexer-go/internal/handlers"
)

// stubChainClient answers GetTableRows with a fixed response, letting
// fetchChainConfig be tested without a real node.
type stubChainClient struct {
	chainrpc.Client
	resp chainrpc.GetTableRowsResponse
	err  error
}

func (s stubChainClient) GetTableRows(context.Context, chainrpc.GetTableRowsRequest) (chainrpc.GetTableRowsResponse, error) {
	return s.resp, s.err
}

func TestOfferStateString(t *testing.T) {
	cases := map[OfferState]string{
		OfferStatePending:  "PENDING",
		OfferStateInvalid:  "INVALID",
		OfferStateUnknown:  "UNKNOWN",
		OfferStateAccepted: "ACCEPTED",
		OfferStateDeclined: "DECLINED",
		OfferStateCanceled: "CANCELED",
	}
	for state, want := range cases {
		require.Equal(t, want, state.String())
	}
}

func TestNewScopesToConfiguredAccount(t *testing.T) {
	h := New(Args{AtomicAssetsAccount: "atomicassets"}, nil)
	scope := h.Scope()

	require.NotEmpty(t, scope.Actions)
	require.NotEmpty(t, scope.Tables)
	for _, f := range scope.Actions {
		require.Equal(t, "atomicassets", f.Account)
	}
	for _, f := range scope.Tables {
		require.Equal(t, "atomicassets", f.Account)
	}
}

func TestFactoryRejectsMissingAccount(t *testing.T) {
	factory := NewFactory(nil)
	_, err := factory(handlers.Args{})
	require.Error(t, err)
}

func TestFetchChainConfigDecodesFirstRow(t *testing.T) {
	row, err := json.Marshal(map[string]interface{}{"version": "1.3.0"})
	require.NoError(t, err)
	client := stubChainClient{resp: chainrpc.GetTableRowsResponse{Rows: []json.RawMessage{row}}}

	cfg, err := fetchChainConfig(context.Background(), client, "atomicassets")
	require.NoError(t, err)
	require.Equal(t, "1.3.0", cfg.Version)
}

func TestFetchChainConfigErrorsOnEmptyTable(t *testing.T) {
	client := stubChainClient{resp: chainrpc.GetTableRowsResponse{}}
	_, err := fetchChainConfig(context.Background(), client, "atomicassets")
	require.Error(t, err)
}
