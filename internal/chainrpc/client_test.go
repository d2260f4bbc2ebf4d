// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// restServer answers any request on path with result as a bare JSON body,
// the shape a real nodeos node serves — no JSON-RPC envelope, no request ID.
func restServer(t *testing.T, path string, result interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(result))
	})
	return httptest.NewServer(mux)
}

func TestGetBlockDecodesResponse(t *testing.T) {
	srv := restServer(t, "/v1/chain/get_block", BlockInfo{BlockNum: 42, ID: "abc", Previous: "xyz"})
	defer srv.Close()

	c, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	info, err := c.GetBlock(context.Background(), "head")
	require.NoError(t, err)
	require.Equal(t, uint32(42), info.BlockNum)
	require.Equal(t, "abc", info.ID)
}

func TestGetTableRowsDecodesResponse(t *testing.T) {
	srv := restServer(t, "/v1/chain/get_table_rows", GetTableRowsResponse{Rows: []json.RawMessage{[]byte(`{"a":1}`)}, More: true})
	defer srv.Close()

	c, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.GetTableRows(context.Background(), GetTableRowsRequest{Code: "eosio.token", Table: "accounts", JSON: true})
	require.NoError(t, err)
	require.True(t, resp.More)
	require.Len(t, resp.Rows, 1)
}

func TestGetRequiredKeysDecodesResponse(t *testing.T) {
	srv := restServer(t, "/v1/chain/get_required_keys", map[string][]string{"required_keys": {"EOS6MRyAjQq8ud7hVNYcfnVPJqcVpscN5So8BhtHuGYqET5GDW5CV"}})
	defer srv.Close()

	c, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	keys, err := c.GetRequiredKeys(context.Background(), GetRequiredKeysRequest{})
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestPostSurfacesChainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    3010001,
			"message": "assertion_exception",
			"error":   map[string]string{"what": "unknown table"},
		})
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetTableRows(context.Background(), GetTableRowsRequest{Code: "x", Table: "y"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "assertion_exception")
}
