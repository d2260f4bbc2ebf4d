// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eosio-contract-api/chain-indexer-go/internal/chain"
	"github.com/eosio-contract-api/chain-indexer-go/internal/contractdb"
)

type stubHandler struct{ Base }

func (*stubHandler) Init(context.Context, *Deps) error     { return nil }
func (*stubHandler) DeleteDB(context.Context, *Deps) error { return nil }
func (*stubHandler) OnBlockStart(context.Context, chain.Block) error { return nil }
func (*stubHandler) OnAction(context.Context, *contractdb.Tx, chain.Block, string, chain.ActionTrace) error {
	return nil
}
func (*stubHandler) OnTableChange(context.Context, *contractdb.Tx, chain.Block, chain.TableDelta) error {
	return nil
}
func (*stubHandler) OnBlockComplete(context.Context, *contractdb.Tx) error { return nil }
func (*stubHandler) OnCommit(context.Context) error                       { return nil }

func TestRegisterAndNew(t *testing.T) {
	Register("stub-handler-test", func(args Args) (Handler, error) {
		return &stubHandler{Base: NewBase("stub-handler-test", Scope{}, nil)}, nil
	})

	h, err := New("stub-handler-test", Args{})
	require.NoError(t, err)
	require.Equal(t, "stub-handler-test", h.Name())
}

func TestNewUnregisteredNameErrors(t *testing.T) {
	_, err := New("does-not-exist", Args{})
	require.Error(t, err)
}
