// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import "fmt"

const transactionTraceV0 = 0
const actionTraceV0 = 0

// DecodedAuth is one `{actor, permission}` authorization entry.
type DecodedAuth struct {
	Actor      string
	Permission string
}

// DecodedActionTrace is one action trace's system-level envelope: identity,
// authorization and the still-opaque action `data`, which the caller
// decodes separately against the contract's own ABI (spec §4.A: the
// worker only recurses into ABI-typed decode for the compound table-delta
// type; an action's data is decoded by a second, ordinary request).
type DecodedActionTrace struct {
	GlobalSeq     uint64
	ParentOrdinal uint64
	Receiver      string
	Account       string
	Name          string
	Authorization []DecodedAuth
	Data          []byte
	ContextFree   bool
}

// DecodedTransaction is one transaction's flattened action traces, already
// in depth-first chain-execution order per spec.md §3's data model note
// ("the core consumes a pre-flattened depth-first order").
type DecodedTransaction struct {
	TxID   string
	Traces []DecodedActionTrace
}

// decodeTransactionTraceArray decodes the `traces` envelope blob of a
// get_blocks_result_v0 message into a flat list of transactions, each
// carrying its already-ordered action traces.
func decodeTransactionTraceArray(r *byteReader) ([]DecodedTransaction, error) {
	count, err := r.readVarUint()
	if err != nil {
		return nil, fmt.Errorf("deserialize: transaction trace count: %w", err)
	}

	out := make([]DecodedTransaction, 0, count)
	for i := uint64(0); i < count; i++ {
		tx, err := decodeOneTransactionTrace(r)
		if err != nil {
			return nil, fmt.Errorf("deserialize: transaction trace %d: %w", i, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func decodeOneTransactionTrace(r *byteReader) (DecodedTransaction, error) {
	variant, err := r.readUint8()
	if err != nil {
		return DecodedTransaction{}, err
	}
	if variant != transactionTraceV0 {
		return DecodedTransaction{}, fmt.Errorf("unsupported transaction_trace variant %d", variant)
	}

	txidBytes, err := r.readBytes(32)
	if err != nil {
		return DecodedTransaction{}, fmt.Errorf("txid: %w", err)
	}

	if _, err := r.readUint8(); err != nil { // status
		return DecodedTransaction{}, err
	}
	if _, err := r.readUint32(); err != nil { // cpu_usage_us
		return DecodedTransaction{}, err
	}
	if _, err := r.readVarUint(); err != nil { // net_usage_words
		return DecodedTransaction{}, err
	}
	if _, err := r.readInt64(); err != nil { // elapsed
		return DecodedTransaction{}, err
	}
	if _, err := r.readUint64(); err != nil { // net_usage
		return DecodedTransaction{}, err
	}
	if _, err := r.readBool(); err != nil { // scheduled
		return DecodedTransaction{}, err
	}

	traceCount, err := r.readVarUint()
	if err != nil {
		return DecodedTransaction{}, fmt.Errorf("action trace count: %w", err)
	}

	traces := make([]DecodedActionTrace, 0, traceCount)
	for i := uint64(0); i < traceCount; i++ {
		at, err := decodeOneActionTrace(r)
		if err != nil {
			return DecodedTransaction{}, fmt.Errorf("action trace %d: %w", i, err)
		}
		traces = append(traces, at)
	}

	return DecodedTransaction{TxID: hexEncode(txidBytes), Traces: traces}, nil
}

func decodeOneActionTrace(r *byteReader) (DecodedActionTrace, error) {
	variant, err := r.readUint8()
	if err != nil {
		return DecodedActionTrace{}, err
	}
	if variant != actionTraceV0 {
		return DecodedActionTrace{}, fmt.Errorf("unsupported action_trace variant %d", variant)
	}

	if _, err := r.readVarUint(); err != nil { // action_ordinal
		return DecodedActionTrace{}, err
	}
	creatorOrdinal, err := r.readVarUint()
	if err != nil {
		return DecodedActionTrace{}, err
	}
	receiver, err := r.readString()
	if err != nil {
		return DecodedActionTrace{}, fmt.Errorf("receiver: %w", err)
	}
	account, err := r.readString()
	if err != nil {
		return DecodedActionTrace{}, fmt.Errorf("account: %w", err)
	}
	name, err := r.readString()
	if err != nil {
		return DecodedActionTrace{}, fmt.Errorf("name: %w", err)
	}

	authCount, err := r.readVarUint()
	if err != nil {
		return DecodedActionTrace{}, fmt.Errorf("authorization count: %w", err)
	}
	auths := make([]DecodedAuth, 0, authCount)
	for i := uint64(0); i < authCount; i++ {
		actor, err := r.readString()
		if err != nil {
			return DecodedActionTrace{}, fmt.Errorf("authorization actor: %w", err)
		}
		permission, err := r.readString()
		if err != nil {
			return DecodedActionTrace{}, fmt.Errorf("authorization permission: %w", err)
		}
		auths = append(auths, DecodedAuth{Actor: actor, Permission: permission})
	}

	dataLen, err := r.readVarUint()
	if err != nil {
		return DecodedActionTrace{}, fmt.Errorf("data length: %w", err)
	}
	data, err := r.readBytes(int(dataLen))
	if err != nil {
		return DecodedActionTrace{}, fmt.Errorf("data: %w", err)
	}

	contextFree, err := r.readBool()
	if err != nil {
		return DecodedActionTrace{}, err
	}
	if _, err := r.readInt64(); err != nil { // elapsed
		return DecodedActionTrace{}, err
	}
	if _, err := r.readString(); err != nil { // console
		return DecodedActionTrace{}, err
	}

	globalSeq, err := r.readUint64()
	if err != nil {
		return DecodedActionTrace{}, fmt.Errorf("global_sequence: %w", err)
	}

	return DecodedActionTrace{
		GlobalSeq:     globalSeq,
		ParentOrdinal: creatorOrdinal,
		Receiver:      receiver,
		Account:       account,
		Name:          name,
		Authorization: auths,
		Data:          data,
		ContextFree:   contextFree,
	}, nil
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
