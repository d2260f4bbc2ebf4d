// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

// nativeAvailable reports whether a vendored, cgo-backed ABI codec was
// compiled into this binary. This build does not vendor one — the native
// path is scaffolding for an operator who wants to link a faster C decoder
// — so the probe always reports false and the pool falls back to the
// portable decoder. Swapping this to a real probe (e.g. a cgo build-tagged
// file that calls into a vendored codec's init and catches its panic) does
// not change any caller: SelectBackend already branches on this value.
var nativeAvailable = false

// newNativeBackend would construct the cgo-backed decoder. It is never
// reached while nativeAvailable is false; it exists so the interface and
// the selection logic in SelectBackend do not need to change the day a
// native codec is vendored in.
func newNativeBackend() Backend {
	panic("deserialize: native backend requested but not vendored in this build")
}
