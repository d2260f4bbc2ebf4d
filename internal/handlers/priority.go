// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handlers

// Priority constants govern the within-block drain order of jobs enqueued
// through Base.AddUpdateJob (spec §3/§4.E: higher runs first, equal
// priorities preserve enqueue order). They are declared centrally so a job
// enqueued by one handler in reaction to another handler's delta — e.g.
// atomicmarket reacting to an atomicassets offer state change — orders
// correctly without the two handlers needing to coordinate directly.
const (
	// PriorityTableSales runs the direct sales-table mutations a matched
	// table delta drives.
	PriorityTableSales = 70
	// PriorityActionUpdateSale runs the derived "offer accepted => sale
	// sold" state propagation, after PriorityTableSales has landed.
	PriorityActionUpdateSale = 50
)
