// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contractdb

import "strings"

func joinIdents(cols []string) string { return strings.Join(cols, ", ") }
func joinStrings(parts []string) string { return strings.Join(parts, ", ") }
func joinAnd(conds []string) string {
	if len(conds) == 0 {
		return "true"
	}
	return strings.Join(conds, " AND ")
}
