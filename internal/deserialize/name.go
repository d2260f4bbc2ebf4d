// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

// nameCharset is the 32-symbol alphabet EOSIO-style "name" values are
// packed against: 5 bits per character for the first 12 characters, 4 bits
// for the 13th.
const nameCharset = ".12345abcdefghijklmnopqrstuvwxyz"

// NameToString unpacks a symbol-coded account/table/scope name back into
// its human-readable form, the same bit layout contract_row's code/scope/
// table/payer fields are packed in (tabledelta.go's systemStructs).
// Trailing '.' padding characters are stripped.
func NameToString(v uint64) string {
	buf := [13]byte{}
	tmp := v
	for i := 0; i <= 12; i++ {
		var c byte
		if i == 0 {
			c = nameCharset[tmp&0x0f]
			tmp >>= 4
		} else {
			c = nameCharset[tmp&0x1f]
			tmp >>= 5
		}
		buf[12-i] = c
	}
	end := len(buf)
	for end > 0 && buf[end-1] == '.' {
		end--
	}
	return string(buf[:end])
}
