/*
 * Copyright (c) 2021 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package wire

import "encoding/binary"

// Compact variable length integers as used by the bitcoin transaction
// format.  The first byte is a discriminant: values below 0xfd encode
// themselves, 0xfd/0xfe/0xff announce a little-endian uint16/uint32/uint64
// payload.
//
// Bounds are the caller's contract: these helpers assume the buffer holds
// the announced payload.  ParseBlockTransactions performs the outer bound
// checks before descending.

// ReadCompactInt reads a compact integer from buf at pos and returns the
// value together with the total number of bytes consumed.
func ReadCompactInt(buf []byte, pos int) (uint64, int) {
	discriminant := buf[pos]
	switch discriminant {
	case 0xff:
		return binary.LittleEndian.Uint64(buf[pos+1 : pos+9]), 9
	case 0xfe:
		return uint64(binary.LittleEndian.Uint32(buf[pos+1 : pos+5])), 5
	case 0xfd:
		return uint64(binary.LittleEndian.Uint16(buf[pos+1 : pos+3])), 3
	default:
		return uint64(discriminant), 1
	}
}

// CompactIntSize returns the number of bytes the compact encoding of val
// occupies.
func CompactIntSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// AppendCompactInt appends the compact encoding of val to buf and returns
// the extended buffer.  It is the exact inverse of ReadCompactInt.
func AppendCompactInt(buf []byte, val uint64) []byte {
	switch {
	case val < 0xfd:
		return append(buf, byte(val))
	case val <= 0xffff:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(val))
		return append(append(buf, 0xfd), b[:]...)
	case val <= 0xffffffff:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(val))
		return append(append(buf, 0xfe), b[:]...)
	default:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], val)
		return append(append(buf, 0xff), b[:]...)
	}
}
