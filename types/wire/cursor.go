/*
 * Copyright (c) 2021 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// cursor is a bounds-checked reader over a transaction byte buffer.  Every
// read either advances pos or fails with ErrMalformedTx; the zero value is
// ready for use at the start of buf.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) need(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return errors.Wrapf(ErrMalformedTx, "need %d bytes at offset %d of %d", n, c.pos, len(c.buf))
	}
	return nil
}

func (c *cursor) skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

func (c *cursor) varint() (uint64, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	size := 1
	switch c.buf[c.pos] {
	case 0xfd:
		size = 3
	case 0xfe:
		size = 5
	case 0xff:
		size = 9
	}
	if err := c.need(size); err != nil {
		return 0, err
	}
	val, n := ReadCompactInt(c.buf, c.pos)
	c.pos += n
	return val, nil
}

func (c *cursor) uint64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	val := binary.LittleEndian.Uint64(c.buf[c.pos : c.pos+8])
	c.pos += 8
	return val, nil
}
