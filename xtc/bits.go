/*
 * bits.go, part of molly.
 *
 * Copyright 2024 The molly authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package xtc

import "io"

//bitReader unpacks big-endian bit fields from the compressed coordinate
//block of one frame. It keeps the same three-word cursor as the reference
//implementation: the count of whole bytes consumed, the number of still
//unread bits in the tail of the last byte, and an accumulator with the last
//bytes read.
type bitReader struct {
	data     []byte
	cnt      int
	lastbits uint
	lastbyte uint32
	err      error //sticky, set on the first read past the end of data
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

//readBits returns the next nbits (up to 32) of the block as an unsigned
//integer. Once the block is exhausted it returns zeros and records the
//truncation in b.err, so a decoding loop can check for failure once instead
//of on every call.
func (b *bitReader) readBits(nbits int) uint32 {
	mask := uint32((uint64(1) << uint(nbits)) - 1)
	var num uint32
	for nbits >= 8 {
		if b.cnt >= len(b.data) {
			b.fail()
			return 0
		}
		b.lastbyte = b.lastbyte<<8 | uint32(b.data[b.cnt])
		b.cnt++
		num |= (b.lastbyte >> b.lastbits) << uint(nbits-8)
		nbits -= 8
	}
	if nbits > 0 {
		if b.lastbits < uint(nbits) {
			if b.cnt >= len(b.data) {
				b.fail()
				return 0
			}
			b.lastbits += 8
			b.lastbyte = b.lastbyte<<8 | uint32(b.data[b.cnt])
			b.cnt++
		}
		b.lastbits -= uint(nbits)
		num |= (b.lastbyte >> b.lastbits) & (1<<uint(nbits) - 1)
	}
	return num & mask
}

func (b *bitReader) fail() {
	if b.err == nil {
		b.err = io.ErrUnexpectedEOF
	}
}
