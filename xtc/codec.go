/*
 * codec.go, part of molly.
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

//The decoder in this file reproduces, integer for integer, the coordinate
//compression of the GROMACS xdrfile library, so the floats that come out are
//bit-identical to the ones the reference C code produces. The compressed
//block stores each coordinate times the precision factor, rounded to an int.
//Most triples are small deltas against the previous atom, packed in a
//size class taken from the magicints ladder below; the class can move one
//rung up or down between runs, which the stream signals inline.

//magicints are the allowed value ranges for packed triples. Roughly each
//rung grows by 2^(1/3), so that moving one rung changes the packed size of
//a triple by about one bit. Indices below firstIdx are never valid.
var magicints = [...]int32{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 8, 10, 12, 16, 20, 25, 32, 40, 50, 64,
	80, 101, 128, 161, 203, 256, 322, 406, 512, 645, 812, 1024, 1290,
	1625, 2048, 2580, 3250, 4096, 5060, 6501, 8192, 10321, 13003,
	16384, 20642, 26007, 32768, 41285, 52015, 65536, 82570, 104031,
	131072, 165140, 208063, 262144, 330280, 416127, 524287, 660561,
	832255, 1048576, 1321122, 1664510, 2097152, 2642245, 3329021,
	4194304, 5284491, 6658042, 8388607, 10568983, 13316085, 16777216,
}

const (
	firstIdx = 9
	lastIdx  = len(magicints)
)

//sizeofint returns the number of bits needed to store values in [0, size].
func sizeofint(size uint32) int {
	num := uint64(1)
	bits := 0
	for uint64(size) >= num && bits < 32 {
		bits++
		num <<= 1
	}
	return bits
}

//sizeofints returns the number of bits needed to store a triple where
//component i takes values in [0, sizes[i]). It multiplies the three sizes
//byte by byte, so it must only be called when each size fits in 24 bits.
func sizeofints(sizes *[3]uint32) int {
	var bytes [32]uint32
	nbytes := 1
	bytes[0] = 1
	nbits := 0
	for i := 0; i < 3; i++ {
		tmp := uint32(0)
		bytecnt := 0
		for ; bytecnt < nbytes; bytecnt++ {
			tmp = bytes[bytecnt]*sizes[i] + tmp
			bytes[bytecnt] = tmp & 0xff
			tmp >>= 8
		}
		for tmp != 0 {
			bytes[bytecnt] = tmp & 0xff
			bytecnt++
			tmp >>= 8
		}
		nbytes = bytecnt
	}
	num := uint32(1)
	nbytes--
	for bytes[nbytes] >= num {
		nbits++
		num *= 2
	}
	return nbits + nbytes*8
}

//decodeInts unpacks a triple that was multiplexed into a single nbits-wide
//field, undoing the multiplication by the per-component sizes through
//byte-wise long division. All three sizes must be nonzero.
func (b *bitReader) decodeInts(nbits int, sizes *[3]uint32, nums *[3]int32) {
	var bytes [32]uint32
	numBytes := 0
	for nbits > 8 {
		bytes[numBytes] = b.readBits(8)
		numBytes++
		nbits -= 8
	}
	if nbits > 0 {
		bytes[numBytes] = b.readBits(nbits)
		numBytes++
	}
	for i := 2; i > 0; i-- {
		num := uint32(0)
		for j := numBytes - 1; j >= 0; j-- {
			num = num<<8 | bytes[j]
			p := num / sizes[i]
			bytes[j] = p
			num = num - p*sizes[i]
		}
		nums[i] = int32(num)
	}
	nums[0] = int32(bytes[0] | bytes[1]<<8 | bytes[2]<<16 | bytes[3]<<24)
}

//decodeCoords inflates the compressed coordinate block of one frame into
//out, which must have room for 3*limit values; atoms past the first limit
//ones are not decoded at all. natoms is the full atom count of the frame,
//prec the precision factor from the frame header, and data the opaque block,
//exactly as long as its on-disk byte count (the XDR padding excluded).
//filename and frame are used for errors only.
func decodeCoords(data []byte, natoms, limit int, prec float32, minint, maxint [3]int32, smallidx int32, out []float32, filename string, frame int) error {
	var sizeint [3]uint32
	var bitsizeint [3]int
	for i := 0; i < 3; i++ {
		span := int64(maxint[i]) - int64(minint[i]) + 1
		if span <= 0 || span > 0xffffffff {
			return Error{CorruptFrame + ": bad integer coordinate bounds", filename, frame, []string{"decodeCoords"}, true}
		}
		sizeint[i] = uint32(span)
	}
	bitsize := 0
	if sizeint[0]|sizeint[1]|sizeint[2] > 0xffffff {
		bitsizeint[0] = sizeofint(sizeint[0])
		bitsizeint[1] = sizeofint(sizeint[1])
		bitsizeint[2] = sizeofint(sizeint[2])
		//bitsize == 0 flags the use of one field per component
	} else {
		bitsize = sizeofints(&sizeint)
	}
	if smallidx < 1 || int(smallidx) >= lastIdx || magicints[smallidx] == 0 {
		return Error{CorruptFrame + ": invalid size class in frame header", filename, frame, []string{"decodeCoords"}, true}
	}
	tmpidx := int(smallidx) - 1
	if tmpidx < firstIdx {
		tmpidx = firstIdx
	}
	smaller := magicints[tmpidx] / 2
	smallnum := magicints[smallidx] / 2
	sizesmall := [3]uint32{uint32(magicints[smallidx]), uint32(magicints[smallidx]), uint32(magicints[smallidx])}

	br := newBitReader(data)
	inv := float32(1.0 / float64(prec))
	out = out[:3*limit]
	n := 0
	var thiscoord, prevcoord [3]int32
	i := 0
	//run persists across atoms: a clear flag bit means the run length of
	//the previous atom still applies.
	run := int32(0)
	for i < natoms && n < len(out) {
		if bitsize == 0 {
			thiscoord[0] = int32(br.readBits(bitsizeint[0]))
			thiscoord[1] = int32(br.readBits(bitsizeint[1]))
			thiscoord[2] = int32(br.readBits(bitsizeint[2]))
		} else {
			br.decodeInts(bitsize, &sizeint, &thiscoord)
		}
		i++
		thiscoord[0] += minint[0]
		thiscoord[1] += minint[1]
		thiscoord[2] += minint[2]
		prevcoord = thiscoord

		flag := br.readBits(1)
		isSmaller := int32(0)
		if flag == 1 {
			run = int32(br.readBits(5))
			isSmaller = run % 3
			run -= isSmaller
			isSmaller--
		}
		if br.err != nil {
			return Error{TruncatedInput + ": compressed block too short", filename, frame, []string{"decodeCoords"}, true}
		}
		if run > 0 {
			for k := int32(0); k < run; k += 3 {
				br.decodeInts(int(smallidx), &sizesmall, &thiscoord)
				if br.err != nil {
					return Error{TruncatedInput + ": compressed block too short", filename, frame, []string{"decodeCoords"}, true}
				}
				i++
				if i > natoms {
					return Error{CorruptFrame + ": delta run crosses the end of the frame", filename, frame, []string{"decodeCoords"}, true}
				}
				thiscoord[0] += prevcoord[0] - smallnum
				thiscoord[1] += prevcoord[1] - smallnum
				thiscoord[2] += prevcoord[2] - smallnum
				if k == 0 {
					//The first pair of a run is stored swapped, which
					//compresses water molecules better. Swap it back.
					thiscoord, prevcoord = prevcoord, thiscoord
					out[n] = float32(prevcoord[0]) * inv
					out[n+1] = float32(prevcoord[1]) * inv
					out[n+2] = float32(prevcoord[2]) * inv
					n += 3
					if n >= len(out) {
						return nil
					}
				} else {
					prevcoord = thiscoord
				}
				out[n] = float32(thiscoord[0]) * inv
				out[n+1] = float32(thiscoord[1]) * inv
				out[n+2] = float32(thiscoord[2]) * inv
				n += 3
				if n >= len(out) {
					return nil
				}
			}
		} else {
			out[n] = float32(thiscoord[0]) * inv
			out[n+1] = float32(thiscoord[1]) * inv
			out[n+2] = float32(thiscoord[2]) * inv
			n += 3
		}
		smallidx += isSmaller
		if smallidx < 1 || int(smallidx) >= lastIdx || magicints[smallidx] == 0 {
			return Error{CorruptFrame + ": size class walked out of range", filename, frame, []string{"decodeCoords"}, true}
		}
		if isSmaller < 0 {
			smallnum = smaller
			if smallidx > firstIdx {
				smaller = magicints[smallidx-1] / 2
			} else {
				smaller = 0
			}
		} else if isSmaller > 0 {
			smaller = smallnum
			smallnum = magicints[smallidx] / 2
		}
		sizesmall[0] = uint32(magicints[smallidx])
		sizesmall[1] = sizesmall[0]
		sizesmall[2] = sizesmall[0]
	}
	return nil
}
