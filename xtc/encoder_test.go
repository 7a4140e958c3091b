/*
 * encoder_test.go, part of molly.
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

//A compressor for the tests. It follows the GROMACS encoder step by step so
//the files written here carry the same bit streams a simulation would
//produce, runs, atom swaps and size-class changes included.

import (
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"testing"
)

type bitWriter struct {
	data     []byte
	cnt      int
	lastbits uint
	lastbyte uint32
}

func newBitWriter(capacity int) *bitWriter {
	return &bitWriter{data: make([]byte, capacity+4)}
}

func (w *bitWriter) writeBits(nbits int, num uint32) {
	cnt, lastbits, lastbyte := w.cnt, w.lastbits, w.lastbyte
	for nbits >= 8 {
		lastbyte = lastbyte<<8 | (num >> uint(nbits-8) & 0xff)
		w.data[cnt] = byte(lastbyte >> lastbits)
		cnt++
		nbits -= 8
	}
	if nbits > 0 {
		lastbyte = lastbyte<<uint(nbits) | num&(1<<uint(nbits)-1)
		lastbits += uint(nbits)
		if lastbits >= 8 {
			lastbits -= 8
			w.data[cnt] = byte(lastbyte >> lastbits)
			cnt++
		}
	}
	w.cnt, w.lastbits, w.lastbyte = cnt, lastbits, lastbyte
	if lastbits > 0 {
		w.data[cnt] = byte(lastbyte << (8 - lastbits))
	}
}

//writeInts packs three bounded ints into nbits bits, the multiplication
//mirror of decodeInts.
func (w *bitWriter) writeInts(nbits int, sizes *[3]uint32, nums *[3]uint32) {
	for i := 1; i < 3; i++ {
		if nums[i] >= sizes[i] {
			panic("writeInts: value does not fit its size")
		}
	}
	var bytes [32]uint32
	nbytes := 0
	tmp := nums[0]
	for {
		bytes[nbytes] = tmp & 0xff
		nbytes++
		tmp >>= 8
		if tmp == 0 {
			break
		}
	}
	for i := 1; i < 3; i++ {
		tmp = nums[i]
		for bc := 0; bc < nbytes; bc++ {
			tmp = bytes[bc]*sizes[i] + tmp
			bytes[bc] = tmp & 0xff
			tmp >>= 8
		}
		for tmp != 0 {
			bytes[nbytes] = tmp & 0xff
			nbytes++
			tmp >>= 8
		}
	}
	if nbits >= nbytes*8 {
		for i := 0; i < nbytes; i++ {
			w.writeBits(8, bytes[i])
		}
		w.writeBits(nbits-nbytes*8, 0)
	} else {
		for i := 0; i < nbytes-1; i++ {
			w.writeBits(8, bytes[i])
		}
		w.writeBits(nbits-(nbytes-1)*8, bytes[nbytes-1])
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

//quantize scales coordinates to ints with the reference rounding: the
//product stays in single precision, the half is added in double, and the
//result truncates toward zero.
func quantize(coords []float32, prec float32) []int32 {
	ints := make([]int32, len(coords))
	for i, x := range coords {
		v := x * prec
		var lf float32
		if x >= 0 {
			lf = float32(float64(v) + 0.5)
		} else {
			lf = float32(float64(v) - 0.5)
		}
		ints[i] = int32(lf)
	}
	return ints
}

//encodeBlock compresses quantized coordinates into the opaque block of a
//frame record and returns it with the header fields that describe it. The
//input is not modified; the atom-pair swaps work on a copy.
func encodeBlock(orig []int32) (block []byte, minint, maxint [3]int32, smallidx int32) {
	natoms := len(orig) / 3
	ints := make([]int32, len(orig))
	copy(ints, orig)
	minint = [3]int32{math.MaxInt32, math.MaxInt32, math.MaxInt32}
	maxint = [3]int32{math.MinInt32, math.MinInt32, math.MinInt32}
	mindiff := int32(math.MaxInt32)
	var old [3]int32
	for i := 0; i < natoms; i++ {
		diff := int32(0)
		for d := 0; d < 3; d++ {
			v := ints[3*i+d]
			if v < minint[d] {
				minint[d] = v
			}
			if v > maxint[d] {
				maxint[d] = v
			}
			diff += abs32(old[d] - v)
			old[d] = v
		}
		if i >= 1 && diff < mindiff {
			mindiff = diff
		}
	}
	var sizeint [3]uint32
	for d := 0; d < 3; d++ {
		sizeint[d] = uint32(maxint[d]-minint[d]) + 1
	}
	var bitsizeint [3]int
	bitsize := 0
	if (sizeint[0] | sizeint[1] | sizeint[2]) > 0xffffff {
		for d := 0; d < 3; d++ {
			bitsizeint[d] = sizeofint(sizeint[d])
		}
	} else {
		bitsize = sizeofints(&sizeint)
	}
	//the clamps keep the table lookups in range where the reference reads
	//past the array; no sane trajectory gets there
	smallidx = int32(firstIdx)
	for int(smallidx) < lastIdx-1 && magicints[smallidx] < mindiff {
		smallidx++
	}
	//the frame header stores this starting size class, not the one the
	//loop below adapts to; the decoder replays the same walk from here
	headerSmallidx := smallidx
	maxidx := int(smallidx) + 8
	if maxidx > lastIdx {
		maxidx = lastIdx
	}
	minidx := maxidx - 8
	li := int(smallidx) - 1
	if li < firstIdx {
		li = firstIdx
	}
	smaller := magicints[li] / 2
	smallnum := magicints[smallidx] / 2
	sizesmall := [3]uint32{uint32(magicints[smallidx]), uint32(magicints[smallidx]), uint32(magicints[smallidx])}
	la := maxidx
	if la > lastIdx-1 {
		la = lastIdx - 1
	}
	larger := magicints[la] / 2

	w := newBitWriter(12*len(ints) + 128)
	prevrun := -1
	var prevcoord [3]int32
	var runvals [24]uint32
	i := 0
	for i < natoms {
		isSmall := false
		this := ints[3*i : 3*i+3]
		isSmaller := 0
		if int(smallidx) < maxidx && i >= 1 &&
			abs32(this[0]-prevcoord[0]) < larger &&
			abs32(this[1]-prevcoord[1]) < larger &&
			abs32(this[2]-prevcoord[2]) < larger {
			isSmaller = 1
		} else if int(smallidx) > minidx {
			isSmaller = -1
		}
		if i+1 < natoms {
			next := ints[3*(i+1) : 3*(i+1)+3]
			if abs32(this[0]-next[0]) < smallnum &&
				abs32(this[1]-next[1]) < smallnum &&
				abs32(this[2]-next[2]) < smallnum {
				//store the second atom first; the decoder swaps the pair back
				this[0], next[0] = next[0], this[0]
				this[1], next[1] = next[1], this[1]
				this[2], next[2] = next[2], this[2]
				isSmall = true
			}
		}
		tmp := [3]uint32{
			uint32(this[0] - minint[0]),
			uint32(this[1] - minint[1]),
			uint32(this[2] - minint[2]),
		}
		if bitsize == 0 {
			w.writeBits(bitsizeint[0], tmp[0])
			w.writeBits(bitsizeint[1], tmp[1])
			w.writeBits(bitsizeint[2], tmp[2])
		} else {
			w.writeInts(bitsize, &sizeint, &tmp)
		}
		prevcoord[0], prevcoord[1], prevcoord[2] = this[0], this[1], this[2]
		i++

		run := 0
		if !isSmall && isSmaller == -1 {
			isSmaller = 0
		}
		for isSmall && run < 8*3 {
			cur := ints[3*i : 3*i+3]
			if isSmaller == -1 {
				d0 := int64(cur[0] - prevcoord[0])
				d1 := int64(cur[1] - prevcoord[1])
				d2 := int64(cur[2] - prevcoord[2])
				if d0*d0+d1*d1+d2*d2 >= int64(smaller)*int64(smaller) {
					isSmaller = 0
				}
			}
			runvals[run] = uint32(cur[0] - prevcoord[0] + smallnum)
			runvals[run+1] = uint32(cur[1] - prevcoord[1] + smallnum)
			runvals[run+2] = uint32(cur[2] - prevcoord[2] + smallnum)
			run += 3
			prevcoord[0], prevcoord[1], prevcoord[2] = cur[0], cur[1], cur[2]
			i++
			isSmall = false
			if i < natoms {
				nxt := ints[3*i : 3*i+3]
				if abs32(nxt[0]-prevcoord[0]) < smallnum &&
					abs32(nxt[1]-prevcoord[1]) < smallnum &&
					abs32(nxt[2]-prevcoord[2]) < smallnum {
					isSmall = true
				}
			}
		}
		if run != prevrun || isSmaller != 0 {
			prevrun = run
			w.writeBits(1, 1)
			w.writeBits(5, uint32(run+isSmaller+1))
		} else {
			w.writeBits(1, 0)
		}
		for k := 0; k < run; k += 3 {
			v := [3]uint32{runvals[k], runvals[k+1], runvals[k+2]}
			w.writeInts(int(smallidx), &sizesmall, &v)
		}
		if isSmaller != 0 {
			smallidx += int32(isSmaller)
			if isSmaller < 0 {
				smallnum = smaller
				if smallidx > firstIdx {
					smaller = magicints[smallidx-1] / 2
				} else {
					smaller = 0
				}
			} else {
				smaller = smallnum
				smallnum = magicints[smallidx] / 2
			}
			sizesmall[0] = uint32(magicints[smallidx])
			sizesmall[1] = sizesmall[0]
			sizesmall[2] = sizesmall[0]
		}
	}
	nbytes := w.cnt
	if w.lastbits != 0 {
		nbytes++
	}
	return w.data[:nbytes], minint, maxint, headerSmallidx
}

//buildRecord assembles one complete frame record, compressing the
//coordinates unless the frame is small enough to go in raw.
func buildRecord(step int32, time float32, box [9]float32, coords []float32, prec float32) []byte {
	natoms := len(coords) / 3
	hdr := make([]byte, smallHeaderLen)
	binary.BigEndian.PutUint32(hdr[magicOffset:], uint32(xtcMagic))
	binary.BigEndian.PutUint32(hdr[natomsOffset:], uint32(natoms))
	binary.BigEndian.PutUint32(hdr[stepOffset:], uint32(step))
	binary.BigEndian.PutUint32(hdr[timeOffset:], math.Float32bits(time))
	for i, v := range box {
		binary.BigEndian.PutUint32(hdr[boxOffset+4*i:], math.Float32bits(v))
	}
	binary.BigEndian.PutUint32(hdr[lsizeOffset:], uint32(natoms))
	if natoms <= smallFrameAtoms {
		rec := make([]byte, smallHeaderLen+12*natoms)
		copy(rec, hdr)
		for i, v := range coords {
			binary.BigEndian.PutUint32(rec[smallHeaderLen+4*i:], math.Float32bits(v))
		}
		return rec
	}
	ints := quantize(coords, prec)
	block, minint, maxint, smallidx := encodeBlock(ints)
	padded := (len(block) + 3) &^ 3
	rec := make([]byte, fullHeaderLen+padded)
	copy(rec, hdr)
	binary.BigEndian.PutUint32(rec[precOffset:], math.Float32bits(prec))
	for d := 0; d < 3; d++ {
		binary.BigEndian.PutUint32(rec[minintOffset+4*d:], uint32(minint[d]))
		binary.BigEndian.PutUint32(rec[maxintOffset+4*d:], uint32(maxint[d]))
	}
	binary.BigEndian.PutUint32(rec[smallidxOffset:], uint32(smallidx))
	binary.BigEndian.PutUint32(rec[nbytesOffset:], uint32(len(block)))
	copy(rec[fullHeaderLen:], block)
	return rec
}

//expectedCoords returns the exact values the decoder must produce for
//coordinates stored at the given precision.
func expectedCoords(coords []float32, prec float32) []float32 {
	ints := quantize(coords, prec)
	inv := float32(1.0 / float64(prec))
	out := make([]float32, len(ints))
	for i, v := range ints {
		out[i] = float32(v) * inv
	}
	return out
}

var testBox = [9]float32{5, 0, 0, 0, 5, 0, 0, 0, 5}

//testCoords builds coordinates in nm the way solvated systems look: tight
//three-atom clusters with larger jumps between them, which is what makes
//the compressor emit runs.
func testCoords(rng *rand.Rand, natoms int) []float32 {
	out := make([]float32, 0, 3*natoms)
	var cx, cy, cz float32
	for len(out) < 3*natoms {
		if len(out)%9 == 0 {
			cx = rng.Float32() * 5
			cy = rng.Float32() * 5
			cz = rng.Float32() * 5
		}
		out = append(out,
			cx+(rng.Float32()-0.5)*0.02,
			cy+(rng.Float32()-0.5)*0.02,
			cz+(rng.Float32()-0.5)*0.02)
	}
	return out
}

//writeXTC concatenates frame records into a trajectory file.
func writeXTC(Te *testing.T, path string, recs ...[]byte) {
	Te.Helper()
	var buf []byte
	for _, r := range recs {
		buf = append(buf, r...)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		Te.Fatal(err)
	}
}

//makeTraj writes a trajectory of nframes and returns, per frame, the exact
//coordinates the reader must hand back. Step and time advance as in a run
//saved every 500 steps of 2 fs.
func makeTraj(Te *testing.T, path string, nframes, natoms int, prec float32) [][]float32 {
	Te.Helper()
	rng := rand.New(rand.NewSource(83))
	recs := make([][]byte, 0, nframes)
	want := make([][]float32, 0, nframes)
	for f := 0; f < nframes; f++ {
		crd := testCoords(rng, natoms)
		recs = append(recs, buildRecord(int32(f*500), float32(f), testBox, crd, prec))
		if natoms <= smallFrameAtoms {
			want = append(want, append([]float32(nil), crd...))
		} else {
			want = append(want, expectedCoords(crd, prec))
		}
	}
	writeXTC(Te, path, recs...)
	return want
}
