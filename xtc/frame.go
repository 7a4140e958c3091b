/*
 * frame.go, part of molly.
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

import (
	"encoding/binary"
	"math"

	v3 "github.com/ma3ke/molly/v3"
	"gonum.org/v1/gonum/mat"
)

//A frame record is laid out as follows, everything big-endian:
//
//	offset 0   magic, always 1995
//	offset 4   number of atoms
//	offset 8   simulation step
//	offset 12  simulation time in ps, float32
//	offset 16  box vectors, 9 float32, row-major
//	offset 52  number of atoms again, preceding the coordinates
//
//With more than 9 atoms the compressed layout follows: precision (float32),
//3 mins, 3 maxs, the size class index, the byte count of the opaque block,
//and the block itself, padded to a multiple of 4. With 9 atoms or fewer the
//coordinates are stored as plain float32 right after offset 56.
const (
	xtcMagic = 1995

	magicOffset    = 0
	natomsOffset   = 4
	stepOffset     = 8
	timeOffset     = 12
	boxOffset      = 16
	lsizeOffset    = 52
	smallHeaderLen = 56

	precOffset     = 56
	minintOffset   = 60
	maxintOffset   = 72
	smallidxOffset = 84
	nbytesOffset   = 88
	fullHeaderLen  = 92

	//frames with at most this many atoms store uncompressed floats
	smallFrameAtoms = 9
)

//Frame is one snapshot of a trajectory. Positions holds x, y, z for each
//atom, one after the other, so its length is three times the number of atoms
//read. When the frame was read through an AtomSelection, only the selected
//atoms are present, in the order the selection defines.
type Frame struct {
	Positions []float32  //coordinates in nm
	Box       [9]float32 //box vectors in nm, row-major
	Step      int64      //simulation step (32 bits on disk)
	Time      float32    //simulation time in ps
	Prec      float32    //precision factor, or -1 for uncompressed frames
}

//Len returns the number of atoms held in the frame.
func (F *Frame) Len() int {
	return len(F.Positions) / 3
}

//Coords returns the positions as a new Nx3 matrix of float64, for handing
//frames to analysis code. The conversion allocates; code that cares should
//work on Positions directly.
func (F *Frame) Coords() (*v3.Matrix, error) {
	if len(F.Positions) == 0 {
		return nil, Error{EmptyTrajectory + ": frame holds no atoms", "", -1, []string{"Coords"}, true}
	}
	data := make([]float64, len(F.Positions))
	for i, v := range F.Positions {
		data[i] = float64(v)
	}
	return v3.NewMatrix(data)
}

//BoxMatrix returns the box vectors as a 3x3 matrix, one vector per row.
func (F *Frame) BoxMatrix() (*v3.Matrix, error) {
	data := make([]float64, 9)
	for i, v := range F.Box {
		data[i] = float64(v)
	}
	return v3.NewMatrix(data)
}

//Volume returns the volume of the frame's box in nm^3, which for the
//triclinic boxes XTC stores is the determinant of the box matrix.
func (F *Frame) Volume() float64 {
	data := make([]float64, 9)
	for i, v := range F.Box {
		data[i] = float64(v)
	}
	return math.Abs(mat.Det(mat.NewDense(3, 3, data)))
}

//frameHeader holds the fixed fields at the start of every frame record.
type frameHeader struct {
	natoms int
	step   int32
	time   float32
	box    [9]float32
}

func be32(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b))
}

func bef32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

//recordLength computes the total on-disk length of the frame record that
//starts at hdr[0], from the header fields alone. hdr needs to hold at least
//the first 56 bytes of the record, and the first 92 for a compressed frame.
//wantAtoms is the atom count the rest of the file has; a negative value
//skips that check. The frame number is used for errors only.
func recordLength(hdr []byte, wantAtoms int, filename string, frame int) (int, error) {
	if len(hdr) < smallHeaderLen {
		return 0, Error{TruncatedInput + ": incomplete frame header", filename, frame, []string{"recordLength"}, true}
	}
	if be32(hdr[magicOffset:]) != xtcMagic {
		return 0, Error{WrongMagic, filename, frame, []string{"recordLength"}, true}
	}
	natoms := be32(hdr[natomsOffset:])
	if natoms < 0 {
		return 0, Error{CorruptFrame + ": negative atom count", filename, frame, []string{"recordLength"}, true}
	}
	if wantAtoms >= 0 && int(natoms) != wantAtoms {
		return 0, Error{CorruptFrame + ": frame atom count differs from the rest of the file", filename, frame, []string{"recordLength"}, true}
	}
	lsize := be32(hdr[lsizeOffset:])
	if lsize != natoms {
		return 0, Error{CorruptFrame + ": coordinate count does not match the atom count", filename, frame, []string{"recordLength"}, true}
	}
	if natoms <= smallFrameAtoms {
		return smallHeaderLen + 12*int(natoms), nil
	}
	if len(hdr) < fullHeaderLen {
		return 0, Error{TruncatedInput + ": incomplete frame header", filename, frame, []string{"recordLength"}, true}
	}
	nbytes := be32(hdr[nbytesOffset:])
	if nbytes < 0 {
		return 0, Error{CorruptFrame + ": negative compressed block size", filename, frame, []string{"recordLength"}, true}
	}
	return fullHeaderLen + (int(nbytes)+3)&^3, nil
}

//decodeRecord parses and decodes one complete frame record. The first limit
//atoms are written to out, which must have room for 3*limit float32; the
//remaining atoms of the frame are left undecoded. It returns the header
//fields and the precision factor of the frame.
func decodeRecord(rec []byte, wantAtoms, limit int, out []float32, filename string, frame int) (frameHeader, float32, error) {
	var hdr frameHeader
	length, err := recordLength(rec, wantAtoms, filename, frame)
	if err != nil {
		return hdr, 0, err
	}
	if len(rec) < length {
		return hdr, 0, Error{TruncatedInput + ": incomplete frame record", filename, frame, []string{"decodeRecord"}, true}
	}
	hdr.natoms = int(be32(rec[natomsOffset:]))
	hdr.step = be32(rec[stepOffset:])
	hdr.time = bef32(rec[timeOffset:])
	for i := 0; i < 9; i++ {
		hdr.box[i] = bef32(rec[boxOffset+4*i:])
	}
	if limit > hdr.natoms {
		limit = hdr.natoms
	}
	if hdr.natoms <= smallFrameAtoms {
		for i := 0; i < 3*limit; i++ {
			out[i] = bef32(rec[smallHeaderLen+4*i:])
		}
		//uncompressed frames carry no precision field; the reference
		//library reports -1 for them
		return hdr, -1, nil
	}
	prec := bef32(rec[precOffset:])
	if prec <= 0 || math.IsNaN(float64(prec)) || math.IsInf(float64(prec), 0) {
		return hdr, 0, Error{CorruptFrame + ": invalid precision factor", filename, frame, []string{"decodeRecord"}, true}
	}
	var minint, maxint [3]int32
	for i := 0; i < 3; i++ {
		minint[i] = be32(rec[minintOffset+4*i:])
		maxint[i] = be32(rec[maxintOffset+4*i:])
	}
	smallidx := be32(rec[smallidxOffset:])
	nbytes := int(be32(rec[nbytesOffset:]))
	block := rec[fullHeaderLen : fullHeaderLen+nbytes]
	err = decodeCoords(block, hdr.natoms, limit, prec, minint, maxint, smallidx, out, filename, frame)
	if err != nil {
		return hdr, 0, errDecorate(err, "decodeRecord")
	}
	return hdr, prec, nil
}
