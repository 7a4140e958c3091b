/*
 * selection.go, part of molly.
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
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

//FrameSelection picks a subset of the frames of a trajectory for the batch
//reading calls (ReadFrames and ReadIntoArray). A nil FrameSelection means
//all frames. The implementations in this package are FrameRange and
//FrameList; the interface is closed.
type FrameSelection interface {
	//frameIndices returns the selected frame numbers, sorted and unique,
	//given the total number of frames. Entries outside the trajectory are
	//simply not included.
	frameIndices(count int) []int
}

//FrameRange selects every stepth frame in [start, stop). It mimics a Python
//slice with a non-negative step.
type FrameRange struct {
	start, stop, step int
}

//NewFrameRange builds a FrameRange. A negative stop leaves the range open
//on the right, reading until the trajectory runs out. The step must be
//positive; there is no reading backwards, since decompression within and
//across frame records only goes forward.
func NewFrameRange(start, stop, step int) (*FrameRange, error) {
	if step < 1 {
		return nil, Error{fmt.Sprintf("frame range step must be positive, got %d", step), "", -1, []string{"NewFrameRange"}, true}
	}
	if start < 0 {
		start = 0
	}
	return &FrameRange{start: start, stop: stop, step: step}, nil
}

func (r *FrameRange) frameIndices(count int) []int {
	stop := r.stop
	if stop < 0 || stop > count {
		stop = count
	}
	var ret []int
	for i := r.start; i < stop; i += r.step {
		ret = append(ret, i)
	}
	return ret
}

//FrameList selects the frames whose numbers it holds. The list is treated
//as a set: duplicates and ordering in it do not matter, frames always come
//back in trajectory order. Entries beyond the end of the trajectory select
//nothing.
type FrameList []int

func (l FrameList) frameIndices(count int) []int {
	ret := make([]int, 0, len(l))
	for _, v := range l {
		if v >= 0 && v < count {
			ret = append(ret, v)
		}
	}
	sort.Ints(ret)
	//dedup in place
	uniq := ret[:0]
	for i, v := range ret {
		if i == 0 || v != ret[i-1] {
			uniq = append(uniq, v)
		}
	}
	return uniq
}

//AtomSelection picks a subset of the atoms of each frame. A nil
//AtomSelection means all atoms. Because the compressed coordinates of a
//frame can only be decoded front to back, a selection saves decoding work
//only after its highest index: the decoder always inflates atoms 0 through
//max(selection), then keeps the requested ones.
type AtomSelection interface {
	//plan returns the gather list (output order; nil means the plain
	//prefix), and how many atoms must be decoded to satisfy it.
	plan(natoms int) (gather []int, limit int, err error)
}

//AtomIndices selects atoms by index, in the given order; an atom listed
//twice comes back twice. All indices must be valid for the trajectory.
type AtomIndices []int

func (a AtomIndices) plan(natoms int) ([]int, int, error) {
	limit := 0
	for _, idx := range a {
		if idx < 0 || idx >= natoms {
			return nil, 0, Error{fmt.Sprintf("%s: atom index %d with %d atoms per frame", IndexOutOfRange, idx, natoms), "", -1, []string{"AtomIndices"}, true}
		}
		if idx+1 > limit {
			limit = idx + 1
		}
	}
	return a, limit, nil
}

//AtomMask selects atoms by membership in a bitmap. Atoms come back in
//trajectory order. The zero value selects nothing; NewAtomMask and
//MaskFromBools build useful ones.
type AtomMask struct {
	bits *roaring.Bitmap
}

//NewAtomMask builds a mask holding the given atom indices.
func NewAtomMask(indices ...int) (*AtomMask, error) {
	bits := roaring.New()
	for _, idx := range indices {
		if idx < 0 {
			return nil, Error{fmt.Sprintf("%s: negative atom index %d", IndexOutOfRange, idx), "", -1, []string{"NewAtomMask"}, true}
		}
		bits.Add(uint32(idx))
	}
	return &AtomMask{bits: bits}, nil
}

//MaskFromBools builds a mask that selects the atoms whose entry in keep is
//true. The slice may be shorter than the frame; the missing tail selects
//nothing.
func MaskFromBools(keep []bool) *AtomMask {
	bits := roaring.New()
	for i, k := range keep {
		if k {
			bits.Add(uint32(i))
		}
	}
	return &AtomMask{bits: bits}
}

//Contains reports whether the mask selects atom i.
func (m *AtomMask) Contains(i int) bool {
	if m.bits == nil || i < 0 {
		return false
	}
	return m.bits.ContainsInt(i)
}

//Count returns the number of atoms the mask selects.
func (m *AtomMask) Count() int {
	if m.bits == nil {
		return 0
	}
	return int(m.bits.GetCardinality())
}

func (m *AtomMask) plan(natoms int) ([]int, int, error) {
	if m.bits == nil || m.bits.IsEmpty() {
		return []int{}, 0, nil
	}
	max := int(m.bits.Maximum())
	if max >= natoms {
		return nil, 0, Error{fmt.Sprintf("%s: mask selects atom %d with %d atoms per frame", IndexOutOfRange, max, natoms), "", -1, []string{"AtomMask"}, true}
	}
	arr := m.bits.ToArray()
	gather := make([]int, len(arr))
	for i, v := range arr {
		gather[i] = int(v)
	}
	return gather, max + 1, nil
}

//AtomsUntil selects the first n atoms of every frame. This is the cheapest
//selection: the decoder stops cold after atom n-1. Values beyond the frame
//size select the whole frame.
type AtomsUntil int

func (u AtomsUntil) plan(natoms int) ([]int, int, error) {
	n := int(u)
	if n < 0 {
		return nil, 0, Error{fmt.Sprintf("%s: negative atom count %d", IndexOutOfRange, n), "", -1, []string{"AtomsUntil"}, true}
	}
	if n > natoms {
		n = natoms
	}
	return nil, n, nil
}

//resolveFrames turns a possibly nil FrameSelection into the definitive,
//sorted list of frame numbers to read.
func resolveFrames(sel FrameSelection, count int) []int {
	if sel == nil {
		all := make([]int, count)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return sel.frameIndices(count)
}

//resolveAtoms turns a possibly nil AtomSelection into a gather list and a
//decoding limit. A nil gather list with limit n means the plain prefix of n
//atoms; otherwise the output atoms are index by the gather entries, in
//order.
func resolveAtoms(sel AtomSelection, natoms int) ([]int, int, error) {
	if sel == nil {
		return nil, natoms, nil
	}
	return sel.plan(natoms)
}

//selCount returns the number of atoms a resolved selection produces.
func selCount(gather []int, limit int) int {
	if gather != nil {
		return len(gather)
	}
	return limit
}
