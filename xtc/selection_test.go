/*
 * selection_test.go, part of molly.
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
	"reflect"
	"testing"
)

func TestFrameRange(Te *testing.T) {
	cases := []struct {
		start, stop, step int
		count             int
		want              []int
	}{
		{25, 50, 3, 100, []int{25, 28, 31, 34, 37, 40, 43, 46, 49}},
		{0, 100, 17, 100, []int{0, 17, 34, 51, 68, 85}},
		{33, 100, 17, 100, []int{33, 50, 67, 84}},
		{0, -1, 25, 100, []int{0, 25, 50, 75}},   //open right end
		{25, 50, 3, 30, []int{25, 28}},           //clipped by the trajectory
		{-5, 4, 1, 100, []int{0, 1, 2, 3}},       //negative start clamps to zero
		{50, 25, 1, 100, nil}, //empty, start past stop
		{99, -1, 1, 100, []int{99}},
		{100, -1, 1, 100, nil},
	}
	for _, c := range cases {
		r, err := NewFrameRange(c.start, c.stop, c.step)
		if err != nil {
			Te.Fatalf("NewFrameRange(%d,%d,%d): %v", c.start, c.stop, c.step, err)
		}
		got := r.frameIndices(c.count)
		if !reflect.DeepEqual(got, c.want) {
			Te.Errorf("range (%d,%d,%d) over %d frames: got %v, want %v",
				c.start, c.stop, c.step, c.count, got, c.want)
		}
	}
	for _, step := range []int{0, -1, -10} {
		if _, err := NewFrameRange(0, 10, step); err == nil {
			Te.Errorf("step %d accepted", step)
		}
	}
}

func TestFrameList(Te *testing.T) {
	cases := []struct {
		list  FrameList
		count int
		want  []int
	}{
		{FrameList{5, 1, 3}, 10, []int{1, 3, 5}},            //sorted
		{FrameList{4, 4, 4, 2}, 10, []int{2, 4}},            //duplicates collapse
		{FrameList{0, 9, 10, 50, -1}, 10, []int{0, 9}},      //out of range drops silently
		{FrameList{}, 10, []int{}},
		{FrameList{3}, 3, []int{}},
	}
	for _, c := range cases {
		got := c.list.frameIndices(c.count)
		if !reflect.DeepEqual(got, c.want) {
			Te.Errorf("list %v over %d frames: got %v, want %v", c.list, c.count, got, c.want)
		}
	}
}

func TestAtomIndices(Te *testing.T) {
	sel := AtomIndices{7, 2, 2, 0}
	gather, limit, err := sel.plan(10)
	if err != nil {
		Te.Fatal(err)
	}
	//order and repetition are the caller's business
	if !reflect.DeepEqual(gather, []int{7, 2, 2, 0}) {
		Te.Errorf("gather = %v", gather)
	}
	if limit != 8 {
		Te.Errorf("limit = %d, want 8", limit)
	}
	if _, _, err = (AtomIndices{0, 10}).plan(10); err == nil {
		Te.Error("out of range index accepted")
	}
	if _, _, err = (AtomIndices{-1}).plan(10); err == nil {
		Te.Error("negative index accepted")
	}
	gather, limit, err = AtomIndices{}.plan(10)
	if err != nil || len(gather) != 0 || limit != 0 {
		Te.Errorf("empty selection: %v %d %v", gather, limit, err)
	}
}

func TestAtomMask(Te *testing.T) {
	keep := []bool{true, true, true, false, false, false, true, false, false, true, false}
	m := MaskFromBools(keep)
	if m.Count() != 5 {
		Te.Errorf("Count = %d, want 5", m.Count())
	}
	gather, limit, err := m.plan(11)
	if err != nil {
		Te.Fatal(err)
	}
	if limit != 10 {
		Te.Errorf("limit = %d, want 10", limit)
	}
	if !reflect.DeepEqual(gather, []int{0, 1, 2, 6, 9}) {
		Te.Errorf("gather = %v", gather)
	}
	for i, k := range keep {
		if m.Contains(i) != k {
			Te.Errorf("Contains(%d) = %v, want %v", i, m.Contains(i), k)
		}
	}

	m2, err := NewAtomMask(3, 1, 3)
	if err != nil {
		Te.Fatal(err)
	}
	gather, limit, err = m2.plan(5)
	if err != nil {
		Te.Fatal(err)
	}
	if !reflect.DeepEqual(gather, []int{1, 3}) || limit != 4 {
		Te.Errorf("mask from indices: gather %v limit %d", gather, limit)
	}
	if _, err = NewAtomMask(-2); err == nil {
		Te.Error("negative index accepted")
	}
	//an atom beyond the trajectory is an error, unlike a frame beyond it
	if _, _, err = m2.plan(3); err == nil {
		Te.Error("mask past the end accepted")
	}
	empty := MaskFromBools(nil)
	gather, limit, err = empty.plan(5)
	if err != nil || len(gather) != 0 || limit != 0 {
		Te.Errorf("empty mask: %v %d %v", gather, limit, err)
	}
}

func TestAtomsUntil(Te *testing.T) {
	gather, limit, err := AtomsUntil(4).plan(10)
	if err != nil || gather != nil || limit != 4 {
		Te.Errorf("AtomsUntil(4): %v %d %v", gather, limit, err)
	}
	//more atoms than the frame has just means the whole frame
	_, limit, err = AtomsUntil(400).plan(10)
	if err != nil || limit != 10 {
		Te.Errorf("AtomsUntil(400): limit %d, err %v", limit, err)
	}
	_, limit, err = AtomsUntil(0).plan(10)
	if err != nil || limit != 0 {
		Te.Errorf("AtomsUntil(0): limit %d, err %v", limit, err)
	}
	if _, _, err = AtomsUntil(-1).plan(10); err == nil {
		Te.Error("negative count accepted")
	}
}

func TestSelectionDefaults(Te *testing.T) {
	if got := resolveFrames(nil, 4); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		Te.Errorf("nil frame selection: %v", got)
	}
	gather, limit, err := resolveAtoms(nil, 7)
	if err != nil || gather != nil || limit != 7 {
		Te.Errorf("nil atom selection: %v %d %v", gather, limit, err)
	}
	if selCount(nil, 7) != 7 {
		Te.Errorf("selCount(nil, 7) = %d", selCount(nil, 7))
	}
	if selCount([]int{3, 3, 1}, 7) != 3 {
		Te.Errorf("selCount(gather) = %d", selCount([]int{3, 3, 1}, 7))
	}
}
