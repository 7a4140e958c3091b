/*
 * index.go, part of molly.
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
	"io"
)

//XTC has no table of contents: the only way to know where frame k starts is
//to have walked the k-1 records before it. The index makes that walk once,
//reading 92 bytes per frame, and remembers each record's offset and length.
//Coordinates are never touched, so indexing is drastically cheaper than
//reading.

type frameEntry struct {
	offset int64
	length int
}

//scanFrames walks the frame records from offset off to the end of the file,
//appending an entry per frame to entries. frame is the number of the first
//frame scanned, for error reporting. The returned slice replaces entries;
//on error the scan result is discarded by the callers.
func (X *XTCReader) scanFrames(entries []frameEntry, off int64, frame int) ([]frameEntry, error) {
	fi, err := X.f.Stat()
	if err != nil {
		return nil, Error{err.Error(), X.filename, frame, []string{"scanFrames"}, true}
	}
	fsize := fi.Size()
	var hdr [fullHeaderLen]byte
	for off < fsize {
		n, err := X.f.ReadAt(hdr[:], off)
		if err != nil && err != io.EOF {
			return nil, Error{err.Error(), X.filename, frame, []string{"scanFrames"}, true}
		}
		length, lerr := recordLength(hdr[:n], X.natoms, X.filename, frame)
		if lerr != nil {
			return nil, errDecorate(lerr, "scanFrames")
		}
		if off+int64(length) > fsize {
			return nil, Error{TruncatedInput + ": frame record extends past the end of the file", X.filename, frame, []string{"scanFrames"}, true}
		}
		entries = append(entries, frameEntry{offset: off, length: length})
		off += int64(length)
		frame++
	}
	return entries, nil
}

//ensureIndex builds the frame index if it is not there yet. It only works
//on seekable trajectories; the compressed, streaming kind cannot be walked
//without decompressing from the start on every access.
func (X *XTCReader) ensureIndex() error {
	if !X.readable {
		return Error{TrajUnIniRead, X.filename, -1, []string{"ensureIndex"}, true}
	}
	if !X.seekable {
		return Error{NotSeekable, X.filename, -1, []string{"ensureIndex"}, true}
	}
	if X.index != nil {
		return nil
	}
	entries, err := X.scanFrames(nil, 0, 0)
	if err != nil {
		return errDecorate(err, "ensureIndex")
	}
	if len(entries) == 0 {
		return Error{EmptyTrajectory, X.filename, -1, []string{"ensureIndex"}, true}
	}
	X.index = entries
	return nil
}

//FrameCount returns the number of frames in the trajectory, indexing it on
//the first call. Only seekable trajectories can be counted without reading
//them through.
func (X *XTCReader) FrameCount() (int, error) {
	if err := X.ensureIndex(); err != nil {
		return 0, errDecorate(err, "FrameCount")
	}
	return len(X.index), nil
}

//Refresh extends the frame index over data appended to the file since the
//index was built, as happens when reading a trajectory a simulation is still
//writing to. On failure the existing index stays valid; frames indexed
//before the failing record are not forgotten.
func (X *XTCReader) Refresh() error {
	if !X.readable {
		return Error{TrajUnIniRead, X.filename, -1, []string{"Refresh"}, true}
	}
	if X.index == nil {
		return X.ensureIndex()
	}
	last := X.index[len(X.index)-1]
	entries, err := X.scanFrames(X.index, last.offset+int64(last.length), len(X.index))
	if err != nil {
		return errDecorate(err, "Refresh")
	}
	X.index = entries
	return nil
}
