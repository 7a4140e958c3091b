/*
 * doc.go, part of molly.
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

/*Package xtc reads GROMACS XTC trajectory files, without cgo.

An XTC file is a sequence of independent frame records. Each record carries a
small header (magic number, atom count, simulation step, time and the 3x3 box)
followed by the coordinates. Frames with more than 9 atoms store the
coordinates multiplied by a precision factor, rounded to integers, and
bit-packed with the scheme of the GROMACS xdrfile library; tiny frames store
plain big-endian floats. This package reimplements the integer pipeline of
xdrfile exactly, so decoded values match the reference library bit for bit.

Two access styles are provided. Sequential access (PopFrame, or Next with a
v3.Matrix, for compatibility with other gochem-style trajectory readers)
works on any input, including gzip/zstd/lz4/lzw compressed files, which are
decompressed transparently. Random access (ReadFrames, ReadIntoArray,
FrameCount) needs a plain, seekable file; the first such call scans the frame
headers once to build an offset index, without decompressing any coordinates.
The index can be brought up to date with Refresh if the trajectory is still
being written to.

Frame and atom subsets are expressed with FrameSelection and AtomSelection
values. Because the compressed stream is strictly sequential within a frame,
selecting atoms saves work only past the highest selected index; the decoder
stops as soon as the last atom of interest has been produced.

All positions and box vectors are in nm, as stored on disk.
*/
package xtc
