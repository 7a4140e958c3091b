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

/*Package molly defines the common interfaces of the molly library, a pure-Go
reader for GROMACS XTC molecular dynamics trajectories.

The work happens in the subpackages: xtc implements the format itself
(frame decoding, indexing, selections and both sequential and random access),
and v3 provides the Nx3 coordinate matrix type used to hand frames to
analysis code.

XTC files store coordinates lossily: each position is multiplied by a
precision factor (typically 1000), rounded to an integer, and the integers are
bit-packed with a scheme that exploits the spatial coherence of neighboring
atoms. Reading one back is therefore an exercise in exact integer plumbing; a
single bit read wrong ruins every coordinate that follows in the frame. The
decoder here reproduces the reference integer pipeline so that the floats it
returns are bit-for-bit those of the GROMACS xdrfile library.

Unless otherwise indicated, all distances in this library are in nm, which is
what the format stores on disk. This differs from, e.g., PDB-centric tools
that work in Å; multiply by 10 if you need Å.
*/
package molly
