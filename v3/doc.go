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

/*Package v3 implements a Matrix type representing a row-major Nx3 matrix.
v3.Matrix is used to represent the cartesian coordinates of sets of atoms,
one row vector per atom. It is based on gonum's Dense type
(gonum.org/v1/gonum/mat), with some additional restrictions because of the
fixed number of columns, and with some additional functions that were found
useful when working with frames of molecular dynamics trajectories.
*/
package v3
