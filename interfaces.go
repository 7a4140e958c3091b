/*
 * interfaces.go, part of molly.
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

package molly

import (
	"github.com/ma3ke/molly/v3"
)

//Traj is an interface for sequential access to a trajectory.
type Traj interface {

	//Is the trajectory ready to be read?
	Readable() bool

	//Next reads the next frame into output, if it is not nil, or discards
	//it if output is nil. It can also fill the (optional) box with the box
	//vectors present in the frame.
	Next(output *v3.Matrix, box ...[]float64) error

	//Returns the number of atoms per frame
	Len() int
}

//ConcTraj is an interface for a trajectory that can be read concurrently.
type ConcTraj interface {

	//Is the trajectory ready to be read?
	Readable() bool

	/*NextConc takes a slice of matrices and reads as many frames as
	elements the slice has from the trajectory. The frames are discarded
	if the corresponding element of the slice is nil. The function returns
	a slice of channels through each of which a *v3.Matrix will be
	transmitted.*/
	NextConc(frames []*v3.Matrix) ([]chan *v3.Matrix, error)

	//Returns the number of atoms per frame
	Len() int
}

//Error is the interface for errors that all packages in this library implement.
//The Decorate method allows adding information to, and retrieving information
//from, the error without changing its type or wrapping it around something else.
type Error interface {
	Error() string
	//Decorate adds the given string to the "decoration" slice of strings of
	//the error, and returns the resulting slice. If passed an empty string it
	//just returns the current slice. The decoration should contain the
	//functions in the calling stack, plus, for each function, any relevant
	//information, in the format "FunctionName: Extra info".
	Decorate(string) []string
}

//TrajError is the interface for errors in trajectories.
type TrajError interface {
	Error
	Critical() bool
	FileName() string
	Format() string
}

//FrameError is a TrajError that can also point at the frame where the
//problem was found. Frame numbers start at zero; a negative value means the
//error is not tied to a particular frame.
type FrameError interface {
	TrajError
	Frame() int
}

//LastFrameError has a do-nothing method to distinguish the harmless
//end-of-trajectory errors from the rest, so they can be filtered in a type
//switch that looks for this interface.
type LastFrameError interface {
	TrajError
	NormalLastFrameTermination() //does nothing, just separates this interface from other TrajError's
}
