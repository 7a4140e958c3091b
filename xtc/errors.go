/*
 * errors.go, part of molly.
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

	"github.com/ma3ke/molly"
)

//errDecorate is a helper function that asserts that the error
//implements molly.Error and decorates the error with the caller's name before
//returning it. If used with a non-molly.Error error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(molly.Error) //I know that is the type returned by the functions in this package
	err2.Decorate(caller)
	return err2
}

//Error is the general structure for XTC trajectory errors. It fulfills
//molly.Error, molly.TrajError and molly.FrameError.
type Error struct {
	message  string
	filename string //the input file that has problems, or an empty string if none.
	frame    int    //frame where the problem was found, or a negative number if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	if err.filename == "" {
		return fmt.Sprintf("xtc error: %s", err.message)
	}
	if err.frame >= 0 {
		return fmt.Sprintf("xtc file %s error: %s (frame %d)", err.filename, err.message, err.frame)
	}
	return fmt.Sprintf("xtc file %s error: %s", err.filename, err.message)
}

//Decorate adds new information to the error
func (E Error) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since E.deco is a slice, and hence a pointer itself.

	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//FileName returns the file to which the failing trajectory was associated
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file (always "xtc") associated to the error
func (err Error) Format() string { return "xtc" }

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

//Frame returns the frame where the problem was found, counting from zero.
//A negative value means the error is not tied to a particular frame.
func (err Error) Frame() int { return err.frame }

const (
	TrajUnIniRead   = "Traj object uninitialized to read"
	UnableToOpen    = "Unable to open file"
	WrongMagic      = "Wrong magic number in frame header"
	TruncatedInput  = "Input ends in the middle of a frame"
	CorruptFrame    = "Corrupt frame data"
	EmptyTrajectory = "Trajectory contains no frames"
	IndexOutOfRange = "Index out of range"
	ShapeMismatch   = "Buffer size does not match the selection"
	NotSeekable     = "Operation needs an uncompressed, seekable trajectory"
	EOF             = "EOF"
)

//lastFrameError implements molly.LastFrameError
type lastFrameError struct {
	deco     []string
	fileName string
}

//NormalLastFrameTermination does nothing
func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return E.fileName }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return "xtc" }

func (E lastFrameError) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since E.deco is a slice, and hence a pointer itself.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newlastFrameError(filename string, caller string) *lastFrameError {
	e := new(lastFrameError)
	e.fileName = filename
	e.deco = []string{caller}
	return e
}
