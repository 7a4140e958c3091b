/*
 * reader.go, part of molly.
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
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/lzw"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zstd"
	lz4 "github.com/pierrec/lz4/v4"

	v3 "github.com/ma3ke/molly/v3"
)

const lzwLitwidth int = 8

//XTCReader reads an XTC trajectory file. Plain files support both the
//sequential calls (PopFrame, Next, NextConc, Reset) and the random access
//ones (ReadFrames, ReadIntoArray, FrameCount, Refresh); compressed files
//only the sequential ones. An XTCReader is not safe for concurrent use.
type XTCReader struct {
	f        *os.File
	h        io.ReadCloser //decompressor, when the file is compressed
	stream   *bufio.Reader //sequential source, compressed mode only
	filename string
	natoms   int
	prec     float32
	seekable bool
	readable bool
	pos      int64 //offset of the next sequential frame, seekable mode
	frame    int   //number of frames already delivered sequentially
	index    []frameEntry
	record   []byte    //scratch for one raw frame record
	scratch  []float32 //scratch for one decoded frame
}

//New opens the trajectory in the given file and reads just enough of the
//first frame header to learn the atom count and precision. The file may be
//compressed (a .gz, .zst, .zstd, .lz4, .lzw or .flate suffix after the
//usual .xtc), in which case only sequential reading is available.
func New(name string) (*XTCReader, error) {
	X := new(XTCReader)
	X.filename = name
	if err := X.initRead(name); err != nil {
		return nil, errDecorate(err, "New")
	}
	return X, nil
}

//zstd's Decoder has a Close without a return value, so it does not satisfy
//io.ReadCloser on its own.
type stdql struct {
	closeql func()
	*zstd.Decoder
}

func (s stdql) Close() error {
	s.closeql()
	return nil
}

//prepSource decides from the file name whether the trajectory can be read
//in place or has to go through a decompressor first. Unknown extensions are
//assumed to be plain XTC.
func prepSource(f *os.File, name string) (io.ReadCloser, bool, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		r, err := gzip.NewReader(f)
		if err != nil {
			return nil, false, Error{"Can't read compressed trajectory: " + err.Error(), name, -1, []string{"prepSource"}, true}
		}
		return r, false, nil
	case ".zst", ".zstd":
		r, err := zstd.NewReader(f)
		if err != nil {
			return nil, false, Error{"Can't read compressed trajectory: " + err.Error(), name, -1, []string{"prepSource"}, true}
		}
		return &stdql{r.Close, r}, false, nil
	case ".lz4":
		return io.NopCloser(lz4.NewReader(f)), false, nil
	case ".lzw":
		return lzw.NewReader(f, lzw.MSB, lzwLitwidth), false, nil
	case ".flate":
		return flate.NewReader(f), false, nil
	case ".xtc", "":
		return nil, true, nil
	default:
		log.Printf("Extension of %s not recognized, will assume a plain XTC file", name)
		return nil, true, nil
	}
}

//initRead initializes an XTCReader. It requires only the filename, which
//must be valid.
func (X *XTCReader) initRead(name string) error {
	var err error
	X.f, err = os.Open(name)
	if err != nil {
		return Error{UnableToOpen + ": " + err.Error(), name, -1, []string{"os.Open", "initRead"}, true}
	}
	src, seekable, err := prepSource(X.f, name)
	if err != nil {
		X.f.Close()
		return errDecorate(err, "initRead")
	}
	X.seekable = seekable
	var hdr []byte
	if seekable {
		var buf [fullHeaderLen]byte
		n, rerr := X.f.ReadAt(buf[:], 0)
		if rerr != nil && rerr != io.EOF {
			X.f.Close()
			return Error{rerr.Error(), name, 0, []string{"initRead"}, true}
		}
		hdr = buf[:n]
	} else {
		X.h = src
		X.stream = bufio.NewReader(src)
		var perr error
		hdr, perr = X.stream.Peek(fullHeaderLen)
		if len(hdr) == 0 && perr != nil && perr != io.EOF {
			X.free()
			return Error{perr.Error(), name, 0, []string{"initRead"}, true}
		}
	}
	if len(hdr) == 0 {
		X.free()
		return Error{EmptyTrajectory, name, -1, []string{"initRead"}, true}
	}
	if _, err := recordLength(hdr, -1, name, 0); err != nil {
		X.free()
		return errDecorate(err, "initRead")
	}
	X.natoms = int(be32(hdr[natomsOffset:]))
	if X.natoms > smallFrameAtoms {
		X.prec = bef32(hdr[precOffset:])
	} else {
		X.prec = -1
	}
	X.scratch = make([]float32, 3*X.natoms)
	runtime.SetFinalizer(X, func(X *XTCReader) {
		X.free()
	})
	X.readable = true
	return nil
}

func (X *XTCReader) free() {
	if X.h != nil {
		X.h.Close()
		X.h = nil
	}
	if X.f != nil {
		X.f.Close()
		X.f = nil
	}
}

//Close closes the trajectory file and marks the reader as unreadable.
func (X *XTCReader) Close() {
	if !X.readable {
		return
	}
	X.free()
	X.readable = false
}

//Readable returns true if the object is ready to be read from, false
//otherwise. It doesn't guarantee that there is something to read.
func (X *XTCReader) Readable() bool {
	return X.readable
}

//Len returns the number of atoms per frame.
func (X *XTCReader) Len() int {
	return X.natoms
}

//Precision returns the precision factor found in the first frame header,
//or -1 if the frames are so small that they are stored uncompressed.
func (X *XTCReader) Precision() float32 {
	return X.prec
}

func (X *XTCReader) recordBuf(length int) []byte {
	if cap(X.record) < length {
		X.record = make([]byte, length)
	}
	return X.record[:length]
}

//growRecord reslices the record scratch to length, keeping the bytes that
//rec already holds.
func (X *XTCReader) growRecord(rec []byte, length int) []byte {
	if cap(X.record) >= length {
		return X.record[:length]
	}
	nbuf := make([]byte, length)
	copy(nbuf, rec)
	X.record = nbuf
	return nbuf
}

//nextRecord reads the raw bytes of the next sequential frame record into
//the record scratch. At a clean end of trajectory it returns a
//molly.LastFrameError.
func (X *XTCReader) nextRecord() ([]byte, error) {
	if X.seekable {
		return X.nextRecordAt()
	}
	return X.nextRecordStream()
}

func (X *XTCReader) nextRecordAt() ([]byte, error) {
	var hdr [fullHeaderLen]byte
	n, err := X.f.ReadAt(hdr[:], X.pos)
	if n == 0 {
		if err == io.EOF {
			return nil, newlastFrameError(X.filename, "nextRecord")
		}
		return nil, Error{err.Error(), X.filename, X.frame, []string{"nextRecord"}, true}
	}
	if err != nil && err != io.EOF {
		return nil, Error{err.Error(), X.filename, X.frame, []string{"nextRecord"}, true}
	}
	length, lerr := recordLength(hdr[:n], X.natoms, X.filename, X.frame)
	if lerr != nil {
		return nil, errDecorate(lerr, "nextRecord")
	}
	rec := X.recordBuf(length)
	m, err := X.f.ReadAt(rec, X.pos)
	if m < length {
		if err == io.EOF {
			return nil, Error{TruncatedInput + ": frame record extends past the end of the file", X.filename, X.frame, []string{"nextRecord"}, true}
		}
		return nil, Error{err.Error(), X.filename, X.frame, []string{"nextRecord"}, true}
	}
	return rec, nil
}

func (X *XTCReader) nextRecordStream() ([]byte, error) {
	rec := X.recordBuf(smallHeaderLen)
	if _, err := io.ReadFull(X.stream, rec); err != nil {
		if err == io.EOF {
			//nothing bad happened here, the trajectory just ended
			X.Close()
			return nil, newlastFrameError(X.filename, "nextRecord")
		}
		return nil, Error{TruncatedInput + ": incomplete frame header", X.filename, X.frame, []string{"nextRecord"}, true}
	}
	if be32(rec[magicOffset:]) != xtcMagic {
		return nil, Error{WrongMagic, X.filename, X.frame, []string{"nextRecord"}, true}
	}
	natoms := int(be32(rec[natomsOffset:]))
	if natoms != X.natoms {
		return nil, Error{CorruptFrame + ": frame atom count differs from the rest of the file", X.filename, X.frame, []string{"nextRecord"}, true}
	}
	if natoms <= smallFrameAtoms {
		length := smallHeaderLen + 12*natoms
		rec = X.growRecord(rec, length)
		if _, err := io.ReadFull(X.stream, rec[smallHeaderLen:]); err != nil {
			return nil, Error{TruncatedInput + ": incomplete frame record", X.filename, X.frame, []string{"nextRecord"}, true}
		}
		return rec, nil
	}
	rec = X.growRecord(rec, fullHeaderLen)
	if _, err := io.ReadFull(X.stream, rec[smallHeaderLen:]); err != nil {
		return nil, Error{TruncatedInput + ": incomplete frame header", X.filename, X.frame, []string{"nextRecord"}, true}
	}
	length, lerr := recordLength(rec, X.natoms, X.filename, X.frame)
	if lerr != nil {
		return nil, errDecorate(lerr, "nextRecord")
	}
	rec = X.growRecord(rec, length)
	if _, err := io.ReadFull(X.stream, rec[fullHeaderLen:]); err != nil {
		return nil, Error{TruncatedInput + ": incomplete frame record", X.filename, X.frame, []string{"nextRecord"}, true}
	}
	return rec, nil
}

func (X *XTCReader) advance(length int) {
	if X.seekable {
		X.pos += int64(length)
	}
	X.frame++
}

//PopFrame decodes the next frame of the trajectory and returns it. At the
//end of the trajectory the error is a molly.LastFrameError, which signals
//normal termination rather than a problem; on a seekable trajectory the
//reader stays usable and can be Reset, while a compressed one is closed.
func (X *XTCReader) PopFrame() (*Frame, error) {
	if !X.readable {
		return nil, Error{TrajUnIniRead, X.filename, -1, []string{"PopFrame"}, true}
	}
	rec, err := X.nextRecord()
	if err != nil {
		return nil, err
	}
	pos := make([]float32, 3*X.natoms)
	hdr, prec, err := decodeRecord(rec, X.natoms, X.natoms, pos, X.filename, X.frame)
	if err != nil {
		return nil, errDecorate(err, "PopFrame")
	}
	F := &Frame{Positions: pos, Box: hdr.box, Step: int64(hdr.step), Time: hdr.time, Prec: prec}
	X.advance(len(rec))
	return F, nil
}

//Next reads the next frame into output, or discards it if output is nil,
//still checking it for correctness. It can also fill the (optional) box
//with the box vectors present in the frame. Coordinates and box are in nm,
//as the format stores them. At the end of the trajectory the error is a
//molly.LastFrameError.
func (X *XTCReader) Next(output *v3.Matrix, box ...[]float64) error {
	if !X.readable {
		return Error{TrajUnIniRead, X.filename, -1, []string{"Next"}, true}
	}
	rec, err := X.nextRecord()
	if err != nil {
		return err
	}
	hdr, _, err := decodeRecord(rec, X.natoms, X.natoms, X.scratch, X.filename, X.frame)
	if err != nil {
		return errDecorate(err, "Next")
	}
	if output != nil {
		if r, _ := output.Dims(); r < X.natoms {
			panic("Buffer v3.Matrix too small to hold the trajectory frame")
		}
		for i := 0; i < X.natoms; i++ {
			output.Set(i, 0, float64(X.scratch[3*i]))
			output.Set(i, 1, float64(X.scratch[3*i+1]))
			output.Set(i, 2, float64(X.scratch[3*i+2]))
		}
	}
	if len(box) > 0 && len(box[0]) >= 9 {
		for i := 0; i < 9; i++ {
			box[0][i] = float64(hdr.box[i])
		}
	}
	X.advance(len(rec))
	return nil
}

/*NextConc takes a slice of matrices and reads as many frames as elements
the slice has from the trajectory. The frames are discarded if the
corresponding element of the slice is nil. The function returns a slice of
channels through each of which a *v3.Matrix will be transmitted.*/
func (X *XTCReader) NextConc(frames []*v3.Matrix) ([]chan *v3.Matrix, error) {
	if !X.Readable() {
		return nil, Error{TrajUnIniRead, X.filename, -1, []string{"NextConc"}, true}
	}
	framechans := make([]chan *v3.Matrix, len(frames)) //the slice of chans that will be returned
	for key, v := range frames {
		if err := X.Next(v); err != nil {
			return nil, errDecorate(err, "NextConc")
		}
		if v == nil {
			framechans[key] = nil //ignored frame
			continue
		}
		framechans[key] = make(chan *v3.Matrix)
		go func(keep *v3.Matrix, pipe chan *v3.Matrix) {
			pipe <- keep
		}(v, framechans[key])
	}
	return framechans, nil
}

//Reset rewinds the sequential cursor back to the first frame, so the
//trajectory can be read again. Compressed trajectories cannot rewind;
//reopen those instead.
func (X *XTCReader) Reset() error {
	if !X.readable {
		return Error{TrajUnIniRead, X.filename, -1, []string{"Reset"}, true}
	}
	if !X.seekable {
		return Error{NotSeekable, X.filename, -1, []string{"Reset"}, true}
	}
	X.pos = 0
	X.frame = 0
	return nil
}

//decodeIndexed reads frame fno through the index and decodes its first
//limit atoms into dst.
func (X *XTCReader) decodeIndexed(fno, limit int, dst []float32) (frameHeader, float32, error) {
	e := X.index[fno]
	rec := X.recordBuf(e.length)
	n, err := X.f.ReadAt(rec, e.offset)
	if n < e.length {
		if err == io.EOF {
			return frameHeader{}, 0, Error{TruncatedInput + ": frame record extends past the end of the file", X.filename, fno, []string{"decodeIndexed"}, true}
		}
		return frameHeader{}, 0, Error{err.Error(), X.filename, fno, []string{"decodeIndexed"}, true}
	}
	return decodeRecord(rec, X.natoms, limit, dst, X.filename, fno)
}

//ReadFrames decodes the frames selected by fsel, keeping from each the
//atoms selected by asel, and returns them. Nil selections mean everything.
//Frames come back in trajectory order regardless of the selection; within
//each frame the atoms follow the order the selection defines. It does not
//move the sequential cursor, and needs a seekable trajectory.
func (X *XTCReader) ReadFrames(fsel FrameSelection, asel AtomSelection) ([]*Frame, error) {
	if err := X.ensureIndex(); err != nil {
		return nil, errDecorate(err, "ReadFrames")
	}
	gather, limit, err := resolveAtoms(asel, X.natoms)
	if err != nil {
		return nil, errDecorate(err, "ReadFrames")
	}
	nsel := selCount(gather, limit)
	frames := resolveFrames(fsel, len(X.index))
	ret := make([]*Frame, 0, len(frames))
	for _, fno := range frames {
		pos := make([]float32, 3*nsel)
		dst := pos
		if gather != nil {
			dst = X.scratch[:3*limit]
		}
		hdr, prec, err := X.decodeIndexed(fno, limit, dst)
		if err != nil {
			return nil, errDecorate(err, "ReadFrames")
		}
		for j, idx := range gather {
			copy(pos[3*j:3*j+3], dst[3*idx:3*idx+3])
		}
		ret = append(ret, &Frame{Positions: pos, Box: hdr.box, Step: int64(hdr.step), Time: hdr.time, Prec: prec})
	}
	return ret, nil
}

//ReadIntoArray decodes like ReadFrames but writes everything into flat,
//preallocated buffers: positions gets nframes*nsel*3 values, frame-major,
//and boxes, if not nil, nframes*9. This is the call to use when the
//coordinates are headed for contiguous number crunching; in the common
//no-gather case each frame is decoded straight into its destination rows.
//On failure the rows already filled stay filled, and the error names the
//frame that failed.
func (X *XTCReader) ReadIntoArray(fsel FrameSelection, asel AtomSelection, positions []float32, boxes []float32) error {
	if err := X.ensureIndex(); err != nil {
		return errDecorate(err, "ReadIntoArray")
	}
	gather, limit, err := resolveAtoms(asel, X.natoms)
	if err != nil {
		return errDecorate(err, "ReadIntoArray")
	}
	nsel := selCount(gather, limit)
	frames := resolveFrames(fsel, len(X.index))
	if len(positions) != len(frames)*nsel*3 {
		return Error{fmt.Sprintf("%s: positions buffer holds %d values, the selection needs %d", ShapeMismatch, len(positions), len(frames)*nsel*3), X.filename, -1, []string{"ReadIntoArray"}, true}
	}
	if boxes != nil && len(boxes) != len(frames)*9 {
		return Error{fmt.Sprintf("%s: box buffer holds %d values, the selection needs %d", ShapeMismatch, len(boxes), len(frames)*9), X.filename, -1, []string{"ReadIntoArray"}, true}
	}
	for row, fno := range frames {
		dst := positions[row*nsel*3 : (row+1)*nsel*3]
		tmp := dst
		if gather != nil {
			tmp = X.scratch[:3*limit]
		}
		hdr, _, err := X.decodeIndexed(fno, limit, tmp)
		if err != nil {
			return errDecorate(err, "ReadIntoArray")
		}
		for j, idx := range gather {
			copy(dst[3*j:3*j+3], tmp[3*idx:3*idx+3])
		}
		if boxes != nil {
			copy(boxes[row*9:(row+1)*9], hdr.box[:])
		}
	}
	return nil
}
