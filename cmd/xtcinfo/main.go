/*
 * main.go, part of molly.
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

//xtcinfo prints a summary of GROMACS XTC trajectories: atom and frame
//counts, compression precision, the time span covered, and box volume
//statistics. With -plot it also writes the box volume against time to a
//PNG file. Compressed trajectories (.gz, .zst, .lz4...) work like plain
//ones, only slower.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ma3ke/molly"
	"github.com/ma3ke/molly/xtc"
)

var (
	plotOut  = flag.String("plot", "", "write the box volume against time to this PNG file (one trajectory only)")
	perFrame = flag.Bool("frames", false, "print one line per frame: number, step, time, box volume")
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: xtcinfo [flags] traj.xtc ...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *plotOut != "" && flag.NArg() > 1 {
		log.Fatal("xtcinfo: -plot takes a single trajectory")
	}
	status := 0
	for _, name := range flag.Args() {
		if err := report(name); err != nil {
			log.Printf("xtcinfo: %v", err)
			status = 1
		}
	}
	os.Exit(status)
}

func report(name string) error {
	X, err := xtc.New(name)
	if err != nil {
		return err
	}
	defer X.Close()
	var times []float32
	var vols []float64
	var firstStep, lastStep int64
	var firstTime, lastTime float32
	for {
		fr, err := X.PopFrame()
		if err != nil {
			if _, ok := err.(molly.LastFrameError); ok {
				break
			}
			return err
		}
		if len(vols) == 0 {
			firstStep, firstTime = fr.Step, fr.Time
		}
		lastStep, lastTime = fr.Step, fr.Time
		if *perFrame {
			fmt.Printf("%6d %10d %12.3f %14.5f\n", len(vols), fr.Step, fr.Time, fr.Volume())
		}
		times = append(times, fr.Time)
		vols = append(vols, fr.Volume())
	}
	nframes := len(vols)
	fmt.Printf("%s: %d frames, %d atoms\n", name, nframes, X.Len())
	if prec := X.Precision(); prec > 0 {
		fmt.Printf("  precision: %.0f\n", prec)
	} else {
		fmt.Printf("  uncompressed coordinates (9 atoms or fewer)\n")
	}
	if nframes > 0 {
		fmt.Printf("  time: %.3f to %.3f ps, steps %d to %d\n", firstTime, lastTime, firstStep, lastStep)
		lo, hi, mean := volStats(vols)
		fmt.Printf("  box volume: mean %.5f nm^3, min %.5f, max %.5f\n", mean, lo, hi)
	}
	if fi, err := os.Stat(name); err == nil && nframes > 0 {
		fmt.Printf("  size: %d bytes, %.0f per frame\n", fi.Size(), float64(fi.Size())/float64(nframes))
	}
	if *plotOut != "" {
		if err := plotVolume(times, vols, filepath.Base(name), *plotOut); err != nil {
			return err
		}
		fmt.Printf("  volume plot written to %s\n", *plotOut)
	}
	return nil
}

func volStats(vols []float64) (lo, hi, mean float64) {
	lo, hi = vols[0], vols[0]
	for _, v := range vols {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		mean += v
	}
	mean /= float64(len(vols))
	return lo, hi, mean
}

func plotVolume(times []float32, vols []float64, title, out string) error {
	p := plot.New()
	p.Title.Text = "Box volume, " + title
	p.X.Label.Text = "Time (ps)"
	p.Y.Label.Text = "Volume (nm^3)"
	p.Add(plotter.NewGrid())
	pts := make(plotter.XYs, len(vols))
	for i := range vols {
		pts[i].X = float64(times[i])
		pts[i].Y = vols[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)
	return p.Save(14*vg.Centimeter, 10*vg.Centimeter, out)
}
