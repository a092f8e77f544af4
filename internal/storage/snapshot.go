package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/metrics"
)

// Point is one stored body. Positions are kept in single precision.
type Point struct {
	ID      int
	X, Y, Z float32
	Mass    float64
}

type Frame struct {
	Step   int
	Time   float64
	Points []Point
}

// Set rebuilds a body set from the frame. Velocities are not stored and
// come back as zero.
func (f *Frame) Set() *body.Set {
	bodies := make([]body.Body, len(f.Points))
	for i, p := range f.Points {
		bodies[i] = body.Body{
			Pos:  r3.Vec{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)},
			Mass: p.Mass,
		}
	}
	return body.NewSet(bodies)
}

func pointsOf(set *body.Set) []Point {
	pts := make([]Point, set.Len())
	for i := range set.Bodies {
		b := &set.Bodies[i]
		pts[i] = Point{ID: b.ID, X: float32(b.Pos.X), Y: float32(b.Pos.Y), Z: float32(b.Pos.Z), Mass: b.Mass}
	}
	return pts
}

// Sink receives position snapshots.
type Sink interface {
	WriteFrame(step int, t float64, set *body.Set) error
	Close() error
}

// OpenSink creates a snapshot sink of the given format inside the run
// directory.
func (s *Store) OpenSink(runID, format string) (Sink, error) {
	switch format {
	case "", "csv":
		return newCSVSink(filepath.Join(s.Dir(runID), csvSnapshotFile))
	case "sqlite":
		return newSQLiteSink(filepath.Join(s.Dir(runID), sqliteSnapshotFile))
	}
	return nil, fmt.Errorf("unknown snapshot format %q", format)
}

// SnapshotObserver forwards every Every-th step to a sink.
type SnapshotObserver struct {
	Sink  Sink
	Every int
}

func (o *SnapshotObserver) OnStep(set *body.Set, step int, t float64) error {
	if o.Every <= 0 || step%o.Every != 0 {
		return nil
	}
	return o.Sink.WriteFrame(step, t, set)
}

const csvSnapshotFile = "snapshots.csv"

var snapshotHeader = []string{"step", "time", "id", "x", "y", "z", "mass"}

type csvSink struct {
	file *os.File
	w    *csv.Writer
}

func newCSVSink(path string) (*csvSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(snapshotHeader); err != nil {
		f.Close()
		return nil, err
	}
	return &csvSink{file: f, w: w}, nil
}

func f32(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }

func (c *csvSink) WriteFrame(step int, t float64, set *body.Set) error {
	st := strconv.Itoa(step)
	tm := strconv.FormatFloat(t, 'f', 6, 64)
	for _, p := range pointsOf(set) {
		row := []string{st, tm, strconv.Itoa(p.ID), f32(p.X), f32(p.Y), f32(p.Z),
			strconv.FormatFloat(p.Mass, 'g', -1, 64)}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvSink) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

func loadCSVFrame(path string, step int) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(snapshotHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w %d", ErrNoFrame, step)
	}

	if step < 0 {
		for _, rec := range records[1:] {
			if s, err := strconv.Atoi(rec[0]); err == nil && s > step {
				step = s
			}
		}
	}

	var frame *Frame
	for _, rec := range records[1:] {
		s, err := strconv.Atoi(rec[0])
		if err != nil || s != step {
			continue
		}
		if frame == nil {
			t, _ := strconv.ParseFloat(rec[1], 64)
			frame = &Frame{Step: s, Time: t}
		}
		p, err := parsePoint(rec[2:])
		if err != nil {
			return nil, err
		}
		frame.Points = append(frame.Points, p)
	}
	if frame == nil {
		return nil, fmt.Errorf("%w %d", ErrNoFrame, step)
	}
	return frame, nil
}

func parsePoint(rec []string) (Point, error) {
	id, err := strconv.Atoi(rec[0])
	if err != nil {
		return Point{}, err
	}
	var xyz [3]float32
	for i := range xyz {
		v, err := strconv.ParseFloat(rec[i+1], 32)
		if err != nil {
			return Point{}, err
		}
		xyz[i] = float32(v)
	}
	m, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return Point{}, err
	}
	return Point{ID: id, X: xyz[0], Y: xyz[1], Z: xyz[2], Mass: m}, nil
}

// DiagnosticsObserver appends total energy and momentum to diagnostics.csv
// every Every steps.
type DiagnosticsObserver struct {
	Every       int
	G           float64
	SofteningSq float64

	file *os.File
	w    *csv.Writer
}

func (s *Store) OpenDiagnostics(runID string, every int, g, softeningSq float64) (*DiagnosticsObserver, error) {
	f, err := os.Create(filepath.Join(s.Dir(runID), diagnosticsFile))
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(diagnosticsHeader); err != nil {
		f.Close()
		return nil, err
	}
	if every < 1 {
		every = 1
	}
	return &DiagnosticsObserver{Every: every, G: g, SofteningSq: softeningSq, file: f, w: w}, nil
}

func (d *DiagnosticsObserver) OnStep(set *body.Set, step int, t float64) error {
	if step%d.Every != 0 {
		return nil
	}
	e := metrics.TotalEnergy(set, d.G, d.SofteningSq)
	p := metrics.MomentumNorm(set)
	row := []string{
		strconv.Itoa(step),
		strconv.FormatFloat(t, 'f', 6, 64),
		strconv.FormatFloat(e, 'g', 12, 64),
		strconv.FormatFloat(p, 'g', 12, 64),
	}
	if err := d.w.Write(row); err != nil {
		return err
	}
	d.w.Flush()
	return d.w.Error()
}

func (d *DiagnosticsObserver) Close() error {
	d.w.Flush()
	if err := d.w.Error(); err != nil {
		d.file.Close()
		return err
	}
	return d.file.Close()
}
