package cloud

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const plyCountPrefix = "element vertex "

// PLYWriter streams points into an ASCII PLY file, patching the vertex
// count header in place via RewriteCount rather than rewriting the whole
// file on every flush.
type PLYWriter struct {
	w           *bufio.Writer
	wa          io.WriterAt
	countOffset int64
	count       int
}

// NewPLYWriter writes the PLY header to w (a fresh, empty destination) and
// returns a writer ready to Append points. wa must address the same
// underlying bytes as w (typically the same *os.File) so RewriteCount can
// patch the count field after flushing.
func NewPLYWriter(w io.Writer, wa io.WriterAt) (*PLYWriter, error) {
	bw := bufio.NewWriter(w)
	var offset int64

	writeLine := func(s string) error {
		n, err := bw.WriteString(s)
		offset += int64(n)
		return err
	}

	lines := []string{
		"ply\n",
		"format ascii 1.0\n",
	}
	for _, l := range lines {
		if err := writeLine(l); err != nil {
			return nil, errors.Wrap(err, "writing ply header")
		}
	}

	if err := writeLine(plyCountPrefix); err != nil {
		return nil, errors.Wrap(err, "writing ply header")
	}
	countOffset := offset
	if err := writeLine(string(formatCount(0)) + "\n"); err != nil {
		return nil, errors.Wrap(err, "writing ply header")
	}

	tail := []string{
		"property float x\n",
		"property float y\n",
		"property float z\n",
		"property uchar red\n",
		"property uchar green\n",
		"property uchar blue\n",
		"end_header\n",
	}
	for _, l := range tail {
		if err := writeLine(l); err != nil {
			return nil, errors.Wrap(err, "writing ply header")
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, errors.Wrap(err, "flushing ply header")
	}

	return &PLYWriter{w: bw, wa: wa, countOffset: countOffset}, nil
}

// Append writes each valid point (see Point.Valid) as a PLY vertex record
// and advances the pending count, but does not itself patch the header;
// call RewriteCount to publish the new count.
func (p *PLYWriter) Append(points []Point) error {
	for _, pt := range points {
		if !pt.Valid() {
			continue
		}
		if _, err := fmt.Fprintf(p.w, "%g %g %g %d %d %d\n", pt.X, pt.Y, pt.Z, pt.R, pt.G, pt.B); err != nil {
			return errors.Wrap(err, "appending ply point")
		}
		p.count++
	}
	return p.w.Flush()
}

// RewriteCount patches the vertex-count field to reflect every point
// Appended so far, via a single fixed-width WriteAt.
func (p *PLYWriter) RewriteCount() error {
	return rewriteCountAt(p.wa, p.countOffset, p.count)
}

// Count returns the number of points appended so far.
func (p *PLYWriter) Count() int { return p.count }
