package cloud

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// PCDWriter streams points into an ASCII PCD v0.7 file. Both the WIDTH and
// POINTS header fields mirror the same count and are patched together by
// RewriteCount.
type PCDWriter struct {
	w            *bufio.Writer
	wa           io.WriterAt
	widthOffset  int64
	pointsOffset int64
	count        int
}

// NewPCDWriter writes the PCD header to w and returns a writer ready to
// Append points. wa must address the same underlying bytes as w.
func NewPCDWriter(w io.Writer, wa io.WriterAt) (*PCDWriter, error) {
	bw := bufio.NewWriter(w)
	var offset int64

	writeLine := func(s string) error {
		n, err := bw.WriteString(s)
		offset += int64(n)
		return err
	}

	header := []string{
		"# .PCD v0.7 - Point Cloud Data file format\n",
		"VERSION 0.7\n",
		"FIELDS x y z rgb\n",
		"SIZE 4 4 4 4\n",
		"TYPE F F F U\n",
		"COUNT 1 1 1 1\n",
	}
	for _, l := range header {
		if err := writeLine(l); err != nil {
			return nil, errors.Wrap(err, "writing pcd header")
		}
	}

	if err := writeLine("WIDTH "); err != nil {
		return nil, errors.Wrap(err, "writing pcd header")
	}
	widthOffset := offset
	if err := writeLine(string(formatCount(0)) + "\n"); err != nil {
		return nil, errors.Wrap(err, "writing pcd header")
	}

	if err := writeLine("HEIGHT 1\n"); err != nil {
		return nil, errors.Wrap(err, "writing pcd header")
	}

	if err := writeLine("POINTS "); err != nil {
		return nil, errors.Wrap(err, "writing pcd header")
	}
	pointsOffset := offset
	if err := writeLine(string(formatCount(0)) + "\n"); err != nil {
		return nil, errors.Wrap(err, "writing pcd header")
	}

	if err := writeLine("DATA ascii\n"); err != nil {
		return nil, errors.Wrap(err, "writing pcd header")
	}
	if err := bw.Flush(); err != nil {
		return nil, errors.Wrap(err, "flushing pcd header")
	}

	return &PCDWriter{w: bw, wa: wa, widthOffset: widthOffset, pointsOffset: pointsOffset}, nil
}

// Append writes each valid point as a PCD data record.
func (p *PCDWriter) Append(points []Point) error {
	for _, pt := range points {
		if !pt.Valid() {
			continue
		}
		rgb := uint32(pt.R)<<16 | uint32(pt.G)<<8 | uint32(pt.B)
		if _, err := fmt.Fprintf(p.w, "%g %g %g %d\n", pt.X, pt.Y, pt.Z, rgb); err != nil {
			return errors.Wrap(err, "appending pcd point")
		}
		p.count++
	}
	return p.w.Flush()
}

// RewriteCount patches both WIDTH and POINTS to reflect every point
// Appended so far, each via its own fixed-width WriteAt.
func (p *PCDWriter) RewriteCount() error {
	if err := rewriteCountAt(p.wa, p.widthOffset, p.count); err != nil {
		return err
	}
	return rewriteCountAt(p.wa, p.pointsOffset, p.count)
}

// Count returns the number of points appended so far.
func (p *PCDWriter) Count() int { return p.count }
