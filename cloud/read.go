package cloud

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReadPLY parses an ASCII PLY file produced by PLYWriter back into points,
// used to verify the writer's round-trip fidelity.
func ReadPLY(r io.Reader) ([]Point, error) {
	scanner := bufio.NewScanner(r)
	inHeader := true
	var points []Point
	for scanner.Scan() {
		line := scanner.Text()
		if inHeader {
			if line == "end_header" {
				inHeader = false
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 6 {
			return nil, errors.Errorf("malformed ply vertex line: %q", line)
		}
		pt, err := parseVertexFields(fields)
		if err != nil {
			return nil, err
		}
		points = append(points, pt)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading ply")
	}
	return points, nil
}

// ReadPCD parses an ASCII PCD v0.7 file produced by PCDWriter back into
// points.
func ReadPCD(r io.Reader) ([]Point, error) {
	scanner := bufio.NewScanner(r)
	inHeader := true
	var points []Point
	for scanner.Scan() {
		line := scanner.Text()
		if inHeader {
			if strings.HasPrefix(line, "DATA") {
				inHeader = false
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, errors.Errorf("malformed pcd data line: %q", line)
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, errors.Wrap(err, "parsing pcd x")
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, errors.Wrap(err, "parsing pcd y")
		}
		z, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrap(err, "parsing pcd z")
		}
		rgb, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return nil, errors.Wrap(err, "parsing pcd rgb")
		}
		points = append(points, Point{
			X: x, Y: y, Z: z,
			R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading pcd")
	}
	return points, nil
}

func parseVertexFields(fields []string) (Point, error) {
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, errors.Wrap(err, "parsing ply x")
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Point{}, errors.Wrap(err, "parsing ply y")
	}
	z, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Point{}, errors.Wrap(err, "parsing ply z")
	}
	r, err := strconv.ParseUint(fields[3], 10, 8)
	if err != nil {
		return Point{}, errors.Wrap(err, "parsing ply red")
	}
	g, err := strconv.ParseUint(fields[4], 10, 8)
	if err != nil {
		return Point{}, errors.Wrap(err, "parsing ply green")
	}
	b, err := strconv.ParseUint(fields[5], 10, 8)
	if err != nil {
		return Point{}, errors.Wrap(err, "parsing ply blue")
	}
	return Point{X: x, Y: y, Z: z, R: uint8(r), G: uint8(g), B: uint8(b)}, nil
}
