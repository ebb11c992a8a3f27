package cloud

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// countPadWidth is the fixed byte width reserved for a point count so it can
// be overwritten in place as points are appended, without rewriting
// everything that follows it in the file.
const countPadWidth = 19

// formatCount renders n as a right-justified ASCII decimal, padded to
// exactly countPadWidth bytes.
func formatCount(n int) []byte {
	s := fmt.Sprintf("%*d", countPadWidth, n)
	return []byte(s)
}

// rewriteCountAt seeks to offset and writes the exactly-countPadWidth-byte
// encoding of n via a single WriteAt call, so a fault between the seek and
// the write (simulated in tests via a faulty io.WriterAt) can never leave a
// torn, partially-written count: the call either fully lands or fully
// fails, leaving the previous valid count in place.
func rewriteCountAt(wa io.WriterAt, offset int64, n int) error {
	buf := formatCount(n)
	written, err := wa.WriteAt(buf, offset)
	if err != nil {
		return errors.Wrap(err, "rewriting point count")
	}
	if written != len(buf) {
		return errors.Errorf("short count write: wrote %d of %d bytes", written, len(buf))
	}
	return nil
}
