package source

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// MaxLineLength bounds a single input line.
const MaxLineLength = 16 << 20

// Lines yields one record per line of r, split on separator. Trailing "\n" and
// "\r\n" are removed; no other trimming or unquoting is done. Every field is a
// string, so NULL must be expressed through null values.
func Lines(r io.Reader, separator string) pgcopy.RowIterator {
	return func(yield func(pgcopy.Record, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength)

		line := 0
		for scanner.Scan() {
			line++
			fields := strings.Split(scanner.Text(), separator)
			rec := make(pgcopy.Record, len(fields))
			for i, f := range fields {
				rec[i] = f
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("read line %d: %w", line+1, err))
		}
	}
}
