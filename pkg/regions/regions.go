// Package regions reads BED-style interval lists used for batch
// sequence retrieval.
package regions

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Region is one half-open interval [Start, End) on a named sequence,
// 0-based, as in BED files.
type Region struct {
	Name  string
	Start int
	End   int
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Name, r.Start, r.End)
}

// ReadBed parses a BED-style file: tab-separated name, start, end, one
// interval per line. Blank lines and '#' comments are skipped. Extra
// columns are ignored. Malformed rows are a hard error.
func ReadBed(path string) ([]Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("regions: open %s: %w", path, err)
	}
	defer f.Close()

	var out []Region
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("regions: %s:%d: expected 3 tab-separated fields, got %d", path, lineNo, len(fields))
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("regions: %s:%d: bad start %q: %w", path, lineNo, fields[1], err)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("regions: %s:%d: bad end %q: %w", path, lineNo, fields[2], err)
		}
		if start < 0 || end < 0 {
			return nil, fmt.Errorf("regions: %s:%d: negative coordinate", path, lineNo)
		}
		out = append(out, Region{Name: fields[0], Start: start, End: end})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("regions: read %s: %w", path, err)
	}
	return out, nil
}
