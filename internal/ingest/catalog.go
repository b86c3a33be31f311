package ingest

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ExtractCatalogNumbers reads 3-line TLE data (name, line 1, line 2) and
// returns the distinct catalog numbers in first-seen order. Groups whose
// lines do not carry the "1 " / "2 " prefixes are skipped one line at a time
// until the stream realigns.
func ExtractCatalogNumbers(r io.Reader) ([]int, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tle data: %w", err)
	}

	seen := make(map[int]struct{})
	var ids []int
	for i := 0; i+2 < len(lines); {
		line1, line2 := lines[i+1], lines[i+2]
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") || len(line1) < 7 {
			i++
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
		if err != nil {
			return nil, fmt.Errorf("line %d: catalog number %q: %w", i+2, line1[2:7], ErrMalformedRecord)
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		i += 3
	}
	return ids, nil
}

// DiffCatalog returns the catalog numbers in current that are absent from
// known, in current order, and the union of both lists sorted ascending.
// Neither input is modified.
func DiffCatalog(current, known []int) (added, merged []int) {
	seen := make(map[int]struct{}, len(known)+len(current))
	for _, id := range known {
		seen[id] = struct{}{}
	}

	for _, id := range current {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		added = append(added, id)
	}

	merged = make([]int, 0, len(seen))
	for id := range seen {
		merged = append(merged, id)
	}
	sort.Ints(merged)
	return added, merged
}

// ReadCatalogList reads one catalog number per line. Blank lines and lines
// starting with '#' are ignored.
func ReadCatalogList(r io.Reader) ([]int, error) {
	scanner := bufio.NewScanner(r)
	var ids []int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %q: %w", lineNo, line, ErrMalformedRecord)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read catalog list: %w", err)
	}
	return ids, nil
}

// WriteCatalogList writes one catalog number per line.
func WriteCatalogList(w io.Writer, ids []int) error {
	bw := bufio.NewWriter(w)
	for _, id := range ids {
		if _, err := bw.WriteString(strconv.Itoa(id) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
