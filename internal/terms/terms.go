// Package terms loads line-delimited lists of journal names, author names,
// keywords and MeSH terms.
package terms

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

var stripper = strings.NewReplacer(",", "", ";", "")

// Normalize removes commas and semicolons and trims surrounding whitespace.
func Normalize(line string) string {
	return strings.TrimSpace(stripper.Replace(line))
}

// Unique normalizes lines, drops the empty ones, and returns the distinct
// values in lexicographic order.
func Unique(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		v := Normalize(line)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Read applies Unique to every line of r.
func Read(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading terms: %w", err)
	}
	return Unique(lines), nil
}

// Load reads the unique terms of the file at path. An empty path yields no
// terms.
func Load(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening terms file: %w", err)
	}
	defer f.Close()

	out, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
