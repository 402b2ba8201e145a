// Package fasta provides a minimal FASTA reader for preparing annotation
// submissions.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Record is one parsed FASTA entry.  ID is the first whitespace delimited
// token of the header; Description is the remainder.
type Record struct {
	ID          string
	Description string
	Residues    string
}

// Parse reads every record from r.  Sequence lines are concatenated and
// uppercased; blank lines are skipped.  Data before the first header, a
// header with no sequence, and duplicate IDs are errors.
func Parse(r io.Reader) ([]Record, error) {
	var records []Record
	seen := make(map[string]bool)
	var current *Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, ">") {
			if current != nil && current.Residues == "" {
				return nil, fmt.Errorf("line %d: record %q has no sequence", line, current.ID)
			}
			header := strings.TrimSpace(text[1:])
			if header == "" {
				return nil, fmt.Errorf("line %d: empty FASTA header", line)
			}
			fields := strings.Fields(header)
			id := fields[0]
			if seen[id] {
				return nil, fmt.Errorf("line %d: duplicate record ID %q", line, id)
			}
			seen[id] = true
			records = append(records, Record{ID: id, Description: strings.TrimSpace(header[len(id):])})
			current = &records[len(records)-1]
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: sequence data before first header", line)
		}
		current.Residues += strings.ToUpper(strings.ReplaceAll(text, " ", ""))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %v", err)
	}
	if current != nil && current.Residues == "" {
		return nil, fmt.Errorf("record %q has no sequence", current.ID)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no FASTA records found")
	}
	return records, nil
}
