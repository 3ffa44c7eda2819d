package search

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// FlattenMarkdown reads markdown from r, turns every table row into a
// standalone line of text and returns the processed bytes. Separator rows
// are dropped. If no transform was needed, the original bytes are returned.
//
// Notes:
//   - Avoids emitting a leading blank line.
//   - Table output ends with exactly one newline.
func FlattenMarkdown(r io.Reader) ([]byte, error) {
	orig, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	sc := bufio.NewScanner(bytes.NewReader(orig))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	wroteAny := false
	wroteBlank := true // start true to avoid a leading blank
	sawTable := false

	writeFact := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		b.WriteString(s)
		b.WriteString("\n\n")
		wroteAny = true
		wroteBlank = true
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			if !wroteBlank {
				b.WriteByte('\n')
				wroteBlank = true
			}
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			sawTable = true
			if cells := tableCells(line); len(cells) > 0 {
				writeFact(strings.Join(cells, " "))
			}
			continue
		}

		wroteBlank = false
		writeFact(line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if !sawTable || !wroteAny {
		return orig, nil
	}
	return []byte(strings.TrimRight(b.String(), "\n") + "\n"), nil
}

// tableCells returns the non-empty cells of a row, or nil for a
// separator row such as "|---|:---:|".
func tableCells(line string) []string {
	cols := strings.Split(strings.Trim(line, "|"), "|")
	allSep := true
	cleaned := make([]string, 0, len(cols))
	for _, c := range cols {
		cell := strings.TrimSpace(c)
		if cell != "" {
			cleaned = append(cleaned, cell)
		}
		if strings.Trim(cell, ":- ") != "" {
			allSep = false
		}
	}
	if allSep {
		return nil
	}
	return cleaned
}
