package core

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// minColumnWidth is the narrowest a rendered column gets.
const minColumnWidth = 3

// Render writes t as a bordered text grid: values left-justified, never
// truncated. At most limit rows are written (limit <= 0 means all); when
// rows are cut a trailing "only showing top N rows" line is added.
func Render(w io.Writer, t *Table, limit int) error {
	rows := t.rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	cells := make([][]string, len(rows))
	widths := make([]int, len(t.columns))
	for j, c := range t.columns {
		widths[j] = max(minColumnWidth, utf8.RuneCountInString(c))
	}
	for i, r := range rows {
		cells[i] = make([]string, len(t.columns))
		for j, c := range t.columns {
			s := FormatCell(r[c])
			cells[i][j] = s
			widths[j] = max(widths[j], utf8.RuneCountInString(s))
		}
	}

	var sep strings.Builder
	sep.WriteByte('+')
	for _, wd := range widths {
		sep.WriteString(strings.Repeat("-", wd))
		sep.WriteByte('+')
	}
	border := sep.String()

	bw := bufio.NewWriter(w)
	writeLine := func(values []string) {
		bw.WriteByte('|')
		for j, v := range values {
			bw.WriteString(v)
			bw.WriteString(strings.Repeat(" ", widths[j]-utf8.RuneCountInString(v)))
			bw.WriteByte('|')
		}
		bw.WriteByte('\n')
	}

	bw.WriteString(border + "\n")
	writeLine(t.columns)
	bw.WriteString(border + "\n")
	for _, values := range cells {
		writeLine(values)
	}
	bw.WriteString(border + "\n")
	if len(rows) < len(t.rows) {
		fmt.Fprintf(bw, "only showing top %d rows\n", len(rows))
	}
	bw.WriteByte('\n')

	return bw.Flush()
}
