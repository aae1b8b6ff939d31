package search

import (
	"bufio"
	"strings"
)

// Facts splits message text into searchable facts: one per non-blank line,
// with Markdown table rows flattened into their cells and separator rows and
// list markers dropped. Plan proposals typically arrive as Markdown, so a long
// plan yields one fact per day or exercise.
func Facts(text string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			cols := strings.Split(strings.Trim(line, "|"), "|")
			allSep := true
			cells := make([]string, 0, len(cols))
			for _, c := range cols {
				cell := strings.TrimSpace(c)
				if cell != "" {
					cells = append(cells, cell)
				}
				if strings.Trim(cell, ":- ") != "" {
					allSep = false
				}
			}
			if allSep || len(cells) == 0 {
				continue
			}
			out = append(out, strings.Join(cells, " "))
			continue
		}

		line = strings.TrimLeft(line, "#>*-+ ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
