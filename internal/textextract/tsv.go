package textextract

import (
	"strconv"
	"strings"
)

// tsvResult is the parsed output of one tesseract TSV pass.
type tsvResult struct {
	Text      string
	ConfSum   float64
	WordCount int
}

// parseTSV rebuilds recognized text and accumulates per-word confidences
// from tesseract TSV output. Word rows are level 5; the conf column holds
// 0..100, with -1 marking non-word rows.
func parseTSV(out string) tsvResult {
	var res tsvResult
	var line strings.Builder
	var lines []string
	prevKey := ""

	for i, row := range strings.Split(out, "\n") {
		if i == 0 || row == "" {
			continue // header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" {
			continue
		}
		confStr := cols[10]
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}

		// block/par/line triple identifies a text line
		key := cols[2] + ":" + cols[3] + ":" + cols[4]
		if key != prevKey && line.Len() > 0 {
			lines = append(lines, line.String())
			line.Reset()
		}
		prevKey = key

		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)

		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			res.ConfSum += v
			res.WordCount++
		}
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}

	res.Text = strings.Join(lines, "\n")
	return res
}

// meanConfidence returns the mean word confidence in 0..100, or 0 when no
// words were recognized.
func (r tsvResult) meanConfidence() float64 {
	if r.WordCount == 0 {
		return 0
	}
	return r.ConfSum / float64(r.WordCount)
}
