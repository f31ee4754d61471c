package csv

import (
	"strings"
)

// sampleLines is how many non-empty lines delimiter detection looks at
const sampleLines = 5

var candidates = []CsvDelimiter{DelimiterComma, DelimiterSemicolon, DelimiterTab, DelimiterPipe}

// DetectDelimiter picks the candidate that occurs most consistently across
// the first lines of content. Comma wins ties and empty input.
func DetectDelimiter(content string) CsvDelimiter {
	sample := make([]string, 0, sampleLines)
	for line := range strings.Lines(content) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sample = append(sample, stripQuoted(line))
		if len(sample) == sampleLines {
			break
		}
	}
	if len(sample) == 0 {
		return DelimiterComma
	}

	best, bestScore := DelimiterComma, 0.0
	for _, d := range candidates {
		if s := score(sample, string(d)); s > bestScore {
			best, bestScore = d, s
		}
	}
	return best
}

// score is the mean count of sep per line damped by its variance, so a
// separator that appears equally often on every line scores highest
func score(lines []string, sep string) float64 {
	counts := make([]float64, len(lines))
	var mean float64
	for i, line := range lines {
		counts[i] = float64(strings.Count(line, sep))
		mean += counts[i]
	}
	mean /= float64(len(lines))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(lines))
	return mean / (1 + variance)
}

// stripQuoted drops double-quoted sections so separators inside quoted
// values are not counted
func stripQuoted(line string) string {
	if !strings.ContainsRune(line, '"') {
		return line
	}
	var b strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes:
			b.WriteRune(r)
		}
	}
	return b.String()
}
