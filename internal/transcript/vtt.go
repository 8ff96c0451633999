package transcript

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseVTT parses WebVTT content into timestamped captions. Cue ids,
// styling blocks, and empty cues are skipped.
func ParseVTT(content string) ([]Caption, error) {
	var captions []Caption
	lines := strings.Split(content, "\n")

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		if !strings.Contains(line, "-->") {
			i++
			continue
		}

		parts := strings.SplitN(line, "-->", 2)
		start, err := ParseTimestamp(parts[0])
		if err != nil {
			return nil, fmt.Errorf("cue at line %d: %w", i+1, err)
		}
		// Cue settings (position, align) may trail the end timestamp.
		endRaw := strings.Fields(strings.TrimSpace(parts[1]))
		if len(endRaw) == 0 {
			return nil, fmt.Errorf("cue at line %d: missing end timestamp", i+1)
		}
		end, err := ParseTimestamp(endRaw[0])
		if err != nil {
			return nil, fmt.Errorf("cue at line %d: %w", i+1, err)
		}

		i++
		var textLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" && !strings.Contains(lines[i], "-->") {
			textLines = append(textLines, strings.TrimSpace(lines[i]))
			i++
		}

		text := strings.Join(textLines, " ")
		if text != "" {
			captions = append(captions, Caption{Start: start, End: end, Text: text})
		}
	}

	return captions, nil
}

// ParseTimestamp converts "HH:MM:SS.mmm" or "MM:SS.mmm" to seconds.
func ParseTimestamp(ts string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(ts), ":")

	var hours, minutes, seconds float64
	var err error
	switch len(parts) {
	case 3:
		if hours, err = strconv.ParseFloat(parts[0], 64); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
		if minutes, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
		if seconds, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
	case 2:
		if minutes, err = strconv.ParseFloat(parts[0], 64); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
		if seconds, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
	default:
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}

	return hours*3600 + minutes*60 + seconds, nil
}

// FormatTimestamp converts seconds to "HH:MM:SS".
func FormatTimestamp(seconds float64) string {
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
