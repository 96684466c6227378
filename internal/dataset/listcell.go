package dataset

import (
	"fmt"
	"strings"
)

// ParseListCell parses a list-valued CSV cell. The dataset encodes lists
// either as a Python-style stringified list (`['A. Author', "B"]`) or as a
// plain comma-separated string. An unparsable bracketed cell returns an
// error so callers can skip the field for that row.
func ParseListCell(cell string) ([]string, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	if strings.HasPrefix(cell, "[") {
		if !strings.HasSuffix(cell, "]") {
			return nil, fmt.Errorf("unterminated list cell %q", cell)
		}
		return parseBracketedList(cell[1 : len(cell)-1])
	}

	var out []string
	for _, part := range strings.Split(cell, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func parseBracketedList(body string) ([]string, error) {
	var out []string
	i := 0
	for i < len(body) {
		// Skip separators between items.
		for i < len(body) && (body[i] == ' ' || body[i] == ',' || body[i] == '\t') {
			i++
		}
		if i >= len(body) {
			break
		}
		quote := body[i]
		if quote != '\'' && quote != '"' {
			return nil, fmt.Errorf("expected quoted list item at offset %d", i)
		}
		i++
		var sb strings.Builder
		closed := false
		for i < len(body) {
			ch := body[i]
			if ch == '\\' && i+1 < len(body) {
				sb.WriteByte(body[i+1])
				i += 2
				continue
			}
			if ch == quote {
				closed = true
				i++
				break
			}
			sb.WriteByte(ch)
			i++
		}
		if !closed {
			return nil, fmt.Errorf("unterminated quoted list item")
		}
		if v := strings.TrimSpace(sb.String()); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}
