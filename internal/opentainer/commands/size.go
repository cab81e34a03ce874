package commands

import (
	"strconv"
	"strings"
)

// parseEngineSize converts a human-readable size reported by the docker
// CLI ("10MB", "1.5GiB") into bytes, truncated toward zero. Unparseable
// input yields 0 and unknown units multiply by 1, matching how the CLI's
// own output is best-effort.
func parseEngineSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	// Numeric part: leading digits with at most one decimal point.
	i := 0
	dot := false
	for i < len(s) {
		c := s[i]
		if c >= '0' && c <= '9' {
			i++
			continue
		}
		if c == '.' && !dot {
			dot = true
			i++
			continue
		}
		break
	}

	val, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		val = 0
	}

	var mult float64
	switch strings.TrimSpace(s[i:]) {
	case "kB", "KB", "kb":
		mult = 1e3
	case "MB", "mb":
		mult = 1e6
	case "GB", "gb":
		mult = 1e9
	case "TB", "tb":
		mult = 1e12
	case "KiB", "KIB":
		mult = 1 << 10
	case "MiB", "MIB":
		mult = 1 << 20
	case "GiB", "GIB":
		mult = 1 << 30
	case "TiB", "TIB":
		mult = 1 << 40
	default: // "B", empty, or unknown
		mult = 1
	}

	return int64(val * mult)
}
