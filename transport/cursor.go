package transport

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ParseCursor turns untrusted cursor input into a non-negative integer.
// It never fails: missing or non-numeric input reads from 0, negative values
// become 0, fractions truncate and overflow saturates. The log clamps the
// upper bound to its length.
func ParseCursor(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err == nil {
		return clampInt64(n)
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
		if strings.HasPrefix(raw, "-") {
			return 0
		}
		return math.MaxInt
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && !math.IsInf(f, 1) {
		return 0
	}
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	}
	return int(f)
}

func clampInt64(n int64) int {
	if n < 0 {
		return 0
	}
	if n > math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}
