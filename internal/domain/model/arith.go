package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BallsPerOver is the number of legal deliveries in an over.
const BallsPerOver = 6

// Ratio divides num by den and resolves a zero denominator to the 0 sentinel.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatOvers renders legal balls in completed-overs.remainder notation, e.g. 22 -> "3.4".
func FormatOvers(balls int) string {
	return fmt.Sprintf("%d.%d", balls/BallsPerOver, balls%BallsPerOver)
}

// ParseOvers reads O.B notation back to legal balls. An empty string is 0.
func ParseOvers(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	whole, frac, _ := strings.Cut(s, ".")
	overs, err := strconv.Atoi(whole)
	if err != nil || overs < 0 {
		return 0, fmt.Errorf("%w: overs %q", ErrMalformed, s)
	}
	balls := 0
	if frac != "" {
		if len(frac) != 1 {
			return 0, fmt.Errorf("%w: overs %q", ErrMalformed, s)
		}
		balls, err = strconv.Atoi(frac)
		if err != nil || balls >= BallsPerOver {
			return 0, fmt.Errorf("%w: overs %q has remainder >= %d", ErrMalformed, s, BallsPerOver)
		}
	}
	return overs*BallsPerOver + balls, nil
}
