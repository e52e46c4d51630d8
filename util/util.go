// Package util contains misc internal utilities.
package util

import (
	"math"
	"time"
)

// Clamp limits x to the range [low, high]
func Clamp(x, low, high float64) float64 {
	return math.Max(low, math.Min(x, high))
}

// SecsToDuration converts a floating point number of seconds to a duration
// without losing the fractional part
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(math.Round(secs * 1e9))
}

// GetBit returns the value of a given bit in a word
func GetBit(w uint32, bitIndex uint) bool {
	return w&(1<<bitIndex) != 0
}

// SetBit sets the bit at bitIndex of w to value and returns the result
func SetBit(w uint32, bitIndex uint, value bool) uint32 {
	if value {
		return w | 1<<bitIndex
	}
	return w &^ (1 << bitIndex)
}

// UniqueString returns the distinct strings of in, in order of first appearance
func UniqueString(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
