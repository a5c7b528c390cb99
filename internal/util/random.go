// Package util provides utility functions for the Crisp application.
package util

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand/v2; the output is not cryptographic material.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateCandidateID generates a time-derived candidate ID with a "cand_"
// prefix. The millisecond timestamp keeps IDs sortable by creation time; the
// hex suffix disambiguates candidates created within the same millisecond.
func GenerateCandidateID() string {
	return fmt.Sprintf("cand_%d_%s", time.Now().UnixMilli(), GenerateRandomHex(6))
}
