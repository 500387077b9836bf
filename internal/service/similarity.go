package service

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
)

// CosineSimilarity returns dot(a, b) / (|a| * |b|), within [-1, 1].
// It returns 0 when either vector is empty, the lengths differ, or a norm is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim))
}

// TextHash fingerprints listing text so stored vectors can be checked for staleness
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// confidenceScore is the mean similarity scaled to an integer in [0, 100]; 0 for no matches
func confidenceScore(similarities []float64) int {
	if len(similarities) == 0 {
		return 0
	}
	var sum float64
	for _, s := range similarities {
		sum += s
	}
	c := int(math.Round(sum / float64(len(similarities)) * 100))
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
