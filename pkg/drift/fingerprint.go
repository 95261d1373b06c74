package drift

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"clearway/meridian/pkg/claims"
)

// Fingerprint computes a stable hash over an API schema. Endpoint, field,
// and claim type lists are sorted and serialized with a fixed key order, so
// two schemas describing the same shape hash identically regardless of list
// order in the source.
func Fingerprint(schema *claims.APISchema) (string, error) {
	canonical := struct {
		Endpoints  []string `json:"endpoints"`
		Fields     []string `json:"fields"`
		ClaimTypes []string `json:"claim_types"`
	}{
		Endpoints:  sortedCopy(schema.Endpoints),
		Fields:     sortedCopy(schema.Fields),
		ClaimTypes: sortedCopy(schema.ClaimTypes),
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to serialize schema for hashing: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
