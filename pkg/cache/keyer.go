package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keyer derives cache keys for analysis artifacts.
type Keyer interface {
	// ClosureKey identifies the closures of a graph under a filter.
	ClosureKey(graphHash string, opts ClosureKeyOpts) string
}

// ClosureKeyOpts are the inputs besides the graph that change closures.
type ClosureKeyOpts struct {
	Filter string `json:"filter"`
}

// DefaultKeyer produces keys of the form "closure:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ClosureKey hashes the graph hash together with the options.
func (DefaultKeyer) ClosureKey(graphHash string, opts ClosureKeyOpts) string {
	return hashKey("closure", graphHash, opts)
}

// hashKey returns prefix:sha256(json(parts)).
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return fmt.Sprintf("%s:%s", prefix, Hash(data))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashJSON returns the [Hash] of v's JSON encoding. Map keys are encoded in
// sorted order, so equal values hash equally.
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Hash(data), nil
}
