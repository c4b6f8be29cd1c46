// Package idgen generates the identifiers used for rooms and ledger rows.
package idgen

// Generator produces and validates string identifiers.
type Generator interface {
	Generate() (string, error)
	Validate(id string) (bool, string) // (valid, reason)
}

const (
	// SlugAlphabet is the character set of generated room names.
	SlugAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	// SlugSize is the length of generated room names.
	SlugSize = 10
)

// NewRoomSlugGenerator returns the generator for room names.
func NewRoomSlugGenerator() *NanoIDGenerator {
	g, _ := NewNanoIDGenerator(SlugSize, SlugAlphabet)
	return g
}
