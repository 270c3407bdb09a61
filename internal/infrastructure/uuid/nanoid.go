package uuid

import (
	"errors"

	gonanoid "github.com/matoous/go-nanoid"
)

// URLAlphabet url safe characters, same as the nanoid default
const URLAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ErrInvalidLength generator length must be positive
var ErrInvalidLength = errors.New("uuid: length must be positive")

// Generator id generator, used for request ids and feed subscriptions
type Generator interface {
	Generate() (string, error)
}

// NanoIDGenerator Generator backed by NanoID
type NanoIDGenerator struct {
	Length   int
	Alphabet string // defaults to URLAlphabet
}

var _ Generator = &NanoIDGenerator{}

// NewNanoIDGenerator create a generator producing length sized ids, length must be positive
func NewNanoIDGenerator(length int) *NanoIDGenerator {
	if length < 1 {
		panic(ErrInvalidLength)
	}
	return &NanoIDGenerator{Length: length, Alphabet: URLAlphabet}
}

// Generate .
func (ns *NanoIDGenerator) Generate() (string, error) {
	if ns.Length < 1 {
		return "", ErrInvalidLength
	}
	alphabet := ns.Alphabet
	if alphabet == "" {
		alphabet = URLAlphabet
	}
	return gonanoid.Generate(alphabet, ns.Length)
}

// MustGenerate panics on generation failure
func (ns *NanoIDGenerator) MustGenerate() string {
	id, err := ns.Generate()
	if err != nil {
		panic(err)
	}
	return id
}
