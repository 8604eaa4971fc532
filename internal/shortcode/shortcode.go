// Package shortcode generates and validates the short codes that identify
// links. Generators are safe for concurrent use.
package shortcode

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is a base58-style alphabet: base62 without the ambiguous
// characters 0, O, I and l.
const Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// DefaultLength gives ~58^7 (over 2 trillion) possible codes, which keeps
// random collisions rare enough for write-time retry to absorb them.
const DefaultLength = 7

type Generator struct {
	length int
}

func NewGenerator(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}

	return &Generator{length: length}
}

// New draws a fresh random code. Uniqueness is not checked here; it is
// enforced by the store's conditional insert at write time.
func (g *Generator) New() (string, error) {
	const op = "shortcode.Generator.New"

	code, err := gonanoid.Generate(Alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

func (g *Generator) Length() int {
	return g.length
}

// Valid reports whether s is syntactically a short code: correct length
// and drawn entirely from the alphabet. It says nothing about whether the
// code exists.
func (g *Generator) Valid(s string) bool {
	if len(s) != g.length {
		return false
	}

	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}

	return true
}
