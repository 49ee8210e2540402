// Package shortcode hands out short numeric codes that must be unique in
// some store, retrying on collision a bounded number of times.
package shortcode

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
)

// ErrExhausted is returned when every attempt produced a taken code.
var ErrExhausted = errors.New("gave up code generation")

const (
	DefaultDigits   = 5
	DefaultAttempts = 60
)

// Generator draws uniformly random integers with exactly Digits digits.
type Generator struct {
	Digits   int
	Attempts int
	// Intn returns a value in [0, n). Defaults to math/rand/v2.
	Intn func(n int64) int64
}

// New returns a generator with the given settings, falling back to defaults
// for non-positive values.
func New(digits, attempts int) *Generator {
	if digits <= 0 {
		digits = DefaultDigits
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Generator{Digits: digits, Attempts: attempts}
}

// Next returns one candidate code.
func (g *Generator) Next() string {
	low, high := bounds(g.digits())
	intn := g.Intn
	if intn == nil {
		intn = rand.Int64N
	}
	return strconv.FormatInt(low+intn(high-low+1), 10)
}

// Acquire draws candidates until taken reports one as free. The check runs in
// the caller's transaction so a free code stays free until commit.
func (g *Generator) Acquire(ctx context.Context, taken func(ctx context.Context, code string) (bool, error)) (string, error) {
	attempts := g.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := g.Next()
		used, err := taken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check short code: %w", err)
		}
		if !used {
			return code, nil
		}
	}
	return "", ErrExhausted
}

func (g *Generator) digits() int {
	if g.Digits <= 0 {
		return DefaultDigits
	}
	if g.Digits > 18 {
		return 18
	}
	return g.Digits
}

// bounds returns the smallest and largest integer with n digits. A single
// digit code may be 0.
func bounds(n int) (int64, int64) {
	high := int64(1)
	for i := 0; i < n; i++ {
		high *= 10
	}
	if n == 1 {
		return 0, high - 1
	}
	return high / 10, high - 1
}
