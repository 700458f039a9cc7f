package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
)

// sequence hands out ids of the form prefix+N with N > base. It only moves
// forward, so ids freed by deletions are never reissued.
type sequence struct {
	mu     sync.Mutex
	prefix string
	last   int
}

func newSequence(prefix string, base int) *sequence {
	return &sequence{prefix: prefix, last: base}
}

// observe advances the counter past an existing id.
func (s *sequence) observe(id string) {
	n, ok := s.parse(id)
	if !ok {
		return
	}
	s.mu.Lock()
	if n > s.last {
		s.last = n
	}
	s.mu.Unlock()
}

func (s *sequence) parse(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, s.prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *sequence) next() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.prefix + strconv.Itoa(s.last), s.last
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomCode returns n characters drawn uniformly from codeAlphabet.
func randomCode(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for range n {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
