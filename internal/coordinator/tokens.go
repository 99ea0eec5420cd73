package coordinator

import "sync"

// Token identifies one issued request.
type Token uint64

// Tokens hands out request tokens. Only the most recently issued token is
// live; results carrying any other token must not be applied.
type Tokens struct {
	mu   sync.Mutex
	last Token
	live Token
}

// Issue returns a new live token, invalidating the previous one.
func (t *Tokens) Issue() Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last++
	t.live = t.last
	return t.live
}

// IsLive reports whether tok is the current token.
func (t *Tokens) IsLive(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tok != 0 && tok == t.live
}

// Invalidate leaves no live token.
func (t *Tokens) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = 0
}
