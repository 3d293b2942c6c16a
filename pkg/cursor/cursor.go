// Package cursor implements opaque page tokens over offset windows.
package cursor

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidToken is returned for tokens not produced by this package.
var ErrInvalidToken = errors.New("invalid page token")

const tokenPrefix = "o:"

// Encode returns the token addressing offset.
func Encode(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(tokenPrefix + strconv.Itoa(offset)))
}

// Decode returns the offset a token addresses. The empty token is offset 0.
func Decode(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrInvalidToken
	}
	s, ok := strings.CutPrefix(string(raw), tokenPrefix)
	if !ok {
		return 0, ErrInvalidToken
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ErrInvalidToken
	}
	return n, nil
}

// Window is one page of a result set.
type Window struct {
	Offset int
	Size   int
	Total  int
}

// New builds the window a token addresses over total results.
func New(token string, size, total int) (Window, error) {
	offset, err := Decode(token)
	if err != nil {
		return Window{}, err
	}
	if size < 1 {
		size = 1
	}
	return Window{Offset: offset, Size: size, Total: total}, nil
}

// Bounds returns the half-open slice bounds of the window, clamped to Total.
func (w Window) Bounds() (lo, hi int) {
	lo = min(w.Offset, w.Total)
	hi = min(lo+w.Size, w.Total)
	return lo, hi
}

// HasNext returns true if results follow the window.
func (w Window) HasNext() bool {
	return w.Offset+w.Size < w.Total
}

// HasPrevious returns true if results precede the window.
func (w Window) HasPrevious() bool {
	return w.Offset > 0
}

// NextToken returns the token of the following page, or "".
func (w Window) NextToken() string {
	if !w.HasNext() {
		return ""
	}
	return Encode(w.Offset + w.Size)
}

// PrevToken returns the token of the preceding page, or "".
func (w Window) PrevToken() string {
	if !w.HasPrevious() {
		return ""
	}
	return Encode(max(w.Offset-w.Size, 0))
}

// ParseSize parses a requested page size, applying the default when the
// value is missing or invalid and capping it at max.
func ParseSize(raw string, def, max int) int {
	size := def
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = n
		}
	}
	if max > 0 && size > max {
		size = max
	}
	return size
}
