// Package idgen hands out identifiers for models, schemas, items and versions.
package idgen

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/artpar/cmscore/ports"
)

// UUID issues version 7 UUIDs. Their text form sorts by creation time,
// which keeps version ids in history order.
type UUID struct{}

func (UUID) New() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Sequential issues prefix000001, prefix000002 and so on. The counter is
// padded to six digits and widens past that, so ids stay in issue order
// as long as fewer than a million are compared.
type Sequential struct {
	prefix string
	n      atomic.Uint64
}

func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

func (s *Sequential) New() string {
	digits := strconv.FormatUint(s.n.Add(1), 10)
	var b strings.Builder
	b.Grow(len(s.prefix) + 6)
	b.WriteString(s.prefix)
	if pad := 6 - len(digits); pad > 0 {
		b.WriteString(strings.Repeat("0", pad))
	}
	b.WriteString(digits)
	return b.String()
}

var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
