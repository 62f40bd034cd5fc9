package library

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers unique within the lifetime of a
// ledger. The Database owns one; inject a SeqGenerator in tests for
// deterministic IDs.
type IDGenerator interface {
	NextID(prefix string) string
}

// UUIDGenerator is the default generator: collision-free by construction
// rather than by probability.
type UUIDGenerator struct{}

func (UUIDGenerator) NextID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// SeqGenerator hands out zero-padded sequence numbers.
type SeqGenerator struct {
	n uint64
}

func (g *SeqGenerator) NextID(prefix string) string {
	g.n++
	return fmt.Sprintf("%s%06d", prefix, g.n)
}
