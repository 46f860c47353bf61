package gallery

import (
	"strings"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// Gallery is an immutable snapshot of the enrolled identities, ordered by
// label.
type Gallery struct {
	identities []domain.Identity
	byLabel    map[string]int
	revision   uint64
}

func New(identities []domain.Identity, revision uint64) *Gallery {
	g := &Gallery{
		identities: identities,
		byLabel:    make(map[string]int, len(identities)),
		revision:   revision,
	}
	for i, id := range identities {
		g.byLabel[id.Label] = i
	}
	return g
}

// Identities returns the identities in enumeration order.
func (g *Gallery) Identities() []domain.Identity {
	out := make([]domain.Identity, len(g.identities))
	copy(out, g.identities)
	return out
}

// Lookup finds an identity by label, ignoring case.
func (g *Gallery) Lookup(label string) (domain.Identity, bool) {
	i, ok := g.byLabel[NormalizeLabel(label)]
	if !ok {
		return domain.Identity{}, false
	}
	return g.identities[i], true
}

func (g *Gallery) Len() int {
	return len(g.identities)
}

// Revision is the store revision this snapshot was taken at.
func (g *Gallery) Revision() uint64 {
	return g.revision
}

// NormalizeLabel turns a user supplied name into a gallery label.
func NormalizeLabel(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
