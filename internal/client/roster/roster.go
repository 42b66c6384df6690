// Package roster tracks the server's participant list on the client side.
package roster

import (
	"slices"

	"github.com/dkeye/Meet/internal/domain"
)

type Delta struct {
	Added   []domain.Identity
	Removed []domain.Identity
}

func (d Delta) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// Synchronizer caches the last roster. Not safe for concurrent use.
type Synchronizer struct {
	current []domain.Identity
}

// Apply replaces the cached roster with next and reports the set difference.
// Added keeps next's order; Removed keeps the previous order.
func (s *Synchronizer) Apply(next []domain.Identity) Delta {
	seen := make(map[domain.Identity]struct{}, len(next))
	var d Delta
	for _, id := range next {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if !slices.Contains(s.current, id) {
			d.Added = append(d.Added, id)
		}
	}
	for _, id := range s.current {
		if _, ok := seen[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	s.current = slices.Clone(next)
	return d
}

func (s *Synchronizer) Current() []domain.Identity { return slices.Clone(s.current) }

func (s *Synchronizer) Contains(id domain.Identity) bool { return slices.Contains(s.current, id) }

// Reset forgets the roster, e.g. after the connection drops.
func (s *Synchronizer) Reset() Delta {
	d := Delta{Removed: s.current}
	s.current = nil
	return d
}

// Initiates reports whether local sends the offer to remote. The roster is in
// admission order and the earlier member initiates, so both ends agree.
func Initiates(roster []domain.Identity, local, remote domain.Identity) bool {
	li, ri := slices.Index(roster, local), slices.Index(roster, remote)
	if li < 0 || ri < 0 {
		return local < remote
	}
	return li < ri
}
