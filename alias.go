package rgstore

import (
	"context"
	"fmt"
	"sort"
)

// Alias is one (namespace, alias) -> digest mapping. A digest may carry
// many aliases across namespaces; an alias string is unique within its
// namespace.
type Alias struct {
	Namespace string
	Alias     string
	Digest    string
}

func (t aliasTable) add(ns, alias, dig string) {
	m, ok := t[ns]
	if !ok {
		m = make(map[string]string)
		t[ns] = m
	}
	m[alias] = dig
}

func (t aliasTable) remove(ns, alias string) bool {
	m, ok := t[ns]
	if !ok {
		return false
	}
	if _, ok := m[alias]; !ok {
		return false
	}
	delete(m, alias)
	if len(m) == 0 {
		delete(t, ns)
	}
	return true
}

func (t aliasTable) list(ns string) []Alias {
	var out []Alias
	for alias, dig := range t[ns] {
		out = append(out, Alias{Namespace: ns, Alias: alias, Digest: dig})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

func (t aliasTable) reverse(dig string) []Alias {
	var out []Alias
	for ns, m := range t {
		for alias, d := range m {
			if d == dig {
				out = append(out, Alias{Namespace: ns, Alias: alias, Digest: d})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Alias < out[j].Alias
	})
	return out
}

// AddSequenceAlias maps (namespace, alias) to a registered sequence
// digest. Either digest kind is accepted; the alias resolves to the
// primary sha512t24u.
func (s *Store) AddSequenceAlias(namespace, alias, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sha, _, ok := s.resolveLocked(id)
	if !ok {
		return fmt.Errorf("%w: sequence %s", ErrNotFound, id)
	}
	s.seqAliases.add(namespace, alias, sha)
	return s.persistAliasesLocked()
}

// RemoveSequenceAlias deletes an alias; removing an unknown alias is
// ErrNotFound.
func (s *Store) RemoveSequenceAlias(namespace, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seqAliases.remove(namespace, alias) {
		return fmt.Errorf("%w: sequence alias %s/%s", ErrNotFound, namespace, alias)
	}
	return s.persistAliasesLocked()
}

// ListSequenceAliases returns every alias in a namespace, sorted.
func (s *Store) ListSequenceAliases(namespace string) []Alias {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seqAliases.list(namespace)
}

// SequenceAliases is the reverse lookup: every alias pointing at the
// identified sequence.
func (s *Store) SequenceAliases(id string) []Alias {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sha, _, ok := s.resolveLocked(id)
	if !ok {
		return nil
	}
	return s.seqAliases.reverse(sha)
}

// GetSequenceByAlias resolves (namespace, alias) and returns the full
// record, materializing its payload as needed.
func (s *Store) GetSequenceByAlias(ctx context.Context, namespace, alias string) (*SequenceRecord, error) {
	s.mu.RLock()
	dig, ok := s.seqAliases[namespace][alias]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sequence alias %s/%s", ErrNotFound, namespace, alias)
	}
	return s.GetSequence(ctx, dig)
}

// AddCollectionAlias maps (namespace, alias) to a registered collection
// digest.
func (s *Store) AddCollectionAlias(namespace, alias, dig string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[dig]; !ok {
		return fmt.Errorf("%w: collection %s", ErrNotFound, dig)
	}
	s.colAliases.add(namespace, alias, dig)
	return s.persistAliasesLocked()
}

// RemoveCollectionAlias deletes a collection alias.
func (s *Store) RemoveCollectionAlias(namespace, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.colAliases.remove(namespace, alias) {
		return fmt.Errorf("%w: collection alias %s/%s", ErrNotFound, namespace, alias)
	}
	return s.persistAliasesLocked()
}

// ListCollectionAliases returns every collection alias in a namespace.
func (s *Store) ListCollectionAliases(namespace string) []Alias {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.colAliases.list(namespace)
}

// CollectionAliases is the reverse lookup for collection digests.
func (s *Store) CollectionAliases(dig string) []Alias {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.colAliases.reverse(dig)
}

// GetCollectionByAlias resolves (namespace, alias) to collection
// metadata without materializing payloads.
func (s *Store) GetCollectionByAlias(namespace, alias string) (SequenceCollectionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dig, ok := s.colAliases[namespace][alias]
	if !ok {
		return SequenceCollectionMetadata{}, fmt.Errorf("%w: collection alias %s/%s", ErrNotFound, namespace, alias)
	}
	entry, ok := s.collections[dig]
	if !ok {
		return SequenceCollectionMetadata{}, fmt.Errorf("%w: collection %s", ErrNotFound, dig)
	}
	return entry.meta, nil
}
