package rgstore

import (
	"encoding/json"
	"fmt"
)

// FhrTaxon names the organism a genome belongs to.
type FhrTaxon struct {
	Name string `json:"name,omitempty"`
	Uri  string `json:"uri,omitempty"`
}

// FhrAuthor identifies a metadata or assembly author, usually by ORCID.
type FhrAuthor struct {
	Name string `json:"name,omitempty"`
	Uri  string `json:"uri,omitempty"`
}

// FhrIdentifier is a database accession reference.
type FhrIdentifier struct {
	Name string `json:"name,omitempty"`
	Uri  string `json:"uri,omitempty"`
}

// FhrMetadata is a FAIR Headers Reference genome (FHR) record attached
// to a collection digest. Every field is optional; schema compliance is
// the caller's responsibility. FHR data is purely descriptive and never
// feeds digest computation.
//
// See https://github.com/FAIR-bioHeaders/FHR-Specification.
type FhrMetadata struct {
	Schema           string          `json:"schema,omitempty"`
	SchemaVersion    string          `json:"schemaVersion,omitempty"`
	Genome           string          `json:"genome,omitempty"`
	Taxon            *FhrTaxon       `json:"taxon,omitempty"`
	Version          string          `json:"version,omitempty"`
	MetadataAuthor   []FhrAuthor     `json:"metadataAuthor,omitempty"`
	AssemblyAuthor   []FhrAuthor     `json:"assemblyAuthor,omitempty"`
	DateCreated      string          `json:"dateCreated,omitempty"`
	Masking          string          `json:"masking,omitempty"`
	Checksum         string          `json:"checksum,omitempty"`
	GenomeSynonym    []string        `json:"genomeSynonym,omitempty"`
	AccessionID      []FhrIdentifier `json:"accessionId,omitempty"`
	Instrument       []string        `json:"instrument,omitempty"`
	ScholarlyArticle []string        `json:"scholarlyArticle,omitempty"`
	License          string          `json:"license,omitempty"`
	RelatedLink      []string        `json:"relatedLink,omitempty"`
	Funding          []string        `json:"funding,omitempty"`
	SeqcolDigest     string          `json:"seqcolDigest,omitempty"`

	// Extra catches fields outside the FHR 1.0 set so sidecars written
	// by other tools round-trip unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

// fhrAlias breaks the MarshalJSON recursion.
type fhrAlias FhrMetadata

// MarshalJSON flattens Extra into the top-level object.
func (m FhrMetadata) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(fhrAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON collects unknown fields into Extra.
func (m *FhrMetadata) UnmarshalJSON(data []byte) error {
	var alias fhrAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*m = FhrMetadata(alias)

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range fhrKnownFields {
		delete(all, known)
	}
	if len(all) > 0 {
		m.Extra = all
	}
	return nil
}

var fhrKnownFields = []string{
	"schema", "schemaVersion", "genome", "taxon", "version",
	"metadataAuthor", "assemblyAuthor", "dateCreated", "masking",
	"checksum", "genomeSynonym", "accessionId", "instrument",
	"scholarlyArticle", "license", "relatedLink", "funding",
	"seqcolDigest",
}

// SetFhrMetadata attaches meta to a registered collection digest,
// replacing any prior record. The sidecar is written through when
// persistence is enabled.
func (s *Store) SetFhrMetadata(collectionDigest string, meta FhrMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collectionDigest]; !ok {
		return fmt.Errorf("%w: collection %s", ErrNotFound, collectionDigest)
	}
	m := meta
	s.fhr[collectionDigest] = &m
	if s.dir != "" {
		if err := s.writeFhrSidecarLocked(collectionDigest, &m); err != nil {
			return err
		}
	}
	return nil
}

// GetFhrMetadata returns the FHR record for a collection digest.
func (s *Store) GetFhrMetadata(collectionDigest string) (FhrMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.fhr[collectionDigest]
	if !ok {
		return FhrMetadata{}, fmt.Errorf("%w: fhr metadata for %s", ErrNotFound, collectionDigest)
	}
	return *m, nil
}

// ListFhrMetadata returns every collection digest carrying FHR data.
func (s *Store) ListFhrMetadata() map[string]FhrMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]FhrMetadata, len(s.fhr))
	for k, v := range s.fhr {
		out[k] = *v
	}
	return out
}
