package models

// SourceEntry maps one citation identifier to a display name.
type SourceEntry struct {
	CitationID string `json:"citation_id"`
	Name       string `json:"name"`
}

// SourceMap is an ordered citation-identifier → cleaned-source-name mapping built per query.
// Several identifiers may share a name when their chunks come from the same document.
type SourceMap struct {
	entries []SourceEntry
	index   map[string]int
}

// NewSourceMap returns an empty map.
func NewSourceMap() *SourceMap {
	return &SourceMap{index: make(map[string]int)}
}

// Add records id → name. Re-adding an id replaces its name and keeps its position.
func (m *SourceMap) Add(id, name string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[id]; ok {
		m.entries[i].Name = name
		return
	}
	m.index[id] = len(m.entries)
	m.entries = append(m.entries, SourceEntry{CitationID: id, Name: name})
}

// Lookup returns the name for a citation identifier.
func (m *SourceMap) Lookup(id string) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.index[id]
	if !ok {
		return "", false
	}
	return m.entries[i].Name, true
}

// Len returns the number of citation identifiers.
func (m *SourceMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the entries in insertion order.
func (m *SourceMap) Entries() []SourceEntry {
	if m == nil {
		return nil
	}
	return append([]SourceEntry(nil), m.entries...)
}

// DistinctNames returns each name once, in order of first appearance.
func (m *SourceMap) DistinctNames() []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]bool, len(m.entries))
	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		names = append(names, e.Name)
	}
	return names
}
