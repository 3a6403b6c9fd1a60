package store

import "sort"

// Usage holds storage statistics.
type Usage struct {
	Backend    string           `json:"backend"`
	Path       string           `json:"path,omitempty"`
	FileBytes  int64            `json:"file_bytes,omitempty"`
	Keys       int              `json:"keys"`
	Bytes      int64            `json:"bytes"`
	QuotaBytes int64            `json:"quota_bytes,omitempty"`
	Namespaces []NamespaceUsage `json:"namespaces"`
}

// NamespaceUsage holds per-identity counts.
type NamespaceUsage struct {
	NS    string `json:"ns"`
	Keys  int    `json:"keys"`
	Bytes int64  `json:"bytes"`
}

// usageBuilder accumulates key sizes into a Usage.
type usageBuilder struct {
	u   Usage
	idx map[string]int
}

func newUsage(backend string, quota int64) *usageBuilder {
	return &usageBuilder{u: Usage{Backend: backend, QuotaBytes: quota}, idx: map[string]int{}}
}

func (b *usageBuilder) add(key string, size int64) {
	b.u.Keys++
	b.u.Bytes += size
	ns := Namespace(key)
	i, ok := b.idx[ns]
	if !ok {
		i = len(b.u.Namespaces)
		b.idx[ns] = i
		b.u.Namespaces = append(b.u.Namespaces, NamespaceUsage{NS: ns})
	}
	b.u.Namespaces[i].Keys++
	b.u.Namespaces[i].Bytes += size
}

// done returns the usage with namespaces ordered by size, largest first.
func (b *usageBuilder) done() *Usage {
	sort.SliceStable(b.u.Namespaces, func(i, j int) bool {
		if b.u.Namespaces[i].Bytes != b.u.Namespaces[j].Bytes {
			return b.u.Namespaces[i].Bytes > b.u.Namespaces[j].Bytes
		}
		return b.u.Namespaces[i].NS < b.u.Namespaces[j].NS
	})
	if b.u.Namespaces == nil {
		b.u.Namespaces = []NamespaceUsage{}
	}
	u := b.u
	return &u
}
