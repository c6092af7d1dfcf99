package assetsync

import "sort"

// Plan is the result of comparing local records against a manifest.
type Plan struct {
	// Fresh descriptors have a matching local record with content present.
	Fresh []ResourceDescriptor
	// Stale descriptors need a download: no record, different hash or size, or no content.
	Stale []ResourceDescriptor
	// Orphans are names held locally but absent from the manifest, sorted.
	Orphans []string

	manifest []ResourceDescriptor
	local    map[string]CacheRecord
}

// Diff classifies every descriptor in manifest against local.
// Fresh and Stale keep manifest order.
func Diff(local []CacheRecord, manifest []ResourceDescriptor) *Plan {
	p := &Plan{
		manifest: manifest,
		local:    indexRecords(local),
	}

	remote := make(map[string]struct{}, len(manifest))
	for _, d := range manifest {
		remote[d.Name] = struct{}{}
		if rec, ok := p.local[d.Name]; ok && rec.Fresh(d) {
			p.Fresh = append(p.Fresh, d)
		} else {
			p.Stale = append(p.Stale, d)
		}
	}

	for name := range p.local {
		if _, ok := remote[name]; !ok {
			p.Orphans = append(p.Orphans, name)
		}
	}
	sort.Strings(p.Orphans)
	return p
}

// Local returns the local record for name, if any.
func (p *Plan) Local(name string) (CacheRecord, bool) {
	rec, ok := p.local[name]
	return rec, ok
}

// UpToDate reports whether nothing needs to be downloaded.
func (p *Plan) UpToDate() bool {
	return len(p.Stale) == 0
}

// indexRecords keys records by name. A store violating name uniqueness
// resolves to the last record returned.
func indexRecords(records []CacheRecord) map[string]CacheRecord {
	idx := make(map[string]CacheRecord, len(records))
	for _, r := range records {
		idx[r.Name] = r
	}
	return idx
}
