package plugin

import (
	"context"
	"sort"
)

// Registry is the frozen, read-only index discovery produces (spec §3.1,
// §4.1). It is built once per process and shared by reference thereafter —
// no entity inside it is mutated after Build returns.
type Registry struct {
	byName  map[string]*Descriptor
	ordered []*Descriptor // deterministic order for pattern matching (spec §3.1)
}

// NewRegistry assembles a frozen Registry directly from already-built
// descriptors, ordered the same way Build orders its result (priority
// layer, then name). Used by the cache's snapshot reload path and by
// callers that construct descriptors without filesystem discovery (tests,
// embedded bundled plugins enumerated in-process).
func NewRegistry(descs []*Descriptor) *Registry {
	byName := make(map[string]*Descriptor, len(descs))
	for _, d := range descs {
		byName[d.Name] = d
	}
	ordered := append([]*Descriptor(nil), descs...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].PriorityLayer != ordered[j].PriorityLayer {
			return ordered[i].PriorityLayer < ordered[j].PriorityLayer
		}
		return ordered[i].Name < ordered[j].Name
	})
	return &Registry{byName: byName, ordered: ordered}
}

// Get looks up a plugin by name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.byName[name]
	return d, ok
}

// All returns the registry's descriptors in deterministic priority order
// (highest-priority layer first; within a layer, by name).
func (r *Registry) All() []*Descriptor {
	if r == nil {
		return nil
	}
	return append([]*Descriptor(nil), r.ordered...)
}

// Build scans searchPaths (ordered highest to lowest priority) and
// produces a frozen Registry plus the advisory events collected along the
// way (spec §4.1 algorithm). It never returns a hard error: an unreadable
// directory, an unparseable plugin, or a duplicate name are all advisory.
func Build(ctx context.Context, searchPaths []string, scanner *Scanner) (*Registry, []Advisory) {
	if scanner == nil {
		scanner = NewScanner()
	}

	var advisories []Advisory
	byName := map[string]*Descriptor{}
	claimed := map[string]struct{}{} // names claimed by an earlier (higher-priority) layer

	for layer, dir := range searchPaths {
		candidates, err := scanner.listCandidates(dir)
		if err != nil {
			advisories = append(advisories, Advisory{Code: "unreadable_dir", Detail: dir + ": " + err.Error()})
			continue
		}

		layerDescs := map[string]*Descriptor{}

		for _, c := range candidates {
			desc, err := scanner.describe(ctx, c, layer)
			if err != nil {
				advisories = append(advisories, Advisory{Code: "metadata_error", Plugin: c.name, Detail: err.Error()})
				continue
			}

			existing, dup := layerDescs[desc.Name]
			if !dup {
				layerDescs[desc.Name] = desc
				continue
			}

			winner := tieBreak(existing, desc)
			layerDescs[desc.Name] = winner
			advisories = append(advisories, Advisory{
				Code:   "duplicate_name",
				Plugin: desc.Name,
				Detail: "within-layer duplicate resolved to " + winner.ExecutablePath,
			})
		}

		for name, desc := range layerDescs {
			if _, taken := claimed[name]; taken {
				continue // suppressed by a higher-priority layer
			}
			byName[name] = desc
			claimed[name] = struct{}{}
		}
	}

	ordered := make([]*Descriptor, 0, len(byName))
	for _, d := range byName {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].PriorityLayer != ordered[j].PriorityLayer {
			return ordered[i].PriorityLayer < ordered[j].PriorityLayer
		}
		return ordered[i].Name < ordered[j].Name
	})

	return &Registry{byName: byName, ordered: ordered}, advisories
}

// tieBreak resolves a duplicate plugin name within a single layer (spec
// §4.1 step 3): the candidate with the larger pattern set wins; ties break
// lexicographically on executable_path.
func tieBreak(a, b *Descriptor) *Descriptor {
	if len(a.Patterns) != len(b.Patterns) {
		if len(a.Patterns) > len(b.Patterns) {
			return a
		}
		return b
	}
	if a.ExecutablePath <= b.ExecutablePath {
		return a
	}
	return b
}
