package schedule

import "github.com/harmonize-run/harmonize/api"

// Contribution is one ScheduleDescriptor plus the index of the feature
// that contributed it, as gathered from every currently loaded mod.
type Contribution struct {
	OriginFeature uint32
	Descriptor    api.ScheduleDescriptor
}

// Registry holds the set of pre-registered schedule labels and compiles
// the flattened schedule for each of them (spec.md §4.3): C3, the "Loaded
// Schedules" component. It accepts
// only labels the host has registered in advance (initially Start and
// Update) and rebuilds wholesale on every Compile call — a flattened
// schedule is never mutated in place (spec.md §3 Lifecycles).
type Registry struct {
	labels map[api.StableId]bool
}

// NewRegistry returns a Registry accepting exactly the given labels.
func NewRegistry(labels ...api.StableId) *Registry {
	set := make(map[api.StableId]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return &Registry{labels: set}
}

// RegisterLabel adds an additional accepted schedule label. Per spec.md
// §3 "The only schedule labels accepted are those declared by the host",
// mods referring to a label may only load after it has been registered.
func (r *Registry) RegisterLabel(label api.StableId) {
	r.labels[label] = true
}

// IsRegistered reports whether label has been registered with this
// Registry.
func (r *Registry) IsRegistered(label api.StableId) bool {
	return r.labels[label]
}

// Compile groups every contribution by schedule label and compiles each
// group independently via Builder, per spec.md §4.3. A contribution
// naming an unregistered label fails the whole compile with
// InvalidScheduleError — the caller is expected to have validated this
// per-mod before accepting it into the active set (see internal/loader),
// so that one failing mod never corrupts the registry's existing state.
func (r *Registry) Compile(contributions []Contribution) (map[api.StableId]*Loaded, error) {
	grouped := make(map[api.StableId][]Contribution)
	for _, c := range contributions {
		if !r.labels[c.Descriptor.Label] {
			return nil, &api.InvalidScheduleError{Label: c.Descriptor.Label}
		}
		grouped[c.Descriptor.Label] = append(grouped[c.Descriptor.Label], c)
	}

	out := make(map[api.StableId]*Loaded, len(grouped))
	for label, group := range grouped {
		b := NewBuilder()
		for _, c := range group {
			if err := b.AddSchedule(&c.Descriptor.Schedule, c.OriginFeature); err != nil {
				return nil, err
			}
		}
		loaded, err := b.Build()
		if err != nil {
			return nil, err
		}
		out[label] = loaded
	}
	return out, nil
}
