package manifest

import (
	"fmt"
	"strings"

	"github.com/harmonize-run/harmonize/api"
)

// Dump renders m as indented, human-readable text: the P.manifest.txt
// sibling file spec.md §6 describes as "not consumed by the loader". It
// exists purely for a developer inspecting a build output.
func Dump(m *api.ModManifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "wasm_hash: %s\n", m.WasmHash)
	for _, f := range m.Features {
		fmt.Fprintf(&b, "feature %q\n", f.Name)
		for _, r := range f.Resources {
			fmt.Fprintf(&b, "  resource %s (%d bytes)\n", r.Id, len(r.Value))
		}
		for _, sd := range f.Schedules {
			fmt.Fprintf(&b, "  schedule %s\n", sd.Label)
			for _, sys := range sd.Schedule.Systems {
				fmt.Fprintf(&b, "    system %s (id=%d, %d params)\n", sys.Name, sys.Id, len(sys.Params))
			}
			for _, c := range sd.Schedule.Constraints {
				fmt.Fprintf(&b, "    constraint %s\n", dumpConstraint(c))
			}
		}
	}
	return b.String()
}

func dumpConstraint(c api.Constraint) string {
	switch c.Kind {
	case api.ConstraintOrder:
		return fmt.Sprintf("Order{before=%s, after=%s}", dumpSet(c.Before), dumpSet(c.After))
	case api.ConstraintIncludes:
		return fmt.Sprintf("Includes{parent=%s, child=%s}", c.Parent, dumpSet(c.Child))
	case api.ConstraintCondition:
		return fmt.Sprintf("Condition{set=%s, predicate=%d}", dumpSet(c.Set), c.Predicate)
	default:
		return "unknown"
	}
}

func dumpSet(s api.SystemSet) string {
	switch s.Kind {
	case api.SystemSetAnonymous:
		return fmt.Sprintf("%v", s.Members)
	case api.SystemSetNamed:
		return s.Name.String()
	default:
		return "unknown"
	}
}
