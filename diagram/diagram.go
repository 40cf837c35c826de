// Package diagram renders a finalized hsm.Definition as a PlantUML state
// diagram and as JSON, for documentation and debugging. It is adapted from
// dragomit-hsm's DiagramBuilder, retargeted at the StateId/hook model instead
// of closures attached directly to builder-owned states, and with history-
// transition rendering removed (history pseudostates are out of scope).
//
// Unlike the core engine, a Definition's transitions are decided dynamically
// inside handle hooks rather than declared statically up front, so they
// cannot be discovered by walking the graph. Callers register the edges they
// want documented explicitly with Registry.Edge.
package diagram

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/nanohsm/hsm"
)

type edgeKey[C, V any] struct {
	from, to hsm.StateId[C, V]
}

// Registry collects a finalized Definition's declared states plus a set of
// caller-registered transition edges, and renders both as a diagram.
type Registry[C, V any] struct {
	def   *hsm.Definition[C, V]
	edges *orderedmap.OrderedMap[edgeKey[C, V], string]
}

// NewRegistry creates a Registry over def, which must already have had
// Finalize called on it.
func NewRegistry[C, V any](def *hsm.Definition[C, V]) *Registry[C, V] {
	return &Registry[C, V]{
		def:   def,
		edges: orderedmap.New[edgeKey[C, V], string](),
	}
}

// Edge registers a transition arrow from -> to, labeled with label (typically
// an event name, optionally decorated by the caller with guard/action text —
// the engine itself has no notion of guard or action labels, since
// guards-as-separate-constructs are out of scope; see
// hsm.HandleOutcome/Builder.Handle).
func (r *Registry[C, V]) Edge(from, to hsm.StateId[C, V], label string) *Registry[C, V] {
	key := edgeKey[C, V]{from: from, to: to}
	if existing, ok := r.edges.Get(key); ok {
		label = existing + "\\n" + label
	}
	r.edges.Set(key, label)
	return r
}

// PlantUML renders the registry as a PlantUML state diagram.
func (r *Registry[C, V]) PlantUML() string {
	var body, trans strings.Builder

	var dump func(indent int, id hsm.StateId[C, V])
	dump = func(indent int, id hsm.StateId[C, V]) {
		prefix := strings.Repeat("  ", indent)
		children := id.Children()

		fmt.Fprintf(&body, "%sstate %s", prefix, alias(id))
		if len(children) > 0 {
			body.WriteString(" {\n")
			for _, c := range children {
				dump(indent+1, c)
			}
			body.WriteString(prefix)
			body.WriteString("}")
		}
		body.WriteString("\n")

		if id.HasEntry() {
			fmt.Fprintf(&body, "%s%s : entry\n", prefix, alias(id))
		}
		if id.HasExit() {
			fmt.Fprintf(&body, "%s%s : exit\n", prefix, alias(id))
		}
		if id.IsInitial() {
			fmt.Fprintf(&body, "%s[*] --> %s\n", prefix, alias(id))
		}
	}

	for _, root := range r.def.Roots() {
		dump(0, root)
	}

	for pair := r.edges.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(&trans, "%s --> %s : %s\n", alias(pair.Key.from), alias(pair.Key.to), pair.Value)
	}

	var out strings.Builder
	out.WriteString("@startuml\n\n")
	out.WriteString(body.String())
	out.WriteString(trans.String())
	out.WriteString("\n@enduml\n")
	return out.String()
}

// JSON renders the registered edges as an ordered JSON object, keyed by
// "from->to", via the underlying ordered map's own MarshalJSON.
func (r *Registry[C, V]) JSON() ([]byte, error) {
	flat := orderedmap.New[string, string]()
	for pair := r.edges.Oldest(); pair != nil; pair = pair.Next() {
		key := fmt.Sprintf("%s->%s", pair.Key.from.Name(), pair.Key.to.Name())
		flat.Set(key, pair.Value)
	}
	return flat.MarshalJSON()
}

func alias[C, V any](id hsm.StateId[C, V]) string {
	return strings.ReplaceAll(id.Name(), " ", "_")
}

// LoadEventLabels decodes a YAML document mapping event keys to their
// human-readable display names, for use as Edge labels:
//
//	events:
//	  evOpen: "door opened"
//	  evClose: "door closed"
func LoadEventLabels(data []byte) (map[string]string, error) {
	var doc struct {
		Events map[string]string `yaml:"events"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("diagram: decoding event labels: %w", err)
	}
	return doc.Events, nil
}
