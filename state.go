package hsm

// node is the internal representation backing a StateId. Parent references
// are symbolic (a pointer resolved once at Build() time), never discovered by
// walking back from a child constructed independently — the tree is built
// top-down through Builder, so it is acyclic by construction (spec.md §9).
type node[C, V any] struct {
	name string

	parent   *node[C, V]
	children []*node[C, V]

	// initialChild is this node's declared default sub-state, set on the
	// parent when a child is built with the Initial() builder sugar. At most
	// one child of a node may be marked this way.
	initialChild *node[C, V]

	entry  func(C)
	exit   func(C)
	initFn func(C) InitOutcome[C, V]
	handle func(C, V) HandleOutcome[C, V]
}

func (n *node[C, V]) isLeaf() bool {
	return len(n.children) == 0
}

func (n *node[C, V]) id() StateId[C, V] {
	return StateId[C, V]{node: n}
}

// effectiveInit returns the hook the engine should call to get this node's
// InitOutcome: the user-supplied Init hook if one was declared, otherwise the
// hook implied by Initial() sugar, otherwise the default "no descent" hook for
// a leaf.
func (n *node[C, V]) effectiveInit() func(C) InitOutcome[C, V] {
	if n.initFn != nil {
		return n.initFn
	}
	if n.initialChild != nil {
		target := n.initialChild.id()
		return func(C) InitOutcome[C, V] { return InitTo(target) }
	}
	return func(C) InitOutcome[C, V] { return NoInit[C, V]() }
}

// Definition is the static, immutable description of a hierarchical state
// machine: the tree of declared states and their hooks. Build one with
// [NewDefinition], declare states from [Definition.Top], then call
// [Definition.Finalize] before constructing any [Precursor].
type Definition[C, V any] struct {
	root      *node[C, V]
	finalized bool
}

// NewDefinition creates an empty Definition. Context type C and event type V
// are fixed for the lifetime of the Definition and every Machine built from
// it.
func NewDefinition[C, V any]() *Definition[C, V] {
	return &Definition[C, V]{root: &node[C, V]{name: "<top>"}}
}

// Top returns a Builder for declaring a top-level state (direct child of the
// implicit root). Equivalent to spec.md's "parent is Top".
func (d *Definition[C, V]) Top() *Builder[C, V] {
	return &Builder[C, V]{parent: d.root}
}

// Builder provides a fluent API for declaring one state: its entry, exit,
// init and handle hooks, and whether it is its parent's initial sub-state.
// Entry/exit/init are optional (defaulting to no-op/no-op/NoInit); handle is
// required — [Builder.Build] panics if it was never set, since spec.md §4.1
// marks handle non-optional.
type Builder[C, V any] struct {
	parent *node[C, V]
	name   string
	built  bool

	entry  func(C)
	exit   func(C)
	initFn func(C) InitOutcome[C, V]
	handle func(C, V) HandleOutcome[C, V]

	markInitial bool
}

// State begins declaring a direct sub-state of id.
func (id StateId[C, V]) State(name string) *Builder[C, V] {
	return &Builder[C, V]{parent: id.node, name: name}
}

// Named sets (or overrides) the state's declared name. A Builder from
// [StateId.State] takes its name from that call; a Builder from
// [Definition.Top] starts unnamed, so top-level states get their name here.
func (b *Builder[C, V]) Named(name string) *Builder[C, V] {
	b.name = name
	return b
}

// Entry sets the state's entry action, run (with the mutable user context)
// each time the state is entered.
func (b *Builder[C, V]) Entry(f func(C)) *Builder[C, V] {
	b.entry = f
	return b
}

// Exit sets the state's exit action, run each time the state is exited.
func (b *Builder[C, V]) Exit(f func(C)) *Builder[C, V] {
	b.exit = f
	return b
}

// Init sets the state's initial-transition hook explicitly. Most callers
// should prefer marking the default child with [Builder.Initial] instead;
// Init is for initial transitions whose target genuinely depends on the
// context, which spec.md §4.1 allows ("init(ctx) -> InitOutcome").
func (b *Builder[C, V]) Init(f func(C) InitOutcome[C, V]) *Builder[C, V] {
	b.initFn = f
	return b
}

// Handle sets the state's event-handle hook. Required: [Builder.Build] panics
// if a state is built without one.
func (b *Builder[C, V]) Handle(f func(C, V) HandleOutcome[C, V]) *Builder[C, V] {
	b.handle = f
	return b
}

// Initial marks the state being built as its parent's default sub-state: the
// parent's initial transition (unless the parent has its own explicit [Builder.Init])
// targets this state.
func (b *Builder[C, V]) Initial() *Builder[C, V] {
	b.markInitial = true
	return b
}

// Build finalizes this state's declaration and returns its StateId. Build may
// only be called once per Builder.
func (b *Builder[C, V]) Build() StateId[C, V] {
	if b.built {
		fatal(MalformedHook, b.name, "Build called twice on the same state builder")
	}
	b.built = true

	n := &node[C, V]{
		name:   b.name,
		parent: b.parent,
		entry:  b.entry,
		exit:   b.exit,
		initFn: b.initFn,
		handle: b.handle,
	}
	if n.handle == nil {
		fatal(MalformedHook, b.name, "state declared without a required handle hook")
	}
	b.parent.children = append(b.parent.children, n)
	if b.markInitial {
		if b.parent.initialChild != nil && b.parent.initialChild != n {
			fatal(MissingInitTarget, b.parent.name,
				"sub-states %q and %q cannot both be marked initial", n.name, b.parent.initialChild.name)
		}
		b.parent.initialChild = n
	}
	return n.id()
}

// Children returns id's direct sub-states, in declaration order. This is
// read-only graph introspection beyond the core engine's own needs (which
// only ever looks up a state's parent) — it exists for tooling such as the
// diagram package, not for use by the dispatch loop.
func (id StateId[C, V]) Children() []StateId[C, V] {
	children := make([]StateId[C, V], len(id.node.children))
	for i, c := range id.node.children {
		children[i] = c.id()
	}
	return children
}

// IsInitial reports whether id is its parent's declared default sub-state
// (set via [Builder.Initial]).
func (id StateId[C, V]) IsInitial() bool {
	return id.node.parent != nil && id.node.parent.initialChild == id.node
}

// HasEntry reports whether id was declared with an entry action.
func (id StateId[C, V]) HasEntry() bool { return id.node.entry != nil }

// HasExit reports whether id was declared with an exit action.
func (id StateId[C, V]) HasExit() bool { return id.node.exit != nil }

// HasDynamicInit reports whether id's initial transition was declared with
// [Builder.Init] (context-dependent) rather than [Builder.Initial] (a fixed
// default child).
func (id StateId[C, V]) HasDynamicInit() bool { return id.node.initFn != nil }

// Roots returns the Definition's top-level states (direct children of the
// implicit root), in declaration order.
func (d *Definition[C, V]) Roots() []StateId[C, V] {
	return d.root.id().Children()
}

// Finalize validates that the declared graph can always reach a leaf via
// initial transitions, for every non-leaf state whose initial transition is
// statically known (declared via [Builder.Initial] rather than a dynamic
// [Builder.Init] hook). States with a dynamic Init hook are trusted here and
// checked instead at the moment initial descent actually runs through them
// (spec.md §4.6) — a custom Init hook's target can depend on the user
// context, which does not exist yet at Finalize time.
//
// Finalize must be called, exactly once, before any [Precursor] is built from
// this Definition.
func (d *Definition[C, V]) Finalize() {
	if len(d.root.children) == 0 {
		fatal(MissingInitTarget, d.root.name, "definition has no declared top-level states")
	}

	var walk func(n *node[C, V])
	walk = func(n *node[C, V]) {
		for n != nil && !n.isLeaf() {
			if n.initFn != nil {
				return // dynamic target: trust it, checked at runtime
			}
			if n.initialChild == nil {
				fatal(MissingInitTarget, n.name, "non-leaf state has no initial sub-state")
			}
			n = n.initialChild
		}
	}
	walk(d.root)

	var recurse func(n *node[C, V])
	recurse = func(n *node[C, V]) {
		for _, c := range n.children {
			walk(c)
			recurse(c)
		}
	}
	recurse(d.root)

	d.finalized = true
}
