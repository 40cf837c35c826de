package hsm

// continueDescent runs a node's own initial-transition chain, assuming
// entered's entry hook has already fired. It stops at the first state whose
// init hook returns NoInit (a leaf), firing entry on every intermediate state
// along the way. This is the bulk of initial descent (spec.md §4.2); the one
// piece it does not do is fire entry on its own starting node, since callers
// reach it in two different situations — fresh descent (entry not yet fired)
// and continuing after a transition's entry phase (entry already fired as
// part of that phase) — and need different starting points.
func continueDescent[C, V any](ctx C, entered *node[C, V]) *node[C, V] {
	cur := entered
	for {
		outcome := cur.effectiveInit()(ctx)
		if outcome.kind != kindInitTo {
			if !cur.isLeaf() {
				fatal(MissingInitTarget, cur.name, "non-leaf state's init hook returned NoInit")
			}
			return cur
		}
		target := outcome.target.node
		if target == nil {
			fatal(MissingInitTarget, cur.name, "init hook returned InitTo with a zero StateId")
		}
		if target.entry != nil {
			target.entry(ctx)
		}
		cur = target
	}
}

// initialDescent fires entry on start, then descends through its initial
// transitions to a leaf, per spec.md §4.2.
func initialDescent[C, V any](ctx C, start *node[C, V]) *node[C, V] {
	if start.entry != nil {
		start.entry(ctx)
	}
	return continueDescent(ctx, start)
}

// Precursor holds a Definition and a freshly-constructed user context, before
// initial descent has run. Its only operation is Init, which consumes the
// Precursor and returns a Machine. Dispatching before Init is a compile-time
// error: there is simply no Dispatch method to call on a Precursor
// (spec.md §4.5/§4.6, UseBeforeInit).
type Precursor[C, V any] struct {
	def      *Definition[C, V]
	ctx      C
	consumed bool
}

// NewPrecursor creates a Precursor from a finalized Definition and a user
// context. def must have had Finalize called on it.
func NewPrecursor[C, V any](def *Definition[C, V], ctx C) *Precursor[C, V] {
	if !def.finalized {
		fatal(MalformedHook, "<definition>", "Definition must be Finalize()d before use")
	}
	return &Precursor[C, V]{def: def, ctx: ctx}
}

// Init runs the definition's top-level init hook and performs initial descent
// from its target, producing a running Machine. Init may be called only once
// per Precursor.
func (p *Precursor[C, V]) Init() *Machine[C, V] {
	if p.consumed {
		fatal(MalformedHook, "<precursor>", "Init called twice on the same precursor")
	}
	p.consumed = true

	target := p.def.initialTarget(p.ctx)
	current := initialDescent(p.ctx, target)
	return &Machine[C, V]{def: p.def, ctx: p.ctx, current: current}
}

// initialTarget resolves the implicit root's effective init hook — driven by
// whichever top-level state was marked Initial via Builder.Initial, since
// Definition itself exposes no Init method of its own — into a starting
// state. A non-Target result here is always fatal: the top must descend
// somewhere (spec.md §4.6).
func (d *Definition[C, V]) initialTarget(ctx C) *node[C, V] {
	outcome := d.root.effectiveInit()(ctx)
	if outcome.kind != kindInitTo {
		fatal(MissingInitTarget, "<top>", "top-level init hook returned NoInit; a target is required")
	}
	if outcome.target.node == nil {
		fatal(MissingInitTarget, "<top>", "top-level init hook returned InitTo with a zero StateId")
	}
	return outcome.target.node
}

// Machine is a running instance of a Definition: a user context paired with a
// current-state cursor. The zero Machine is not usable; obtain one from
// [Precursor.Init]. Machine is not safe for concurrent use — spec.md §5
// confines each instance to one logical thread, with no suspension points
// inside Dispatch.
type Machine[C, V any] struct {
	def     *Definition[C, V]
	ctx     C
	current *node[C, V]
}

// Current returns the id of the machine's current (always-leaf) state.
func (m *Machine[C, V]) Current() StateId[C, V] {
	return m.current.id()
}

// Context returns the machine's user context, for callers that want to
// inspect it between Dispatch calls without threading it through separately.
func (m *Machine[C, V]) Context() C {
	return m.ctx
}

// Dispatch delivers event to the current state, propagating to ancestors
// while handle hooks return Ignored, and performing any resulting transition.
// An event that is Ignored all the way past the topmost state is silently
// discarded (spec.md §4.3, §7 "Ignored-to-top").
func (m *Machine[C, V]) Dispatch(event V) {
	var handler *node[C, V]
	var outcome HandleOutcome[C, V]
	for s := m.current; s != nil && s.handle != nil; s = s.parent {
		outcome = s.handle(m.ctx, event)
		if outcome.kind != kindIgnored {
			handler = s
			break
		}
	}
	if handler == nil {
		return
	}

	switch outcome.kind {
	case kindHandled:
		return
	case kindTransition:
		target := outcome.target.node
		if target == nil {
			fatal(MissingInitTarget, handler.name, "handle hook returned TransitionTo with a zero StateId")
		}
		m.transition(handler, target)
	}
}

// pathDepth bounds the fixed backing arrays used to walk ancestor paths
// without heap allocation for trees of ordinary depth (spec.md §5's "Memory
// discipline", §9's "stack-allocated ancestor chain"). Trees deeper than this
// still work correctly — append falls back to a heap-allocated backing array —
// they just lose the allocation-free property for that one transition.
const pathDepth = 8

// transition performs an HSM transition from handling state h to target t:
// exit from the current leaf up to the least common ancestor of h and t,
// then enter from the LCA down to t, then run initial descent from t
// (spec.md §4.4). Self-transitions (h == t) are the one case the general LCA
// walk cannot express on its own — by definition a state is its own ancestor,
// so the natural LCA would be t itself and nothing would exit or enter — so
// spec.md §4.4 rule 5 calls for an explicit override: exit h, then re-enter
// it, before continuing.
func (m *Machine[C, V]) transition(h, t *node[C, V]) {
	if h == t {
		for s := m.current; s != h; s = s.parent {
			if s.exit != nil {
				s.exit(m.ctx)
			}
		}
		if h.exit != nil {
			h.exit(m.ctx)
		}
		if h.entry != nil {
			h.entry(m.ctx)
		}
		m.current = continueDescent(m.ctx, h)
		return
	}

	var storage1, storage2 [pathDepth]*node[C, V]
	srcPath, dstPath := storage1[:0], storage2[:0]
	for s := h; s != nil; s = s.parent {
		srcPath = append(srcPath, s)
	}
	for s := t; s != nil; s = s.parent {
		dstPath = append(dstPath, s)
	}

	// Walk both paths backwards from the root (which both paths share) until
	// they diverge. srcPath[i+1] (equivalently dstPath[j+1]) is then the
	// least common ancestor: the deepest state that is an ancestor-or-equal
	// of both h and t.
	i, j := len(srcPath)-1, len(dstPath)-1
	for i >= 0 && j >= 0 && srcPath[i] == dstPath[j] {
		i--
		j--
	}
	lca := srcPath[i+1]

	for s := m.current; s != lca; s = s.parent {
		if s.exit != nil {
			s.exit(m.ctx)
		}
	}
	for k := j; k >= 0; k-- {
		if dstPath[k].entry != nil {
			dstPath[k].entry(m.ctx)
		}
	}
	m.current = continueDescent(m.ctx, t)
}
