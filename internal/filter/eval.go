package filter

// Evaluate executes node against resource and returns whether it matches.
// It is a pure function of (node, resource): no cross-node mutable state is
// kept, so the same AST may be evaluated concurrently against many
// resources (§9 "evaluator is a pure function over (node, resource)").
//
// Comparisons against a multi-valued path are existential: true iff any
// element satisfies the comparison, including `ne` (§4.4). Evaluate never
// panics or returns an error — a malformed comparison simply evaluates to
// false, matching the "never throws" soundness property (§8 property 1).
func Evaluate(node Node, resource map[string]interface{}) bool {
	switch n := node.(type) {
	case *CompareNode:
		return evalCompare(n, resource)
	case *PresentNode:
		return evalPresent(n, resource)
	case *AndNode:
		return Evaluate(n.Left, resource) && Evaluate(n.Right, resource)
	case *OrNode:
		return Evaluate(n.Left, resource) || Evaluate(n.Right, resource)
	case *NotNode:
		return !Evaluate(n.Inner, resource)
	case *ComplexNode:
		return evalComplex(n, resource)
	default:
		return false
	}
}

func evalCompare(n *CompareNode, resource map[string]interface{}) bool {
	refs := Resolve(resource, n.Path)
	if n.Value.Kind == LitNull {
		return compareNull(n.Op, refs)
	}
	for _, r := range refs {
		v, ok := r.Value()
		if !ok {
			continue
		}
		if compareScalar(n.Op, v, n.Value) {
			return true
		}
	}
	return false
}

func evalPresent(n *PresentNode, resource map[string]interface{}) bool {
	refs := Resolve(resource, n.Path)
	for _, r := range refs {
		v, ok := r.Value()
		if isPresent(v, ok) {
			return true
		}
	}
	return false
}

func evalComplex(n *ComplexNode, resource map[string]interface{}) bool {
	matched := MatchElements(resource, n.Path.Attr, n.Predicate)
	if len(matched) == 0 {
		return false
	}
	if len(n.Sub) == 0 {
		return true
	}
	refs := resolveSegments(matched, n.Sub)
	for _, r := range refs {
		v, ok := r.Value()
		if isPresent(v, ok) {
			return true
		}
	}
	return false
}
