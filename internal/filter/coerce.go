package filter

import "strings"

// compareScalar applies op between the resolved JSON value v and the
// parsed literal lit, coercing by the literal's type. A type mismatch
// between v and lit always yields false rather than an error (§4.4).
func compareScalar(op CompareOp, v interface{}, lit Literal) bool {
	switch lit.Kind {
	case LitString:
		sv, ok := v.(string)
		if !ok {
			return false
		}
		return compareString(op, sv, lit.Str)
	case LitNumber:
		nv, ok := toFloat(v)
		if !ok {
			return false
		}
		return compareNumber(op, nv, lit.Num)
	case LitBool:
		bv, ok := v.(bool)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return bv == lit.Bool
		case OpNe:
			return bv != lit.Bool
		default:
			return false
		}
	default:
		return false
	}
}

// compareNull implements `path eq null` / `path ne null` against the list
// of refs a path resolved to: absence and explicit JSON null both count as
// null. Any other operator against a null literal is never true.
func compareNull(op CompareOp, refs []Ref) bool {
	var existing []interface{}
	for _, r := range refs {
		if v, ok := r.Value(); ok {
			existing = append(existing, v)
		}
	}
	switch op {
	case OpEq:
		if len(existing) == 0 {
			return true
		}
		for _, v := range existing {
			if v == nil {
				return true
			}
		}
		return false
	case OpNe:
		if len(refs) == 0 {
			return false
		}
		for _, v := range existing {
			if v != nil {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareString(op CompareOp, v, lit string) bool {
	switch op {
	case OpEq:
		return strings.EqualFold(v, lit)
	case OpNe:
		return !strings.EqualFold(v, lit)
	case OpCo:
		return strings.Contains(strings.ToLower(v), strings.ToLower(lit))
	case OpSw:
		return strings.HasPrefix(strings.ToLower(v), strings.ToLower(lit))
	case OpEw:
		return strings.HasSuffix(strings.ToLower(v), strings.ToLower(lit))
	case OpGt:
		return strings.ToLower(v) > strings.ToLower(lit)
	case OpGe:
		return strings.ToLower(v) >= strings.ToLower(lit)
	case OpLt:
		return strings.ToLower(v) < strings.ToLower(lit)
	case OpLe:
		return strings.ToLower(v) <= strings.ToLower(lit)
	default:
		return false
	}
}

func compareNumber(op CompareOp, v, lit float64) bool {
	switch op {
	case OpEq:
		return v == lit
	case OpNe:
		return v != lit
	case OpGt:
		return v > lit
	case OpGe:
		return v >= lit
	case OpLt:
		return v < lit
	case OpLe:
		return v <= lit
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// CompareValues orders two resolved attribute values using the same
// coercion rules as filter comparisons (§4.7 sort): strings compare
// case-insensitively, numbers numerically; values of different or
// non-comparable Go types are considered equal (stable sort then
// preserves input order between them).
func CompareValues(a, b interface{}) int {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			al, bl := strings.ToLower(as), strings.ToLower(bs)
			switch {
			case al < bl:
				return -1
			case al > bl:
				return 1
			default:
				return 0
			}
		}
		return 0
	}
	if an, ok := toFloat(a); ok {
		if bn, ok := toFloat(b); ok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
		return 0
	}
	return 0
}

// isPresent reports whether v counts as "present" for `pr`: not absent, not
// JSON null, not an empty string, and not an empty array.
func isPresent(v interface{}, exists bool) bool {
	if !exists || v == nil {
		return false
	}
	switch vv := v.(type) {
	case string:
		return vv != ""
	case []interface{}:
		return len(vv) > 0
	default:
		return true
	}
}
