package patch

import (
	"encoding/json"

	"github.com/imulab/scim-proxy/internal/filter"
	"github.com/imulab/scim-proxy/internal/scimerr"
)

func applyAdd(resource map[string]interface{}, path *filter.AttrPath, raw json.RawMessage) error {
	if path == nil {
		obj, err := decodeObject(raw)
		if err != nil {
			return scimerr.Wrap(scimerr.ErrInvalidValue, "add without path requires an object value: %v", err)
		}
		for k, v := range obj {
			if isImmutable(k) {
				return scimerr.Wrap(scimerr.ErrMutability, "attribute %q is immutable", k)
			}
			key, ok := filter.FindKey(resource, k)
			if !ok {
				key = k
			}
			appendOrSetValue(resource, key, v)
		}
		return nil
	}

	if isImmutable(path.Attr) {
		return scimerr.Wrap(scimerr.ErrMutability, "attribute %q is immutable", path.Attr)
	}

	if path.Selector != nil {
		elements := filter.MatchElements(resource, path.Attr, path.Selector)
		if len(elements) == 0 {
			return scimerr.Wrap(scimerr.ErrNoTarget, "selector on %q matched no elements", path.Attr)
		}
		for _, el := range elements {
			if len(path.Sub) == 0 {
				obj, err := decodeObject(raw)
				if err != nil {
					return scimerr.Wrap(scimerr.ErrInvalidValue, "add with selector requires an object value: %v", err)
				}
				for k, v := range obj {
					key, ok := filter.FindKey(el, k)
					if !ok {
						key = k
					}
					el[key] = v
				}
				continue
			}
			container, key := containerFor(el, path.Sub)
			val, err := decodeAny(raw)
			if err != nil {
				return scimerr.Wrap(scimerr.ErrInvalidValue, "%v", err)
			}
			container[key] = val
		}
		return nil
	}

	container, key := containerFor(resource, append([]string{path.Attr}, path.Sub...))
	newVal, err := decodeAny(raw)
	if err != nil {
		return scimerr.Wrap(scimerr.ErrInvalidValue, "%v", err)
	}
	appendOrSetValue(container, key, newVal)
	return nil
}

// appendOrSetValue implements add's "multi-valued -> append, singular -> set"
// rule (§4.6): when the existing value is already an array, the new value
// (or, if itself an array, its elements) is appended; otherwise the key is
// set outright, which also covers first-time creation.
func appendOrSetValue(container map[string]interface{}, key string, newVal interface{}) {
	actualKey, exists := filter.FindKey(container, key)
	if !exists {
		actualKey = key
	} else if arr, ok := container[actualKey].([]interface{}); ok {
		if incoming, ok := newVal.([]interface{}); ok {
			container[actualKey] = append(arr, incoming...)
		} else {
			container[actualKey] = append(arr, newVal)
		}
		return
	}
	container[actualKey] = newVal
}

func decodeObject(raw json.RawMessage) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeAny(raw json.RawMessage) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
