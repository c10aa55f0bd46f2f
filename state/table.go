package state

// table is the interpreter's associative container. Keys preserve
// insertion order so that stack-based traversal with Next is stable and
// resumable from any key.
type table struct {
	keys  []value
	items map[value]value
	meta  *table
}

func newTable() *table {
	return &table{items: map[value]value{}}
}

func (t *table) get(key value) value {
	if v, ok := t.items[key]; ok {
		return v
	}
	return nilValue{}
}

// set stores key = val. Assigning nil removes the entry, per Lua.
// Nil keys are rejected by the callers before reaching here.
func (t *table) set(key, val value) {
	if _, isNil := val.(nilValue); isNil {
		if _, ok := t.items[key]; ok {
			delete(t.items, key)
			for i, k := range t.keys {
				if valuesEqual(k, key) {
					t.keys = append(t.keys[:i], t.keys[i+1:]...)
					break
				}
			}
		}
		return
	}
	if _, ok := t.items[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.items[key] = val
}

// next returns the entry following the given key in traversal order.
// A nil key starts the traversal. The second return is false when the
// traversal is complete, and the error reports a key that is not (or no
// longer) in the table.
func (t *table) next(key value) (value, value, bool, error) {
	if _, isNil := key.(nilValue); isNil {
		if len(t.keys) == 0 {
			return nil, nil, false, nil
		}
		k := t.keys[0]
		return k, t.items[k], true, nil
	}
	for i, k := range t.keys {
		if valuesEqual(k, key) {
			if i+1 >= len(t.keys) {
				return nil, nil, false, nil
			}
			nk := t.keys[i+1]
			return nk, t.items[nk], true, nil
		}
	}
	return nil, nil, false, errInvalidNextKey
}

// length returns the border of the sequence part: the count of
// consecutive integer keys starting at 1.
func (t *table) length() int {
	n := 0
	for {
		if _, ok := t.items[number(n+1)]; !ok {
			return n
		}
		n++
	}
}

// size returns the total number of entries, whatever their keys.
func (t *table) size() int {
	return len(t.items)
}
