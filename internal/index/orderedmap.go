package index

// OrderedMap is a string-to-string map that remembers insertion order,
// used for both refs and objects (§3 Index): "ordered insertion-
// deterministic so serialization is reproducible; duplicate names
// forbidden (insert replaces)". Re-setting an existing key updates its
// value in place without moving it to the end.
type OrderedMap struct {
	keys []string
	vals map[string]string
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{vals: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (o *OrderedMap) Get(key string) (string, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (o *OrderedMap) Has(key string) bool {
	_, ok := o.vals[key]
	return ok
}

// Set inserts key=value, or updates value in place if key is already
// present, preserving key's original position.
func (o *OrderedMap) Set(key, value string) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = value
}

// Keys returns the keys in insertion order. The caller must not
// mutate the returned slice.
func (o *OrderedMap) Keys() []string {
	return o.keys
}

// Len returns the number of entries.
func (o *OrderedMap) Len() int {
	return len(o.keys)
}

// Clone returns a deep copy, used to snapshot the index before a push
// batch so the driver can detect a no-op push (§4.D idempotence).
func (o *OrderedMap) Clone() *OrderedMap {
	c := &OrderedMap{
		keys: append([]string(nil), o.keys...),
		vals: make(map[string]string, len(o.vals)),
	}
	for k, v := range o.vals {
		c.vals[k] = v
	}
	return c
}

// Equal reports whether o and other have the same entries in the
// same order.
func (o *OrderedMap) Equal(other *OrderedMap) bool {
	if o.Len() != other.Len() {
		return false
	}
	for i, k := range o.keys {
		if other.keys[i] != k {
			return false
		}
		if o.vals[k] != other.vals[k] {
			return false
		}
	}
	return true
}

type pair struct {
	K string `cbor:"k"`
	V string `cbor:"v"`
}

func (o *OrderedMap) toPairs() []pair {
	pairs := make([]pair, len(o.keys))
	for i, k := range o.keys {
		pairs[i] = pair{K: k, V: o.vals[k]}
	}
	return pairs
}

func orderedMapFromPairs(pairs []pair) *OrderedMap {
	o := NewOrderedMap()
	for _, p := range pairs {
		o.Set(p.K, p.V)
	}
	return o
}
