package json_encoder

// Value is a closed set of JSON-representable kinds. Only the types in this
// package implement it.
type Value interface {
	isValue()
}

type Null struct{}

type String string

type Int int64

type Float float64

type Bool bool

// Member is one key of an Object. Objects encode their members in slice order.
type Member struct {
	Key   string
	Value Value
}

type Object []Member

type Array []Value

func (Null) isValue()   {}
func (String) isValue() {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (Object) isValue() {}
func (Array) isValue()  {}

func Field(key string, value Value) Member {
	return Member{Key: key, Value: value}
}

// Get returns the value stored under key and whether it was present.
func (o Object) Get(key string) (Value, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of an existing key in place or appends a new member.
func (o Object) Set(key string, value Value) Object {
	for i, m := range o {
		if m.Key == key {
			o[i].Value = value
			return o
		}
	}
	return append(o, Member{Key: key, Value: value})
}

// Merge overlays override on top of base. Keys of base keep their position,
// keys only present in override are appended in override order.
func Merge(base, override Object) Object {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(Object, len(base), len(base)+len(override))
	copy(merged, base)
	for _, m := range override {
		merged = merged.Set(m.Key, m.Value)
	}
	return merged
}
