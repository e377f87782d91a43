package bridge

import (
	"fmt"
	"reflect"
)

// Kind is the value type the native SDK associates with a variable.
type Kind int

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindBool
	KindArray
	KindDictionary
	KindFile
)

var kindTags = [...]string{
	KindInt:        "integer",
	KindFloat:      "float",
	KindString:     "string",
	KindBool:       "bool",
	KindArray:      "list",
	KindDictionary: "group",
	KindFile:       "file",
}

// String returns the wire tag.
func (k Kind) String() string {
	if k > 0 && int(k) < len(kindTags) {
		return kindTags[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool { return k > 0 && int(k) < len(kindTags) }

// Kinds lists every defined kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindTags)-1)
	for k := KindInt; k.Valid(); k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind maps a wire tag back to its Kind.
func ParseKind(tag string) (Kind, error) {
	for k := KindInt; k.Valid(); k++ {
		if kindTags[k] == tag {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", tag)
}

// InferKind picks the kind for a default value. Untyped nil and anything
// without a JSON shape yield ErrUnsupportedValue.
func InferKind(v any) (Kind, error) {
	switch v.(type) {
	case bool:
		return KindBool, nil
	case string:
		return KindString, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt, nil
	case float32, float64:
		return KindFloat, nil
	case nil:
		return 0, fmt.Errorf("%w: nil", ErrUnsupportedValue)
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return KindArray, nil
	case reflect.Map:
		return KindDictionary, nil
	case reflect.Bool:
		return KindBool, nil
	case reflect.String:
		return KindString, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt, nil
	case reflect.Float32, reflect.Float64:
		return KindFloat, nil
	}
	return 0, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// ActionKind is a bit set describing how an action may be surfaced.
type ActionKind int

const (
	ActionKindMessage ActionKind = 1 << iota
	ActionKindAction
)

func (k ActionKind) String() string {
	switch k {
	case ActionKindMessage:
		return "message"
	case ActionKindAction:
		return "action"
	case ActionKindMessage | ActionKindAction:
		return "message|action"
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}
