package simulator

import (
	"fmt"
	"math"

	"github.com/joeycumines/sdk-bridge/internal/codec"
)

// Missing trailing arguments read as their zero value; adapters on the
// native side treat absent optionals the same way.

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func argString(args []any, i int) (string, error) {
	switch v := arg(args, i).(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("argument %d: expected string, got %T", i, v)
	}
}

func argInt(args []any, i int) (int, error) {
	switch v := arg(args, i).(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("argument %d: expected integer, got %T", i, arg(args, i))
}

func argFloat(args []any, i int) (float64, error) {
	switch v := arg(args, i).(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %d: expected number, got %T", i, v)
	}
}

// argJSON decodes a JSON-encoded string argument.
func argJSON(args []any, i int) (any, error) {
	s, err := argString(args, i)
	if err != nil {
		return nil, err
	}
	v, err := codec.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("argument %d: %w", i, err)
	}
	return v, nil
}

func argJSONMap(args []any, i int) (map[string]any, error) {
	s, err := argString(args, i)
	if err != nil {
		return nil, err
	}
	m, err := codec.DecodeMap(s)
	if err != nil {
		return nil, fmt.Errorf("argument %d: %w", i, err)
	}
	return m, nil
}
