package tensor

import (
	"fmt"
	"strings"
)

// Float is a constraint for the floating-point element types a tensor can hold.
type Float interface {
	~float32 | ~float64
}

// DType represents runtime type information for tensors.
type DType int

// Supported data types for tensors.
const (
	Float32 DType = iota
	Float64
)

// Size returns the byte size of the data type.
func (dt DType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// ParseDType parses a data type name as written by [DType.String].
// An empty string selects float32, the common case for trained models.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "float32", "f32":
		return Float32, nil
	case "float64", "f64":
		return Float64, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", s)
	}
}
