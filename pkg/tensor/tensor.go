package tensor

import (
	"fmt"
	"math"
	"slices"

	"github.com/matzehuels/bnfold/pkg/errors"
)

// Tensor is a dense row-major array with a fixed shape and dtype.
//
// The zero value is not usable - use one of the constructors.
// A Tensor is not safe for concurrent mutation.
type Tensor struct {
	dtype DType
	shape []int
	f32   []float32
	f64   []float64
}

// FromFloat32 wraps data in a float32 tensor of the given shape.
// The slice is adopted, not copied.
func FromFloat32(shape []int, data []float32) (*Tensor, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{dtype: Float32, shape: slices.Clone(shape), f32: data}, nil
}

// FromFloat64 wraps data in a float64 tensor of the given shape.
// The slice is adopted, not copied.
func FromFloat64(shape []int, data []float64) (*Tensor, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{dtype: Float64, shape: slices.Clone(shape), f64: data}, nil
}

// FromValues builds a tensor of the given dtype from float64 values,
// narrowing to float32 when requested.
func FromValues(dtype DType, shape []int, values []float64) (*Tensor, error) {
	switch dtype {
	case Float32:
		data := make([]float32, len(values))
		for i, v := range values {
			data[i] = float32(v)
		}
		return FromFloat32(shape, data)
	case Float64:
		return FromFloat64(shape, slices.Clone(values))
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unsupported dtype %v", dtype)
	}
}

// MustFromValues is like [FromValues] but panics on error.
// It is intended for tests and literals.
func MustFromValues(dtype DType, shape []int, values ...float64) *Tensor {
	t, err := FromValues(dtype, shape, values)
	if err != nil {
		panic(err)
	}
	return t
}

// Zeros returns a zero-filled tensor.
func Zeros(dtype DType, shape ...int) *Tensor {
	n := NumElements(shape)
	t := &Tensor{dtype: dtype, shape: slices.Clone(shape)}
	switch dtype {
	case Float32:
		t.f32 = make([]float32, n)
	case Float64:
		t.f64 = make([]float64, n)
	default:
		panic("unknown data type")
	}
	return t
}

// Full returns a tensor with every element set to v.
func Full(dtype DType, v float64, shape ...int) *Tensor {
	t := Zeros(dtype, shape...)
	for i := 0; i < t.Len(); i++ {
		t.Set(i, v)
	}
	return t
}

// NumElements returns the product of the dimensions of shape.
// A scalar (empty shape) has one element.
func NumElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func checkLen(shape []int, n int) error {
	for _, d := range shape {
		if d < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "negative dimension in shape %v", shape)
		}
	}
	if want := NumElements(shape); want != n {
		return errors.New(errors.ErrCodeShapeMismatch, "shape %v needs %d elements, got %d", shape, want, n)
	}
	return nil
}

// DType returns the element type.
func (t *Tensor) DType() DType { return t.dtype }

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Len returns the total number of elements.
func (t *Tensor) Len() int {
	if t.dtype == Float64 {
		return len(t.f64)
	}
	return len(t.f32)
}

// Dim returns the size of the given axis. Negative axes count from the end.
// It panics if the axis is out of range.
func (t *Tensor) Dim(axis int) int {
	if axis < 0 {
		axis += len(t.shape)
	}
	return t.shape[axis]
}

// Float32 returns the backing slice of a float32 tensor, or nil.
// Writes through the slice modify the tensor.
func (t *Tensor) Float32() []float32 { return t.f32 }

// Float64 returns the backing slice of a float64 tensor, or nil.
// Writes through the slice modify the tensor.
func (t *Tensor) Float64() []float64 { return t.f64 }

// At returns element i (flat index) widened to float64.
func (t *Tensor) At(i int) float64 {
	if t.dtype == Float64 {
		return t.f64[i]
	}
	return float64(t.f32[i])
}

// Set stores v at flat index i, narrowing to the tensor's dtype.
func (t *Tensor) Set(i int, v float64) {
	if t.dtype == Float64 {
		t.f64[i] = v
		return
	}
	t.f32[i] = float32(v)
}

// Values returns all elements widened to float64.
func (t *Tensor) Values() []float64 {
	out := make([]float64, t.Len())
	for i := range out {
		out[i] = t.At(i)
	}
	return out
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}
	return &Tensor{
		dtype: t.dtype,
		shape: slices.Clone(t.shape),
		f32:   slices.Clone(t.f32),
		f64:   slices.Clone(t.f64),
	}
}

// Equal reports whether both tensors have the same dtype, shape and
// bit-identical elements.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.dtype != o.dtype || !slices.Equal(t.shape, o.shape) {
		return false
	}
	switch t.dtype {
	case Float32:
		for i := range t.f32 {
			if math.Float32bits(t.f32[i]) != math.Float32bits(o.f32[i]) {
				return false
			}
		}
	case Float64:
		for i := range t.f64 {
			if math.Float64bits(t.f64[i]) != math.Float64bits(o.f64[i]) {
				return false
			}
		}
	}
	return true
}

// String returns a short description such as "float32[3 8]".
func (t *Tensor) String() string {
	return fmt.Sprintf("%s%v", t.dtype, t.shape)
}

// Data returns the backing slice of t as []T.
// The second result is false when T does not match the tensor's dtype.
func Data[T Float](t *Tensor) ([]T, bool) {
	var zero T
	switch any(zero).(type) {
	case float32:
		if t.dtype != Float32 {
			return nil, false
		}
		s, ok := any(t.f32).([]T)
		return s, ok
	case float64:
		if t.dtype != Float64 {
			return nil, false
		}
		s, ok := any(t.f64).([]T)
		return s, ok
	}
	return nil, false
}
