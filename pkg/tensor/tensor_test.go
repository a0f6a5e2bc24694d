package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/bnfold/pkg/errors"
)

func TestFromValues(t *testing.T) {
	t.Run("float32 narrows", func(t *testing.T) {
		x, err := FromValues(Float32, []int{2, 2}, []float64{1, 2, 3, 4.5})
		require.NoError(t, err)
		assert.Equal(t, Float32, x.DType())
		assert.Equal(t, []int{2, 2}, x.Shape())
		assert.Equal(t, []float32{1, 2, 3, 4.5}, x.Float32())
		assert.Nil(t, x.Float64())
	})

	t.Run("float64 copies", func(t *testing.T) {
		src := []float64{1, 2}
		x, err := FromValues(Float64, []int{2}, src)
		require.NoError(t, err)
		src[0] = 99
		assert.Equal(t, 1.0, x.At(0))
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := FromValues(Float32, []int{3}, []float64{1, 2})
		assert.True(t, errors.Is(err, errors.ErrCodeShapeMismatch))
	})

	t.Run("negative dim", func(t *testing.T) {
		_, err := FromFloat64([]int{-1}, nil)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	})
}

func TestZerosAndFull(t *testing.T) {
	z := Zeros(Float64, 2, 3)
	assert.Equal(t, 6, z.Len())
	assert.Equal(t, 2, z.Rank())
	assert.Equal(t, 3, z.Dim(-1))
	assert.Equal(t, 2, z.Dim(0))

	f := Full(Float32, 0.5, 4)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, f.Float32())

	s := Zeros(Float32)
	assert.Equal(t, 1, s.Len(), "scalar has one element")
}

func TestCloneIsDeep(t *testing.T) {
	x := MustFromValues(Float32, []int{3}, 1, 2, 3)
	y := x.Clone()
	require.True(t, x.Equal(y))

	y.Set(0, 10)
	assert.Equal(t, 1.0, x.At(0))
	assert.False(t, x.Equal(y))

	var nilTensor *Tensor
	assert.Nil(t, nilTensor.Clone())
}

func TestEqual(t *testing.T) {
	a := MustFromValues(Float32, []int{2}, 1, 2)
	assert.False(t, a.Equal(MustFromValues(Float64, []int{2}, 1, 2)), "dtype differs")
	assert.False(t, a.Equal(MustFromValues(Float32, []int{1, 2}, 1, 2)), "shape differs")
	assert.True(t, a.Equal(MustFromValues(Float32, []int{2}, 1, 2)))
	assert.False(t, a.Equal(nil))
}

func TestData(t *testing.T) {
	x := MustFromValues(Float32, []int{2}, 1, 2)

	f32, ok := Data[float32](x)
	require.True(t, ok)
	f32[1] = 7
	assert.Equal(t, 7.0, x.At(1), "Data returns the backing slice")

	_, ok = Data[float64](x)
	assert.False(t, ok)
}

func TestParseDType(t *testing.T) {
	tests := []struct {
		in      string
		want    DType
		wantErr bool
	}{
		{"", Float32, false},
		{"float32", Float32, false},
		{"F64", Float64, false},
		{"float64", Float64, false},
		{"int8", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, got, must(ParseDType(got.String())))
	}
}

func must(d DType, err error) DType {
	if err != nil {
		panic(err)
	}
	return d
}
