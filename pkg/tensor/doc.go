// Package tensor provides the dense weight payloads carried by graph nodes.
//
// A [Tensor] is a row-major array of float32 or float64 values plus a shape.
// The folding pass never computes activations; it only reads statistics and
// rewrites kernels and biases in place, so this package deliberately stops
// at storage, copying and element access.
//
// # Precision
//
// Each tensor keeps the precision it was created with. Arithmetic helpers
// are generic over [Float] so that a float32 model is folded with float32
// arithmetic end to end.
//
// # Layout
//
// Data is stored row-major (last axis fastest). For affine kernels the
// output channel axis is the last axis and the input channel axis the one
// before it, so a dense kernel is [in, out] and a 2-D convolution kernel is
// [kh, kw, in, out].
package tensor
