package transform

import (
	"math"

	"github.com/matzehuels/bnfold/pkg/dag"
	"github.com/matzehuels/bnfold/pkg/errors"
	"github.com/matzehuels/bnfold/pkg/tensor"
)

// foldWeights rewrites the target tensors of every plan in place.
func foldWeights(g *dag.Graph, plans []FoldPlan) error {
	for _, p := range plans {
		norm, _ := g.Node(p.NormalizationID)
		var err error
		switch dt := norm.Weight(dag.RoleMean).DType(); dt {
		case tensor.Float32:
			err = foldPlan[float32](g, norm, p)
		case tensor.Float64:
			err = foldPlan[float64](g, norm, p)
		default:
			err = errors.New(errors.ErrCodeDTypeMismatch, "normalization %q has unsupported dtype %v", norm.ID, dt)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func foldPlan[T tensor.Float](g *dag.Graph, norm *dag.Node, p FoldPlan) error {
	scale, shift, err := scaleShift[T](norm)
	if err != nil {
		return err
	}
	start, end, err := sliceBounds(p, len(scale))
	if err != nil {
		return err
	}
	scale, shift = scale[start:end], shift[start:end]

	for _, id := range p.Targets() {
		target, _ := g.Node(id)
		kernel, bias, err := targetData[T](norm, target)
		if err != nil {
			return err
		}
		shape := target.Weight(dag.RoleKernel).Shape()
		if p.Direction == Forward {
			err = foldForward(kernel, bias, shape, scale, shift)
		} else {
			err = foldBackward(kernel, bias, shape, scale, shift)
		}
		if err != nil {
			return errors.Wrap(errors.GetCode(err), err, "fold %q into %q", norm.ID, id)
		}
	}
	return nil
}

// scaleShift computes per-channel scale = gamma/sqrt(variance+eps) and
// shift = beta - mean*scale in the statistics' precision. Missing gamma
// and beta default to one and zero.
func scaleShift[T tensor.Float](n *dag.Node) (scale, shift []T, err error) {
	mean, err := statistic[T](n, dag.RoleMean, -1)
	if err != nil {
		return nil, nil, err
	}
	c := len(mean)
	variance, err := statistic[T](n, dag.RoleVariance, c)
	if err != nil {
		return nil, nil, err
	}
	gamma, err := statistic[T](n, dag.RoleGamma, c)
	if err != nil {
		return nil, nil, err
	}
	beta, err := statistic[T](n, dag.RoleBeta, c)
	if err != nil {
		return nil, nil, err
	}

	eps := T(n.Epsilon())
	scale = make([]T, c)
	shift = make([]T, c)
	for i := range c {
		s := T(1) / T(math.Sqrt(float64(variance[i]+eps)))
		if gamma != nil {
			s *= gamma[i]
		}
		scale[i] = s
		shift[i] = -mean[i] * s
		if beta != nil {
			shift[i] += beta[i]
		}
	}
	return scale, shift, nil
}

// statistic returns the 1-D tensor stored under role. A missing optional
// role yields nil. When want is non-negative the length must match.
func statistic[T tensor.Float](n *dag.Node, role dag.Role, want int) ([]T, error) {
	t := n.Weight(role)
	if t == nil {
		return nil, nil
	}
	data, ok := tensor.Data[T](t)
	if !ok {
		return nil, errors.New(errors.ErrCodeDTypeMismatch,
			"normalization %q: %s is %v, mean is %v", n.ID, role, t.DType(), n.Weight(dag.RoleMean).DType())
	}
	if t.Rank() != 1 {
		return nil, errors.New(errors.ErrCodeShapeMismatch, "normalization %q: %s must be 1-D, got %v", n.ID, role, t)
	}
	if want >= 0 && len(data) != want {
		return nil, errors.New(errors.ErrCodeShapeMismatch,
			"normalization %q: %s has %d channels, want %d", n.ID, role, len(data), want)
	}
	return data, nil
}

func targetData[T tensor.Float](norm, target *dag.Node) (kernel, bias []T, err error) {
	kernel, ok := tensor.Data[T](target.Weight(dag.RoleKernel))
	if !ok {
		return nil, nil, errors.New(errors.ErrCodeDTypeMismatch,
			"cannot fold %v statistics of %q into %v kernel of %q",
			norm.Weight(dag.RoleMean).DType(), norm.ID, target.Weight(dag.RoleKernel).DType(), target.ID)
	}
	bias, ok = tensor.Data[T](target.Weight(dag.RoleBias))
	if !ok {
		return nil, nil, errors.New(errors.ErrCodeDTypeMismatch,
			"bias of %q is %v, kernel is %v", target.ID, target.Weight(dag.RoleBias).DType(), target.Weight(dag.RoleKernel).DType())
	}
	return kernel, bias, nil
}

// foldBackward scales the output channels of a kernel laid out as
// [..., out] and maps the bias through the same affine transform.
func foldBackward[T tensor.Float](kernel, bias []T, shape []int, scale, shift []T) error {
	out := shape[len(shape)-1]
	if out != len(scale) {
		return errors.New(errors.ErrCodeShapeMismatch, "kernel has %d output channels, normalization slice has %d", out, len(scale))
	}
	if len(bias) != out {
		return errors.New(errors.ErrCodeShapeMismatch, "bias has %d elements, kernel has %d output channels", len(bias), out)
	}
	for i := 0; i < len(kernel); i += out {
		row := kernel[i : i+out]
		for o := range row {
			row[o] *= scale[o]
		}
	}
	for o := range bias {
		bias[o] = bias[o]*scale[o] + shift[o]
	}
	return nil
}

// foldForward absorbs a normalization applied to the input channels of a
// kernel laid out as [..., in, out]. The shift is pushed into the bias
// through the unscaled kernel before the input rows are scaled.
func foldForward[T tensor.Float](kernel, bias []T, shape []int, scale, shift []T) error {
	in, out := shape[len(shape)-2], shape[len(shape)-1]
	if in != len(scale) {
		return errors.New(errors.ErrCodeShapeMismatch, "kernel has %d input channels, normalization has %d", in, len(scale))
	}
	if len(bias) != out {
		return errors.New(errors.ErrCodeShapeMismatch, "bias has %d elements, kernel has %d output channels", len(bias), out)
	}
	for i := 0; i < len(kernel); i += in * out {
		window := kernel[i : i+in*out]
		for c := range in {
			row := window[c*out : (c+1)*out]
			for o := range row {
				bias[o] += row[o] * shift[c]
				row[o] *= scale[c]
			}
		}
	}
	return nil
}
