// Package transform folds normalization layers into neighbouring affine
// layers.
//
// # Overview
//
// At inference time a normalization layer is a fixed per-channel affine
// map, y = x*scale + shift with
//
//	scale = gamma / sqrt(variance + epsilon)
//	shift = beta - mean*scale
//
// so it can be absorbed into an adjacent dense or convolution layer and
// removed from the graph. [Run] performs the whole pass on a copy of the
// caller's graph and returns the rewritten graph plus a [Report].
//
// # Directions
//
// A [Backward] fold scales the output channels of the affine producer:
//
//	kernel[..., o] *= scale[o]
//	bias[o] = bias[o]*scale[o] + shift[o]
//
// A [Forward] fold rewrites the input channels of the affine consumer,
// pushing the shift through the original kernel first:
//
//	bias[o] += sum over spatial, c of kernel[..., c, o]*shift[c]
//	kernel[..., c, o] *= scale[c]
//
// Backward is tried first. Identity and dropout layers with a single
// consumer are crossed; anything else stops the search. A target that
// lacks a bias gets a zero one.
//
// # Concatenations
//
// A normalization fed by a channel concatenation is split into one
// backward fold per branch, each owning its slice of the statistics. The
// node is removed only if every branch can be folded.
//
// # Rounds
//
// The pass repeats until a round folds nothing, so a chain such as
// dense → norm → norm folds completely and a second [Run] over the output
// changes nothing.
//
// # Not Folded
//
// Nodes the pass cannot place stay in the graph and are listed in
// [Report.NotFolded] with a [Reason]. When both directions fail the
// reported reason is the first that applies of [AmbiguousBranching],
// [NonlinearPathBlocked], [UnsafePadding], [ShapeAlteringPathBlocked] and
// [NoReachableAffineNode].
package transform
