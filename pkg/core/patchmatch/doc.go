// Package patchmatch fills masked regions of an image with content copied
// from the rest of the image.
//
// # Overview
//
// The package implements patch-based infill driven by a randomized
// nearest-neighbor search. Every hole pixel keeps an offset to a "donor"
// patch elsewhere in the image. The offsets form a nearest-neighbor field
// ([Field]) which is improved by repeated sweeps of propagation and random
// search ([Pass]) and finally turned back into colors by patch voting
// ([Reconstruct]).
//
// # Pyramid
//
// [BuildPyramid] repeatedly halves the image with a 2×2 box filter. A coarse
// mask pixel is a hole if any of the fine pixels it covers is a hole, so
// hole content never leaks into the coarse donor set. The field is seeded
// randomly only at the coarsest level ([Initialize]); every finer level
// starts from the scaled coarse field ([Upsample]).
//
// # Patch distance
//
// [Distance] is the mean squared difference over the pixel pairs where both
// sides are known. During the search the hole side of a patch additionally
// sees the level's current reconstruction, weighted down, so that patches
// deep inside a large hole still have something to match against.
//
// # Determinism
//
// A single PCG generator drives one call and is consumed in a fixed
// sequential order, so the same seed, image, mask and options always
// produce bit-identical output. Pixels outside the mask are copied to the
// output unchanged.
//
// # Usage
//
//	seed := uint64(7)
//	out, err := patchmatch.Infill(img, mask, patchmatch.Options{Seed: &seed})
package patchmatch
