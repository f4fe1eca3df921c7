// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts streamed audio between sample rates
// Package resample provides streaming sample rate conversion.
//
// Uses linear interpolation. State carries across calls, so a stream
// can be fed in chunks of any size without clicks at the boundaries.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := make([]int32, r.MaxOutputSamples(len(in)))
//	n := r.Resample(in, out)
package resample
