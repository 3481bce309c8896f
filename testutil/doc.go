// Package testutil provides deterministic inputs and exact reference answers
// for tests and benchmarks.
//
//	rng := testutil.NewRNG(4711)
//	pts := rng.UniformPoints(10000, 100)
//	want := testutil.BruteForceKNN(pts, center, radius, k)
//
// It is intended for use in tests and benchmarks only.
package testutil
