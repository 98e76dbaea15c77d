package caravel

import "fmt"

// Generic slice helpers for elementwise transformation. They back the
// Series-level Apply path and are usable on plain Go slices.

// MapSlice applies fn to every element
func MapSlice[T, U any](xs []T, fn func(T) U) []U {
	out := make([]U, len(xs))
	for i, x := range xs {
		out[i] = fn(x)
	}
	return out
}

// MapSliceErr applies fn to every element, stopping at the first error.
// The error names the failing index.
func MapSliceErr[T, U any](xs []T, fn func(T) (U, error)) ([]U, error) {
	out := make([]U, len(xs))
	for i, x := range xs {
		v, err := fn(x)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Map2Slice applies fn pairwise to two slices of equal length
func Map2Slice[A, B, U any](as []A, bs []B, fn func(A, B) U) ([]U, error) {
	if len(as) != len(bs) {
		return nil, fmt.Errorf("length mismatch: %d vs %d", len(as), len(bs))
	}
	out := make([]U, len(as))
	for i := range as {
		out[i] = fn(as[i], bs[i])
	}
	return out, nil
}

// MapIf applies fn only to elements matching pred, keeping the rest
func MapIf[T any](xs []T, pred func(T) bool, fn func(T) T) []T {
	out := make([]T, len(xs))
	for i, x := range xs {
		if pred(x) {
			out[i] = fn(x)
		} else {
			out[i] = x
		}
	}
	return out
}

// Reduce folds the slice left to right from the initial accumulator
func Reduce[T, U any](xs []T, init U, fn func(U, T) U) U {
	acc := init
	for _, x := range xs {
		acc = fn(acc, x)
	}
	return acc
}

// Keep returns the elements matching pred, preserving order
func Keep[T any](xs []T, pred func(T) bool) []T {
	var out []T
	for _, x := range xs {
		if pred(x) {
			out = append(out, x)
		}
	}
	return out
}

// Discard returns the elements not matching pred, preserving order
func Discard[T any](xs []T, pred func(T) bool) []T {
	return Keep(xs, func(x T) bool { return !pred(x) })
}
