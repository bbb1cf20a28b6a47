// Package singleflight guards expensive shared computations against
// stampedes. It combines in-process call coalescing with a short result
// cache, and provides a cross-process advisory lock for work that must run
// at most once across instances.
package singleflight
