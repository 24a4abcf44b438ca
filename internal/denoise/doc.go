// Package denoise runs per-frame noise suppression with a bounded latency
// budget.
//
// The processor implements an explicit round trip: each fixed-size frame
// is submitted to the backing engine and the denoised frame is awaited
// within one frame period. Misses fall back to the original frame and are
// counted, so the pipeline degrades to passthrough observably rather than
// silently. The Engine interface is the seam for plugging in an actual
// model; the processor itself owns only the timing contract.
package denoise
