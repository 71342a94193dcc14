// Package convolve provides the separable convolution and color matrix
// primitives behind the blur, sharpen and channel mixing operations.
//
// Everything works on Plane values: normalized float32 samples with a fixed
// channel count. Passes are written to run over one destination rectangle at
// a time so the CPU tile executor can split them.
package convolve

import (
	"math"

	lru "github.com/hashicorp/golang-lru"
)

// GaussianKernel generates a 1D Gaussian kernel for the given radius.
// The kernel is normalized so all values sum to 1.0.
//
// The kernel size is 2 * ceil(radius * 3) + 1, which covers three standard
// deviations. For radius <= 0 the identity kernel [1] is returned.
func GaussianKernel(radius float64) []float32 {
	if radius <= 0 {
		return []float32{1.0}
	}

	sigma := radius
	half := int(math.Ceil(sigma * 3))
	size := half*2 + 1

	kernel := make([]float32, size)
	twoSigmaSq := 2 * sigma * sigma
	sum := 0.0
	for i := 0; i < size; i++ {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(v)
		sum += v
	}

	inv := float32(1.0 / sum)
	for i := range kernel {
		kernel[i] *= inv
	}
	return kernel
}

// BoxKernel generates a 1D box kernel: 2*radius+1 taps of equal weight.
func BoxKernel(radius int) []float32 {
	if radius <= 0 {
		return []float32{1.0}
	}
	size := radius*2 + 1
	kernel := make([]float32, size)
	v := float32(1.0) / float32(size)
	for i := range kernel {
		kernel[i] = v
	}
	return kernel
}

// KernelSize returns the Gaussian kernel length for radius.
func KernelSize(radius float64) int {
	if radius <= 0 {
		return 1
	}
	return int(math.Ceil(radius*3))*2 + 1
}

// kernels caches Gaussian kernels by radius quantized to 0.01 pixel.
var kernels, _ = lru.New(64)

// SetCacheSize resizes the kernel cache to n entries.
func SetCacheSize(n int) {
	if n > 0 {
		kernels.Resize(n)
	}
}

// CachedGaussianKernel returns a shared Gaussian kernel for radius.
// The returned slice must not be modified.
func CachedGaussianKernel(radius float64) []float32 {
	key := int(math.Round(radius * 100))
	if k, ok := kernels.Get(key); ok {
		return k.([]float32)
	}
	k := GaussianKernel(float64(key) / 100)
	kernels.Add(key, k)
	return k
}
