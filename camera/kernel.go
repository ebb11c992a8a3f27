package camera

// Kernel is a small square convolution kernel, centered at (size/2, size/2).
type Kernel struct {
	size    int
	weights []float64
}

// NewKernel allocates a size x size kernel (size must be odd).
func NewKernel(size int) *Kernel {
	return &Kernel{size: size, weights: make([]float64, size*size)}
}

// Size returns the kernel's edge length.
func (k *Kernel) Size() int { return k.size }

// At returns the weight at offset (x, y) from the kernel center.
func (k *Kernel) At(x, y int) float64 {
	return k.weights[(y+k.size/2)*k.size+(x+k.size/2)]
}

// Set stores the weight at offset (x, y) from the kernel center.
func (k *Kernel) Set(x, y int, w float64) {
	k.weights[(y+k.size/2)*k.size+(x+k.size/2)] = w
}

// AbsSum returns the sum of the absolute values of all weights, used to
// normalize a kernel's response into a comparable scale.
func (k *Kernel) AbsSum() float64 {
	sum := 0.0
	for _, w := range k.weights {
		if w < 0 {
			w = -w
		}
		sum += w
	}
	return sum
}

// Normalize rescales the kernel so its AbsSum equals 1.
func (k *Kernel) Normalize() {
	sum := k.AbsSum()
	if sum == 0 {
		return
	}
	for i := range k.weights {
		k.weights[i] /= sum
	}
}

// SobelX is the standard 3x3 horizontal Sobel kernel.
func SobelX() *Kernel {
	k := NewKernel(3)
	weights := [][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			k.Set(dx, dy, weights[dy+1][dx+1])
		}
	}
	return k
}

// SobelY is the standard 3x3 vertical Sobel kernel.
func SobelY() *Kernel {
	k := NewKernel(3)
	weights := [][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			k.Set(dx, dy, weights[dy+1][dx+1])
		}
	}
	return k
}
