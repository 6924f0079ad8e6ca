package analyzer

import (
	"image"
	"image/color"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// stripRows is the number of rows converted per pool job
const stripRows = 64

type metricsCalculator struct {
	pool      *WorkerPool
	slicePool sync.Pool
}

// NewMetricsCalculator creates a calculator that converts large images on pool
func NewMetricsCalculator(pool *WorkerPool) MetricsCalculator {
	return &metricsCalculator{
		pool: pool,
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// Grayscale converts img, splitting the work into row strips when a pool is set
func (mc *metricsCalculator) Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	if mc.pool == nil || bounds.Dy() <= stripRows {
		convertRows(img, gray, bounds.Min.Y, bounds.Max.Y)
		return gray
	}

	// A local WaitGroup keeps concurrent analyses from waiting on each other's jobs.
	var wg sync.WaitGroup
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stripRows {
		endY := y + stripRows
		if endY > bounds.Max.Y {
			endY = bounds.Max.Y
		}
		startY := y
		wg.Add(1)
		mc.pool.Submit(func() {
			defer wg.Done()
			convertRows(img, gray, startY, endY)
		})
	}
	wg.Wait()
	return gray
}

func convertRows(img image.Image, gray *image.Gray, startY, endY int) {
	bounds := img.Bounds()
	for y := startY; y < endY; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
}

// CalculateLaplacianVariance computes the variance of the 4-neighbour Laplacian
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()
	if need := (width - 2) * (height - 2); cap(data) < need {
		data = make([]float64, 0, need)
	}

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)
			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// CalculateBrightness returns the mean gray level
func (mc *metricsCalculator) CalculateBrightness(gray *image.Gray) float64 {
	mean, _ := mc.grayStats(gray)
	return mean
}

// CalculateContrast returns the standard deviation of gray levels
func (mc *metricsCalculator) CalculateContrast(gray *image.Gray) float64 {
	_, std := mc.grayStats(gray)
	return std
}

func (mc *metricsCalculator) grayStats(gray *image.Gray) (mean, std float64) {
	bounds := gray.Bounds()
	if bounds.Empty() {
		return 0, 0
	}
	// 256-bin histogram weighted by pixel counts
	var hist [256]float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}
	levels := make([]float64, 256)
	for i := range levels {
		levels[i] = float64(i)
	}
	mean, std = stat.MeanStdDev(levels, hist[:])
	if bounds.Dx()*bounds.Dy() == 1 {
		std = 0
	}
	return mean, std
}
