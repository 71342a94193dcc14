package pixel

import "math"

// BlendMode selects the per-channel formula of a binary operation.
//
// The numeric values are shared with the GPU blend shader and must not be
// reordered.
type BlendMode uint8

const (
	BlendAdd BlendMode = iota
	BlendSubtract
	BlendMultiply
	BlendDivide
	BlendScreen
	BlendOverlay
	BlendDodge
	BlendBurn
	BlendHardLight
	BlendGrainMerge
	BlendGrainExtract
	BlendDifference
	BlendMin
	BlendMax
	BlendAlpha
)

var blendNames = [...]string{
	"add", "subtract", "multiply", "divide", "screen", "overlay", "dodge",
	"burn", "hard-light", "grain-merge", "grain-extract", "difference",
	"min", "max", "alpha",
}

func (m BlendMode) String() string {
	if int(m) < len(blendNames) {
		return blendNames[m]
	}
	return "blend(?)"
}

// Blend combines two normalized channel values. opacity is only used by
// BlendAlpha. The result is not clamped.
func Blend(m BlendMode, a, b, opacity float32) float32 {
	switch m {
	case BlendAdd:
		return a + b
	case BlendSubtract:
		return a - b
	case BlendMultiply:
		return a * b
	case BlendDivide:
		if b == 0 {
			return a
		}
		return a / b
	case BlendScreen:
		return 1 - (1-a)*(1-b)
	case BlendOverlay:
		return a * (a + 2*b*(1-a))
	case BlendDodge:
		if b >= 1 {
			return 1
		}
		return a / (1 - b)
	case BlendBurn:
		if b <= 0 {
			return 0
		}
		return 1 - (1-a)/b
	case BlendHardLight:
		if b > 0.5 {
			return 1 - (1-2*(b-0.5))*(1-a)
		}
		return 2 * a * b
	case BlendGrainMerge:
		return a + b - 0.5
	case BlendGrainExtract:
		return a - b + 0.5
	case BlendDifference:
		return float32(math.Abs(float64(a - b)))
	case BlendMin:
		return min(a, b)
	case BlendMax:
		return max(a, b)
	case BlendAlpha:
		return a + (b-a)*opacity
	}
	return a
}
