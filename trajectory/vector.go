package trajectory

import (
	"math"
	"time"
)

// Vector 轨迹快照（不可变值类型）
type Vector struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Heading    float64   `json:"heading"` // 角度制，归一化到 [0,360)
	CapturedAt time.Time `json:"captured_at"`
}

// NewVector 创建轨迹快照，朝向会被归一化到 [0,360)
func NewVector(x, y, heading float64, capturedAt time.Time) Vector {
	return Vector{
		X:          x,
		Y:          y,
		Heading:    NormalizeHeading(heading),
		CapturedAt: capturedAt,
	}
}

// AngleTo 返回两条轨迹朝向的绝对角度差，归一化到 [0,180]
func (v Vector) AngleTo(other Vector) float64 {
	return AngleDiff(v.Heading, other.Heading)
}

// DistanceTo 返回两条轨迹位置之间的曼哈顿距离
func (v Vector) DistanceTo(other Vector) float64 {
	return math.Abs(v.X-other.X) + math.Abs(v.Y-other.Y)
}

// DistanceToPoint 返回到任意点的曼哈顿距离
func (v Vector) DistanceToPoint(x, y float64) float64 {
	return math.Abs(v.X-x) + math.Abs(v.Y-y)
}

// BearingTo 返回从当前位置指向 (x, y) 的方位角，范围 [0,360)。
// 0° 指向 +X，90° 指向 +Y。
func (v Vector) BearingTo(x, y float64) float64 {
	return NormalizeHeading(math.Atan2(y-v.Y, x-v.X) * 180 / math.Pi)
}

// InForwardCone 判断 (x, y) 是否位于朝向两侧 halfAngle 度以内。
// 与当前位置重合的点视为在前方。
func (v Vector) InForwardCone(x, y, halfAngle float64) bool {
	if x == v.X && y == v.Y {
		return true
	}
	return AngleDiff(v.BearingTo(x, y), v.Heading) <= halfAngle
}

// NormalizeHeading 将任意角度归一化到 [0,360)
func NormalizeHeading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	// math.Mod 对极小负数可能返回 360，对 -360 返回 -0
	if d >= 360 || d == 0 {
		return 0
	}
	return d
}

// AngleDiff 返回两个角度之间的最小夹角，范围 [0,180]
func AngleDiff(a, b float64) float64 {
	diff := math.Abs(NormalizeHeading(a) - NormalizeHeading(b))
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}
