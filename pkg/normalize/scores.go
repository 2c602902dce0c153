package normalize

import "math"

// Score formulas are piecewise-additive with per-term caps. The caps apply
// term by term, before summation, so no single metric can dominate.

// TrendingScore rates overall commercial traction, 0-100.
func TrendingScore(unitsSold, gmv, videoCount, creatorCount float64) int {
	score := math.Min(unitsSold*0.1, 50) +
		math.Min(gmv*0.001, 30) +
		math.Min(videoCount*2, 15) +
		math.Min(creatorCount*1.5, 5)
	return clampScore(score)
}

// ViralScore rates per-video momentum, 0-100. Zero videos means zero score
// regardless of the other metrics.
func ViralScore(unitsSold, videoCount, creatorCount float64) int {
	if videoCount == 0 {
		return 0
	}
	score := math.Min((unitsSold/videoCount)*0.5, 40) +
		math.Min((creatorCount/videoCount)*20, 30) +
		math.Min(videoCount*0.5, 30)
	return clampScore(score)
}

func clampScore(score float64) int {
	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
