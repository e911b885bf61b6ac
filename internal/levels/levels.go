// Package levels derives support/resistance reference levels from daily
// OHLCV history: classic pivot points, Fibonacci retracements, a
// weighted extrema blend, ATR bands and a volume profile. All values in
// one Levels come from the same window of bars.
package levels

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/pkg/errors"

	"stock-target-bot/internal/types"
)

// ErrInsufficientData means too few bars were supplied to compute levels.
var ErrInsufficientData = errors.New("insufficient history for level calculation")

const (
	// MinBars is the minimum history the calculator accepts.
	MinBars = 20

	atrPeriod          = 14
	profileBins        = 20
	valueAreaShare     = 0.70
	DefaultFibLookback = 60
)

// FibRatios are the retracement ratios reported between swing low and high.
var FibRatios = []float64{0, 0.382, 0.5, 0.618, 1.0}

type FibLevel struct {
	Ratio float64
	Price float64
}

type Levels struct {
	Pivot float64
	R1    float64
	S1    float64
	R2    float64
	S2    float64

	// Empty when the swing range is zero.
	Fibonacci []FibLevel

	// Weighted extrema blend with volatility/trend/gap nudges.
	Support    float64
	Resistance float64

	ATRSupport1    float64
	ATRSupport2    float64
	ATRResistance1 float64
	ATRResistance2 float64

	// Volume profile; valid only when HasProfile is true.
	PointOfControl float64
	ValueAreaLow   float64
	ValueAreaHigh  float64
	HasProfile     bool
}

// Calculate derives all levels from the given bars (oldest first).
// Internal math runs in full precision; outputs are rounded to two
// decimals at the boundary. Malformed bars never panic; too little data
// returns ErrInsufficientData.
func Calculate(bars []types.Bar, fibLookback int) (*Levels, error) {
	if len(bars) < MinBars {
		return nil, errors.Wrapf(ErrInsufficientData, "have %d bars, need %d", len(bars), MinBars)
	}
	if fibLookback <= 0 {
		fibLookback = DefaultFibLookback
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}

	last := bars[len(bars)-1]
	lv := &Levels{}

	// Classic pivot points from the most recent bar.
	pivot := (last.High + last.Low + last.Close) / 3
	lv.Pivot = round2(pivot)
	lv.R1 = round2(2*pivot - last.Low)
	lv.S1 = round2(2*pivot - last.High)
	lv.R2 = round2(pivot + (last.High - last.Low))
	lv.S2 = round2(pivot - (last.High - last.Low))

	lv.Fibonacci = fibonacci(bars, fibLookback)

	support, resistance := weightedLevels(bars, highs, lows, closes)
	lv.Support = round2(support)
	lv.Resistance = round2(resistance)

	atrSeries := talib.Atr(highs, lows, closes, atrPeriod)
	atr := atrSeries[len(atrSeries)-1]
	lv.ATRSupport1 = round2(math.Max(last.Close-atr, 0))
	lv.ATRSupport2 = round2(math.Max(last.Close-2*atr, 0))
	lv.ATRResistance1 = round2(last.Close + atr)
	lv.ATRResistance2 = round2(last.Close + 2*atr)

	volumeProfile(bars, lv)

	return lv, nil
}

// fibonacci interpolates retracement levels between the swing high and
// low of the trailing lookback window. A zero swing range yields no
// levels rather than a division by zero.
func fibonacci(bars []types.Bar, lookback int) []FibLevel {
	if lookback > len(bars) {
		lookback = len(bars)
	}
	window := bars[len(bars)-lookback:]

	swingHigh := window[0].High
	swingLow := window[0].Low
	for _, b := range window {
		swingHigh = math.Max(swingHigh, b.High)
		swingLow = math.Min(swingLow, b.Low)
	}

	if swingHigh == swingLow {
		return nil
	}

	out := make([]FibLevel, 0, len(FibRatios))
	for _, ratio := range FibRatios {
		out = append(out, FibLevel{
			Ratio: ratio,
			Price: round2(swingHigh - ratio*(swingHigh-swingLow)),
		})
	}
	return out
}

// weightedLevels blends the 5/10/20-bar extrema (0.45/0.35/0.20) and
// nudges the result by volatility, trend and the latest candle's gap.
// Each nudge is capped at 2%; the final values are floored at zero.
func weightedLevels(bars []types.Bar, highs, lows, closes []float64) (support, resistance float64) {
	n := len(bars)
	current := closes[n-1]

	low5, high5 := extrema(bars[n-5:])
	low10, high10 := extrema(bars[n-10:])
	low20, high20 := extrema(bars[n-20:])

	weightedLow := 0.45*low5 + 0.35*low10 + 0.20*low20
	weightedHigh := 0.45*high5 + 0.35*high10 + 0.20*high20

	ma20Series := talib.Sma(closes, 20)
	ma20 := ma20Series[len(ma20Series)-1]
	ma50 := ma20
	if n >= 50 {
		ma50Series := talib.Sma(closes, 50)
		ma50 = ma50Series[len(ma50Series)-1]
	}

	stdSeries := talib.StdDev(closes, 20, 1.0)
	std20 := stdSeries[len(stdSeries)-1]

	volFactor := 0.0
	if current != 0 {
		volFactor = math.Min(std20/current*0.5, 0.02)
	}

	trendFactor := -0.01
	if ma20 > ma50 {
		trendFactor = 0.01
	}

	lastOpen := bars[n-1].Open
	lastChangePct := 0.0
	if lastOpen != 0 {
		lastChangePct = (bars[n-1].Close - lastOpen) / lastOpen
	}

	dropFactor := gapFactor(-lastChangePct)
	gainFactor := gapFactor(lastChangePct)

	support = math.Max(weightedLow*(1-volFactor+trendFactor-dropFactor), 0)
	resistance = math.Max(weightedHigh*(1+volFactor+trendFactor+gainFactor), 0)
	return support, resistance
}

// gapFactor grades the latest candle's body: a move beyond 3% of the
// open widens the level by 2%, beyond 1.5% by 1%.
func gapFactor(movePct float64) float64 {
	switch {
	case movePct > 0.03:
		return 0.02
	case movePct > 0.015:
		return 0.01
	default:
		return 0
	}
}

func extrema(bars []types.Bar) (low, high float64) {
	low = bars[0].Low
	high = bars[0].High
	for _, b := range bars {
		low = math.Min(low, b.Low)
		high = math.Max(high, b.High)
	}
	return low, high
}

// volumeProfile histograms typical prices weighted by volume and marks
// the point of control plus the smallest bucket set covering 70% of the
// traded volume.
func volumeProfile(bars []types.Bar, lv *Levels) {
	minPrice := bars[0].Low
	maxPrice := bars[0].High
	for _, b := range bars {
		minPrice = math.Min(minPrice, b.Low)
		maxPrice = math.Max(maxPrice, b.High)
	}

	priceRange := maxPrice - minPrice
	if priceRange <= 0 {
		return
	}

	binSize := priceRange / profileBins
	volumeByBin := make([]float64, profileBins)
	totalVolume := 0.0

	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		idx := int((typical - minPrice) / binSize)
		if idx < 0 {
			idx = 0
		}
		if idx >= profileBins {
			idx = profileBins - 1
		}
		volumeByBin[idx] += b.Volume
		totalVolume += b.Volume
	}

	if totalVolume <= 0 {
		return
	}

	pocIdx := 0
	for i, v := range volumeByBin {
		if v > volumeByBin[pocIdx] {
			pocIdx = i
		}
	}

	targetVolume := totalVolume * valueAreaShare
	areaVolume := volumeByBin[pocIdx]
	vaHigh, vaLow := pocIdx, pocIdx

	for areaVolume < targetVolume && (vaHigh < profileBins-1 || vaLow > 0) {
		nextHigh := 0.0
		if vaHigh < profileBins-1 {
			nextHigh = volumeByBin[vaHigh+1]
		}
		nextLow := 0.0
		if vaLow > 0 {
			nextLow = volumeByBin[vaLow-1]
		}

		if nextHigh > nextLow && vaHigh < profileBins-1 {
			vaHigh++
			areaVolume += nextHigh
		} else if vaLow > 0 {
			vaLow--
			areaVolume += nextLow
		} else {
			break
		}
	}

	lv.PointOfControl = round2(minPrice + (float64(pocIdx)+0.5)*binSize)
	lv.ValueAreaLow = round2(minPrice + float64(vaLow)*binSize)
	lv.ValueAreaHigh = round2(minPrice + float64(vaHigh+1)*binSize)
	lv.HasProfile = true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
