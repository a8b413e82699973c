package indicator

import (
	"errors"
	"slices"

	"finanzas/internal/core"
)

// Static momentum thresholds. They are not derived from data.
const (
	BuyLevel  = 0.861608
	SellLevel = 1.095478
)

var (
	ErrEmptySeries = errors.New("empty price series")
	ErrUnsorted    = errors.New("price series not in ascending date order")
)

// Signal is the reading of the current ratio against the thresholds.
type Signal string

const (
	SignalOverbought       Signal = "overbought"
	SignalOversold         Signal = "oversold"
	SignalNeutral          Signal = "neutral"
	SignalInsufficientData Signal = "insufficient_data"
)

// Config holds the analyzer parameters.
type Config struct {
	ShortWindow int
	LongWindow  int
	Horizon     int // projected days
	BuyLevel    float64
	SellLevel   float64
}

// DefaultConfig returns the 20/50 day setup with a five day projection.
func DefaultConfig() Config {
	return Config{
		ShortWindow: 20,
		LongWindow:  50,
		Horizon:     5,
		BuyLevel:    BuyLevel,
		SellLevel:   SellLevel,
	}
}

// ProjectedPoint is one step of the forward extrapolation.
type ProjectedPoint struct {
	Date  core.Date `json:"date"`
	Price float64   `json:"price"`
}

// Result is the full indicator snapshot for a series.
type Result struct {
	Dates        []core.Date      `json:"dates"`
	Close        []float64        `json:"close"`
	Short        Series           `json:"sma_short"`
	Long         Series           `json:"sma_long"`
	Ratio        Series           `json:"ratio"`
	CurrentRatio Value            `json:"current_ratio"`
	BuyLevel     float64          `json:"buy_level"`
	SellLevel    float64          `json:"sell_level"`
	Projection   []ProjectedPoint `json:"projection"`
	Signal       Signal           `json:"signal"`
}

// Analyze runs AnalyzeWith using DefaultConfig.
func Analyze(points []core.PricePoint) (Result, error) {
	return AnalyzeWith(DefaultConfig(), points)
}

// AnalyzeWith computes both moving averages, their ratio, the signal and a
// naive linear projection. Points must already be sorted by date.
//
// Too few points for the long window is not an error: the long average,
// ratio and projection stay undefined and Signal reports insufficient data.
func AnalyzeWith(cfg Config, points []core.PricePoint) (Result, error) {
	if len(points) == 0 {
		return Result{}, ErrEmptySeries
	}
	for i := 1; i < len(points); i++ {
		if points[i].Date.Before(points[i-1].Date.Time) {
			return Result{}, ErrUnsorted
		}
	}

	dates := make([]core.Date, len(points))
	closes := make([]float64, len(points))
	for i, p := range points {
		dates[i] = p.Date
		closes[i] = p.Close
	}

	short := WMA(closes, cfg.ShortWindow)
	long := WMA(closes, cfg.LongWindow)
	ratio := make(Series, len(points))
	for i := range ratio {
		if short[i].OK && long[i].OK {
			ratio[i] = Some(short[i].V / long[i].V)
		}
	}

	res := Result{
		Dates:        dates,
		Close:        closes,
		Short:        short,
		Long:         long,
		Ratio:        ratio,
		CurrentRatio: ratio.Last(),
		BuyLevel:     cfg.BuyLevel,
		SellLevel:    cfg.SellLevel,
	}
	res.Signal = Classify(res.CurrentRatio, cfg.BuyLevel, cfg.SellLevel)
	res.Projection = project(dates[len(dates)-1], closes[len(closes)-1], res.CurrentRatio, cfg.Horizon)
	return res, nil
}

// project extrapolates lastClose linearly using ratio-1 as the slope:
// p[k] = lastClose * (1 + (ratio-1)*k/h) for k = 1..h.
func project(last core.Date, lastClose float64, ratio Value, h int) []ProjectedPoint {
	if !ratio.OK || h <= 0 {
		return nil
	}
	out := make([]ProjectedPoint, h)
	for k := 1; k <= h; k++ {
		out[k-1] = ProjectedPoint{
			Date:  last.AddDays(k),
			Price: lastClose * (1 + (ratio.V-1)*float64(k)/float64(h)),
		}
	}
	return out
}

// Classify compares a ratio with the buy and sell levels.
func Classify(ratio Value, buy, sell float64) Signal {
	switch {
	case !ratio.OK:
		return SignalInsufficientData
	case ratio.V > sell:
		return SignalOverbought
	case ratio.V < buy:
		return SignalOversold
	default:
		return SignalNeutral
	}
}

// SortAscending orders points by date in place, keeping the input order of
// same-day points.
func SortAscending(points []core.PricePoint) {
	slices.SortStableFunc(points, func(a, b core.PricePoint) int {
		return a.Date.Compare(b.Date.Time)
	})
}
