package commands

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"stock-target-bot/internal/levels"
	"stock-target-bot/internal/marketdata"
	"stock-target-bot/internal/types"
	"stock-target-bot/lib/helpers"
)

const chartCacheTTL = 5 * time.Minute

// CommandChart renders a PNG of the symbol's recent closes with the
// user's target and the computed support/resistance drawn as dashed
// lines. Results are cached briefly since history only moves daily.
func CommandChart(ctx context.Context, provider marketdata.Provider,
	symbol string, targetPrice float64, historyDays, fibLookback int) ([]byte, string, error) {

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, "", errors.New("no symbol given")
	}

	cacheKey := fmt.Sprintf("%s|%.2f", symbol, targetPrice)
	if cached, found := cacheGet(cacheKey); found {
		log.Debugf("returning cached chart for %s", symbol)
		return cached.ChartData, cached.Caption, nil
	}

	bars, err := provider.HistoricalBars(ctx, symbol, historyDays)
	if err != nil {
		return nil, "", errors.Wrapf(err, "command /chart for %s", symbol)
	}

	lv, err := levels.Calculate(bars, fibLookback)
	if err != nil {
		// Not enough history for levels; chart the closes alone.
		log.Debugf("chart for %s without levels: %v", symbol, err)
		lv = nil
	}

	chartData, err := renderChart(symbol, bars, targetPrice, lv)
	if err != nil {
		return nil, "", errors.Wrapf(err, "could not render chart for %s", symbol)
	}

	caption := buildCaption(symbol, bars, targetPrice, lv)
	cacheSet(cacheKey, chartData, caption, chartCacheTTL)

	return chartData, caption, nil
}

func renderChart(symbol string, bars []types.Bar, targetPrice float64, lv *levels.Levels) ([]byte, error) {
	times := make([]time.Time, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		times[i] = b.Time
		closes[i] = b.Close
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    symbol,
			XValues: times,
			YValues: closes,
			Style: chart.Style{
				StrokeColor: drawing.Color{R: 0, G: 122, B: 255, A: 255},
				FillColor:   drawing.Color{R: 0, G: 122, B: 255, A: 25},
				StrokeWidth: 2,
			},
		},
	}

	if targetPrice > 0 {
		series = append(series, horizontalLine("target", times, targetPrice, chart.ColorRed))
	}
	if lv != nil {
		series = append(series, horizontalLine("support", times, lv.Support, chart.ColorGreen))
		series = append(series, horizontalLine("resistance", times, lv.Resistance, chart.ColorOrange))
	}

	graph := chart.Chart{
		Title:  symbol,
		Width:  1000,
		Height: 600,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func horizontalLine(name string, times []time.Time, value float64, color drawing.Color) chart.Series {
	return chart.TimeSeries{
		Name:    name,
		XValues: []time.Time{times[0], times[len(times)-1]},
		YValues: []float64{value, value},
		Style: chart.Style{
			StrokeColor:     color,
			StrokeWidth:     1,
			StrokeDashArray: []float64{5.0, 5.0},
		},
	}
}

func buildCaption(symbol string, bars []types.Bar, targetPrice float64, lv *levels.Levels) string {
	lastClose := bars[len(bars)-1].Close

	caption := fmt.Sprintf("*%s* close $%s",
		helpers.EscapeMarkdownV2(symbol), helpers.FormatPriceUS(lastClose, true))
	if targetPrice > 0 {
		caption += fmt.Sprintf(" 🎯 $%s", helpers.FormatPriceUS(targetPrice, true))
	}
	if lv != nil {
		caption += fmt.Sprintf("\n📉 $%s  📈 $%s",
			helpers.FormatPriceUS(lv.Support, true),
			helpers.FormatPriceUS(lv.Resistance, true))
	}
	return caption
}
