package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/pipeline"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
)

// TileCounts splits one tile's points by role.
type TileCounts struct {
	Seq        int
	IX, IY     int
	Ground     int
	Vegetation int
	Trees      int
}

// CountTiles classifies every tile's points under policy and counts the
// distinct tree instances in each tile.
func CountTiles(t l1records.Table, res *pipeline.Result, policy semantics.Policy) []TileCounts {
	out := make([]TileCounts, len(res.Tiles))
	for i, tile := range res.Tiles {
		c := TileCounts{Seq: tile.Seq, IX: tile.IX, IY: tile.IY}
		trees := make(map[int64]struct{})
		for _, idx := range tile.Points {
			rec := t.Records[idx]
			if policy.IsGround(rec.ClassID) {
				c.Ground++
				continue
			}
			c.Vegetation++
			trees[rec.InstanceID] = struct{}{}
		}
		c.Trees = len(trees)
		out[i] = c
	}
	return out
}

// TileChart renders a stacked bar chart of points per tile.
type TileChart struct {
	// AssetsHost overrides where the page loads echarts from. Empty uses
	// the go-echarts default.
	AssetsHost string
}

// WriteHTML renders the chart page for counts to w.
func (tc *TileChart) WriteHTML(w io.Writer, unit string, counts []TileCounts) error {
	x := make([]string, len(counts))
	ground := make([]opts.BarData, len(counts))
	veg := make([]opts.BarData, len(counts))
	totalTrees := 0
	for i, c := range counts {
		x[i] = fmt.Sprintf("%d (%d,%d)", c.Seq, c.IX, c.IY)
		ground[i] = opts.BarData{Value: c.Ground}
		veg[i] = opts.BarData{Value: c.Vegetation}
		totalTrees += c.Trees
	}

	initOpts := opts.Initialization{PageTitle: unit + " tiles", Width: "100%", Height: "640px"}
	if tc.AssetsHost != "" {
		initOpts.AssetsHost = tc.AssetsHost
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: unit, Subtitle: fmt.Sprintf("tiles=%d trees=%d", len(counts), totalTrees)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tile", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "points"}),
	)
	bar.SetXAxis(x).
		AddSeries("ground", ground, charts.WithBarChartOpts(opts.BarChart{Stack: "points"})).
		AddSeries("vegetation", veg, charts.WithBarChartOpts(opts.BarChart{Stack: "points"}))

	page := components.NewPage()
	if tc.AssetsHost != "" {
		page.SetAssetsHost(tc.AssetsHost)
	}
	page.AddCharts(bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render tile chart: %w", err)
	}
	return nil
}
