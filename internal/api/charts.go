package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleTargetPlot renders a quick scatter plot (HTML) of live targets
// using go-echarts. This is a debugging-only endpoint to eyeball target
// positions and fall risk without a frontend.
// Query params:
//   - channel (optional; defaults to all channels)
//   - steps (optional; default 20) trajectory preview length for falling
//     targets
func (s *Server) handleTargetPlot(w http.ResponseWriter, r *http.Request) {
	targets := s.tracker.Targets()
	if ch := r.URL.Query().Get("channel"); ch != "" {
		n, err := strconv.ParseUint(ch, 10, 8)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid 'channel' parameter")
			return
		}
		targets = s.tracker.TargetsByChannel(uint8(n))
	}
	if len(targets) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no live targets")
		return
	}

	steps := defaultTrajectorySteps
	if st := r.URL.Query().Get("steps"); st != "" {
		if v, err := strconv.Atoi(st); err == nil && v > 0 && v <= 200 {
			steps = v
		}
	}

	data := make([]opts.ScatterData, 0, len(targets))
	var preview []opts.ScatterData
	maxAbs := 0.0
	for _, t := range targets {
		if math.Abs(t.Position.X) > maxAbs {
			maxAbs = math.Abs(t.Position.X)
		}
		if math.Abs(t.Position.Y) > maxAbs {
			maxAbs = math.Abs(t.Position.Y)
		}
		data = append(data, opts.ScatterData{
			Value: []interface{}{t.Position.X, t.Position.Y, t.FallRisk},
		})

		if t.IsFalling() {
			points, ok := s.tracker.Trajectory(t.ID, steps)
			if !ok {
				continue
			}
			for _, p := range points {
				preview = append(preview, opts.ScatterData{
					Value: []interface{}{p.X, p.Y, t.FallRisk},
				})
			}
		}
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Radar Targets", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Live Targets", Subtitle: fmt.Sprintf("targets=%d", len(targets))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#26828e", "#35b779", "#b5de2b", "#fde725", "#fc4e2a"}},
		}),
	)

	scatter.AddSeries("targets", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	if len(preview) > 0 {
		scatter.AddSeries("fall preview", preview, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
