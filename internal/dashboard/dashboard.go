package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/qbench/internal/metrics"
	"github.com/torosent/qbench/internal/output"
)

const historySize = 100

// StatsSource provides the whole-run statistics shown next to the samples.
type StatsSource interface {
	Stats() metrics.Stats
}

// RunConfig holds benchmark parameters for display.
type RunConfig struct {
	Producers     int
	MessageSize   int
	QueueCapacity int
	Mode          string
	Rate          int           // per producer, 0 = unlimited
	Runs          int           // number of report intervals
	Interval      time.Duration // report interval
	ConfigFile    string
}

// Dashboard renders a live terminal UI for benchmark samples.
type Dashboard struct {
	source       StatsSource
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid              *ui.Grid
	latencySparkle    *widgets.SparklineGroup
	throughputSparkle *widgets.SparklineGroup
	latencyPara       *widgets.Paragraph
	throughputGauge   *widgets.Gauge
	errorList         *widgets.List
	summaryPara       *widgets.Paragraph
	metricsPara       *widgets.Paragraph

	latencyHistory    []float64
	throughputHistory []float64
	peakThroughput    float64
	samples           int
	undefined         int
	startTime         time.Time
	runConfig         RunConfig
}

// New initializes the terminal and creates a Dashboard. shutdownFunc is
// called when the user presses q or Ctrl-C.
func New(source StatsSource, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(source, cfg, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(source StatsSource, cfg RunConfig, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		source:            source,
		ctx:               ctx,
		cancel:            cancel,
		shutdownFunc:      shutdownFunc,
		latencyHistory:    make([]float64, 0, historySize),
		throughputHistory: make([]float64, 0, historySize),
		startTime:         time.Now(),
		runConfig:         cfg,
	}
	d.initWidgets()
	return d
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	latency := widgets.NewSparkline()
	latency.Title = "Average latency per interval (ms)"
	latency.LineColor = ui.ColorGreen
	latency.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(latency)
	d.latencySparkle.Title = "Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	throughput := widgets.NewSparkline()
	throughput.Title = "Messages per second"
	throughput.LineColor = ui.ColorBlue
	throughput.Data = []float64{0}

	d.throughputSparkle = widgets.NewSparklineGroup(throughput)
	d.throughputSparkle.Title = "Throughput"
	d.throughputSparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Per-message Latency"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.throughputGauge = widgets.NewGauge()
	d.throughputGauge.Title = "Throughput vs Peak"
	d.throughputGauge.Percent = 0
	d.throughputGauge.BarColor = ui.ColorBlue
	d.throughputGauge.BorderStyle.Fg = ui.ColorCyan
	d.throughputGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"No errors"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Benchmark"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Samples"
	d.metricsPara.Text = "Waiting for the first interval..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.throughputGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(1.0, d.throughputSparkle),
		),
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// AddSample feeds one reporter sample into the sparklines. It is safe to
// register as an output.Reporter hook.
func (d *Dashboard) AddSample(s output.Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.samples++
	if s.LatencyDefined {
		d.latencyHistory = appendBounded(d.latencyHistory, s.LatencyMs, historySize)
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
	} else {
		d.undefined++
	}
	d.throughputHistory = appendBounded(d.throughputHistory, s.ThroughputPerSec, historySize)
	d.throughputSparkle.Sparklines[0].Data = d.throughputHistory
	if s.ThroughputPerSec > d.peakThroughput {
		d.peakThroughput = s.ThroughputPerSec
	}

	d.latencySparkle.Title = sampleTitle("Latency", output.FormatLatency(s.LatencyMs, s.LatencyDefined)+"ms", d.latencyHistory)
	d.throughputSparkle.Title = sampleTitle("Throughput", output.FormatThroughput(s.ThroughputPerSec)+"/s", d.throughputHistory)

	d.throughputGauge.Percent = gaugePercent(s.ThroughputPerSec, d.peakThroughput)
	d.throughputGauge.Label = fmt.Sprintf("%s msg/s", output.FormatThroughput(s.ThroughputPerSec))

	d.metricsPara.Text = fmt.Sprintf(
		"Interval:          %d/%d\nUndefined:         %d\nPeak msg/s:        %s",
		d.samples, d.runConfig.Runs,
		d.undefined,
		output.FormatThroughput(d.peakThroughput),
	)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the loop once the run has wound down.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes the statistics widgets from the source.
func (d *Dashboard) update() {
	stats := d.source.Stats()

	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	d.summaryPara.Text = fmt.Sprintf(
		"%s\nElapsed: %s | Messages: %d | Anomalies: %d | Failures: %d",
		d.formatRunParams(),
		elapsed.Round(time.Second),
		stats.Total,
		stats.Anomalies,
		stats.Failures,
	)

	if stats.Total > 0 {
		d.latencyPara.Text = fmt.Sprintf(
			"Min:  %.3fms\nMean: %.3fms\nP50:  %.3fms\nP90:  %.3fms\nP99:  %.3fms\nMax:  %.3fms",
			stats.MinLatencyMs,
			stats.MeanLatencyMs,
			stats.P50LatencyMs,
			stats.P90LatencyMs,
			stats.P99LatencyMs,
			stats.MaxLatencyMs,
		)
	}

	d.errorList.Rows = formatErrorRows(stats.Errors)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func appendBounded(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func gaugePercent(current, peak float64) int {
	if peak <= 0 {
		return 0
	}
	pct := int((current / peak) * 100)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

func sampleTitle(name, current string, history []float64) string {
	if len(history) == 0 {
		return fmt.Sprintf("%s | Current: %s", name, current)
	}
	lo, hi := history[0], history[0]
	for _, v := range history[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return fmt.Sprintf("%s | Current: %s | Min: %.3f | Max: %.3f", name, current, lo, hi)
}

func formatErrorRows(errs map[string]int) []string {
	if len(errs) == 0 {
		return []string{"[No errors](fg:green)"}
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if errs[names[i]] == errs[names[j]] {
			return names[i] < names[j]
		}
		return errs[names[i]] > errs[names[j]]
	})
	if len(names) > 10 {
		names = names[:10]
	}
	rows := make([]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", name, errs[name]))
	}
	return rows
}

// formatRunParams formats the benchmark parameters for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.runConfig.Producers > 0 {
		parts = append(parts, fmt.Sprintf("Producers: %d", d.runConfig.Producers))
	}
	if d.runConfig.MessageSize > 0 {
		parts = append(parts, fmt.Sprintf("Message: %dB", d.runConfig.MessageSize))
	}
	if d.runConfig.QueueCapacity > 0 {
		parts = append(parts, fmt.Sprintf("Queue: %d", d.runConfig.QueueCapacity))
	}
	if d.runConfig.Mode != "" {
		parts = append(parts, fmt.Sprintf("Mode: %s", d.runConfig.Mode))
	}

	if d.runConfig.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", d.runConfig.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if d.runConfig.Runs > 0 && d.runConfig.Interval > 0 {
		parts = append(parts, fmt.Sprintf("Intervals: %d x %s", d.runConfig.Runs, d.runConfig.Interval))
	}

	// Config file (only show if used)
	if d.runConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.runConfig.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
