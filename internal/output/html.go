package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt string
	Report      Report
	SamplesJSON string
}

type htmlSamples struct {
	Interval   float64   `json:"interval"`
	Latency    []float64 `json:"latency"`
	Throughput []float64 `json:"throughput"`
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, rep Report) error {
	samplesJSON, err := json.Marshal(htmlSamples{
		Interval:   float64(rep.Run.IntervalSeconds),
		Latency:    nonNil(rep.Summary.LatencySamples),
		Throughput: nonNil(rep.Summary.ThroughputSamples),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal samples: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Report:      rep,
		SamplesJSON: string(samplesJSON),
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatMillis": func(f float64) string {
			return fmt.Sprintf("%.3f", f)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Queue Benchmark Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>Queue Benchmark Report</h1>
            <div class="meta">Run: {{.Report.Run.RunID}}</div>
            <div class="meta">Generated: {{.GeneratedAt}} | Elapsed: {{formatFloat .Report.Run.ElapsedMs}} ms</div>
            <div class="meta">{{.Report.Run.Producers}} producers | {{.Report.Run.MessageSize}} B messages | capacity {{.Report.Run.QueueCapacity}} | mode {{.Report.Run.Mode}}</div>
        </header>
        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Messages</h3>
                    <div class="value">{{.Report.Overall.Total}}</div>
                    <div class="subvalue">{{.Report.Run.Accepted}} accepted</div>
                </div>
                <div class="card success">
                    <h3>Throughput</h3>
                    <div class="value">{{formatFloat .Report.Overall.ThroughputPerSec}}</div>
                    <div class="subvalue">msg/s over the whole run</div>
                </div>
                <div class="card">
                    <h3>Mean Latency</h3>
                    <div class="value">{{formatMillis .Report.Overall.MeanLatencyMs}}</div>
                    <div class="subvalue">ms</div>
                </div>
                <div class="card {{if .Report.Overall.Anomalies}}error{{else}}success{{end}}">
                    <h3>Anomalies</h3>
                    <div class="value">{{.Report.Overall.Anomalies}}</div>
                    <div class="subvalue">negative latencies</div>
                </div>
                {{if .Report.Run.FullStops}}
                <div class="card warning">
                    <h3>Full-Queue Stops</h3>
                    <div class="value">{{.Report.Run.FullStops}}</div>
                    <div class="subvalue">of {{.Report.Run.Producers}} producers</div>
                </div>
                {{end}}
                {{if .Report.Run.Hung}}
                <div class="card error">
                    <h3>Hung Workers</h3>
                    <div class="value">{{len .Report.Run.Hung}}</div>
                    <div class="subvalue">{{range $i, $w := .Report.Run.Hung}}{{if $i}}, {{end}}{{$w}}{{end}}</div>
                </div>
                {{end}}
            </div>

            <div class="section">
                <h2>Samples</h2>
                {{if or .Report.Summary.LatencySamples .Report.Summary.ThroughputSamples}}
                <div class="chart-container">
                    <h3>Average Latency per Interval</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>
                <div class="chart-container">
                    <h3>Throughput per Interval</h3>
                    <div id="throughput-chart" class="chart"></div>
                </div>
                {{else}}
                <div class="no-data">no samples</div>
                {{end}}
                <table>
                    <thead>
                        <tr><th>Series</th><th>Samples</th><th>Min</th><th>Max</th><th>Avg</th></tr>
                    </thead>
                    <tbody>
                        {{with .Report.Summary.Latency}}
                        <tr>
                            <td><strong>Latency (ms)</strong></td>
                            {{if .Empty}}<td colspan="4"><em>no samples</em></td>{{else}}
                            <td>{{.Samples}}</td><td>{{formatMillis .Min}}</td><td>{{formatMillis .Max}}</td><td>{{formatMillis .Mean}}</td>{{end}}
                        </tr>
                        {{end}}
                        {{with .Report.Summary.Throughput}}
                        <tr>
                            <td><strong>Throughput (msg/s)</strong></td>
                            {{if .Empty}}<td colspan="4"><em>no samples</em></td>{{else}}
                            <td>{{.Samples}}</td><td>{{formatFloat .Min}}</td><td>{{formatFloat .Max}}</td><td>{{formatFloat .Mean}}</td>{{end}}
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>

            <div class="section">
                <h2>Per-Message Latency</h2>
                {{if .Report.Overall.Total}}
                <div class="latency-grid">
                    <div class="latency-item"><div class="label">Min</div><div class="value">{{formatDuration .Report.Overall.MinLatency}}</div></div>
                    <div class="latency-item"><div class="label">Max</div><div class="value">{{formatDuration .Report.Overall.MaxLatency}}</div></div>
                    <div class="latency-item"><div class="label">Mean</div><div class="value">{{formatDuration .Report.Overall.MeanLatency}}</div></div>
                    <div class="latency-item"><div class="label">P50</div><div class="value">{{formatDuration .Report.Overall.P50Latency}}</div></div>
                    <div class="latency-item"><div class="label">P90</div><div class="value">{{formatDuration .Report.Overall.P90Latency}}</div></div>
                    <div class="latency-item"><div class="label">P99</div><div class="value">{{formatDuration .Report.Overall.P99Latency}}</div></div>
                </div>
                {{else}}
                <div class="no-data">undefined: no messages recorded</div>
                {{end}}
            </div>

            {{if .Report.Thresholds}}
            <div class="section">
                <h2>Thresholds ({{.Report.Thresholds.Passed}}/{{.Report.Thresholds.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr><th>Threshold</th><th>Metric</th><th>Expected</th><th>Actual</th><th>Status</th></tr>
                    </thead>
                    <tbody>
                        {{range .Report.Thresholds.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">PASS</span>
                                {{else}}
                                <span class="badge badge-error">FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    <script>
        const samples = JSON.parse({{.SamplesJSON}});
        const axis = (n) => Array.from({length: n}, (_, i) => (i + 1) * samples.interval);

        if (samples.latency.length > 0) {
            new uPlot({
                title: "Average Latency",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    { label: "Latency (ms)", stroke: "#10b981", width: 2 }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Latency (ms)" }
                ]
            }, [axis(samples.latency.length), samples.latency], document.getElementById('latency-chart'));
        }

        if (samples.throughput.length > 0) {
            new uPlot({
                title: "Throughput",
                width: document.getElementById('throughput-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    { label: "msg/s", stroke: "#667eea", fill: "rgba(102, 126, 234, 0.1)", width: 2 }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Messages/sec" }
                ]
            }, [axis(samples.throughput.length), samples.throughput], document.getElementById('throughput-chart'));
        }
    </script>
</body>
</html>
`
