// Package dashboard renders a Grafana dashboard for the GreptimeDB telemetry
// tables: one time-series panel per model sensor plus a command table.
package dashboard

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

// DatasourceEnv names the variable holding the Grafana datasource UID when
// Params.DatasourceUID is empty.
const DatasourceEnv = "GREPTIMEDB_DATASOURCE_UID"

//go:embed grafana-dashboard.json.tmpl
var dashboardTemplate string

// Sensor is one panel source.
type Sensor struct {
	Name string
	Dim  int
}

// Params fills the dashboard template.
type Params struct {
	Title         string
	DatasourceUID string
	SensorTable   string
	CommandTable  string
	Sensors       []Sensor
}

var funcMap = template.FuncMap{
	// quote renders s as a JSON string literal.
	"quote": func(s string) (string, error) {
		b, err := json.Marshal(s)
		return string(b), err
	},
	"seq": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	},
	"add": func(a, b int) int { return a + b },
	"mul": func(a, b int) int { return a * b },
}

var tmpl = template.Must(template.New("dashboard").Funcs(funcMap).Parse(dashboardTemplate))

// Render writes the dashboard JSON to w. The output is checked to be valid JSON.
func Render(w io.Writer, p Params) error {
	if p.DatasourceUID == "" {
		uid := os.Getenv(DatasourceEnv)
		if uid == "" {
			return fmt.Errorf("no datasource uid: set %s", DatasourceEnv)
		}
		p.DatasourceUID = uid
	}
	if p.Title == "" {
		p.Title = "aisim"
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return err
	}
	if !json.Valid(buf.Bytes()) {
		return fmt.Errorf("rendered dashboard is not valid JSON")
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderFile renders the dashboard into path, creating parent directories.
func RenderFile(path string, p Params) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
