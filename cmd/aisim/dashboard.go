package main

import (
	"github.com/spf13/cobra"

	"aisim/internal/dashboard"
	"aisim/internal/engine"
	"aisim/internal/sim"
	"aisim/internal/telemetry"
)

var (
	dashboardOut        string
	dashboardDatasource string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <model>",
	Short: "Render a Grafana dashboard for the model's GreptimeDB telemetry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m, err := engine.Load(args[0])
		if err != nil {
			return err
		}
		p := dashboard.Params{
			Title:         "aisim " + m.Name(),
			DatasourceUID: dashboardDatasource,
			SensorTable:   cfg.Telemetry.Greptime.Table,
			CommandTable:  sim.DefaultCommandTable,
		}
		if p.SensorTable == "" {
			p.SensorTable = telemetry.SensorTableName
		}
		for _, s := range m.Sensors() {
			p.Sensors = append(p.Sensors, dashboard.Sensor{Name: s.Name, Dim: s.Dim()})
		}
		if dashboardOut == "-" {
			return dashboard.Render(cmd.OutOrStdout(), p)
		}
		return dashboard.RenderFile(dashboardOut, p)
	},
}

func init() {
	dashboardCmd.Flags().StringVarP(&dashboardOut, "out", "o", "build/grafana-dashboard.json", "Output path (- for STDOUT)")
	dashboardCmd.Flags().StringVar(&dashboardDatasource, "datasource", "", "Grafana datasource UID (default $"+dashboard.DatasourceEnv+")")
	rootCmd.AddCommand(dashboardCmd)
}
