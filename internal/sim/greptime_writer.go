package sim

import (
	"context"
	"log/slog"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"

	"aisim/internal/logging"
	"aisim/internal/telemetry"
)

// DefaultCommandTable receives drained command rows.
const DefaultCommandTable = "aisim_commands"

// greptimeClient is the subset of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes sensor rows to GreptimeDB via the ingester client.
// Sensors are stored in long format: one row per sensor component, tagged by
// run, sensor name and component index.
type GreptimeDBWriter struct {
	client       greptimeClient
	table        string
	commandTable string
	log          *slog.Logger
}

// NewGreptimeDBWriter connects to GreptimeDB. Tables are created on first write.
func NewGreptimeDBWriter(host string, port int, database, tableName string) (*GreptimeDBWriter, error) {
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if tableName == "" {
		tableName = telemetry.SensorTableName
	}
	return &GreptimeDBWriter{
		client:       client,
		table:        tableName,
		commandTable: DefaultCommandTable,
		log:          logging.Discard(),
	}, nil
}

// SetLogger replaces the writer logger.
func (w *GreptimeDBWriter) SetLogger(log *slog.Logger) {
	if log != nil {
		w.log = log
	}
}

// Write inserts a single sensor row.
func (w *GreptimeDBWriter) Write(row telemetry.SensorRow) error {
	return w.WriteBatch([]telemetry.SensorRow{row})
}

// WriteBatch inserts multiple sensor rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.SensorRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.table)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("sensor", types.STRING)
	tbl.AddTagColumn("component", types.INT64)
	tbl.AddFieldColumn("step", types.INT64)
	tbl.AddFieldColumn("sim_time", types.FLOAT64)
	tbl.AddFieldColumn("value", types.FLOAT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	n := 0
	for _, r := range rows {
		for i, v := range r.Values {
			if err := tbl.AddRow(r.RunID, r.Sensor, int64(i), int64(r.Step), r.SimTime, v, r.Timestamp); err != nil {
				return err
			}
			n++
		}
	}

	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.log.Error("greptime write failed", "table", w.table, "err", err)
		return err
	}
	w.log.Debug("greptime wrote rows", "table", w.table, "rows", n)
	return nil
}

// WriteCommand inserts a drained command row.
func (w *GreptimeDBWriter) WriteCommand(row telemetry.CommandRow) error {
	tbl, err := table.New(w.commandTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("actuator", types.STRING)
	tbl.AddFieldColumn("seq", types.UINT64)
	tbl.AddFieldColumn("value", types.FLOAT64)
	tbl.AddFieldColumn("applied", types.BOOLEAN)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	if err := tbl.AddRow(row.RunID, row.Actuator, row.Seq, row.Value, row.Applied, row.Timestamp); err != nil {
		return err
	}
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.log.Error("greptime write failed", "table", w.commandTable, "err", err)
		return err
	}
	return nil
}
