package telemetry

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// jsonFloat encodes NaN and ±Inf as the strings "NaN", "+Inf" and "-Inf",
// which encoding/json refuses as numbers. Both forms decode.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte(strconv.Quote(strconv.FormatFloat(v, 'g', -1, 64))), nil
	}
	return json.Marshal(v)
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = jsonFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type sensorRowJSON struct {
	RunID     string      `json:"run_id"`
	Sensor    string      `json:"sensor"`
	Step      int         `json:"step"`
	SimTime   jsonFloat   `json:"sim_time"`
	Values    []jsonFloat `json:"values"`
	Timestamp time.Time   `json:"ts"`
}

// MarshalJSON writes non-finite values as strings so a diverged sensor does
// not fail the whole row.
func (r SensorRow) MarshalJSON() ([]byte, error) {
	out := sensorRowJSON{
		RunID:     r.RunID,
		Sensor:    r.Sensor,
		Step:      r.Step,
		SimTime:   jsonFloat(r.SimTime),
		Timestamp: r.Timestamp,
	}
	if r.Values != nil {
		out.Values = make([]jsonFloat, len(r.Values))
		for i, v := range r.Values {
			out.Values[i] = jsonFloat(v)
		}
	}
	return json.Marshal(out)
}

func (r *SensorRow) UnmarshalJSON(b []byte) error {
	var in sensorRowJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = SensorRow{
		RunID:     in.RunID,
		Sensor:    in.Sensor,
		Step:      in.Step,
		SimTime:   float64(in.SimTime),
		Timestamp: in.Timestamp,
	}
	if in.Values != nil {
		r.Values = make([]float64, len(in.Values))
		for i, v := range in.Values {
			r.Values[i] = float64(v)
		}
	}
	return nil
}

type commandRowJSON struct {
	RunID     string    `json:"run_id"`
	Seq       uint64    `json:"seq"`
	Actuator  string    `json:"actuator"`
	Value     jsonFloat `json:"value"`
	Applied   bool      `json:"applied"`
	Timestamp time.Time `json:"ts"`
}

// MarshalJSON keeps non-finite command values so the log can be replayed.
func (r CommandRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(commandRowJSON{
		RunID:     r.RunID,
		Seq:       r.Seq,
		Actuator:  r.Actuator,
		Value:     jsonFloat(r.Value),
		Applied:   r.Applied,
		Timestamp: r.Timestamp,
	})
}

func (r *CommandRow) UnmarshalJSON(b []byte) error {
	var in commandRowJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = CommandRow{
		RunID:     in.RunID,
		Seq:       in.Seq,
		Actuator:  in.Actuator,
		Value:     float64(in.Value),
		Applied:   in.Applied,
		Timestamp: in.Timestamp,
	}
	return nil
}
