package domain

import "time"

// Sample is one timestamped set of soil readings. Readings the source could
// not produce are nil. A Sample is never mutated after the Poller hands it to
// the history and the hub, so it is shared by pointer.
type Sample struct {
	Seq          uint64    `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	SensorID     *int      `json:"sensor_id,omitempty"`
	Humidity     *float64  `json:"humidity,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	PH           *float64  `json:"ph,omitempty"`
	Conductivity *float64  `json:"conductivity,omitempty"`
	Nitrogen     *float64  `json:"nitrogen,omitempty"`
	Phosphorus   *float64  `json:"phosphorus,omitempty"`
	Potassium    *float64  `json:"potassium,omitempty"`
}

// Float returns a pointer to v. Sources use it to fill optional readings.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
