package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Point is one time-series sample. Tags should be low cardinality.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// Validate rejects points the line protocol cannot encode.
func (p Point) Validate() error {
	if p.Measurement == "" {
		return fmt.Errorf("%w: measurement is required", ErrInvalidPoint)
	}
	if len(p.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidPoint, p.Measurement)
	}
	if p.Time.IsZero() {
		return fmt.Errorf("%w: %s has no timestamp", ErrInvalidPoint, p.Measurement)
	}
	return nil
}

// WritePoints queues points for the next batch. The write itself is
// asynchronous; transport failures arrive through SetOnError.
//
// Example:
//
//	client.WritePoints(influxdb.Point{
//	    Measurement: "gas_reading",
//	    Tags:        map[string]string{"gateway_id": "gw-1"},
//	    Fields:      map[string]any{"ppm": 412.5},
//	    Time:        ts,
//	})
func (c *Client) WritePoints(points ...Point) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, p := range points {
		c.writeAPI.WritePoint(write.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time))
	}
	return nil
}
