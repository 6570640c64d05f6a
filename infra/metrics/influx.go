package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/flexcompute/flexd/core/metrics"
	"github.com/flexcompute/flexd/infra/logger"
)

// InfluxSink writes planning and protocol events to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlanning writes the planning cycle summary as line protocol.
func (s *InfluxSink) RecordPlanning(rec coremetrics.PlanningRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("planning_cycle").
		AddTag("region", rec.Region).
		AddField("scheduled", rec.Scheduled).
		AddField("rejected", rec.Rejected).
		AddField("offers", rec.Offers).
		AddField("total_cost", round3(rec.TotalCost)).
		AddField("total_carbon_kg", round3(rec.TotalCarbonKg)).
		AddField("synthetic_slots", rec.SyntheticSlots).
		AddField("elapsed_ms", rec.Elapsed.Milliseconds()).
		AddField("window_start", rec.WindowStart.UnixNano()).
		AddField("window_end", rec.WindowEnd.UnixNano()).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordProtocol writes the request outcome as line protocol.
func (s *InfluxSink) RecordProtocol(rec coremetrics.ProtocolRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("protocol_request").
		AddTag("action", rec.Action).
		AddTag("accepted", strconv.FormatBool(rec.Accepted)).
		AddField("error_kind", rec.ErrorKind).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCallback writes the delivery outcome as line protocol.
func (s *InfluxSink) RecordCallback(rec coremetrics.CallbackRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("callback_delivery").
		AddTag("action", rec.Action).
		AddTag("delivered", strconv.FormatBool(rec.Delivered)).
		AddField("attempts", rec.Attempts).
		AddField("elapsed_ms", rec.Elapsed.Milliseconds()).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
