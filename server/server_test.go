package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/mapview"
	"github.com/theoremus-urban-solutions/fleetview/metrics"
	"github.com/theoremus-urban-solutions/fleetview/pubsub"
	"github.com/theoremus-urban-solutions/fleetview/siri"
)

type fixture struct {
	dist  *pubsub.Distributor[fleet.Vehicle]
	group *mapview.Group
	srv   *Server
	ts    *httptest.Server
}

func newFixture(t *testing.T, views int) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	dist := pubsub.New[fleet.Vehicle](pubsub.WithObserver(m))
	group := mapview.NewGroup("ops", dist, mapview.WithConsumerOptions(fleet.WithObserver(m)))
	for i := 0; i < views; i++ {
		_, err := group.AddView()
		require.NoError(t, err)
	}
	srv, err := New(dist, []*mapview.Group{group},
		WithGatherer(reg),
		WithProducerRef("DFW"),
		WithValidFor(30*time.Second),
	)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		group.Close()
	})
	return &fixture{dist: dist, group: group, srv: srv, ts: ts}
}

func (f *fixture) post(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.ts.URL+"/api/telemetry", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func telemetry(t *testing.T, vehicles ...fleet.Vehicle) string {
	t.Helper()
	b, err := json.Marshal(vehicles)
	require.NoError(t, err)
	return string(b)
}

var van = fleet.Vehicle{
	ObjectID: 1, VehicleID: "VAN001", VehicleType: fleet.Van,
	Longitude: -97.08, Latitude: 33.04, Heading: 15, Speed: 25, FuelLevel: 0.8,
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 2)
	resp, body := f.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var h healthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.Groups)
	assert.Equal(t, 2, h.Viewers)
}

func TestTelemetryReachesEveryViewer(t *testing.T) {
	f := newFixture(t, 2)

	resp := f.post(t, telemetry(t, van))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	f.group.Wait()

	for _, v := range f.group.Views() {
		assert.Equal(t, 1, v.Layer(v.ViewType()).Len(), v.ID())
	}

	_, body := f.get(t, "/api/viewers")
	var viewers []viewerResponse
	require.NoError(t, json.Unmarshal(body, &viewers))
	require.Len(t, viewers, 2)
	assert.True(t, viewers[0].Focused)
	assert.True(t, viewers[0].Sync)
	assert.Equal(t, 1, viewers[1].Features)
}

func TestTelemetryRejectsBadInput(t *testing.T) {
	f := newFixture(t, 1)
	bad := van
	bad.Latitude = 95

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{"},
		{name: "object instead of array", body: `{"objectId":1}`},
		{name: "empty batch", body: "[]"},
		{name: "unknown field", body: `[{"objectId":1,"colour":"red"}]`},
		{name: "invalid record", body: telemetry(t, van, bad)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.post(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	f.group.Wait()
	assert.Equal(t, 0, f.group.Focused().Layer(mapview.View2D).Len())
}

func TestFleetGeoJSON(t *testing.T) {
	f := newFixture(t, 2)
	f.post(t, telemetry(t, van))
	f.group.Wait()

	resp, body := f.get(t, "/api/fleet.geojson?viewer=ops-view-2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(body, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "VAN001", fc.Features[0].Properties["vehicleId"])

	resp, _ = f.get(t, "/api/fleet.geojson?viewer=nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVehicleMonitoring(t *testing.T) {
	f := newFixture(t, 1)
	truck := van
	truck.ObjectID, truck.VehicleID, truck.VehicleType = 2, "TRUCK001", fleet.Truck
	f.post(t, telemetry(t, van, truck))
	f.group.Wait()

	resp, body := f.get(t, "/api/siri/vehicle-monitoring.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res siri.SiriResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "DFW", res.Siri.ServiceDelivery.ProducerRef)
	vm := res.Siri.ServiceDelivery.VehicleMonitoringDelivery[0]
	assert.Len(t, vm.VehicleActivity, 2)
	assert.NotEmpty(t, vm.ValidUntil)

	_, body = f.get(t, "/api/siri/vehicle-monitoring.json?lineref=truck")
	res = siri.SiriResponse{}
	require.NoError(t, json.Unmarshal(body, &res))
	acts := res.Siri.ServiceDelivery.VehicleMonitoringDelivery[0].VehicleActivity
	require.Len(t, acts, 1)
	assert.Equal(t, "TRUCK001", acts[0].MonitoredVehicleJourney.VehicleRef)

	resp, body = f.get(t, "/api/siri/vehicle-monitoring.xml?vehicleref=van001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "<VehicleRef>VAN001</VehicleRef>")
	assert.NotContains(t, string(body), "TRUCK001")

	resp, body = f.get(t, "/api/siri/vehicle-monitoring.xml?viewer=nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "<ErrorCondition>")
}

func TestNoViewers(t *testing.T) {
	f := newFixture(t, 0)
	resp, _ := f.get(t, "/api/siri/vehicle-monitoring.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, 1)
	f.post(t, telemetry(t, van))
	f.group.Wait()

	resp, body := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `fleetview_telemetry_items_published_total{channel="vehicle-telemetry"} 1`)
	assert.Contains(t, string(body), `fleetview_consumer_batches_total{consumer="ops-view-1",outcome="applied"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, 1)
	resp, _ := f.get(t, "/api/telemetry")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDuplicateIngestPublisher(t *testing.T) {
	f := newFixture(t, 0)
	_, err := New(f.dist, nil)
	assert.ErrorIs(t, err, pubsub.ErrDuplicatePublisher)
}

func TestServe_GracefulShutdown(t *testing.T) {
	dist := pubsub.New[fleet.Vehicle]()
	srv, err := New(dist, nil, WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	// the ingest publisher is released on shutdown
	_, ok := dist.LastPublished(IngestPublisherID, fleet.TelemetryChannel)
	assert.False(t, ok)
	_, err = http.Post(url, "application/json", bytes.NewReader(nil))
	assert.Error(t, err)
}
