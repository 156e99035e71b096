package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/formatter"
	"github.com/theoremus-urban-solutions/fleetview/mapview"
	"github.com/theoremus-urban-solutions/fleetview/siri"
)

type healthResponse struct {
	Status            string `json:"status"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	Groups            int    `json:"groups"`
	Viewers           int    `json:"viewers"`
	LatestIngestEpoch int64  `json:"latest_ingest_epoch_ms"`
}

type viewerResponse struct {
	ID       string `json:"id"`
	Group    string `json:"group"`
	ViewType string `json:"view_type"`
	Sync     bool   `json:"sync"`
	Focused  bool   `json:"focused"`
	Features int    `json:"features"`
}

type ingestResponse struct {
	Accepted int `json:"accepted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(s.now().Sub(s.started).Seconds()),
		Groups:        len(s.groups),
	}
	for _, g := range s.groups {
		resp.Viewers += len(g.Views())
	}
	resp.LatestIngestEpoch, _ = s.dist.LastPublished(IngestPublisherID, s.channel)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var batch []fleet.Vehicle
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode telemetry: %v", err)})
		return
	}
	if len(batch) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty telemetry batch"})
		return
	}
	for i, v := range batch {
		if err := v.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("record %d: %v", i, err)})
			return
		}
	}
	if err := s.ingest.PublishMany(batch); err != nil {
		s.log.Error("publish telemetry", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	s.log.Debug("telemetry ingested", "vehicles", len(batch))
	writeJSON(w, http.StatusAccepted, ingestResponse{Accepted: len(batch)})
}

func (s *Server) handleViewers(w http.ResponseWriter, r *http.Request) {
	out := []viewerResponse{}
	for _, g := range s.groups {
		focused := g.Focused()
		for _, v := range g.Views() {
			t := v.ViewType()
			out = append(out, viewerResponse{
				ID:       v.ID(),
				Group:    g.ID(),
				ViewType: string(t),
				Sync:     v.Sync(),
				Focused:  focused != nil && focused.ID() == v.ID(),
				Features: v.Layer(t).Len(),
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewer(r)
	if err != nil {
		writeViewerError(w, err)
		return
	}
	body, err := v.Layer(v.ViewType()).GeoJSON()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(body)
}

func (s *Server) handleVehicleMonitoringJSON(w http.ResponseWriter, r *http.Request) {
	res, err := s.vehicleMonitoring(r)
	if err != nil {
		writeViewerError(w, err)
		return
	}
	body, err := formatter.NewResponseBuilder().BuildJSON(res)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleVehicleMonitoringXML(w http.ResponseWriter, r *http.Request) {
	res, err := s.vehicleMonitoring(r)
	if err != nil {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(viewerErrorStatus(err))
		_, _ = w.Write(buildXMLErrorPayload(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(formatter.NewResponseBuilder().BuildXML(res))
}

// vehicleMonitoring builds a VM response from the features of the resolved
// viewer's active layer.
func (s *Server) vehicleMonitoring(r *http.Request) (*siri.SiriResponse, error) {
	v, err := s.viewer(r)
	if err != nil {
		return nil, err
	}
	features := v.Layer(v.ViewType()).Features()
	vehicles := make([]fleet.Vehicle, 0, len(features))
	for _, f := range features {
		vehicles = append(vehicles, fleet.FromFeature(f))
	}
	res := siri.BuildVehicleMonitoring(vehicles, siri.Options{
		ProducerRef: s.producerRef,
		ValidFor:    s.validFor,
		Now:         s.now(),
	})
	q := r.URL.Query()
	return formatter.FilterVehicleMonitoring(res, q.Get("lineref"), q.Get("vehicleref")), nil
}

func viewerErrorStatus(err error) int {
	if errors.Is(err, mapview.ErrViewerNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeViewerError(w http.ResponseWriter, err error) {
	writeJSON(w, viewerErrorStatus(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func buildXMLErrorPayload(msg string) []byte {
	var b []byte
	b = append(b, `<?xml version="1.0" encoding="UTF-8"?><Siri xmlns="http://www.siri.org.uk/siri" version="2.0"><ServiceDelivery><ErrorCondition><Description>`...)
	b = append(b, formatter.EscapeXML(msg)...)
	b = append(b, `</Description></ErrorCondition></ServiceDelivery></Siri>`...)
	return b
}
