package formatter

import (
	"strconv"
	"strings"

	"github.com/theoremus-urban-solutions/fleetview/siri"
)

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// BuildXML serializes a SIRI response to XML
func (rb *responseBuilder) BuildXML(res *siri.SiriResponse) []byte {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>")
	b.WriteString("<Siri xmlns=\"http://www.siri.org.uk/siri\" version=\"2.0\">")
	sd := res.Siri.ServiceDelivery
	b.WriteString("<ServiceDelivery>")
	writeElement(&b, "ResponseTimestamp", sd.ResponseTimestamp)
	writeElement(&b, "ProducerRef", sd.ProducerRef)
	for _, vm := range sd.VehicleMonitoringDelivery {
		writeVehicleMonitoringXML(&b, vm)
	}
	b.WriteString("</ServiceDelivery>")
	b.WriteString("</Siri>")
	return []byte(b.String())
}

func writeVehicleMonitoringXML(b *strings.Builder, vm siri.VehicleMonitoring) {
	b.WriteString("<VehicleMonitoringDelivery version=\"2.0\">")
	writeElement(b, "ResponseTimestamp", vm.ResponseTimestamp)
	writeElement(b, "ValidUntil", vm.ValidUntil)
	for _, va := range vm.VehicleActivity {
		b.WriteString("<VehicleActivity>")
		writeElement(b, "RecordedAtTime", va.RecordedAtTime)
		writeElement(b, "ValidUntilTime", va.ValidUntilTime)
		writeMVJXML(b, va.MonitoredVehicleJourney)
		b.WriteString("</VehicleActivity>")
	}
	b.WriteString("</VehicleMonitoringDelivery>")
}

func writeMVJXML(b *strings.Builder, mvj siri.MonitoredVehicleJourney) {
	b.WriteString("<MonitoredVehicleJourney>")
	writeElement(b, "LineRef", mvj.LineRef)
	writeElement(b, "PublishedLineName", mvj.PublishedLineName)
	writeElement(b, "OperatorRef", mvj.OperatorRef)
	b.WriteString("<Monitored>")
	b.WriteString(strconv.FormatBool(mvj.Monitored))
	b.WriteString("</Monitored>")
	writeElement(b, "DataSource", mvj.DataSource)
	if loc := mvj.VehicleLocation; loc != nil && (loc.Latitude != nil || loc.Longitude != nil) {
		b.WriteString("<VehicleLocation>")
		// SIRI orders Longitude before Latitude
		if loc.Longitude != nil {
			writeRaw(b, "Longitude", strconv.FormatFloat(*loc.Longitude, 'f', 6, 64))
		}
		if loc.Latitude != nil {
			writeRaw(b, "Latitude", strconv.FormatFloat(*loc.Latitude, 'f', 6, 64))
		}
		b.WriteString("</VehicleLocation>")
	}
	if mvj.Bearing != nil {
		writeRaw(b, "Bearing", strconv.FormatFloat(*mvj.Bearing, 'f', 2, 64))
	}
	if mvj.Velocity != nil {
		writeRaw(b, "Velocity", strconv.Itoa(*mvj.Velocity))
	}
	writeElement(b, "VehicleStatus", mvj.VehicleStatus)
	writeElement(b, "VehicleRef", mvj.VehicleRef)
	if ext := mvj.Extensions; ext != nil {
		b.WriteString("<Extensions>")
		writeRaw(b, "ObjectId", strconv.FormatInt(ext.ObjectID, 10))
		if ext.FuelLevel != nil {
			writeRaw(b, "FuelLevel", strconv.FormatFloat(*ext.FuelLevel, 'f', -1, 64))
		}
		if ext.SpeedMph != nil {
			writeRaw(b, "SpeedMph", strconv.FormatFloat(*ext.SpeedMph, 'f', -1, 64))
		}
		b.WriteString("</Extensions>")
	}
	b.WriteString("</MonitoredVehicleJourney>")
}

// writeElement writes an escaped text element, skipping empty values.
func writeElement(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	writeRaw(b, name, EscapeXML(value))
}

func writeRaw(b *strings.Builder, name, value string) {
	b.WriteString("<")
	b.WriteString(name)
	b.WriteString(">")
	b.WriteString(value)
	b.WriteString("</")
	b.WriteString(name)
	b.WriteString(">")
}

// EscapeXML escapes the five XML special characters.
func EscapeXML(s string) string {
	return xmlReplacer.Replace(s)
}
