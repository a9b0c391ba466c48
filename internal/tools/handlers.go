package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/flightassist/skyguard/internal/ai"
	"github.com/flightassist/skyguard/internal/runway"
	"github.com/flightassist/skyguard/internal/station"
	"github.com/flightassist/skyguard/internal/weather"
)

// aircraftSpec is a static catalog entry for fetch_aircraft_specs.
type aircraftSpec struct {
	Type        string  `json:"type"`
	MaxFuel     float64 `json:"max_fuel"`
	UsefulLoad  float64 `json:"useful_load"`
	CruiseSpeed float64 `json:"cruise_speed"`
	MaxRange    float64 `json:"max_range"`
}

var aircraftCatalog = map[string]aircraftSpec{
	"N12345": {Type: "Cessna 172", MaxFuel: 53, UsefulLoad: 1100, CruiseSpeed: 120, MaxRange: 450},
	"N67890": {Type: "Piper Cherokee", MaxFuel: 48, UsefulLoad: 1050, CruiseSpeed: 110, MaxRange: 400},
}

var fuelBurnRates = map[string]float64{
	"Cessna 172":     5.0,
	"Piper Cherokee": 5.5,
}

var manualTopics = map[string]string{
	"crosswind_limits":    "Maximum crosswind: 12 knots for Cessna 172. Demonstrated crosswind: 15 knots.",
	"runway_requirements": "Minimum runway: 1500ft. Recommended: 2000ft for soft field operations.",
	"weight_balance":      "Check weight and balance before every flight. Max GW: 2450 lbs.",
}

func metarToMap(rec weather.Record) map[string]interface{} {
	m := map[string]interface{}{
		"station":         rec.Station,
		"time":            rec.Time,
		"raw":             rec.Raw,
		"wind":            rec.WindString(),
		"flight_category": string(rec.FlightCategory),
		"source":          string(rec.Source),
	}
	if rec.WindDirection != nil {
		m["wind_direction"] = *rec.WindDirection
	}
	if rec.WindSpeed != nil {
		m["wind_speed"] = *rec.WindSpeed
	}
	if rec.WindGust != nil {
		m["wind_gust"] = *rec.WindGust
	}
	if rec.TemperatureC != nil {
		m["temp_c"] = *rec.TemperatureC
	}
	if rec.DewpointC != nil {
		m["dewpoint_c"] = *rec.DewpointC
	}
	if rec.VisibilitySM != nil {
		m["visibility_sm"] = *rec.VisibilitySM
	}
	if rec.Altimeter != nil {
		m["altimeter"] = *rec.Altimeter
	}
	return m
}

// FetchMETARDescriptor wires C2 into the tool registry.
func FetchMETARDescriptor(service *weather.Service) Descriptor {
	return Descriptor{
		Spec: ai.ToolSpec{
			Name:        "fetch_metar",
			Description: "Fetch real-time weather (METAR) for an airport code. Returns wind, ceiling, visibility, temperature.",
			Params: []ai.ToolParam{
				{Name: "icao_code", Type: "string", Required: true, Description: "Airport ICAO code (e.g., KDEN, KJFK)"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) Result {
			icao, _ := stringArg(args, "icao_code")
			rec, err := service.FetchMETAR(ctx, icao)
			if err != nil {
				return Result{Error: err.Error()}
			}
			return Result{Data: metarToMap(rec)}
		},
	}
}

// SelectBestRunwayDescriptor wires C3 into the tool registry. When the
// caller doesn't supply an explicit magnetic_variation_deg and
// magneticCorrectionEnabled is true, variation is resolved from the
// station catalog for the METAR's reporting station.
func SelectBestRunwayDescriptor(catalog runway.Catalog, defaultMaxCrosswindKt float64, magneticCorrectionEnabled bool) Descriptor {
	return Descriptor{
		Spec: ai.ToolSpec{
			Name:        "select_best_runway",
			Description: "Select best runway based on wind and crosswind limits.",
			Params: []ai.ToolParam{
				{Name: "metar_data", Type: "object", Required: true, Description: "METAR dict with wind and station"},
				{Name: "runways", Type: "array", Required: false, Description: "Runway designators or objects with heading_mag"},
				{Name: "max_crosswind_threshold", Type: "number", Required: false, Description: "Max allowable crosswind in kt"},
				{Name: "use_gust", Type: "boolean", Required: false, Description: "Use gust speed if available"},
				{Name: "magnetic_variation_deg", Type: "number", Required: false, Description: "Override declination (east +, west -)"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) Result {
			metarData, ok := objectArg(args, "metar_data")
			if !ok {
				return Result{Error: "select_best_runway: missing metar_data"}
			}
			windStr, _ := metarData["wind"].(string)
			dir, speed, err := parseWindDirSpeed(windStr)
			if err != nil {
				return Result{Error: err.Error()}
			}

			var gust *int
			if g, ok := metarData["wind_gust"]; ok {
				if gi, ok := toInt(g); ok {
					gust = &gi
				}
			}

			stationID, _ := metarData["station"].(string)

			designators := designatorsFor(args, catalog, stationID)
			if len(designators) == 0 {
				return Result{Error: "no valid runways provided"}
			}

			useGust, _ := boolArg(args, "use_gust")
			maxCross := defaultMaxCrosswindKt
			if v, ok := floatArg(args, "max_crosswind_threshold"); ok {
				maxCross = v
			}
			var variation *float64
			if v, ok := floatArg(args, "magnetic_variation_deg"); ok {
				variation = &v
			} else if magneticCorrectionEnabled {
				variation = station.Variation(stationID, time.Now())
			}

			sel, err := runway.Select(designators, dir, speed, gust, useGust, variation, maxCross)
			if err != nil {
				return Result{Error: err.Error()}
			}

			return Result{Data: map[string]interface{}{
				"phrase":      sel.Phrase,
				"best":        candidateMap(sel.Best),
				"exceeds":     sel.Exceeds,
				"speed_source": sel.SpeedSource,
			}}
		},
	}
}

func candidateMap(c runway.Candidate) map[string]interface{} {
	return map[string]interface{}{
		"designator":   c.Designator,
		"heading_mag":  c.HeadingMag,
		"crosswind_kt": c.CrosswindKt,
		"headwind_kt":  c.HeadwindKt,
		"angle_deg":    c.AngleDeg,
	}
}

func designatorsFor(args map[string]interface{}, catalog runway.Catalog, stationID string) []string {
	if raw, ok := arrayArg(args, "runways"); ok && len(raw) > 0 {
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			switch rv := v.(type) {
			case string:
				out = append(out, rv)
			case map[string]interface{}:
				if d, ok := rv["designator"].(string); ok {
					out = append(out, d)
				}
			}
		}
		return out
	}
	if catalog != nil {
		return catalog[stationID]
	}
	return nil
}

func parseWindDirSpeed(windStr string) (float64, float64, error) {
	var dir, speed float64
	n, err := fmt.Sscanf(windStr, "%f @ %f", &dir, &speed)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("invalid wind format: %q", windStr)
	}
	return dir, speed, nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// FetchAircraftSpecsDescriptor is a static catalog lookup.
func FetchAircraftSpecsDescriptor() Descriptor {
	return Descriptor{
		Spec: ai.ToolSpec{
			Name:        "fetch_aircraft_specs",
			Description: "Get aircraft specifications from the database.",
			Params: []ai.ToolParam{
				{Name: "aircraft_id", Type: "string", Required: true, Description: "Aircraft tail number (e.g., N12345)"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) Result {
			id, _ := stringArg(args, "aircraft_id")
			spec, ok := aircraftCatalog[id]
			if !ok {
				return Result{Error: fmt.Sprintf("aircraft %q not found", id)}
			}
			return Result{Data: map[string]interface{}{
				"type":         spec.Type,
				"max_fuel":     spec.MaxFuel,
				"useful_load":  spec.UsefulLoad,
				"cruise_speed": spec.CruiseSpeed,
				"max_range":    spec.MaxRange,
			}}
		},
	}
}

// CalculateFuelBurnDescriptor implements the simplified base-burn +
// headwind-penalty model.
func CalculateFuelBurnDescriptor() Descriptor {
	return Descriptor{
		Spec: ai.ToolSpec{
			Name:        "calculate_fuel_burn",
			Description: "Calculate fuel consumption for a flight given distance, aircraft type, and wind.",
			Params: []ai.ToolParam{
				{Name: "distance_nm", Type: "number", Required: true, Description: "Distance in nautical miles"},
				{Name: "aircraft_type", Type: "string", Required: true, Description: "Aircraft type (e.g., Cessna 172)"},
				{Name: "headwind_kt", Type: "number", Required: false, Description: "Headwind in knots (default: 0)"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) Result {
			distance, _ := floatArg(args, "distance_nm")
			aircraftType, _ := stringArg(args, "aircraft_type")
			headwind, _ := floatArg(args, "headwind_kt")

			burnRate, ok := fuelBurnRates[aircraftType]
			if !ok {
				burnRate = 5.0
			}
			headwindPenalty := (headwind / 10) * 0.1
			adjustedBurnRate := burnRate * (1 + headwindPenalty)
			flightHours := distance / 100
			totalFuel := flightHours * adjustedBurnRate

			return Result{Data: map[string]interface{}{
				"distance_nm":         distance,
				"flight_hours":        round2(flightHours),
				"burn_rate_gph":       round2(adjustedBurnRate),
				"total_fuel_gallons":  round2(totalFuel),
			}}
		},
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// QueryManualDescriptor looks up a fixed set of flight-manual topics.
func QueryManualDescriptor() Descriptor {
	return Descriptor{
		Spec: ai.ToolSpec{
			Name:        "query_manual",
			Description: "Search the flight manual for specific information.",
			Params: []ai.ToolParam{
				{Name: "topic", Type: "string", Required: true, Description: "Topic to search (e.g., crosswind_limits, runway_requirements)"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) Result {
			topic, _ := stringArg(args, "topic")
			result, ok := manualTopics[topic]
			if !ok {
				result = "Topic not found in manual"
			}
			return Result{Data: map[string]interface{}{"topic": topic, "result": result}}
		},
	}
}

// FlightEventLogger persists flight events. The in-memory implementation
// below stands in for the production write path (spec names "PostgreSQL",
// which is out of scope here).
type FlightEventLogger interface {
	LogEvent(pilotID, eventType string, data map[string]interface{})
}

// LogFlightEventDescriptor records an event via logger.
func LogFlightEventDescriptor(logger FlightEventLogger) Descriptor {
	return Descriptor{
		Spec: ai.ToolSpec{
			Name:        "log_flight_event",
			Description: "Log a flight event to the database.",
			Params: []ai.ToolParam{
				{Name: "pilot_id", Type: "string", Required: true, Description: "Pilot ID"},
				{Name: "event_type", Type: "string", Required: true, Description: "Type of event (e.g., flight_completed, maintenance_logged)"},
				{Name: "data", Type: "object", Required: true, Description: "Event data"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) Result {
			pilotID, _ := stringArg(args, "pilot_id")
			eventType, _ := stringArg(args, "event_type")
			data, _ := objectArg(args, "data")
			logger.LogEvent(pilotID, eventType, data)
			return Result{Data: map[string]interface{}{
				"success":    true,
				"pilot_id":   pilotID,
				"event_type": eventType,
				"data":       data,
				"message":    fmt.Sprintf("Flight event logged for pilot %s", pilotID),
			}}
		},
	}
}
