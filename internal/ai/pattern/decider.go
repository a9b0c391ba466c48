// Package pattern implements the deterministic decider used for tests and
// whenever no external LLM backend is configured: it classifies a query,
// extracts an ICAO code and optional runway designator, dispatches the
// minimum tool chain for that class, and returns a templated final answer
// derived from observed tool results.
package pattern

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/flightassist/skyguard/internal/ai"
)

// Decider is the pattern-based ai.Decider.
type Decider struct{}

// New returns a pattern Decider.
func New() *Decider { return &Decider{} }

var weatherKeywords = []string{
	"crosswind", "wind", "metar", "taf", "runway", "landing", "gust", "headwind", "tailwind", "weather",
}

func requiresTools(query string) bool {
	q := strings.ToLower(query)
	for _, k := range weatherKeywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

var icaoPattern = regexp.MustCompile(`\b([Kk][A-Za-z]{3}|[A-Z]{4})\b`)

var airportNames = map[string]string{
	"denver":        "KDEN",
	"boulder":       "KBDU",
	"jfk":           "KJFK",
	"lax":           "KLAX",
	"ord":           "KORD",
	"atlanta":       "KATL",
	"chicago":       "KORD",
	"san francisco": "KSFO",
	"seattle":       "KSEA",
	"miami":         "KMIA",
}

// extractICAOCodes finds candidate ICAO identifiers in a query, first by
// pattern, then by known airport name, preserving first-seen order.
func extractICAOCodes(query string) []string {
	var codes []string
	seen := map[string]bool{}
	for _, m := range icaoPattern.FindAllString(query, -1) {
		up := strings.ToUpper(m)
		if !seen[up] {
			codes = append(codes, up)
			seen[up] = true
		}
	}
	lower := strings.ToLower(query)
	for name, icao := range airportNames {
		if strings.Contains(lower, name) && !seen[icao] {
			codes = append(codes, icao)
			seen[icao] = true
		}
	}
	return codes
}

var runwayPattern = regexp.MustCompile(`(?i)runway\s+(\d{2,3}[LRC]?)`)

// extractRunwayDesignator reads a runway mention from the query. A
// three-digit token is a heading ("runway 260") and is folded to a
// two-digit designator ("26"); a two-digit token is already a designator
// ("runway 26").
func extractRunwayDesignator(query string) (string, bool) {
	m := runwayPattern.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	token := strings.ToUpper(m[1])
	suffix := strings.TrimLeft(token, "0123456789")
	digits := strings.TrimSuffix(token, suffix)

	if len(digits) == 3 {
		heading, err := strconv.Atoi(digits)
		if err != nil {
			return "", false
		}
		digits = fmt.Sprintf("%02d", (heading/10)%100)
	}
	return digits + suffix, true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// observation mirrors the {"tool": name, "result": {...}} shape the
// agentic loop appends to the transcript as a "tool" role message after
// each ACT/OBSERVE step.
type observation struct {
	Tool   string                 `json:"tool"`
	Result map[string]interface{} `json:"result"`
}

func toolObservations(transcript []ai.ChatMessage) []observation {
	var out []observation
	for _, m := range transcript {
		if m.Role != "tool" {
			continue
		}
		var obs observation
		if err := json.Unmarshal([]byte(m.Content), &obs); err == nil {
			out = append(out, obs)
		}
	}
	return out
}

func findObservation(observations []observation, tool string) *observation {
	for i := len(observations) - 1; i >= 0; i-- {
		if observations[i].Tool == tool {
			return &observations[i]
		}
	}
	return nil
}

func firstUserMessage(transcript []ai.ChatMessage) string {
	for _, m := range transcript {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

// Decide implements ai.Decider.
func (d *Decider) Decide(ctx context.Context, transcript []ai.ChatMessage, toolsCatalog []ai.ToolSpec) (ai.Decision, error) {
	query := firstUserMessage(transcript)

	if !requiresTools(query) {
		return ai.Decision{Kind: ai.DecisionFinal, Text: genericResponse(query)}, nil
	}

	observations := toolObservations(transcript)
	metarObs := findObservation(observations, "fetch_metar")

	if metarObs == nil {
		codes := extractICAOCodes(query)
		target := "KDEN"
		if len(codes) > 0 {
			target = codes[0]
		}
		return ai.Decision{
			Kind:     ai.DecisionTool,
			ToolName: "fetch_metar",
			ToolArgs: map[string]interface{}{"icao_code": target},
		}, nil
	}

	if errMsg, ok := metarObs.Result["error"].(string); ok && errMsg != "" {
		return ai.Decision{Kind: ai.DecisionFinal, Text: fmt.Sprintf("Could not retrieve METAR data: %s", errMsg)}, nil
	}

	lower := strings.ToLower(query)
	needsRunway := containsAny(lower, []string{"crosswind", "landing", "runway"})
	runwayObs := findObservation(observations, "select_best_runway")

	if needsRunway && runwayObs == nil {
		windStr, _ := metarObs.Result["wind"].(string)
		if windStr == "" {
			return ai.Decision{Kind: ai.DecisionFinal, Text: formatMetarOnly(metarObs.Result)}, nil
		}
		designator, ok := extractRunwayDesignator(query)
		if !ok {
			designator = syntheticRunwayFromWind(windStr)
		}
		return ai.Decision{
			Kind:     ai.DecisionTool,
			ToolName: "select_best_runway",
			ToolArgs: map[string]interface{}{
				"metar_data": metarObs.Result,
				"runways":    []interface{}{designator},
			},
		}, nil
	}

	if needsRunway && runwayObs != nil {
		return ai.Decision{Kind: ai.DecisionFinal, Text: formatLandingResponse(metarObs.Result, runwayObs.Result)}, nil
	}

	return ai.Decision{Kind: ai.DecisionFinal, Text: formatMetarOnly(metarObs.Result)}, nil
}

// syntheticRunwayFromWind derives a plausible headwind-aligned runway
// designator straight from the wind direction when the query named none.
func syntheticRunwayFromWind(windStr string) string {
	var dir, speed float64
	if n, err := fmt.Sscanf(windStr, "%f @ %f", &dir, &speed); err != nil || n != 2 {
		return "09"
	}
	heading := int(dir/10+0.5) * 10 % 360
	number := heading / 10
	if number == 0 {
		number = 36
	}
	return fmt.Sprintf("%02d", number)
}

func genericResponse(query string) string {
	greetings := []string{"hello", "hi", "hey"}
	if containsAny(strings.ToLower(query), greetings) {
		return "Hello! I can help with weather and runway information. Please specify an airport (e.g., \"crosswind at KDEN\" or \"weather at Denver\")."
	}
	return "I can help with weather and runway information. Please specify an airport (e.g., \"crosswind at KDEN\" or \"weather at Denver\")."
}

func formatMetarOnly(metar map[string]interface{}) string {
	station, _ := metar["station"].(string)
	wind, _ := metar["wind"].(string)
	category, _ := metar["flight_category"].(string)

	var b strings.Builder
	fmt.Fprintf(&b, "Station %s", station)
	if wind != "" {
		fmt.Fprintf(&b, " reports wind %s", wind)
	}
	if category != "" {
		fmt.Fprintf(&b, ", flight category %s", category)
	}
	b.WriteString(".")
	return b.String()
}

func formatLandingResponse(metar map[string]interface{}, runwaySelection map[string]interface{}) string {
	station, _ := metar["station"].(string)
	wind, _ := metar["wind"].(string)
	phrase, _ := runwaySelection["phrase"].(string)

	best, _ := runwaySelection["best"].(map[string]interface{})
	crosswind, _ := best["crosswind_kt"].(float64)
	designator, _ := best["designator"].(string)

	return fmt.Sprintf(
		"At %s, wind is %s. %s. The crosswind for runway %s is %.1f kt.",
		station, wind, phrase, designator, crosswind,
	)
}
