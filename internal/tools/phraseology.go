package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/flightassist/skyguard/internal/ai"
)

var spokenDigits = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// numberToWords renders an integer as space-separated ATC-style spoken
// digits, e.g. 260 -> "two six zero".
func numberToWords(n int) string {
	s := strconv.Itoa(n)
	words := make([]string, 0, len(s))
	for _, r := range s {
		if r == '-' {
			continue
		}
		words = append(words, spokenDigits[r-'0'])
	}
	return strings.Join(words, " ")
}

func windToPhrase(dir, speed float64, gust *float64) string {
	phrase := fmt.Sprintf("wind %s at %s", numberToWords(int(dir)), numberToWords(int(speed)))
	if gust != nil {
		phrase += fmt.Sprintf(" gusts %s", numberToWords(int(*gust)))
	}
	return phrase
}

var runwaySuffixWords = map[string]string{"L": "left", "R": "right", "C": "center"}

func runwayToPhrase(designator string) string {
	var numDigits, suffix strings.Builder
	for _, r := range designator {
		switch {
		case r >= '0' && r <= '9':
			numDigits.WriteRune(r)
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			suffix.WriteRune(r)
		}
	}
	if numDigits.Len() == 0 {
		return ""
	}
	num, err := strconv.Atoi(numDigits.String())
	if err != nil {
		return ""
	}
	phrase := "runway " + numberToWords(num)
	if s := strings.ToUpper(suffix.String()); s != "" {
		if word, ok := runwaySuffixWords[s]; ok {
			phrase += " " + word
		} else {
			phrase += " " + strings.ToLower(s)
		}
	}
	return phrase
}

var flightConditionPhrases = map[string]string{
	"VFR":  "visual flight rules",
	"MVFR": "marginal visual flight rules",
	"IFR":  "instrument flight rules",
	"LIFR": "low instrument flight rules",
}

func flightConditionPhrase(category string) string {
	if p, ok := flightConditionPhrases[category]; ok {
		return p
	}
	return strings.ToLower(category)
}

// GenerateATCPhraseDescriptor produces FAA/ICAO-standard radio phraseology
// from a METAR observation and a chosen runway.
func GenerateATCPhraseDescriptor() Descriptor {
	return Descriptor{
		Spec: ai.ToolSpec{
			Name:        "generate_atc_phrase",
			Description: "Generate FAA/ICAO-standard ATC phraseology from METAR and runway.",
			Params: []ai.ToolParam{
				{Name: "metar_data", Type: "object", Required: true, Description: "METAR dict with wind and conditions"},
				{Name: "runway_designator", Type: "string", Required: true, Description: "Runway like '26' or '17L'"},
				{Name: "phrase_type", Type: "string", Required: false, Description: "landing_clearance, approach, wind_advisory, runway_advisory"},
				{Name: "station_callsign", Type: "string", Required: false, Description: "Optional station identifier (e.g., 'Denver Tower')"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) Result {
			metarData, ok := objectArg(args, "metar_data")
			if !ok {
				return Result{Error: "generate_atc_phrase: missing metar_data"}
			}
			designator, _ := stringArg(args, "runway_designator")
			windStr, _ := metarData["wind"].(string)
			dir, speed, err := parseWindDirSpeed(windStr)
			if err != nil {
				return Result{Error: err.Error()}
			}

			var gust *float64
			if g, ok := metarData["wind_gust"]; ok {
				if gf, ok := toFloat(g); ok {
					gust = &gf
				}
			}

			phraseType, ok := stringArg(args, "phrase_type")
			if !ok || phraseType == "" {
				phraseType = "landing_clearance"
			}
			callsign, ok := stringArg(args, "station_callsign")
			if !ok || callsign == "" {
				if s, ok := metarData["station"].(string); ok && s != "" {
					callsign = s
				} else {
					callsign = "TOWER"
				}
			}

			windPhrase := windToPhrase(dir, speed, gust)
			runwayPhrase := runwayToPhrase(designator)
			category, _ := metarData["flight_category"].(string)
			conditionsPhrase := flightConditionPhrase(category)

			var main, full string
			switch phraseType {
			case "landing_clearance":
				main = fmt.Sprintf("%s, %s, cleared to land", windPhrase, runwayPhrase)
				full = fmt.Sprintf("%s %s, %s, cleared to land", callsign, windPhrase, runwayPhrase)
			case "approach":
				main = fmt.Sprintf("expect %s, conditions %s", runwayPhrase, conditionsPhrase)
				full = fmt.Sprintf("%s expect %s, conditions %s", callsign, runwayPhrase, conditionsPhrase)
			case "wind_advisory":
				main = windPhrase
				full = fmt.Sprintf("%s %s", callsign, windPhrase)
			case "runway_advisory":
				main = runwayPhrase
				full = fmt.Sprintf("%s %s", callsign, runwayPhrase)
			default:
				return Result{Error: fmt.Sprintf("unknown phrase_type: %s", phraseType)}
			}

			return Result{Data: map[string]interface{}{
				"phrase":           main,
				"full_transmission": full,
				"components": map[string]interface{}{
					"wind":       windPhrase,
					"runway":     runwayPhrase,
					"conditions": conditionsPhrase,
					"callsign":   callsign,
				},
			}}
		},
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
