// Package runway implements the C3 Runway Selector: given a station's wind
// and a catalog of runway designators, picks the runway that minimizes
// crosswind, breaking ties in favor of the larger headwind.
package runway

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/flightassist/skyguard/internal/geometry"
)

// Catalog maps an ICAO station identifier to the runway designators
// published for that field (e.g. "26", "08", "17L").
type Catalog map[string][]string

// Candidate is one runway's computed wind components against a single
// wind observation.
type Candidate struct {
	Designator  string  `json:"designator"`
	HeadingMag  int     `json:"heading_mag"`
	CrosswindKt float64 `json:"crosswind_kt"`
	HeadwindKt  float64 `json:"headwind_kt"`
	AngleDeg    float64 `json:"angle_deg"`
}

// Selection is the result of Select: the favored runway, the full ranked
// candidate list, and a human-readable phrase summarizing the pick.
type Selection struct {
	Phrase      string      `json:"phrase"`
	Best        Candidate   `json:"best"`
	Candidates  []Candidate `json:"candidates"`
	Exceeds     bool        `json:"exceeds_threshold"`
	SpeedSource string      `json:"speed_source"`
}

// HeadingFromDesignator infers a magnetic runway heading from its
// designator using the tens-of-degrees rule (e.g. "26" -> 260, "17L" -> 170).
func HeadingFromDesignator(designator string) (int, bool) {
	var digits strings.Builder
	for _, r := range designator {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	return (num * 10) % 360, true
}

// Select ranks every runway in designators by crosswind (ascending) then
// headwind (descending), returning the favored runway and full ranking.
// windDirTrue/windSpeed/gust describe the observed wind in true degrees;
// variationDeg (nil if unknown) converts true to magnetic before comparing
// against each runway's magnetic heading.
func Select(designators []string, windDirTrue float64, windSpeed float64, gust *int, useGust bool, variationDeg *float64, maxCrosswindKt float64) (Selection, error) {
	if len(designators) == 0 {
		return Selection{}, fmt.Errorf("no runways provided")
	}

	speedUsed := windSpeed
	speedSource := "sustained"
	if useGust && gust != nil {
		speedUsed = float64(*gust)
		speedSource = "gust"
	}

	windDirMag := geometry.MagneticCorrection(windDirTrue, variationDeg)

	var candidates []Candidate
	for _, designator := range designators {
		heading, ok := HeadingFromDesignator(designator)
		if !ok {
			continue
		}
		delta := geometry.AngleBetween(int(windDirMag), heading)
		cross := geometry.Crosswind(speedUsed, delta)
		head := geometry.Headwind(speedUsed, delta)
		candidates = append(candidates, Candidate{
			Designator:  designator,
			HeadingMag:  heading,
			CrosswindKt: cross,
			HeadwindKt:  head,
			AngleDeg:    delta,
		})
	}

	if len(candidates) == 0 {
		return Selection{}, fmt.Errorf("no valid runway designators among %v", designators)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CrosswindKt != candidates[j].CrosswindKt {
			return candidates[i].CrosswindKt < candidates[j].CrosswindKt
		}
		return candidates[i].HeadwindKt > candidates[j].HeadwindKt
	})

	best := candidates[0]
	exceeds := best.CrosswindKt > maxCrosswindKt

	windWord := "headwind"
	headwindAbs := best.HeadwindKt
	if best.HeadwindKt < 0 {
		windWord = "tailwind"
		headwindAbs = -best.HeadwindKt
	}

	phrase := fmt.Sprintf("Runway %s favored, %s kt %s, %s kt crosswind",
		best.Designator, formatKt(headwindAbs), windWord, formatKt(best.CrosswindKt))
	if exceeds {
		phrase += fmt.Sprintf(" (exceeds %s kt limit)", formatKt(maxCrosswindKt))
	}

	return Selection{
		Phrase:      phrase,
		Best:        best,
		Candidates:  candidates,
		Exceeds:     exceeds,
		SpeedSource: speedSource,
	}, nil
}

func formatKt(v float64) string {
	return strconv.FormatFloat(roundTo1(v), 'f', 1, 64)
}

func roundTo1(v float64) float64 {
	return float64(int(v*10+sign(v)*0.5)) / 10
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
