// Package physics wraps the WMM (World Magnetic Model) magnetic-variation
// lookup that internal/station uses to convert true runway headings to
// magnetic, and that the guardrail pipeline uses to independently recompute
// a crosswind claim's magnetic wind direction.
package physics

import (
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// CalculateMagneticVariation returns the magnetic declination in degrees
// (+East, -West) for a given position, altitude, and date.
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * 0.3048
	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}
	return mag.D()
}
