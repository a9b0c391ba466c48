// Package guardrail implements the C7/C8 semantic guardrail pipeline: it
// re-derives the safety-critical crosswind claim inside a draft answer
// from the same primary data the answer was built on, forces a single
// corrective regeneration when the two disagree beyond tolerance, and
// falls back to a conservative, audit-tagged message when even the
// correction doesn't hold up.
package guardrail

import (
	"fmt"
	"math"
	"time"

	"github.com/flightassist/skyguard/internal/audit"
	"github.com/flightassist/skyguard/internal/geometry"
	"github.com/flightassist/skyguard/internal/station"
	"github.com/flightassist/skyguard/internal/weather"
)

// Status is the outcome of one verification pass.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// VerificationResult mirrors spec §3's VerificationResult: a status plus
// the claimed and mathematically true crosswind values that produced it.
type VerificationResult struct {
	Status             Status
	AgentClaim         *float64
	MathematicalTruth  *float64
	Discrepancy        *float64
	Reason             string
	ReflectionPrompt   string
}

// Config tunes the tolerance and policy knobs the verifier applies.
type Config struct {
	ToleranceKt                float64
	UseGustForVerification     bool
	MagneticCorrectionEnabled  bool
}

// DefaultConfig mirrors the service defaults: a 3-knot tolerance, gust
// speed excluded from verification unless explicitly enabled, and
// magnetic correction on.
func DefaultConfig() Config {
	return Config{ToleranceKt: 3.0, UseGustForVerification: false, MagneticCorrectionEnabled: true}
}

// Verify implements C7: it re-derives the crosswind claim embedded in
// answerText from the tracked METAR and runway heading, comparing it
// against what extract_claim found in the text.
func Verify(answerText string, trackedMetar *weather.Record, trackedRunwayHeadingMag *int, cfg Config) VerificationResult {
	if trackedMetar == nil {
		return VerificationResult{Status: StatusSkipped, Reason: "no tracked METAR observed during this request"}
	}
	if trackedRunwayHeadingMag == nil {
		return VerificationResult{Status: StatusSkipped, Reason: "no tracked runway heading observed during this request"}
	}
	if trackedMetar.WindDirection == nil {
		return VerificationResult{Status: StatusSkipped, Reason: "wind direction is variable or unknown"}
	}
	if trackedMetar.WindSpeed == nil {
		return VerificationResult{Status: StatusSkipped, Reason: "wind speed is unknown"}
	}
	claim := geometry.ExtractClaim(answerText)
	if claim == nil {
		return VerificationResult{Status: StatusSkipped, Reason: "no crosswind claim found in the answer text"}
	}

	truth := recomputeCrosswind(trackedMetar, *trackedRunwayHeadingMag, cfg)
	discrepancy := math.Abs(*claim - truth)

	result := VerificationResult{
		AgentClaim:        claim,
		MathematicalTruth: &truth,
		Discrepancy:       &discrepancy,
	}
	if discrepancy <= cfg.ToleranceKt {
		result.Status = StatusPassed
		result.Reason = fmt.Sprintf("claimed %.2f kt within %.1f kt of computed %.2f kt", *claim, cfg.ToleranceKt, truth)
		return result
	}

	result.Status = StatusFailed
	result.Reason = fmt.Sprintf("claimed %.2f kt differs from computed %.2f kt by %.2f kt, exceeding the %.1f kt tolerance", *claim, truth, discrepancy, cfg.ToleranceKt)
	result.ReflectionPrompt = reflectionPrompt(trackedMetar, *trackedRunwayHeadingMag, truth)
	return result
}

// recomputeCrosswind independently re-derives the crosswind component the
// same way internal/runway does, so the guardrail's "truth" is computed
// from the identical primary data the tool chain already observed.
func recomputeCrosswind(metar *weather.Record, runwayHeadingMag int, cfg Config) float64 {
	speed := float64(*metar.WindSpeed)
	if cfg.UseGustForVerification && metar.WindGust != nil && float64(*metar.WindGust) > speed {
		speed = float64(*metar.WindGust)
	}

	var variation *float64
	if cfg.MagneticCorrectionEnabled {
		variation = station.Variation(metar.Station, time.Now())
	}
	windDirMag := geometry.MagneticCorrection(float64(*metar.WindDirection), variation)
	delta := geometry.AngleBetween(int(windDirMag), runwayHeadingMag)
	return geometry.Crosswind(speed, delta)
}

func reflectionPrompt(metar *weather.Record, runwayHeadingMag int, truth float64) string {
	return fmt.Sprintf(
		"Your previous answer's crosswind claim does not match the math. Wind is %s at %s, runway heading %d magnetic. "+
			"crosswind = |V * sin(delta)| evaluates to %.2f kt. Produce a corrected answer stating the crosswind as %.2f kt.",
		metar.WindString(), metar.Station, runwayHeadingMag, truth, truth,
	)
}

// Reflect implements C8's corrective half: it builds a prompt around the
// failed verification, asks the caller-supplied regenerate function for a
// replacement answer, and re-runs Verify on the result.
func Reflect(verification VerificationResult, trackedMetar *weather.Record, trackedRunwayHeadingMag *int, cfg Config, regenerate func(prompt string) (string, error)) (string, VerificationResult, error) {
	newText, err := regenerate(verification.ReflectionPrompt)
	if err != nil {
		return "", VerificationResult{}, fmt.Errorf("reflection regeneration failed: %w", err)
	}
	return newText, Verify(newText, trackedMetar, trackedRunwayHeadingMag, cfg), nil
}

// SafeFailContext carries what SafeFail needs to produce a conservative,
// self-auditing fallback message.
type SafeFailContext struct {
	Airport string
	Wind    string
	TruthKt float64
	TraceID string
}

// SafeFail implements C8's terminal fallback: it never throws, and the
// text it returns always names the airport, the tracked wind, the
// mathematically verified crosswind, a request to verify independently,
// and the audit trace id under which this fallback was recorded.
func SafeFail(sfc SafeFailContext) string {
	return fmt.Sprintf(
		"I'm not confident in my crosswind calculation for %s, so I'm giving you the verified numbers instead of a generated answer. "+
			"Reported wind: %s. Mathematically verified crosswind component: %.1f kt. "+
			"Please independently verify this against current conditions before using it for a go/no-go decision. (audit trace %s)",
		sfc.Airport, sfc.Wind, sfc.TruthKt, sfc.TraceID,
	)
}

// Outcome is the result of running the full C7/C8 pipeline against one
// draft answer.
type Outcome struct {
	FinalText   string
	Status      Status
	IsFallback  bool
	Verification VerificationResult
	TraceID     string
}

// RunPipeline implements the RESPOND step's terminal decision table: it
// verifies the draft, reflects once on failure, and safe-fails if the
// reflected answer still doesn't hold up. It writes exactly one guardrail
// audit record (guardrail_pass for a passed or skipped draft,
// guardrail_fail for a failed one); a failed draft adds a reflection
// record and, when the pipeline safe-fails, a safe_fail record.
func RunPipeline(
	draftText string,
	trackedMetar *weather.Record,
	trackedRunwayHeadingMag *int,
	cfg Config,
	regenerate func(prompt string) (string, error),
	sink *audit.Sink,
) Outcome {
	now := time.Now()
	verification := Verify(draftText, trackedMetar, trackedRunwayHeadingMag, cfg)

	switch verification.Status {
	case StatusPassed:
		traceID := emitGuardrailRecord(sink, now, audit.CategoryGuardrailPass, draftText, verification)
		return Outcome{FinalText: draftText, Status: StatusPassed, Verification: verification, TraceID: traceID}
	case StatusSkipped:
		traceID := emitGuardrailRecord(sink, now, audit.CategoryGuardrailPass, draftText, verification)
		return Outcome{FinalText: draftText, Status: StatusSkipped, Verification: verification, TraceID: traceID}
	}

	emitGuardrailRecord(sink, now, audit.CategoryGuardrailFail, draftText, verification)

	reflectedText, reflectedVerification, err := Reflect(verification, trackedMetar, trackedRunwayHeadingMag, cfg, regenerate)
	reflectionTraceID := emitReflectionRecord(sink, now, verification, reflectedVerification, err)

	if err == nil && reflectedVerification.Status == StatusPassed {
		return Outcome{FinalText: reflectedText, Status: StatusPassed, Verification: reflectedVerification, TraceID: reflectionTraceID}
	}

	airport, wind := "the requested airport", "unknown"
	if trackedMetar != nil {
		airport = trackedMetar.Station
		wind = trackedMetar.WindString()
	}
	truth := 0.0
	if verification.MathematicalTruth != nil {
		truth = *verification.MathematicalTruth
	}
	traceID := emitSafeFailRecord(sink, now, verification, reflectedVerification)
	fallbackText := SafeFail(SafeFailContext{Airport: airport, Wind: wind, TruthKt: truth, TraceID: traceID})
	return Outcome{FinalText: fallbackText, Status: StatusFailed, IsFallback: true, Verification: verification, TraceID: traceID}
}

func emitGuardrailRecord(sink *audit.Sink, now time.Time, category audit.Category, text string, v VerificationResult) string {
	b := audit.NewBuilder(category, now).WithContext(map[string]interface{}{
		"status": string(v.Status),
	}).Log("verify", verificationPayload(v))
	record := b.Build()
	sink.Emit(record)
	return b.TraceID()
}

func emitReflectionRecord(sink *audit.Sink, now time.Time, before, after VerificationResult, err error) string {
	payload := map[string]interface{}{
		"before": verificationPayload(before),
		"after":  verificationPayload(after),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	b := audit.NewBuilder(audit.CategoryReflection, now).Log("reflect", payload)
	sink.Emit(b.Build())
	return b.TraceID()
}

func emitSafeFailRecord(sink *audit.Sink, now time.Time, before, after VerificationResult) string {
	b := audit.NewBuilder(audit.CategorySafeFail, now).WithContext(map[string]interface{}{
		"status": string(before.Status),
	}).Log("safe_fail", map[string]interface{}{
		"before": verificationPayload(before),
		"after":  verificationPayload(after),
	})
	sink.Emit(b.Build())
	return b.TraceID()
}

func verificationPayload(v VerificationResult) map[string]interface{} {
	p := map[string]interface{}{"status": string(v.Status), "reason": v.Reason}
	if v.AgentClaim != nil {
		p["agent_claim"] = *v.AgentClaim
	}
	if v.MathematicalTruth != nil {
		p["mathematical_truth"] = *v.MathematicalTruth
	}
	if v.Discrepancy != nil {
		p["discrepancy"] = *v.Discrepancy
	}
	return p
}
