// admission.go decides whether an event message is worth an OCR call.
package processor

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/frigate"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// DedupChecker reports whether an event already has a stored plate.
type DedupChecker interface {
	Exists(ctx context.Context, eventID string) (bool, error)
}

// Decision is eligible or a skip with a reason.
type Decision struct {
	Eligible bool
	Reason   string
}

func eligible() Decision { return Decision{Eligible: true} }

func reject(reason string) Decision { return Decision{Reason: reason} }

// Admission runs the cheap per-message checks in a fixed order and stops at
// the first failure. It never returns an error.
type Admission struct {
	zones       []string
	cameras     []string
	objects     []string
	frigatePlus bool
	plateMin    float64
	dedup       DedupChecker

	firstSeen atomic.Bool
}

// NewAdmission builds the filter from the frigate settings. dedup may be nil.
func NewAdmission(settings *conf.FrigateSettings, dedup DedupChecker) *Admission {
	objects := settings.Objects
	if len(objects) == 0 {
		objects = conf.DefaultObjects
	}
	return &Admission{
		zones:       settings.Zones,
		cameras:     settings.Camera,
		objects:     objects,
		frigatePlus: settings.FrigatePlus,
		plateMin:    settings.LicensePlateMinScore,
		dedup:       dedup,
	}
}

// ConsumeFirst reports whether this is the first message since start. Only
// the first call returns true.
func (a *Admission) ConsumeFirst() bool {
	return a.firstSeen.CompareAndSwap(false, true)
}

// Evaluate checks msg. tracked says whether the event already had state
// before this message arrived.
func (a *Admission) Evaluate(ctx context.Context, msg *frigate.EventMessage, tracked bool) Decision {
	if a.ConsumeFirst() {
		return reject(ReasonFirstMessage)
	}

	after := msg.After
	if !a.matchesZoneAndCamera(after) {
		return reject(ReasonZoneCameraMismatch)
	}
	if !slices.Contains(a.objects, after.Label) {
		return reject(ReasonLabelNotAllowed)
	}
	if tracked && msg.TopScoreUnchanged() && !a.frigatePlus {
		return reject(ReasonRedundantRefinement)
	}
	if a.alreadyProcessed(ctx, after.ID) {
		return reject(ReasonAlreadyProcessed)
	}
	if a.frigatePlus {
		plate, ok := after.LicensePlate()
		if !ok {
			return reject(ReasonNoLicensePlate)
		}
		if plate.Score < a.plateMin {
			return reject(ReasonPlateScoreTooLow)
		}
	}
	return eligible()
}

// matchesZoneAndCamera requires every configured dimension to match.
func (a *Admission) matchesZoneAndCamera(e *frigate.EventSnapshot) bool {
	if len(a.zones) > 0 && !slices.ContainsFunc(e.CurrentZones, func(z string) bool {
		return slices.Contains(a.zones, z)
	}) {
		return false
	}
	if len(a.cameras) > 0 && !slices.Contains(a.cameras, e.Camera) {
		return false
	}
	return true
}

// alreadyProcessed treats a lookup error as not processed; the unique
// constraint on save still prevents a second row.
func (a *Admission) alreadyProcessed(ctx context.Context, eventID string) bool {
	if a.dedup == nil {
		return false
	}
	exists, err := a.dedup.Exists(ctx, eventID)
	if err != nil {
		GetLogger().Warn("dedup lookup failed, continuing",
			logger.String("event_id", eventID),
			logger.Error(err))
		return false
	}
	return exists
}
