package bridge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/leadbridge/pkg/whatconverts"
)

// ValueEvent is an inbound sale or quote notification carrying the
// amount to add to the matching lead's stored value.
type ValueEvent struct {
	ProfileID int64   `json:"profileId"`
	Value     float64 `json:"value"`
	Phone     string  `json:"phone,omitempty"`
	Email     string  `json:"email,omitempty"`
}

// ReconcileValue locates the lead matching the event's contact info
// and adds the event value to the lead's stored total for the given
// field. Returns whether a lead was found and updated; a missing lead
// is a normal negative outcome, not an error. Lookup failures degrade
// to "not updated" as well, so a flaky Lead Source read never fails
// the caller; only the write-back can.
func (p *Processor) ReconcileValue(ctx context.Context, event ValueEvent, field whatconverts.ValueField) (bool, error) {
	log := zap.L().With(
		zap.Int64("profile_id", event.ProfileID),
		zap.String("field", string(field)),
	)

	lead, err := p.leads.FindLeadByContact(ctx, whatconverts.ContactQuery{
		ProfileID: event.ProfileID,
		Phone:     event.Phone,
		Email:     event.Email,
	})
	if err != nil {
		if errors.Is(err, whatconverts.ErrNotFound) {
			log.Info("no matching lead")
			return false, nil
		}
		log.Warn("lead lookup failed", zap.Error(err))
		return false, nil
	}

	total, err := p.leads.IncrementValue(ctx, lead, field, event.Value)
	if err != nil {
		return false, err
	}
	log.Info("lead value updated",
		zap.String("lead_id", lead.LeadID),
		zap.Float64("total", total),
	)
	return true, nil
}
