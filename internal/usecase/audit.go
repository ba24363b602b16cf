package usecase

import (
	"context"
	"time"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
)

// auditTrail appends activity entries on behalf of the usecases. Recording is
// best effort: failures are logged and never reach the caller.
type auditTrail struct {
	rec domain.ActivityRecorder
	log logging.Logger
	now func() time.Time
}

func (a auditTrail) record(ctx context.Context, userID string, action domain.Action, detail map[string]any) {
	if a.rec == nil {
		return
	}
	entry := domain.ActivityEntry{
		UserID:    userID,
		Action:    action,
		Detail:    detail,
		Timestamp: a.now().UTC(),
		IP:        logging.ClientIP(ctx),
	}
	if err := a.rec.Record(ctx, entry); err != nil {
		a.log.Warn(ctx, "activity not recorded", "action", string(action), "user_id", userID, "error", err)
	}
}
