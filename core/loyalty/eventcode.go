package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
)

const (
	eventCodeHistory = 20
	eventScanHistory = 20
)

// CreateEventCode makes a new code for an event the active one.
func (svc *Service) CreateEventCode(ctx context.Context, nc NewEventCode, by string) (EventCode, error) {
	evt, err := svc.events.Get(ctx, nc.EventID)
	if err != nil {
		return EventCode{}, err
	}
	points := nc.Points
	if points == 0 {
		points = svc.opts.CheckinPoints
	}
	return svc.repo.CreateEventCode(ctx, EventCode{
		ID:        uuid.New().String(),
		EventID:   evt.ID,
		EventName: evt.Name,
		Code:      uuid.New().String(),
		Points:    points,
		IsActive:  true,
		CreatedAt: core.NowFunc(),
		CreatedBy: by,
	})
}

// ActiveEventCode returns the code currently displayed at the venue, or nil.
func (svc *Service) ActiveEventCode(ctx context.Context) (*EventCode, error) {
	c, err := svc.repo.GetActiveEventCode(ctx)
	if err != nil {
		if errors.Cause(err) == ErrEventCodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (svc *Service) ToggleEventCode(ctx context.Context, id string) (EventCode, error) {
	return svc.repo.ToggleEventCode(ctx, id)
}

func (svc *Service) EventCodeHistory(ctx context.Context) ([]EventCode, error) {
	return svc.repo.QueryEventCodes(ctx, eventCodeHistory)
}

// ScanEventCode credits userID with the points of the event code; each code can be scanned once
// per user.
func (svc *Service) ScanEventCode(ctx context.Context, userID string, sr EventScanRequest) (EventScanResult, error) {
	now := core.NowFunc()
	scan, total, err := svc.repo.RecordEventScan(ctx, sr.Code,
		EventScan{
			ID:        uuid.New().String(),
			UserID:    userID,
			ScannedAt: now,
		},
		Transaction{
			ID:          uuid.New().String(),
			UserID:      userID,
			Kind:        KindEventScan,
			Description: "Scan QR événement",
			CreatedAt:   now,
		},
	)
	if err != nil {
		return EventScanResult{}, err
	}
	return EventScanResult{
		PointsEarned: scan.PointsEarned,
		TotalPoints:  total,
		EventName:    scan.EventName,
		Message:      fmt.Sprintf("Félicitations ! Tu as gagné %d Invasion Coins !", scan.PointsEarned),
	}, nil
}

func (svc *Service) MyEventScans(ctx context.Context, userID string) ([]EventScan, error) {
	return svc.repo.QueryEventScans(ctx, userID, eventScanHistory)
}
