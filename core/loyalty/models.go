package loyalty

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/invasionlatina/backend/core"
)

// Transaction kinds
const (
	KindCheckin    = "checkin"
	KindEventScan  = "event_scan"
	KindPurchase   = "purchase"
	KindReward     = "reward"
	KindAdjustment = "adjustment"
)

// Reward types and statuses
const (
	RewardFreeEntry = "free_entry"

	RewardActive   = "active"
	RewardRedeemed = "redeemed"
	RewardExpired  = "expired"
)

type Checkin struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	EventID      string    `json:"event_id"`
	QRVersion    int       `json:"qr_version"`
	PointsEarned int       `json:"points_earned"`
	CheckedInAt  time.Time `json:"checked_in_at"`
	CheckedInBy  string    `json:"checked_in_by"`
}

// Transaction is a line of a user's points history. Points is negative for spendings.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Points      int       `json:"points"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Reward struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Kind        string     `json:"kind"`
	Code        string     `json:"code"`
	PointsSpent int        `json:"points_spent"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty"`
	RedeemedBy  string     `json:"redeemed_by,omitempty"`
}

// IsUsable reports whether the reward can still be redeemed at now.
func (r Reward) IsUsable(now time.Time) bool {
	return r.Status == RewardActive && r.ExpiresAt.After(now)
}

// RedeemRequest is sent by the door staff app when a customer shows a reward code.
type RedeemRequest struct {
	Code string `json:"code" validate:"required"`
}

func (rr *RedeemRequest) Validate(validate *validator.Validate) error {
	rr.Code = strings.ToUpper(core.CleanString(rr.Code))
	return validate.Struct(rr)
}

type RedeemResult struct {
	Reward    Reward `json:"reward"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	Message   string `json:"message"`
}

// ActiveReward tells the app whether the user holds a usable free entry.
type ActiveReward struct {
	HasVoucher bool    `json:"has_voucher"`
	Voucher    *Reward `json:"voucher"`
}

type CheckinCode struct {
	Payload string `json:"qr_data"`
	Version int    `json:"version"`
}

// ScanRequest is sent by the door staff app.
type ScanRequest struct {
	Payload string `json:"payload" validate:"required"`
	EventID string `json:"event_id"` // current event when empty
}

func (sr *ScanRequest) Validate(validate *validator.Validate) error {
	sr.Payload = core.CleanString(sr.Payload)
	sr.EventID = core.CleanString(sr.EventID)
	return validate.Struct(sr)
}

type ScanResult struct {
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	EventID      string `json:"event_id"`
	PointsEarned int    `json:"points_earned"`
	TotalPoints  int    `json:"total_points"`
	Message      string `json:"message"`
}

type Summary struct {
	Points             int           `json:"points"`
	Checkins           int           `json:"checkins"`
	RewardThreshold    int           `json:"reward_threshold"`
	Progress           int           `json:"progress"`
	PointsNeeded       int           `json:"points_needed"`
	CanClaim           bool          `json:"can_claim"`
	RewardsEarned      int           `json:"rewards_earned"`
	RecentTransactions []Transaction `json:"recent_transactions"`
}

// EventCode is a QR code displayed at the venue during an event; customers scan it with the app to
// earn points. At most one code is active at a time.
type EventCode struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	Code       string    `json:"qr_code"`
	Points     int       `json:"points_value"`
	IsActive   bool      `json:"is_active"`
	ScansCount int       `json:"scans_count"`
	CreatedAt  time.Time `json:"created_at"`
	CreatedBy  string    `json:"created_by"`
}

type NewEventCode struct {
	EventID string `json:"event_id" validate:"required"`
	Points  int    `json:"points_value" validate:"min=0,max=100"`
}

func (nc *NewEventCode) Validate(validate *validator.Validate) error {
	nc.EventID = core.CleanString(nc.EventID)
	return validate.Struct(nc)
}

// EventScan records that a user scanned an event code.
type EventScan struct {
	ID           string    `json:"id"`
	CodeID       string    `json:"qr_id"`
	UserID       string    `json:"user_id"`
	EventID      string    `json:"event_id"`
	EventName    string    `json:"event_name"`
	PointsEarned int       `json:"points_earned"`
	ScannedAt    time.Time `json:"scanned_at"`
}

type EventScanRequest struct {
	Code string `json:"qr_code" validate:"required"`
}

func (sr *EventScanRequest) Validate(validate *validator.Validate) error {
	sr.Code = core.CleanString(sr.Code)
	return validate.Struct(sr)
}

type EventScanResult struct {
	PointsEarned int    `json:"points_earned"`
	TotalPoints  int    `json:"total_points"`
	EventName    string `json:"event_name"`
	Message      string `json:"message"`
}
