// Package loyalty credits points to the customers checking in at the door and turns them into rewards.
package loyalty

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/settings"
	"github.com/invasionlatina/backend/core/user"
)

const recentTransactions = 10

var (
	// errors
	ErrVersionMismatch    = core.NewConflictError("QR code expiré! Demandez à l'utilisateur de régénérer son QR code dans l'app.")
	ErrAlreadyCheckedIn   = core.NewConflictError("Déjà enregistré pour cet événement")
	ErrInsufficientPoints = core.NewConflictError("Points insuffisants pour une récompense")
	ErrActiveReward       = core.NewConflictError("Tu as déjà une entrée gratuite active")
	ErrCheckinNotFound    = core.NewNotFoundError("Check-in non trouvé")
	ErrRewardNotFound     = core.NewNotFoundError("Code non trouvé")
	ErrRewardRedeemed     = core.NewConflictError("Ce code a déjà été utilisé")
	ErrRewardExpired      = core.NewConflictError("Ce code a expiré")
	ErrEventCodeNotFound  = core.NewNotFoundError("QR code invalide")
	ErrEventCodeInactive  = core.NewConflictError("Ce QR code n'est plus actif")
	ErrAlreadyScanned     = core.NewConflictError("Tu as déjà scanné ce QR code. Un seul scan par soirée !")
)

type (
	Repository interface {
		// RecordCheckin stores c, credits c.PointsEarned to the user and records tx, all in one
		// transaction. It returns the new points balance of the user.
		// Fails with ErrVersionMismatch when c.QRVersion is not the current QR version at the time of
		// the write, and with ErrAlreadyCheckedIn when (user, event, QR version) is already recorded.
		RecordCheckin(ctx context.Context, c Checkin, tx Transaction) (int, error)
		// ResetCheckin deletes the check-ins of userID at eventID and takes their points back.
		// tx is recorded with minus the removed points, which are returned.
		// Fails with ErrCheckinNotFound.
		ResetCheckin(ctx context.Context, userID, eventID string, tx Transaction) (int, error)
		CountCheckins(ctx context.Context, userID string) (int, error)
		// QueryTransactions returns the latest transactions of userID, newest first.
		QueryTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error)
		// ClaimReward debits r.PointsSpent from the user when the balance allows it, stores r
		// and records tx, all in one transaction. It returns the remaining balance.
		// Fails with ErrInsufficientPoints, or ErrActiveReward when the user still holds a reward
		// usable at r.CreatedAt.
		ClaimReward(ctx context.Context, r Reward, tx Transaction) (int, error)
		// RedeemReward marks the reward with code redeemed by "by", provided it is active and not
		// expired at now. Fails with ErrRewardNotFound, ErrRewardRedeemed or ErrRewardExpired.
		RedeemReward(ctx context.Context, code string, now time.Time, by string) (Reward, error)
		// QueryRewards returns the rewards of userID, newest first.
		QueryRewards(ctx context.Context, userID string) ([]Reward, error)
		// ExpireRewards marks the active rewards expired before now. It returns how many changed.
		ExpireRewards(ctx context.Context, now time.Time) (int, error)

		// CreateEventCode deactivates every active event code and stores c as the active one.
		CreateEventCode(ctx context.Context, c EventCode) (EventCode, error)
		// GetActiveEventCode fails with ErrEventCodeNotFound when no code is active.
		GetActiveEventCode(ctx context.Context) (EventCode, error)
		// ToggleEventCode flips the active flag of the code; activating it deactivates the others.
		ToggleEventCode(ctx context.Context, id string) (EventCode, error)
		// QueryEventCodes returns the latest event codes, newest first.
		QueryEventCodes(ctx context.Context, limit int) ([]EventCode, error)
		// RecordEventScan credits the points of the active event code to s.UserID, increments the
		// scans count of the code, stores s and records tx, all in one transaction. The code fields of
		// s and the points of tx are filled from the code. It returns the stored scan and the new
		// balance of the user.
		// Fails with ErrEventCodeNotFound, ErrEventCodeInactive or ErrAlreadyScanned.
		RecordEventScan(ctx context.Context, code string, s EventScan, tx Transaction) (EventScan, int, error)
		// QueryEventScans returns the latest scans of userID, newest first.
		QueryEventScans(ctx context.Context, userID string, limit int) ([]EventScan, error)
	}

	SettingsReader interface {
		Get(ctx context.Context) (settings.Settings, error)
	}

	EventResolver interface {
		Get(ctx context.Context, id string) (event.Event, error)
		CurrentID(ctx context.Context, preferred string) (string, error)
	}

	UserStore interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Options struct {
		CheckinPoints   int
		RewardThreshold int
		RewardValidity  time.Duration
	}

	Service struct {
		repo     Repository
		settings SettingsReader
		events   EventResolver
		users    UserStore
		pushSvc  core.PushService
		mailSvc  core.EmailService
		opts     Options
	}
)

// OptionsFromConfig reads the loyalty programme rules from conf.
func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		CheckinPoints:   conf.Loyalty.CheckinPoints,
		RewardThreshold: conf.Loyalty.RewardThreshold,
		RewardValidity:  conf.Loyalty.RewardValidity,
	}
}

func NewService(
	repo Repository,
	settingsSvc SettingsReader,
	events EventResolver,
	users UserStore,
	pushSvc core.PushService,
	mailSvc core.EmailService,
	opts Options,
) *Service {
	return &Service{
		repo:     repo,
		settings: settingsSvc,
		events:   events,
		users:    users,
		pushSvc:  pushSvc,
		mailSvc:  mailSvc,
		opts:     opts,
	}
}

// IssueCheckinCode returns the QR code content to show at the door, bound to the current QR version.
func (svc *Service) IssueCheckinCode(ctx context.Context, userID string) (CheckinCode, error) {
	conf, err := svc.settings.Get(ctx)
	if err != nil {
		return CheckinCode{}, errors.Wrap(err, "getting settings")
	}
	payload, err := EncodePayload(Payload{
		Type:     PayloadType,
		UserID:   userID,
		Version:  conf.QRVersion,
		IssuedAt: core.NowFunc(),
	})
	if err != nil {
		return CheckinCode{}, err
	}
	return CheckinCode{Payload: payload, Version: conf.QRVersion}, nil
}

// Scan checks a customer in from the content of their QR code.
func (svc *Service) Scan(ctx context.Context, sr ScanRequest, scannerID string) (ScanResult, error) {
	p, err := ParsePayload(sr.Payload)
	if err != nil {
		return ScanResult{}, err
	}

	conf, err := svc.settings.Get(ctx)
	if err != nil {
		return ScanResult{}, errors.Wrap(err, "getting settings")
	}
	// early rejection; RecordCheckin checks the version again atomically with the write
	if p.Version != conf.QRVersion {
		return ScanResult{}, ErrVersionMismatch
	}

	usr, err := svc.users.GetByID(ctx, p.UserID)
	if err != nil {
		return ScanResult{}, err
	}

	eventID := sr.EventID
	if eventID == "" {
		if eventID, err = svc.events.CurrentID(ctx, conf.CurrentEventID); err != nil {
			return ScanResult{}, errors.Wrap(err, "resolving current event")
		}
	}

	now := core.NowFunc()
	points := svc.opts.CheckinPoints
	total, err := svc.repo.RecordCheckin(ctx,
		Checkin{
			ID:           uuid.New().String(),
			UserID:       usr.ID,
			EventID:      eventID,
			QRVersion:    p.Version,
			PointsEarned: points,
			CheckedInAt:  now,
			CheckedInBy:  scannerID,
		},
		Transaction{
			ID:          uuid.New().String(),
			UserID:      usr.ID,
			Points:      points,
			Kind:        KindCheckin,
			Description: "Check-in événement",
			CreatedAt:   now,
		},
	)
	if err != nil {
		return ScanResult{}, err
	}

	if core.IsPushToken(usr.PushToken) {
		svc.pushSvc.Push(&core.PushMessage{
			To:    []string{usr.PushToken},
			Title: "Check-in réussi! 🎉",
			Body:  fmt.Sprintf("+%d points! Tu as maintenant %d points.", points, total),
			Sound: "default",
			Data:  map[string]interface{}{"type": "loyalty_checkin", "points": total},
		})
	}

	return ScanResult{
		UserID:       usr.ID,
		UserName:     usr.Name,
		EventID:      eventID,
		PointsEarned: points,
		TotalPoints:  total,
		Message:      fmt.Sprintf("%s: +%d points (total %d)", usr.Name, points, total),
	}, nil
}

// Summary reports the points of userID and the progress toward the next reward.
func (svc *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	checkins, err := svc.repo.CountCheckins(ctx, userID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting check-ins")
	}
	txs, err := svc.repo.QueryTransactions(ctx, userID, recentTransactions)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying transactions")
	}
	rewards, err := svc.repo.QueryRewards(ctx, userID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying rewards")
	}

	threshold := svc.opts.RewardThreshold
	s := Summary{
		Points:             usr.LoyaltyPoints,
		Checkins:           checkins,
		RewardThreshold:    threshold,
		CanClaim:           threshold > 0 && usr.LoyaltyPoints >= threshold,
		RewardsEarned:      len(rewards),
		RecentTransactions: txs,
	}
	if threshold > 0 {
		s.Progress = usr.LoyaltyPoints % threshold
		if s.CanClaim {
			s.PointsNeeded = 0
		} else {
			s.PointsNeeded = threshold - usr.LoyaltyPoints
		}
	}
	return s, nil
}

// ClaimReward trades RewardThreshold points for a free entry and emails its code.
func (svc *Service) ClaimReward(ctx context.Context, userID string) (Reward, error) {
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return Reward{}, err
	}
	if usr.LoyaltyPoints < svc.opts.RewardThreshold {
		return Reward{}, ErrInsufficientPoints
	}

	now := core.NowFunc()
	r := Reward{
		ID:          uuid.New().String(),
		UserID:      usr.ID,
		Kind:        RewardFreeEntry,
		Code:        NewRewardCode(),
		PointsSpent: svc.opts.RewardThreshold,
		Status:      RewardActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(svc.opts.RewardValidity),
	}
	remaining, err := svc.repo.ClaimReward(ctx, r, Transaction{
		ID:          uuid.New().String(),
		UserID:      usr.ID,
		Points:      -r.PointsSpent,
		Kind:        KindReward,
		Description: "Entrée gratuite",
		CreatedAt:   now,
	})
	if err != nil {
		return Reward{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Ta récompense Invasion Latina",
		TemplateName: "reward",
		TemplateData: map[string]interface{}{
			"Name":      usr.Name,
			"Points":    r.PointsSpent,
			"Balance":   remaining,
			"Code":      r.Code,
			"ExpiresAt": r.ExpiresAt.Format("02/01/2006"),
		},
	})
	return r, nil
}

func (svc *Service) Rewards(ctx context.Context, userID string) ([]Reward, error) {
	return svc.repo.QueryRewards(ctx, userID)
}

// ActiveReward reports the free entry userID can still use, if any.
func (svc *Service) ActiveReward(ctx context.Context, userID string) (ActiveReward, error) {
	rewards, err := svc.repo.QueryRewards(ctx, userID)
	if err != nil {
		return ActiveReward{}, errors.Wrap(err, "querying rewards")
	}
	now := core.NowFunc()
	for i := range rewards {
		if rewards[i].IsUsable(now) {
			return ActiveReward{HasVoucher: true, Voucher: &rewards[i]}, nil
		}
	}
	return ActiveReward{}, nil
}

// RedeemReward lets the door staff accept a reward code. A code can only be redeemed once.
func (svc *Service) RedeemReward(ctx context.Context, code, scannerID string) (RedeemResult, error) {
	r, err := svc.repo.RedeemReward(ctx, code, core.NowFunc(), scannerID)
	if err != nil {
		return RedeemResult{}, err
	}
	res := RedeemResult{Reward: r, UserName: "Client", Message: "Entrée gratuite validée!"}
	if usr, err := svc.users.GetByID(ctx, r.UserID); err == nil {
		res.UserName, res.UserEmail = usr.Name, usr.Email
	} else if !core.IsNotFound(err) {
		return RedeemResult{}, errors.Wrap(err, "getting reward owner")
	}
	return res, nil
}

// ResetCheckin lets an admin undo a check-in made by mistake.
func (svc *Service) ResetCheckin(ctx context.Context, userID, eventID string) (int, error) {
	return svc.repo.ResetCheckin(ctx, userID, eventID, Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Kind:        KindAdjustment,
		Description: "Check-in annulé",
		CreatedAt:   core.NowFunc(),
	})
}

func (svc *Service) ExpireRewards(ctx context.Context) (int, error) {
	return svc.repo.ExpireRewards(ctx, core.NowFunc())
}

// NewRewardCode returns a code such as IL-3F9A0C2B.
func NewRewardCode() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "IL-" + strings.ToUpper(id[:8])
}
