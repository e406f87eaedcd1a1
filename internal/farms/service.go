package farms

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/activity"
	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/metrics"
	"github.com/leozw/farm-guardian/internal/stats"
)

// MaxPredictionRate caps the prediction rate reported by SetPredictionRate.
const MaxPredictionRate = 98.0

// DefaultPredictionSettings apply when a farm is created without any.
var DefaultPredictionSettings = db.PredictionSettings{
	Strategy:  db.StrategyPercentage,
	MaxPoints: 5000,
}

type CreateAccountInput struct {
	Name     string      `json:"name"`
	Username string      `json:"username"`
	AuthType db.AuthType `json:"authType"`
	AuthData string      `json:"authData"`
	Remember bool        `json:"remember"`
}

type CreateFarmInput struct {
	AccountID          int64                 `json:"accountId"`
	ChannelName        string                `json:"channelName"`
	ChannelID          string                `json:"channelId"`
	ProfileImage       string                `json:"profileImage"`
	Features           db.Features           `json:"features"`
	PredictionSettings db.PredictionSettings `json:"predictionSettings"`
}

// PredictionRecord is a decision reported back by whatever placed (or
// skipped) the bet.
type PredictionRecord struct {
	PredictionID string      `json:"predictionId"`
	Title        string      `json:"title"`
	Strategy     db.Strategy `json:"strategy"`
	OutcomeID    string      `json:"outcomeId"`
	OutcomeTitle string      `json:"outcomeTitle"`
	Bet          int64       `json:"bet"`
	Payout       int64       `json:"payout"`
	NoBet        bool        `json:"noBet"`
}

// Service sequences every multi-step change to accounts and farms so the
// store, the activity log and the stats snapshot stay consistent.
type Service struct {
	repo    *db.Repository
	sink    *activity.Sink
	stats   *stats.Aggregator
	logger  *zap.Logger
	metrics *metrics.Collector

	mu sync.Mutex
}

func NewService(repo *db.Repository, sink *activity.Sink, stats *stats.Aggregator, logger *zap.Logger, metrics *metrics.Collector) *Service {
	return &Service{
		repo:    repo,
		sink:    sink,
		stats:   stats,
		logger:  logger,
		metrics: metrics,
	}
}

// Accounts

func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (db.Account, error) {
	if strings.TrimSpace(in.Name) == "" {
		return db.Account{}, &db.ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if in.AuthType == "" {
		in.AuthType = db.AuthTypeCookie
	}
	if in.AuthType != db.AuthTypeCookie && in.AuthType != db.AuthTypeOAuth {
		return db.Account{}, &db.ValidationError{Field: "authType", Reason: fmt.Sprintf("unknown auth type %q", in.AuthType)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.repo.CreateAccount(db.Account{
		Name:     in.Name,
		Username: in.Username,
		AuthType: in.AuthType,
		AuthData: in.AuthData,
		Remember: in.Remember,
		Active:   true,
	})
	s.metrics.RecordLifecycle("account_created")
	s.logger.Info("Account created", zap.Int64("account_id", account.ID), zap.String("name", account.Name))
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, id int64) (db.Account, error) {
	account, ok := s.repo.GetAccount(id)
	if !ok {
		return db.Account{}, &db.NotFoundError{Kind: db.KindAccount, ID: id}
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) []db.Account {
	return s.repo.ListAccounts()
}

func (s *Service) SetAccountActive(ctx context.Context, id int64, active bool) (db.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.repo.UpdateAccount(id, db.AccountPatch{Active: &active})
	if !ok {
		return db.Account{}, &db.NotFoundError{Kind: db.KindAccount, ID: id}
	}
	return account, nil
}

// DeleteAccount removes every farm owned by the account, each through the
// regular farm deletion path, and then the account itself.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repo.GetAccount(id); !ok {
		return &db.NotFoundError{Kind: db.KindAccount, ID: id}
	}

	owned := s.repo.ListFarmsByAccount(id)
	farmIDs := make([]int64, 0, len(owned))
	for _, f := range owned {
		farmIDs = append(farmIDs, f.ID)
	}

	for _, farmID := range farmIDs {
		if err := s.deleteFarm(ctx, farmID); err != nil {
			return fmt.Errorf("failed to delete farm %d of account %d: %w", farmID, id, err)
		}
	}

	s.repo.DeleteAccount(id)
	s.metrics.RecordLifecycle("account_deleted")
	s.logger.Info("Account deleted", zap.Int64("account_id", id), zap.Int("farms_removed", len(farmIDs)))
	return nil
}

// Farms

func (s *Service) GetFarm(ctx context.Context, id int64) (db.Farm, error) {
	farm, ok := s.repo.GetFarm(id)
	if !ok {
		return db.Farm{}, &db.NotFoundError{Kind: db.KindFarm, ID: id}
	}
	return farm, nil
}

func (s *Service) ListFarms(ctx context.Context) []db.Farm {
	return s.repo.ListFarms()
}

func (s *Service) ListFarmsByAccount(ctx context.Context, accountID int64) ([]db.Farm, error) {
	if _, ok := s.repo.GetAccount(accountID); !ok {
		return nil, &db.NotFoundError{Kind: db.KindAccount, ID: accountID}
	}
	return s.repo.ListFarmsByAccount(accountID), nil
}

func (s *Service) CreateFarm(ctx context.Context, in CreateFarmInput) (db.Farm, error) {
	if strings.TrimSpace(in.ChannelName) == "" {
		return db.Farm{}, &db.ValidationError{Field: "channelName", Reason: "must not be blank"}
	}
	settings := in.PredictionSettings
	if settings == (db.PredictionSettings{}) {
		settings = DefaultPredictionSettings
	}
	if err := validateSettings(settings); err != nil {
		return db.Farm{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.repo.GetAccount(in.AccountID)
	if !ok {
		return db.Farm{}, &db.ValidationError{
			Field:  "accountId",
			Reason: fmt.Sprintf("account %d does not exist", in.AccountID),
		}
	}

	farm := s.repo.CreateFarm(db.Farm{
		AccountID:          account.ID,
		ChannelName:        in.ChannelName,
		ChannelID:          in.ChannelID,
		ProfileImage:       in.ProfileImage,
		Status:             db.FarmStatusActive,
		Enabled:            true,
		Features:           in.Features,
		PredictionSettings: settings,
		LastActivity:       s.repo.Now(),
	})

	s.sink.Append(ctx, activity.Entry{
		AccountID:   account.ID,
		AccountName: account.Name,
		ChannelID:   farm.ChannelID,
		ChannelName: farm.ChannelName,
		Event:       fmt.Sprintf("Started farming %s", farm.ChannelName),
		Status:      db.LogStatusInfo,
		Details:     "Features: " + describeFeatures(farm.Features),
	})
	s.stats.IncrementActiveFarms(1)
	s.metrics.RecordLifecycle("farm_created")

	s.logger.Info("Farm created",
		zap.Int64("farm_id", farm.ID),
		zap.Int64("account_id", account.ID),
		zap.String("channel", farm.ChannelName))
	return farm, nil
}

// UpdateFarm merges the patch without writing an activity log.
func (s *Service) UpdateFarm(ctx context.Context, id int64, patch db.FarmPatch) (db.Farm, error) {
	if err := validatePatch(patch); err != nil {
		return db.Farm{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	farm, ok := s.repo.UpdateFarm(id, patch)
	if !ok {
		return db.Farm{}, &db.NotFoundError{Kind: db.KindFarm, ID: id}
	}
	return farm, nil
}

// SetStatus writes whatever status an external monitor reports. No
// transition rules are applied.
func (s *Service) SetStatus(ctx context.Context, id int64, status db.FarmStatus) (db.Farm, error) {
	if !status.Valid() {
		return db.Farm{}, &db.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	farm, ok := s.repo.UpdateFarm(id, db.FarmPatch{Status: &status})
	if !ok {
		return db.Farm{}, &db.NotFoundError{Kind: db.KindFarm, ID: id}
	}
	return farm, nil
}

func (s *Service) DeleteFarm(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteFarm(ctx, id)
}

// deleteFarm expects s.mu to be held.
func (s *Service) deleteFarm(ctx context.Context, id int64) error {
	farm, ok := s.repo.GetFarm(id)
	if !ok {
		return &db.NotFoundError{Kind: db.KindFarm, ID: id}
	}
	// Snapshot the owner before anything is removed; the log must describe
	// the farm as it was.
	account, _ := s.repo.GetAccount(farm.AccountID)

	s.repo.DeleteFarm(id)

	s.sink.Append(ctx, activity.Entry{
		AccountID:   farm.AccountID,
		AccountName: account.Name,
		ChannelID:   farm.ChannelID,
		ChannelName: farm.ChannelName,
		Event:       fmt.Sprintf("Stopped farming %s", farm.ChannelName),
		Status:      db.LogStatusInfo,
		Details:     fmt.Sprintf("Claimed %d points over %s of watch time", farm.PointsClaimed, formatSeconds(farm.WatchTime)),
	})
	s.stats.IncrementActiveFarms(-1)
	s.metrics.RecordLifecycle("farm_deleted")

	s.logger.Info("Farm deleted",
		zap.Int64("farm_id", farm.ID),
		zap.Int64("account_id", farm.AccountID),
		zap.String("channel", farm.ChannelName))
	return nil
}

// Activity

func (s *Service) ClaimPoints(ctx context.Context, id int64, points int64) (db.Farm, error) {
	if points <= 0 {
		return db.Farm{}, &db.ValidationError{Field: "points", Reason: "must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	farm, ok := s.repo.GetFarm(id)
	if !ok {
		return db.Farm{}, &db.NotFoundError{Kind: db.KindFarm, ID: id}
	}

	total := farm.PointsClaimed + points
	now := s.repo.Now()
	farm, _ = s.repo.UpdateFarm(id, db.FarmPatch{PointsClaimed: &total, LastActivity: &now})
	s.stats.AddPointsClaimed(points)

	account, _ := s.repo.GetAccount(farm.AccountID)
	s.sink.Append(ctx, activity.Entry{
		AccountID:   farm.AccountID,
		AccountName: account.Name,
		ChannelID:   farm.ChannelID,
		ChannelName: farm.ChannelName,
		Event:       fmt.Sprintf("Claimed %d channel points", points),
		Status:      db.LogStatusSuccess,
	})
	s.metrics.RecordLifecycle("points_claimed")
	return farm, nil
}

// AccrueWatchTime adds watched seconds to the farm and the running watch
// hours. It does not log.
func (s *Service) AccrueWatchTime(ctx context.Context, id int64, seconds int64) (db.Farm, error) {
	if seconds <= 0 {
		return db.Farm{}, &db.ValidationError{Field: "seconds", Reason: "must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	farm, ok := s.repo.GetFarm(id)
	if !ok {
		return db.Farm{}, &db.NotFoundError{Kind: db.KindFarm, ID: id}
	}

	watch := farm.WatchTime + seconds
	uptime := farm.Uptime + seconds
	now := s.repo.Now()
	farm, _ = s.repo.UpdateFarm(id, db.FarmPatch{WatchTime: &watch, Uptime: &uptime, LastActivity: &now})
	s.stats.AddWatchHours(float64(seconds) / 3600)
	return farm, nil
}

func (s *Service) RecordPrediction(ctx context.Context, id int64, rec PredictionRecord) (db.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	farm, ok := s.repo.GetFarm(id)
	if !ok {
		return db.Log{}, &db.NotFoundError{Kind: db.KindFarm, ID: id}
	}
	account, _ := s.repo.GetAccount(farm.AccountID)

	now := s.repo.Now()
	s.repo.UpdateFarm(id, db.FarmPatch{LastActivity: &now})

	entry := activity.Entry{
		AccountID:   farm.AccountID,
		AccountName: account.Name,
		ChannelID:   farm.ChannelID,
		ChannelName: farm.ChannelName,
	}
	if rec.NoBet {
		entry.Event = "Skipped prediction"
		entry.Status = db.LogStatusInfo
		entry.Details = fmt.Sprintf("%s: no outcome matched the %s strategy", predictionLabel(rec), rec.Strategy)
	} else {
		outcome := rec.OutcomeTitle
		if outcome == "" {
			outcome = rec.OutcomeID
		}
		entry.Event = fmt.Sprintf("Placed %d points on %s", rec.Bet, outcome)
		entry.Status = db.LogStatusSuccess
		entry.Details = fmt.Sprintf("%s: estimated payout %d", predictionLabel(rec), rec.Payout)
	}

	log := s.sink.Append(ctx, entry)
	s.metrics.RecordLifecycle("prediction_recorded")
	return log, nil
}

// SetPredictionRate clamps rate to [0, MaxPredictionRate] before storing it.
func (s *Service) SetPredictionRate(ctx context.Context, rate float64) db.Stat {
	if rate < 0 {
		rate = 0
	}
	if rate > MaxPredictionRate {
		rate = MaxPredictionRate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Merge(db.StatPatch{PredictionRate: &rate})
}

func (s *Service) Stats(ctx context.Context) db.Stat {
	return s.stats.Current()
}

func validateSettings(p db.PredictionSettings) error {
	if !p.Strategy.Valid() {
		return &db.ValidationError{Field: "predictionSettings.strategy", Reason: fmt.Sprintf("unknown strategy %q", p.Strategy)}
	}
	if p.MaxPoints < db.MinPredictionPoints {
		return &db.ValidationError{
			Field:  "predictionSettings.maxPoints",
			Reason: fmt.Sprintf("must be at least %d", db.MinPredictionPoints),
		}
	}
	return nil
}

func validatePatch(p db.FarmPatch) error {
	if p.ChannelName != nil && strings.TrimSpace(*p.ChannelName) == "" {
		return &db.ValidationError{Field: "channelName", Reason: "must not be blank"}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &db.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *p.Status)}
	}
	if p.PredictionSettings != nil {
		return validateSettings(*p.PredictionSettings)
	}
	return nil
}

func describeFeatures(f db.Features) string {
	var enabled []string
	if f.ClaimPoints {
		enabled = append(enabled, "claim points")
	}
	if f.WatchTime {
		enabled = append(enabled, "watch time")
	}
	if f.Predictions {
		enabled = append(enabled, "predictions")
	}
	if f.ClaimDrops {
		enabled = append(enabled, "claim drops")
	}
	if len(enabled) == 0 {
		return "none"
	}
	return strings.Join(enabled, ", ")
}

func predictionLabel(rec PredictionRecord) string {
	if rec.Title != "" {
		return rec.Title
	}
	if rec.PredictionID != "" {
		return "prediction " + rec.PredictionID
	}
	return "prediction"
}

func formatSeconds(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	return fmt.Sprintf("%dh%02dm", h, m)
}
