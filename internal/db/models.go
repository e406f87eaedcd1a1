package db

import (
	"time"
)

type AuthType string

const (
	AuthTypeCookie AuthType = "cookie"
	AuthTypeOAuth  AuthType = "oauth"
)

type FarmStatus string

const (
	FarmStatusActive  FarmStatus = "active"
	FarmStatusWarning FarmStatus = "warning"
	FarmStatusError   FarmStatus = "error"
	FarmStatusOffline FarmStatus = "offline"
)

func (s FarmStatus) Valid() bool {
	switch s {
	case FarmStatusActive, FarmStatusWarning, FarmStatusError, FarmStatusOffline:
		return true
	}
	return false
}

type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusWarning LogStatus = "warning"
	LogStatusError   LogStatus = "error"
	LogStatusInfo    LogStatus = "info"
)

type Strategy string

const (
	StrategyRandom     Strategy = "random"
	StrategyMajority   Strategy = "majority"
	StrategyPercentage Strategy = "percentage"
	StrategyCustom     Strategy = "custom"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyRandom, StrategyMajority, StrategyPercentage, StrategyCustom:
		return true
	}
	return false
}

// MinPredictionPoints is the smallest MaxPoints a farm may be configured with.
const MinPredictionPoints = 100

type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	AuthType  AuthType  `json:"authType"`
	AuthData  string    `json:"-"`
	Remember  bool      `json:"remember"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type Features struct {
	ClaimPoints bool `json:"claimPoints"`
	WatchTime   bool `json:"watchTime"`
	Predictions bool `json:"predictions"`
	ClaimDrops  bool `json:"claimDrops"`
}

type PredictionSettings struct {
	Strategy          Strategy `json:"strategy"`
	MaxPoints         int64    `json:"maxPoints"`
	FavorableOddsOnly bool     `json:"favorableOddsOnly"`
}

type Farm struct {
	ID                 int64              `json:"id"`
	AccountID          int64              `json:"accountId"`
	ChannelName        string             `json:"channelName"`
	ChannelID          string             `json:"channelId,omitempty"`
	ProfileImage       string             `json:"profileImage,omitempty"`
	Status             FarmStatus         `json:"status"`
	Uptime             int64              `json:"uptime"`
	PointsClaimed      int64              `json:"pointsClaimed"`
	WatchTime          int64              `json:"watchTime"`
	Enabled            bool               `json:"enabled"`
	Features           Features           `json:"features"`
	PredictionSettings PredictionSettings `json:"predictionSettings"`
	LastActivity       time.Time          `json:"lastActivity"`
}

type Log struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"timestamp"`
	AccountID   int64     `json:"accountId"`
	AccountName string    `json:"accountName"`
	ChannelID   string    `json:"channelId,omitempty"`
	ChannelName string    `json:"channelName"`
	Event       string    `json:"event"`
	Status      LogStatus `json:"status"`
	Details     string    `json:"details,omitempty"`
}

// Stat is the single running snapshot of farm activity.
type Stat struct {
	ActiveFarms    int64   `json:"activeFarms"`
	PointsClaimed  int64   `json:"pointsClaimed"`
	WatchHours     float64 `json:"watchHours"`
	PredictionRate float64 `json:"predictionRate"`
}

// Patch types carry only the mutable fields of each entity. A nil field is
// left untouched by the store.

type AccountPatch struct {
	Name     *string   `json:"name,omitempty"`
	Username *string   `json:"username,omitempty"`
	AuthType *AuthType `json:"authType,omitempty"`
	AuthData *string   `json:"authData,omitempty"`
	Remember *bool     `json:"remember,omitempty"`
	Active   *bool     `json:"active,omitempty"`
}

func (p AccountPatch) apply(a *Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.AuthType != nil {
		a.AuthType = *p.AuthType
	}
	if p.AuthData != nil {
		a.AuthData = *p.AuthData
	}
	if p.Remember != nil {
		a.Remember = *p.Remember
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
}

type FarmPatch struct {
	ChannelName        *string             `json:"channelName,omitempty"`
	ChannelID          *string             `json:"channelId,omitempty"`
	ProfileImage       *string             `json:"profileImage,omitempty"`
	Status             *FarmStatus         `json:"status,omitempty"`
	Uptime             *int64              `json:"uptime,omitempty"`
	PointsClaimed      *int64              `json:"pointsClaimed,omitempty"`
	WatchTime          *int64              `json:"watchTime,omitempty"`
	Enabled            *bool               `json:"enabled,omitempty"`
	Features           *Features           `json:"features,omitempty"`
	PredictionSettings *PredictionSettings `json:"predictionSettings,omitempty"`
	LastActivity       *time.Time          `json:"lastActivity,omitempty"`
}

func (p FarmPatch) apply(f *Farm) {
	if p.ChannelName != nil {
		f.ChannelName = *p.ChannelName
	}
	if p.ChannelID != nil {
		f.ChannelID = *p.ChannelID
	}
	if p.ProfileImage != nil {
		f.ProfileImage = *p.ProfileImage
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Uptime != nil {
		f.Uptime = *p.Uptime
	}
	if p.PointsClaimed != nil {
		f.PointsClaimed = *p.PointsClaimed
	}
	if p.WatchTime != nil {
		f.WatchTime = *p.WatchTime
	}
	if p.Enabled != nil {
		f.Enabled = *p.Enabled
	}
	if p.Features != nil {
		f.Features = *p.Features
	}
	if p.PredictionSettings != nil {
		f.PredictionSettings = *p.PredictionSettings
	}
	if p.LastActivity != nil {
		f.LastActivity = *p.LastActivity
	}
}

// StatPatch covers the freely writable stat fields. ActiveFarms is absent:
// it tracks the farm count and only moves through AdjustStat.
type StatPatch struct {
	PointsClaimed  *int64   `json:"pointsClaimed,omitempty"`
	WatchHours     *float64 `json:"watchHours,omitempty"`
	PredictionRate *float64 `json:"predictionRate,omitempty"`
}

func (p StatPatch) apply(s *Stat) {
	if p.PointsClaimed != nil {
		s.PointsClaimed = *p.PointsClaimed
	}
	if p.WatchHours != nil {
		s.WatchHours = *p.WatchHours
	}
	if p.PredictionRate != nil {
		s.PredictionRate = *p.PredictionRate
	}
}
