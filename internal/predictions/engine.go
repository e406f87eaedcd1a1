// Package predictions picks a wager outcome for an open channel prediction
// and estimates its payout. Nothing here touches the store.
package predictions

import (
	"math"
	"math/rand/v2"

	"github.com/leozw/farm-guardian/internal/db"
)

type Outcome struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	TotalPoints int64  `json:"totalPoints" binding:"min=0"`
	TotalUsers  int64  `json:"totalUsers" binding:"min=0"`
}

type Prediction struct {
	ID       string    `json:"id,omitempty"`
	Title    string    `json:"title,omitempty"`
	Outcomes []Outcome `json:"outcomes" binding:"dive"`
}

// RandomSource yields a uniform integer in [0, n).
type RandomSource interface {
	Intn(n int) int
}

type defaultSource struct{}

func (defaultSource) Intn(n int) int { return rand.IntN(n) }

type Engine struct {
	rand RandomSource
}

// NewEngine returns an engine drawing from src. A nil src uses math/rand/v2.
func NewEngine(src RandomSource) *Engine {
	if src == nil {
		src = defaultSource{}
	}
	return &Engine{rand: src}
}

// ChooseOutcome returns the outcome id to bet on. ok is false when the
// strategy declines to bet.
func (e *Engine) ChooseOutcome(p Prediction, strategy db.Strategy, favorableOddsOnly bool) (outcomeID string, ok bool) {
	if len(p.Outcomes) == 0 {
		return "", false
	}

	switch strategy {
	case db.StrategyRandom:
		return p.Outcomes[e.rand.Intn(len(p.Outcomes))].ID, true

	case db.StrategyMajority:
		best := 0
		for i, o := range p.Outcomes {
			if o.TotalUsers > p.Outcomes[best].TotalUsers {
				best = i
			}
		}
		return p.Outcomes[best].ID, true

	case db.StrategyPercentage:
		odds := Odds(p)
		best := 0
		for i := range odds {
			if odds[i] < odds[best] {
				best = i
			}
		}
		if favorableOddsOnly && odds[best] > 0.5 {
			return "", false
		}
		return p.Outcomes[best].ID, true

	case db.StrategyCustom:
		best := 0
		for i, o := range p.Outcomes {
			if o.TotalPoints < p.Outcomes[best].TotalPoints {
				best = i
			}
		}
		return p.Outcomes[best].ID, true
	}

	return "", false
}

// Odds returns each outcome's share of the total committed points. Every
// share is 0 when nothing has been committed yet or the pools do not add
// up to a positive total.
func Odds(p Prediction) []float64 {
	odds := make([]float64, len(p.Outcomes))
	var total int64
	for _, o := range p.Outcomes {
		total += o.TotalPoints
	}
	if total <= 0 {
		return odds
	}
	for i, o := range p.Outcomes {
		odds[i] = float64(o.TotalPoints) / float64(total)
	}
	return odds
}

// CalculatePayout approximates the pari-mutuel return of betting bet points
// on outcomeID: floor(other/(outcome+bet)*bet + bet).
func CalculatePayout(p Prediction, outcomeID string, bet int64) int64 {
	idx := -1
	for i, o := range p.Outcomes {
		if o.ID == outcomeID {
			idx = i
			break
		}
	}
	if idx < 0 || bet <= 0 {
		return 0
	}

	outcomePoints := p.Outcomes[idx].TotalPoints
	var otherPoints int64
	for i, o := range p.Outcomes {
		if i != idx {
			otherPoints += o.TotalPoints
		}
	}

	if outcomePoints+bet <= 0 {
		return 0
	}

	potentialReturn := float64(otherPoints) / float64(outcomePoints+bet) * float64(bet)
	return int64(math.Floor(potentialReturn + float64(bet)))
}

type Decision struct {
	PredictionID string      `json:"predictionId,omitempty"`
	Strategy     db.Strategy `json:"strategy"`
	OutcomeID    string      `json:"outcomeId,omitempty"`
	Bet          int64       `json:"bet"`
	Payout       int64       `json:"payout"`
	NoBet        bool        `json:"noBet"`
}

// Decide applies a farm's prediction settings to p. The wager is the farm's
// MaxPoints, reduced to balance when balance is positive and smaller.
func (e *Engine) Decide(p Prediction, settings db.PredictionSettings, balance int64) Decision {
	d := Decision{PredictionID: p.ID, Strategy: settings.Strategy}

	outcomeID, ok := e.ChooseOutcome(p, settings.Strategy, settings.FavorableOddsOnly)
	if !ok {
		d.NoBet = true
		return d
	}

	bet := settings.MaxPoints
	if balance > 0 && balance < bet {
		bet = balance
	}
	if bet <= 0 {
		d.NoBet = true
		return d
	}

	d.OutcomeID = outcomeID
	d.Bet = bet
	d.Payout = CalculatePayout(p, outcomeID, bet)
	return d
}
