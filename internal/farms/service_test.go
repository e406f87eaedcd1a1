package farms

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leozw/farm-guardian/internal/activity"
	"github.com/leozw/farm-guardian/internal/config"
	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/metrics"
	"github.com/leozw/farm-guardian/internal/stats"
)

type fixture struct {
	svc  *Service
	repo *db.Repository
	sink *activity.Sink
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := db.NewRepository()
	collector := metrics.NewCollector(config.MetricsConfig{})
	logger := zaptest.NewLogger(t)
	sink := activity.NewSink(repo, nil, collector, logger, config.ActivityConfig{}, 0)
	agg := stats.NewAggregator(repo, collector)
	return fixture{
		svc:  NewService(repo, sink, agg, logger, collector),
		repo: repo,
		sink: sink,
	}
}

var defaultSettings = db.PredictionSettings{Strategy: db.StrategyMajority, MaxPoints: 1000}

func (f fixture) account(t *testing.T, name string) db.Account {
	t.Helper()
	a, err := f.svc.CreateAccount(context.Background(), CreateAccountInput{Name: name, Username: name})
	require.NoError(t, err)
	return a
}

func (f fixture) farm(t *testing.T, accountID int64, channel string) db.Farm {
	t.Helper()
	farm, err := f.svc.CreateFarm(context.Background(), CreateFarmInput{
		AccountID:          accountID,
		ChannelName:        channel,
		Features:           db.Features{ClaimPoints: true, Predictions: true},
		PredictionSettings: defaultSettings,
	})
	require.NoError(t, err)
	return farm
}

func (f fixture) assertActiveFarmsMatchesStore(t *testing.T) {
	t.Helper()
	assert.Equal(t, int64(f.repo.CountFarms()), f.repo.GetStat().ActiveFarms)
}

func TestService_LifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.account(t, "main")
	require.Equal(t, int64(1), account.ID)

	farm := f.farm(t, account.ID, "foo")
	assert.Equal(t, int64(1), f.repo.GetStat().ActiveFarms)

	logs := f.repo.ListLogs()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Event, "Started")
	assert.Contains(t, logs[0].Event, "foo")
	assert.Equal(t, "main", logs[0].AccountName)
	assert.Equal(t, "Features: claim points, predictions", logs[0].Details)

	require.NoError(t, f.svc.DeleteFarm(ctx, farm.ID))
	assert.Equal(t, int64(0), f.repo.GetStat().ActiveFarms)

	logs = f.repo.ListLogs()
	require.Len(t, logs, 2)
	assert.Contains(t, logs[1].Event, "Stopped")
	assert.Equal(t, "foo", logs[1].ChannelName)
	assert.Equal(t, "main", logs[1].AccountName)
}

func TestService_CreateFarmDefaults(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "main")

	farm, err := f.svc.CreateFarm(context.Background(), CreateFarmInput{AccountID: account.ID, ChannelName: "foo"})
	require.NoError(t, err)

	assert.Equal(t, db.FarmStatusActive, farm.Status)
	assert.True(t, farm.Enabled)
	assert.Zero(t, farm.Uptime)
	assert.Zero(t, farm.PointsClaimed)
	assert.Zero(t, farm.WatchTime)
	assert.False(t, farm.LastActivity.IsZero())
	assert.Equal(t, DefaultPredictionSettings, farm.PredictionSettings)
	assert.Equal(t, "Features: none", f.repo.ListLogs()[0].Details)
}

func TestService_CreateFarmValidation(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "main")

	cases := []struct {
		name  string
		in    CreateFarmInput
		field string
	}{
		{"missing account", CreateFarmInput{AccountID: 42, ChannelName: "foo", PredictionSettings: defaultSettings}, "accountId"},
		{"blank channel", CreateFarmInput{AccountID: account.ID, ChannelName: "  ", PredictionSettings: defaultSettings}, "channelName"},
		{"max points below minimum", CreateFarmInput{AccountID: account.ID, ChannelName: "foo",
			PredictionSettings: db.PredictionSettings{Strategy: db.StrategyRandom, MaxPoints: 99}}, "predictionSettings.maxPoints"},
		{"unknown strategy", CreateFarmInput{AccountID: account.ID, ChannelName: "foo",
			PredictionSettings: db.PredictionSettings{Strategy: "yolo", MaxPoints: 500}}, "predictionSettings.strategy"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateFarm(context.Background(), tc.in)

			var verr *db.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	assert.Zero(t, f.repo.CountFarms())
	assert.Zero(t, f.repo.CountLogs())
	f.assertActiveFarmsMatchesStore(t)
}

func TestService_DeleteFarmNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.svc.DeleteFarm(context.Background(), 7)

	var nf *db.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, db.KindFarm, nf.Kind)
	assert.Equal(t, int64(7), nf.ID)
	assert.Zero(t, f.repo.GetStat().ActiveFarms)
}

func TestService_DeleteAccountCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.account(t, "owner")
	other := f.account(t, "other")
	f.farm(t, owner.ID, "foo")
	f.farm(t, owner.ID, "bar")
	f.farm(t, other.ID, "baz")
	f.farm(t, owner.ID, "qux")
	f.assertActiveFarmsMatchesStore(t)

	require.NoError(t, f.svc.DeleteAccount(ctx, owner.ID))

	_, ok := f.repo.GetAccount(owner.ID)
	assert.False(t, ok)
	for _, farm := range f.repo.ListFarms() {
		assert.NotEqual(t, owner.ID, farm.AccountID)
	}
	assert.Len(t, f.repo.ListFarms(), 1)
	f.assertActiveFarmsMatchesStore(t)

	stops := 0
	for _, l := range f.repo.ListLogs() {
		if l.AccountID == owner.ID && strings.HasPrefix(l.Event, "Stopped") {
			stops++
			assert.Equal(t, "owner", l.AccountName)
		}
	}
	assert.Equal(t, 3, stops)

	err := f.svc.DeleteAccount(ctx, owner.ID)
	var nf *db.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, db.KindAccount, nf.Kind)
}

func TestService_ActiveFarmsInvariantAcrossOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.account(t, "a")
	b := f.account(t, "b")
	ids := []int64{}
	for _, ch := range []string{"one", "two", "three"} {
		ids = append(ids, f.farm(t, a.ID, ch).ID)
		f.assertActiveFarmsMatchesStore(t)
	}
	f.farm(t, b.ID, "four")
	f.assertActiveFarmsMatchesStore(t)

	require.NoError(t, f.svc.DeleteFarm(ctx, ids[1]))
	f.assertActiveFarmsMatchesStore(t)

	assert.Error(t, f.svc.DeleteFarm(ctx, ids[1]))
	f.assertActiveFarmsMatchesStore(t)

	require.NoError(t, f.svc.DeleteAccount(ctx, b.ID))
	f.assertActiveFarmsMatchesStore(t)

	_, err := f.svc.CreateFarm(ctx, CreateFarmInput{AccountID: b.ID, ChannelName: "gone", PredictionSettings: defaultSettings})
	assert.Error(t, err)
	f.assertActiveFarmsMatchesStore(t)
}

func TestService_UpdateFarmIsSilentAndKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.account(t, "main")
	farm := f.farm(t, account.ID, "foo")

	_, err := f.svc.SetStatus(ctx, farm.ID, db.FarmStatusWarning)
	require.NoError(t, err)

	enabled := false
	updated, err := f.svc.UpdateFarm(ctx, farm.ID, db.FarmPatch{
		Enabled:  &enabled,
		Features: &db.Features{WatchTime: true},
	})
	require.NoError(t, err)

	assert.False(t, updated.Enabled)
	assert.True(t, updated.Features.WatchTime)
	assert.Equal(t, db.FarmStatusWarning, updated.Status)
	assert.Equal(t, "foo", updated.ChannelName)
	assert.Equal(t, 1, f.repo.CountLogs(), "only the start log is expected")
}

func TestService_UpdateFarmValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farm := f.farm(t, f.account(t, "main").ID, "foo")

	bad := db.FarmStatus("sleeping")
	_, err := f.svc.UpdateFarm(ctx, farm.ID, db.FarmPatch{Status: &bad})
	var verr *db.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)

	_, err = f.svc.UpdateFarm(ctx, farm.ID, db.FarmPatch{PredictionSettings: &db.PredictionSettings{Strategy: db.StrategyCustom, MaxPoints: 10}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "predictionSettings.maxPoints", verr.Field)

	_, err = f.svc.UpdateFarm(ctx, 99, db.FarmPatch{})
	var nf *db.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestService_SetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farm := f.farm(t, f.account(t, "main").ID, "foo")

	for _, status := range []db.FarmStatus{db.FarmStatusOffline, db.FarmStatusActive, db.FarmStatusError} {
		updated, err := f.svc.SetStatus(ctx, farm.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	_, err := f.svc.SetStatus(ctx, farm.ID, "paused")
	assert.Error(t, err)
	_, err = f.svc.SetStatus(ctx, 123, db.FarmStatusActive)
	var nf *db.NotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, 1, f.repo.CountLogs())
}

func TestService_ClaimPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farm := f.farm(t, f.account(t, "main").ID, "foo")

	_, err := f.svc.ClaimPoints(ctx, farm.ID, 50)
	require.NoError(t, err)
	updated, err := f.svc.ClaimPoints(ctx, farm.ID, 250)
	require.NoError(t, err)

	assert.Equal(t, int64(300), updated.PointsClaimed)
	assert.Equal(t, int64(300), f.svc.Stats(ctx).PointsClaimed)

	recent := f.sink.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "Claimed 250 channel points", recent[0].Event)
	assert.Equal(t, db.LogStatusSuccess, recent[0].Status)

	_, err = f.svc.ClaimPoints(ctx, farm.ID, 0)
	assert.Error(t, err)
}

func TestService_AccrueWatchTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farm := f.farm(t, f.account(t, "main").ID, "foo")

	_, err := f.svc.AccrueWatchTime(ctx, farm.ID, 1800)
	require.NoError(t, err)
	updated, err := f.svc.AccrueWatchTime(ctx, farm.ID, 5400)
	require.NoError(t, err)

	assert.Equal(t, int64(7200), updated.WatchTime)
	assert.Equal(t, int64(7200), updated.Uptime)
	assert.InDelta(t, 2.0, f.svc.Stats(ctx).WatchHours, 1e-9)
	assert.Equal(t, 1, f.repo.CountLogs())
}

func TestService_RecordPrediction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farm := f.farm(t, f.account(t, "main").ID, "foo")

	placed, err := f.svc.RecordPrediction(ctx, farm.ID, PredictionRecord{
		PredictionID: "p1", Title: "Win the round?", Strategy: db.StrategyPercentage,
		OutcomeID: "B", OutcomeTitle: "No", Bet: 1000, Payout: 3666,
	})
	require.NoError(t, err)
	assert.Equal(t, "Placed 1000 points on No", placed.Event)
	assert.Equal(t, db.LogStatusSuccess, placed.Status)
	assert.Equal(t, "Win the round?: estimated payout 3666", placed.Details)

	skipped, err := f.svc.RecordPrediction(ctx, farm.ID, PredictionRecord{PredictionID: "p2", Strategy: db.StrategyPercentage, NoBet: true})
	require.NoError(t, err)
	assert.Equal(t, "Skipped prediction", skipped.Event)
	assert.Equal(t, db.LogStatusInfo, skipped.Status)

	_, err = f.svc.RecordPrediction(ctx, 404, PredictionRecord{})
	var nf *db.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestService_SetPredictionRateClamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, 98.0, f.svc.SetPredictionRate(ctx, 140).PredictionRate)
	assert.Equal(t, 0.0, f.svc.SetPredictionRate(ctx, -3).PredictionRate)
	assert.Equal(t, 61.5, f.svc.SetPredictionRate(ctx, 61.5).PredictionRate)
}

func TestService_Accounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, CreateAccountInput{Name: ""})
	assert.Error(t, err)
	_, err = f.svc.CreateAccount(ctx, CreateAccountInput{Name: "x", AuthType: "password"})
	assert.Error(t, err)

	a, err := f.svc.CreateAccount(ctx, CreateAccountInput{Name: "main", AuthType: db.AuthTypeOAuth, AuthData: "token"})
	require.NoError(t, err)
	assert.True(t, a.Active)

	a, err = f.svc.SetAccountActive(ctx, a.ID, false)
	require.NoError(t, err)
	assert.False(t, a.Active)

	got, err := f.svc.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "token", got.AuthData)
	assert.Len(t, f.svc.ListAccounts(ctx), 1)

	_, err = f.svc.ListFarmsByAccount(ctx, 99)
	assert.Error(t, err)
}
