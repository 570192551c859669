package casting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Casting/internal/analysis"
	"github.com/MikeSquared-Agency/Casting/internal/hermes"
	"github.com/MikeSquared-Agency/Casting/internal/matching"
	"github.com/MikeSquared-Agency/Casting/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockHermes struct {
	mu        sync.Mutex
	published []string
}

func (m *mockHermes) Publish(subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, subject)
	return nil
}
func (m *mockHermes) Subscribe(_ string, _ func(string, []byte)) error { return nil }
func (m *mockHermes) Close() {}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, string) (*analysis.Result, error) {
	return nil, errors.New("model unavailable")
}

type fixture struct {
	svc     *Service
	store   *store.MemoryStore
	hermes  *mockHermes
	dancers map[string]*store.Dancer
}

func newFixture(t *testing.T, a analysis.Analyzer) *fixture {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemoryStore()
	f := &fixture{store: ms, hermes: &mockHermes{}, dancers: map[string]*store.Dancer{}}

	for _, d := range []*store.Dancer{
		{Name: "Fresh", Gender: "female", Status: store.DancerApproved, Rating: 4.5, Genres: []string{"K-POP"}, Attributes: map[string]float64{"fresh": 0.9}},
		{Name: "Mild", Gender: "female", Status: store.DancerApproved, Rating: 4.9, Attributes: map[string]float64{"fresh": 0.3}},
		{Name: "Male", Gender: "male", Status: store.DancerApproved, Attributes: map[string]float64{"fresh": 1}},
		{Name: "Pending", Gender: "female", Status: store.DancerPending, Attributes: map[string]float64{"fresh": 1}},
	} {
		require.NoError(t, ms.UpsertDancer(ctx, d))
		f.dancers[d.Name] = d
	}

	engine := matching.NewEngine(matching.DefaultOptions(), discardLogger())
	f.svc = NewService(ms, a, engine, f.hermes, nil, discardLogger())
	return f
}

func validForm() RequestForm {
	return RequestForm{
		Name:        "Event Co",
		Email:       "event@test.kr",
		Phone:       "010-1234-5678",
		DancerCount: 2,
		AIPrompt:    "여성 댄서, 청량한 탄산 느낌",
	}
}

func TestMatch(t *testing.T) {
	f := newFixture(t, analysis.KeywordAnalyzer{})

	res, err := f.svc.Match(context.Background(), "여성 댄서, 청량한 탄산 느낌", 0)
	require.NoError(t, err)
	assert.Equal(t, analysis.SourceKeywords, res.Source)
	assert.Equal(t, 3, res.TotalCandidates)
	require.Len(t, res.Matches, 2)

	top := res.Matches[0]
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "Fresh", top.Name)
	assert.Equal(t, f.dancers["Fresh"].ID, top.ID)
	assert.Equal(t, []string{"K-POP"}, top.Genres)
	assert.Greater(t, top.MatchScore, res.Matches[1].MatchScore)
	assert.NotEmpty(t, top.MatchLevel.Level)
	require.NotEmpty(t, top.Details.TopMatchingTags)
	assert.Equal(t, "fresh", top.Details.TopMatchingTags[0].Tag)

	assert.Equal(t, "Mild", res.Matches[1].Name)
	assert.Equal(t, 2, res.Matches[1].Rank)
}

func TestMatchTopN(t *testing.T) {
	f := newFixture(t, analysis.KeywordAnalyzer{})

	res, err := f.svc.Match(context.Background(), "청량한 느낌", 1)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
}

func TestMatchEmptyPrompt(t *testing.T) {
	f := newFixture(t, analysis.KeywordAnalyzer{})

	_, err := f.svc.Match(context.Background(), " ", 0)
	assert.ErrorIs(t, err, analysis.ErrEmptyPrompt)
}

func TestValidateForm(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RequestForm)
		valid  bool
	}{
		{"valid", func(*RequestForm) {}, true},
		{"no name", func(f *RequestForm) { f.Name = " " }, false},
		{"no phone", func(f *RequestForm) { f.Phone = "" }, false},
		{"bad email", func(f *RequestForm) { f.Email = "event.test.kr" }, false},
		{"zero dancers", func(f *RequestForm) { f.DancerCount = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)
			err := ValidateForm(form)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t, analysis.KeywordAnalyzer{})
	ctx := context.Background()
	userID := uuid.New()

	res, err := f.svc.Submit(ctx, userID, validForm())
	require.NoError(t, err)
	require.NotNil(t, res.Match)

	r := res.Request
	assert.Equal(t, store.RequestPending, r.Status)
	assert.Equal(t, []uuid.UUID{f.dancers["Fresh"].ID, f.dancers["Mild"].ID}, r.RecommendedDancers)
	require.NotNil(t, r.AnalyzedTags)
	assert.Contains(t, r.AnalyzedTags, "softScores")
	assert.Contains(t, f.hermes.published, hermes.SubjectRequestCreated(r.ID.String()))

	stored, err := f.store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Event Co", stored.Name)
}

func TestSubmitWithoutPrompt(t *testing.T) {
	f := newFixture(t, analysis.KeywordAnalyzer{})
	form := validForm()
	form.AIPrompt = ""

	res, err := f.svc.Submit(context.Background(), uuid.New(), form)
	require.NoError(t, err)
	assert.Nil(t, res.Match)
	assert.Empty(t, res.Request.RecommendedDancers)
}

func TestSubmitSurvivesAnalyzerFailure(t *testing.T) {
	f := newFixture(t, failingAnalyzer{})

	res, err := f.svc.Submit(context.Background(), uuid.New(), validForm())
	require.NoError(t, err)
	assert.Nil(t, res.Match)
	assert.Nil(t, res.Request.AnalyzedTags)
}

func TestUpdateStatusAndStats(t *testing.T) {
	f := newFixture(t, analysis.KeywordAnalyzer{})
	ctx := context.Background()
	userID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 12; i++ {
		res, err := f.svc.Submit(ctx, userID, RequestForm{Name: "N", Email: "a@b.kr", Phone: "1", DancerCount: 1})
		require.NoError(t, err)
		ids = append(ids, res.Request.ID)
	}

	r, err := f.svc.UpdateStatus(ctx, ids[0], store.RequestApproved)
	require.NoError(t, err)
	assert.Equal(t, store.RequestApproved, r.Status)
	assert.Contains(t, f.hermes.published, hermes.SubjectRequestStatus(ids[0].String()))

	_, err = f.svc.UpdateStatus(ctx, ids[1], "cancelled")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = f.svc.UpdateStatus(ctx, uuid.New(), store.RequestRejected)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	stats, err := f.svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 11, stats.Pending)
	assert.Equal(t, 1, stats.Approved)
	require.Len(t, stats.Recent, RecentLimit)
	assert.Equal(t, ids[11], stats.Recent[0].ID)

	approved, err := f.svc.List(ctx, store.RequestApproved, 0, 0)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	_, err = f.svc.List(ctx, "bogus", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	mine, err := f.svc.Mine(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, mine)
	assert.Empty(t, mine)
}
