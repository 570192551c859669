// Package casting runs brief-to-dancer matching and owns the lifecycle of
// casting requests.
package casting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Casting/internal/analysis"
	"github.com/MikeSquared-Agency/Casting/internal/hermes"
	"github.com/MikeSquared-Agency/Casting/internal/matching"
	"github.com/MikeSquared-Agency/Casting/internal/metrics"
	"github.com/MikeSquared-Agency/Casting/internal/store"
)

const (
	MaxCandidates = 1000
	RecentLimit   = 10
	topTagCount   = 3
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidStatus   = errors.New("status must be pending, approved or rejected")
	ErrRequestNotFound = errors.New("casting request not found")
)

type Store interface {
	store.Dancers
	store.Requests
}

type MatchDetails struct {
	Breakdown       matching.Breakdown    `json:"breakdown"`
	TopMatchingTags []matching.MatchedTag `json:"topMatchingTags"`
}

// MatchedDancer is one ranked dancer as the frontend renders it.
type MatchedDancer struct {
	Rank         int            `json:"rank"`
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	NameEN       string         `json:"name_en,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	Genres       []string       `json:"genres"`
	MatchScore   int            `json:"matchScore"`
	MatchLevel   matching.Level `json:"matchLevel"`
	PricePerHour int64          `json:"pricePerHour"`
	Rating       float64        `json:"rating"`
	Bio          string         `json:"bio,omitempty"`
	Age          int            `json:"age,omitempty"`
	Height       float64        `json:"height,omitempty"`
	Specialty    string         `json:"specialty,omitempty"`
	Details      MatchDetails   `json:"details"`
}

type MatchResult struct {
	Analysis        matching.Analysis `json:"analysis"`
	Source          string            `json:"source"`
	Warnings        []string          `json:"warnings,omitempty"`
	Matches         []MatchedDancer   `json:"matches"`
	TotalCandidates int               `json:"totalCandidates"`
}

type RequestForm struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	EventDate   string `json:"event_date"`
	ProjectType string `json:"project_type"`
	DancerCount int    `json:"dancer_count"`
	Budget      string `json:"budget"`
	AIPrompt    string `json:"ai_prompt"`
	Message     string `json:"message"`
}

type SubmitResult struct {
	Request *store.CastingRequest `json:"request"`
	Match   *MatchResult          `json:"match,omitempty"`
}

type Stats struct {
	Pending  int                     `json:"pending"`
	Approved int                     `json:"approved"`
	Rejected int                     `json:"rejected"`
	Recent   []*store.CastingRequest `json:"recent"`
}

type Service struct {
	store    Store
	analyzer analysis.Analyzer
	engine   *matching.Engine
	hermes   hermes.Client
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(s Store, a analysis.Analyzer, e *matching.Engine, h hermes.Client, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: s, analyzer: a, engine: e, hermes: h, metrics: m, logger: logger}
}

func (s *Service) Analyze(ctx context.Context, prompt string) (*analysis.Result, error) {
	res, err := s.analyzer.Analyze(ctx, prompt)
	if err != nil {
		if errors.Is(err, analysis.ErrEmptyPrompt) {
			return nil, err
		}
		return nil, fmt.Errorf("analyze prompt: %w", err)
	}
	return res, nil
}

// Match analyzes prompt and ranks the approved dancers against it.
func (s *Service) Match(ctx context.Context, prompt string, topN int) (*MatchResult, error) {
	start := time.Now()
	res, err := s.Analyze(ctx, prompt)
	if err != nil {
		return nil, err
	}

	approved := store.DancerApproved
	dancers, err := s.store.ListDancers(ctx, store.DancerFilter{Status: &approved, Limit: MaxCandidates})
	if err != nil {
		return nil, fmt.Errorf("list dancers: %w", err)
	}

	byID := make(map[string]*store.Dancer, len(dancers))
	candidates := make([]matching.Candidate, 0, len(dancers))
	for _, d := range dancers {
		c := Candidate(d)
		byID[c.ID] = d
		candidates = append(candidates, c)
	}

	ranked := s.engine.Rank(candidates, res.Analysis, topN)
	out := &MatchResult{
		Analysis:        res.Analysis,
		Source:          res.Source,
		Warnings:        s.engine.Warnings(res.Analysis.SoftScores),
		Matches:         make([]MatchedDancer, 0, len(ranked)),
		TotalCandidates: len(candidates),
	}
	for _, m := range ranked {
		out.Matches = append(out.Matches, format(m, byID[m.Candidate.ID]))
	}

	s.metrics.ObserveMatch(res.Source, time.Since(start).Seconds())
	s.logger.Debug("matched brief", "source", res.Source, "candidates", len(candidates), "matches", len(out.Matches))
	return out, nil
}

// Candidate converts a stored dancer into the view the engine scores.
func Candidate(d *store.Dancer) matching.Candidate {
	return matching.Candidate{
		ID:                d.ID.String(),
		Gender:            d.Gender,
		HeightCm:          d.HeightCm,
		BodyFrame:         d.BodyFrame,
		HairColors:        d.HairColors,
		KidsFriendly:      d.KidsFriendly,
		SFXMakeupOK:       d.SFXMakeupOK,
		CosplayExperience: d.CosplayExperience,
		HorrorReady:       d.HorrorReady,
		GamerNerd:         d.GamerNerd,
		Attributes:        matching.CanonicalAttributes(d.Attributes),
	}
}

func format(m matching.Match, d *store.Dancer) MatchedDancer {
	md := MatchedDancer{
		Rank:       m.Rank,
		MatchScore: m.Result.Total,
		MatchLevel: m.Level,
		Details: MatchDetails{
			Breakdown:       m.Result.Breakdown,
			TopMatchingTags: matching.TopTags(m.Result, topTagCount),
		},
	}
	if d == nil {
		return md
	}
	md.ID = d.ID
	md.Name = d.Name
	md.NameEN = d.NameEN
	md.ImageURL = d.ImageURL
	md.Genres = d.Genres
	md.PricePerHour = d.PricePerHour
	md.Rating = d.Rating
	md.Bio = d.Bio
	md.Age = d.Age
	md.Height = d.HeightCm
	md.Specialty = d.Specialty
	return md
}

func ValidateForm(f RequestForm) error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case strings.TrimSpace(f.Phone) == "":
		return fmt.Errorf("%w: phone is required", ErrValidation)
	case !strings.Contains(f.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	case f.DancerCount < 1:
		return fmt.Errorf("%w: dancer_count must be at least 1", ErrValidation)
	}
	return nil
}

// Submit stores a casting request. When the form carries a brief, it is
// matched first and the recommendations are stored with the request; a
// failed match does not block the submission.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, f RequestForm) (*SubmitResult, error) {
	if err := ValidateForm(f); err != nil {
		return nil, err
	}

	r := &store.CastingRequest{
		UserID:      userID,
		Name:        strings.TrimSpace(f.Name),
		Email:       strings.TrimSpace(f.Email),
		Phone:       strings.TrimSpace(f.Phone),
		EventDate:   strings.TrimSpace(f.EventDate),
		ProjectType: strings.TrimSpace(f.ProjectType),
		DancerCount: f.DancerCount,
		Budget:      strings.TrimSpace(f.Budget),
		AIPrompt:    strings.TrimSpace(f.AIPrompt),
		Message:     strings.TrimSpace(f.Message),
		Status:      store.RequestPending,
	}

	var match *MatchResult
	if r.AIPrompt != "" {
		var err error
		match, err = s.Match(ctx, r.AIPrompt, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("match for casting request failed", "user_id", userID, "error", err)
		} else {
			r.AnalyzedTags = analysisMap(match.Analysis)
			for _, m := range match.Matches {
				r.RecommendedDancers = append(r.RecommendedDancers, m.ID)
			}
		}
	}

	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.logger.Info("casting request submitted", "request_id", r.ID, "user_id", userID, "recommended", len(r.RecommendedDancers))
	if s.hermes != nil {
		recommended := make([]string, 0, len(r.RecommendedDancers))
		for _, id := range r.RecommendedDancers {
			recommended = append(recommended, id.String())
		}
		_ = s.hermes.Publish(hermes.SubjectRequestCreated(r.ID.String()), hermes.RequestCreatedEvent{
			RequestID:          r.ID.String(),
			UserID:             userID.String(),
			ProjectType:        r.ProjectType,
			DancerCount:        r.DancerCount,
			RecommendedDancers: recommended,
		})
	}
	return &SubmitResult{Request: r, Match: match}, nil
}

func analysisMap(a matching.Analysis) map[string]interface{} {
	b, err := json.Marshal(a)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status store.RequestStatus) (*store.CastingRequest, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := s.store.SetRequestStatus(ctx, id, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("set request status: %w", err)
	}

	s.logger.Info("casting request status updated", "request_id", id, "status", status)
	if s.hermes != nil {
		_ = s.hermes.Publish(hermes.SubjectRequestStatus(id.String()), hermes.RequestStatusEvent{
			RequestID: id.String(),
			Status:    string(status),
		})
	}

	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

func (s *Service) Mine(ctx context.Context, userID uuid.UUID) ([]*store.CastingRequest, error) {
	return s.list(ctx, store.RequestFilter{UserID: &userID})
}

// List returns requests for the admin view. An empty status lists all.
func (s *Service) List(ctx context.Context, status store.RequestStatus, limit, offset int) ([]*store.CastingRequest, error) {
	f := store.RequestFilter{Limit: limit, Offset: offset}
	if status != "" {
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		f.Status = &status
	}
	return s.list(ctx, f)
}

func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	counts, err := s.store.GetRequestStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get request stats: %w", err)
	}
	recent, err := s.list(ctx, store.RequestFilter{UserID: &userID, Limit: RecentLimit})
	if err != nil {
		return nil, err
	}
	return &Stats{
		Pending:  counts.Pending,
		Approved: counts.Approved,
		Rejected: counts.Rejected,
		Recent:   recent,
	}, nil
}

func (s *Service) list(ctx context.Context, f store.RequestFilter) ([]*store.CastingRequest, error) {
	list, err := s.store.ListRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if list == nil {
		list = []*store.CastingRequest{}
	}
	return list, nil
}
