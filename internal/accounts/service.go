// Package accounts covers registration, role dashboards, client and dancer
// profiles, and the admin review of dancer submissions.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Casting/internal/hermes"
	"github.com/MikeSquared-Agency/Casting/internal/matching"
	"github.com/MikeSquared-Agency/Casting/internal/store"
)

const (
	MinPhoneDigits  = 10
	MaxVibeTags     = 5
	MaxImages       = 5
	DefaultFeatured = 8
	MaxListLimit    = 100
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrAlreadyRegistered = errors.New("user already registered")
	ErrUserNotFound      = errors.New("user not found")
	ErrDancerNotFound    = errors.New("dancer not found")
	ErrForbidden         = errors.New("role not allowed")
)

type Store interface {
	store.Users
	store.Dancers
}

type RegisterInput struct {
	Role      store.Role `json:"role"`
	Name      string     `json:"name"`
	StageName string     `json:"stage_name"`
	Phone     string     `json:"phone"`
}

type ClientProfileInput struct {
	CompanyName string `json:"company_name"`
	WebsiteURL  string `json:"website_url"`
	LogoURL     string `json:"logo_url"`
}

type DancerProfileInput struct {
	StageName     string   `json:"stage_name"`
	NameEN        string   `json:"name_en"`
	Phone         string   `json:"phone"`
	Region        string   `json:"region"`
	Genres        []string `json:"genres"`
	Specialty     string   `json:"specialty"`
	Bio           string   `json:"bio"`
	ProfileImages []string `json:"profile_images"`
	Gender        string   `json:"gender"`
	Age           int      `json:"age"`
	HeightCm      float64  `json:"height"`
	WeightKg      float64  `json:"weight"`
	BodyFrame     string   `json:"body_frame"`
	HairColors    []string `json:"hair_colors"`
	ClothingSize  string   `json:"clothing_size"`
	ShoeSize      string   `json:"shoe_size"`
	InstagramURL  string   `json:"instagram_url"`
	TiktokURL     string   `json:"tiktok_url"`
	YoutubeURL    string   `json:"youtube_url"`
	VibeTags      []string `json:"vibe_tags"`
	PricePerHour  int64    `json:"price_per_hour"`

	// Skills are levels on a 0-100 scale (acting, singing, ...).
	Skills map[string]float64 `json:"skills"`
	// Styles are sliders on a 0-1 scale keyed by soft tag.
	Styles map[string]float64 `json:"styles"`

	KidsFriendly      bool `json:"kids_friendly"`
	SFXMakeupOK       bool `json:"sfx_makeup_ok"`
	CosplayExperience bool `json:"cosplay_experience"`
	HorrorReady       bool `json:"horror_ready"`
	GamerNerd         bool `json:"gamer_nerd"`
}

// Profile is what GET /me returns.
type Profile struct {
	User      *store.User          `json:"user"`
	Dashboard string               `json:"dashboard"`
	Client    *store.ClientProfile `json:"client_profile,omitempty"`
	Dancer    *store.Dancer        `json:"dancer_profile,omitempty"`
}

type Service struct {
	store          Store
	hermes         hermes.Client
	initialCredits int
	logger         *slog.Logger
}

func NewService(s Store, h hermes.Client, initialCredits int, logger *slog.Logger) *Service {
	return &Service{store: s, hermes: h, initialCredits: initialCredits, logger: logger}
}

// Dashboard maps a role to the landing page of its dashboard.
func Dashboard(role store.Role) string {
	switch role {
	case store.RoleArtist, store.RoleDancer:
		return "/artist/dashboard"
	case store.RoleAdmin:
		return "/admin/dashboard"
	default:
		return "/client/dashboard"
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Register creates the account row for an authenticated identity. Users
// start with the configured initial credits.
func (s *Service) Register(ctx context.Context, userID uuid.UUID, email string, in RegisterInput) (*store.User, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, invalid("a valid email is required")
	}

	var name string
	switch in.Role {
	case store.RoleClient:
		name = strings.TrimSpace(in.Name)
		if name == "" {
			return nil, invalid("name is required")
		}
	case store.RoleArtist:
		name = strings.TrimSpace(in.StageName)
		if name == "" {
			return nil, invalid("stage name is required")
		}
	default:
		return nil, invalid("role must be client or artist")
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return nil, invalid("phone is required")
	}

	existing, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyRegistered
	}

	u := &store.User{
		ID:      userID,
		Email:   email,
		Name:    name,
		Phone:   phone,
		Role:    in.Role,
		Credits: s.initialCredits,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	p := &Profile{User: u, Dashboard: Dashboard(u.Role)}
	switch u.Role {
	case store.RoleClient:
		if p.Client, err = s.store.GetClientProfile(ctx, userID); err != nil {
			return nil, fmt.Errorf("get client profile: %w", err)
		}
	case store.RoleArtist, store.RoleDancer:
		if p.Dancer, err = s.store.GetDancerByUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("get dancer profile: %w", err)
		}
	}
	return p, nil
}

func (s *Service) UpsertClientProfile(ctx context.Context, userID uuid.UUID, in ClientProfileInput) (*store.ClientProfile, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != store.RoleClient && u.Role != store.RoleAdmin {
		return nil, ErrForbidden
	}
	company := strings.TrimSpace(in.CompanyName)
	if company == "" {
		return nil, invalid("company name is required")
	}

	p := &store.ClientProfile{
		UserID:      userID,
		CompanyName: company,
		WebsiteURL:  strings.TrimSpace(in.WebsiteURL),
		LogoURL:     strings.TrimSpace(in.LogoURL),
	}
	if err := s.store.UpsertClientProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert client profile: %w", err)
	}
	return p, nil
}

// SubmitDancer creates or replaces the caller's dancer profile. Every
// submission goes back to pending review.
func (s *Service) SubmitDancer(ctx context.Context, userID uuid.UUID, in DancerProfileInput) (*store.Dancer, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != store.RoleArtist && u.Role != store.RoleDancer {
		return nil, ErrForbidden
	}
	if err := ValidateDancer(in); err != nil {
		return nil, err
	}

	d := dancerFromInput(in)
	d.UserID = userID
	d.Status = store.DancerPending
	if err := s.store.UpsertDancer(ctx, d); err != nil {
		return nil, fmt.Errorf("upsert dancer: %w", err)
	}

	s.logger.Info("dancer profile submitted", "dancer_id", d.ID, "user_id", userID)
	if s.hermes != nil {
		_ = s.hermes.Publish(hermes.SubjectDancerRegistered(d.ID.String()), hermes.DancerRegisteredEvent{
			DancerID: d.ID.String(),
			UserID:   userID.String(),
			Name:     d.Name,
		})
	}
	return d, nil
}

// ImportDancer stores a dancer without an owning account, approved unless
// the record says otherwise. It backs the admin seed endpoint.
func (s *Service) ImportDancer(ctx context.Context, d *store.Dancer) (*store.Dancer, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return nil, invalid("name is required")
	}
	if d.Status == "" {
		d.Status = store.DancerApproved
	}
	if !d.Status.Valid() {
		return nil, invalid("status must be pending, approved or rejected")
	}
	if err := validateAttributes(d.Attributes); err != nil {
		return nil, err
	}
	d.Attributes = matching.CanonicalAttributes(d.Attributes)
	if err := s.store.UpsertDancer(ctx, d); err != nil {
		return nil, fmt.Errorf("upsert dancer: %w", err)
	}
	return d, nil
}

func (s *Service) ReviewDancer(ctx context.Context, dancerID uuid.UUID, approve bool) (*store.Dancer, error) {
	status := store.DancerRejected
	if approve {
		status = store.DancerApproved
	}
	if err := s.store.SetDancerStatus(ctx, dancerID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDancerNotFound
		}
		return nil, fmt.Errorf("set dancer status: %w", err)
	}

	s.logger.Info("dancer reviewed", "dancer_id", dancerID, "status", status)
	if s.hermes != nil {
		_ = s.hermes.Publish(hermes.SubjectDancerReviewed(dancerID.String()), hermes.DancerReviewedEvent{
			DancerID: dancerID.String(),
			Status:   string(status),
		})
	}

	d, err := s.store.GetDancer(ctx, dancerID)
	if err != nil {
		return nil, fmt.Errorf("get dancer: %w", err)
	}
	return d, nil
}

func (s *Service) PendingDancers(ctx context.Context) ([]*store.Dancer, error) {
	pending := store.DancerPending
	return s.list(ctx, store.DancerFilter{Status: &pending, Limit: MaxListLimit})
}

// Featured returns approved dancers, highest rated first.
func (s *Service) Featured(ctx context.Context, limit int) ([]*store.Dancer, error) {
	if limit <= 0 {
		limit = DefaultFeatured
	}
	return s.ListDancers(ctx, "", limit, 0)
}

// ListDancers browses approved dancers with contact details removed.
func (s *Service) ListDancers(ctx context.Context, genre string, limit, offset int) ([]*store.Dancer, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	approved := store.DancerApproved
	list, err := s.list(ctx, store.DancerFilter{Status: &approved, Genre: genre, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	for i, d := range list {
		list[i] = Public(d)
	}
	return list, nil
}

// GetDancer returns an approved dancer with contact details removed.
func (s *Service) GetDancer(ctx context.Context, id uuid.UUID) (*store.Dancer, error) {
	d, err := s.store.GetDancer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get dancer: %w", err)
	}
	if d == nil || d.Status != store.DancerApproved {
		return nil, ErrDancerNotFound
	}
	return Public(d), nil
}

// Public strips what a contact unlock reveals.
func Public(d *store.Dancer) *store.Dancer {
	cp := *d
	cp.Phone = ""
	cp.InstagramURL = ""
	cp.TiktokURL = ""
	cp.YoutubeURL = ""
	return &cp
}

func (s *Service) list(ctx context.Context, f store.DancerFilter) ([]*store.Dancer, error) {
	list, err := s.store.ListDancers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list dancers: %w", err)
	}
	if list == nil {
		list = []*store.Dancer{}
	}
	return list, nil
}

func (s *Service) requireUser(ctx context.Context, userID uuid.UUID) (*store.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func ValidateDancer(in DancerProfileInput) error {
	if strings.TrimSpace(in.StageName) == "" {
		return invalid("stage name is required")
	}
	if phoneDigits(in.Phone) < MinPhoneDigits {
		return invalid("phone must have at least %d digits", MinPhoneDigits)
	}
	tags := nonEmpty(in.VibeTags)
	if len(tags) == 0 || len(tags) > MaxVibeTags {
		return invalid("choose between 1 and %d vibe tags", MaxVibeTags)
	}
	if len(nonEmpty(in.ProfileImages)) > MaxImages {
		return invalid("at most %d profile images", MaxImages)
	}
	for k, v := range in.Skills {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return invalid("skill %q must be between 0 and 100", k)
		}
	}
	for k, v := range in.Styles {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return invalid("style %q must be between 0 and 1", k)
		}
	}
	if in.Age < 0 || in.HeightCm < 0 || in.WeightKg < 0 || in.PricePerHour < 0 {
		return invalid("numeric fields must not be negative")
	}
	return nil
}

func validateAttributes(attrs map[string]float64) error {
	for k, v := range attrs {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return invalid("attribute %q must be between 0 and 100", k)
		}
	}
	return nil
}

func dancerFromInput(in DancerProfileInput) *store.Dancer {
	images := nonEmpty(in.ProfileImages)
	d := &store.Dancer{
		Name:              strings.TrimSpace(in.StageName),
		NameEN:            strings.TrimSpace(in.NameEN),
		Phone:             strings.TrimSpace(in.Phone),
		Region:            strings.TrimSpace(in.Region),
		Genres:            nonEmpty(in.Genres),
		Specialty:         strings.TrimSpace(in.Specialty),
		Bio:               strings.TrimSpace(in.Bio),
		ProfileImages:     images,
		Gender:            strings.ToLower(strings.TrimSpace(in.Gender)),
		Age:               in.Age,
		HeightCm:          in.HeightCm,
		WeightKg:          in.WeightKg,
		BodyFrame:         strings.TrimSpace(in.BodyFrame),
		HairColors:        nonEmpty(in.HairColors),
		ClothingSize:      strings.TrimSpace(in.ClothingSize),
		ShoeSize:          strings.TrimSpace(in.ShoeSize),
		InstagramURL:      strings.TrimSpace(in.InstagramURL),
		TiktokURL:         strings.TrimSpace(in.TiktokURL),
		YoutubeURL:        strings.TrimSpace(in.YoutubeURL),
		VibeTags:          nonEmpty(in.VibeTags),
		PricePerHour:      in.PricePerHour,
		KidsFriendly:      in.KidsFriendly,
		SFXMakeupOK:       in.SFXMakeupOK,
		CosplayExperience: in.CosplayExperience,
		HorrorReady:       in.HorrorReady,
		GamerNerd:         in.GamerNerd,
		Attributes:        make(map[string]float64, len(in.Skills)+len(in.Styles)),
	}
	if len(images) > 0 {
		d.ImageURL = images[0]
	}
	for k, v := range in.Skills {
		key := matching.CanonicalTag(k)
		d.Attributes[key] = v
		if v > 0 {
			d.Skills = append(d.Skills, key)
		}
	}
	sort.Strings(d.Skills)
	for k, v := range in.Styles {
		d.Attributes[matching.CanonicalTag(k)] = v
	}
	return d
}

func phoneDigits(phone string) int {
	n := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
