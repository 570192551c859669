package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
)

type Role string

const (
	RoleClient Role = "client"
	RoleArtist Role = "artist"
	RoleDancer Role = "dancer"
	RoleAdmin  Role = "admin"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ClientProfile struct {
	UserID      uuid.UUID `json:"user_id"`
	CompanyName string    `json:"company_name"`
	WebsiteURL  string    `json:"website_url,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DancerStatus string

const (
	DancerPending  DancerStatus = "pending"
	DancerApproved DancerStatus = "approved"
	DancerRejected DancerStatus = "rejected"
)

func (s DancerStatus) Valid() bool {
	switch s {
	case DancerPending, DancerApproved, DancerRejected:
		return true
	}
	return false
}

type Dancer struct {
	ID            uuid.UUID    `json:"id"`
	UserID        uuid.UUID    `json:"user_id"`
	Name          string       `json:"name"`
	NameEN        string       `json:"name_en,omitempty"`
	Phone         string       `json:"phone,omitempty"`
	Region        string       `json:"region,omitempty"`
	Genres        []string     `json:"genres"`
	Specialty     string       `json:"specialty,omitempty"`
	Bio           string       `json:"bio,omitempty"`
	ImageURL      string       `json:"image_url,omitempty"`
	ProfileImages []string     `json:"profile_images,omitempty"`
	Gender        string       `json:"gender,omitempty"`
	Age           int          `json:"age,omitempty"`
	HeightCm      float64      `json:"height,omitempty"`
	WeightKg      float64      `json:"weight,omitempty"`
	BodyFrame     string       `json:"body_frame,omitempty"`
	HairColors    []string     `json:"hair_colors,omitempty"`
	ClothingSize  string       `json:"clothing_size,omitempty"`
	ShoeSize      string       `json:"shoe_size,omitempty"`
	InstagramURL  string       `json:"instagram_url,omitempty"`
	TiktokURL     string       `json:"tiktok_url,omitempty"`
	YoutubeURL    string       `json:"youtube_url,omitempty"`
	VibeTags      []string     `json:"vibe_tags"`
	Skills        []string     `json:"skills,omitempty"`
	PricePerHour  int64        `json:"price_per_hour"`
	Rating        float64      `json:"rating"`
	IsPremium     bool         `json:"is_premium"`
	Status        DancerStatus `json:"status"`

	KidsFriendly      bool `json:"kids_friendly"`
	SFXMakeupOK       bool `json:"sfx_makeup_ok"`
	CosplayExperience bool `json:"cosplay_experience"`
	HorrorReady       bool `json:"horror_ready"`
	GamerNerd         bool `json:"gamer_nerd"`

	// Attributes holds soft-tag and skill levels keyed by canonical tag name,
	// on either a 0-1 or 0-100 scale.
	Attributes map[string]float64 `json:"attributes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DancerFilter struct {
	Status *DancerStatus
	Genre  string
	Limit  int
	Offset int
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

type CastingRequest struct {
	ID                 uuid.UUID              `json:"id"`
	UserID             uuid.UUID              `json:"user_id"`
	Name               string                 `json:"name"`
	Email              string                 `json:"email"`
	Phone              string                 `json:"phone"`
	EventDate          string                 `json:"event_date,omitempty"`
	ProjectType        string                 `json:"project_type,omitempty"`
	DancerCount        int                    `json:"dancer_count"`
	Budget             string                 `json:"budget,omitempty"`
	AIPrompt           string                 `json:"ai_prompt,omitempty"`
	Message            string                 `json:"message,omitempty"`
	Status             RequestStatus          `json:"status"`
	AnalyzedTags       map[string]interface{} `json:"analyzed_tags,omitempty"`
	RecommendedDancers []uuid.UUID            `json:"recommended_dancers,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

type RequestFilter struct {
	UserID *uuid.UUID
	Status *RequestStatus
	Limit  int
	Offset int
}

type RequestStats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseExpired   PurchaseStatus = "expired"
)

type CreditPurchase struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	PackageID   string         `json:"package_id"`
	Credits     int            `json:"credits"`
	PriceKRW    int64          `json:"price"`
	Method      string         `json:"method"`
	ExternalID  string         `json:"external_id,omitempty"`
	Status      PurchaseStatus `json:"status"`
	CreatedAt   time.Time      `json:"date"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

type ContactUnlock struct {
	UserID    uuid.UUID `json:"user_id"`
	DancerID  uuid.UUID `json:"dancer_id"`
	Cost      int       `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

type Users interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error)
	UpdateUser(ctx context.Context, u *User) error
	GetClientProfile(ctx context.Context, userID uuid.UUID) (*ClientProfile, error)
	UpsertClientProfile(ctx context.Context, p *ClientProfile) error
}

type Dancers interface {
	UpsertDancer(ctx context.Context, d *Dancer) error
	GetDancer(ctx context.Context, id uuid.UUID) (*Dancer, error)
	GetDancerByUser(ctx context.Context, userID uuid.UUID) (*Dancer, error)
	ListDancers(ctx context.Context, filter DancerFilter) ([]*Dancer, error)
	SetDancerStatus(ctx context.Context, id uuid.UUID, status DancerStatus) error
}

type Requests interface {
	CreateRequest(ctx context.Context, r *CastingRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*CastingRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]*CastingRequest, error)
	SetRequestStatus(ctx context.Context, id uuid.UUID, status RequestStatus) error
	GetRequestStats(ctx context.Context, userID uuid.UUID) (*RequestStats, error)
}

type Credits interface {
	// UnlockContact charges cost credits and records the unlock atomically.
	// It returns false with no charge when the contact is already unlocked.
	UnlockContact(ctx context.Context, userID, dancerID uuid.UUID, cost int) (charged bool, balance int, err error)
	IsUnlocked(ctx context.Context, userID, dancerID uuid.UUID) (bool, error)
	ListUnlocks(ctx context.Context, userID uuid.UUID) ([]*ContactUnlock, error)

	CreatePurchase(ctx context.Context, p *CreditPurchase) error
	GetPurchase(ctx context.Context, id uuid.UUID) (*CreditPurchase, error)
	SetPurchaseExternalID(ctx context.Context, id uuid.UUID, externalID string) error
	// CompletePurchase credits the user once. Pending and expired purchases
	// settle; it returns false when the purchase was already completed.
	CompletePurchase(ctx context.Context, id uuid.UUID) (completed bool, balance int, err error)
	ListPurchases(ctx context.Context, userID uuid.UUID) ([]*CreditPurchase, error)
	ExpirePendingPurchases(ctx context.Context, olderThan time.Time) (int, error)
}

type Messages interface {
	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*Message, error)
	ListConversation(ctx context.Context, userID, partnerID uuid.UUID, limit int) ([]*Message, error)
	ListMessagesForUser(ctx context.Context, userID uuid.UUID) ([]*Message, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkConversationRead(ctx context.Context, receiverID, senderID uuid.UUID) (int, error)
	CountUnread(ctx context.Context, receiverID uuid.UUID) (int, error)
}

type Store interface {
	Users
	Dancers
	Requests
	Credits
	Messages
	Close() error
}
