package hermes

import "time"

type RequestCreatedEvent struct {
	RequestID          string   `json:"request_id"`
	UserID             string   `json:"user_id"`
	ProjectType        string   `json:"project_type,omitempty"`
	DancerCount        int      `json:"dancer_count"`
	RecommendedDancers []string `json:"recommended_dancers,omitempty"`
}

type RequestStatusEvent struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// MessageEvent carries a full chat message so subscribers on other
// instances can deliver it without a store read.
type MessageEvent struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
	Origin     string    `json:"origin,omitempty"`
}

type DancerRegisteredEvent struct {
	DancerID string `json:"dancer_id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
}

type DancerReviewedEvent struct {
	DancerID string `json:"dancer_id"`
	Status   string `json:"status"`
}

type CreditsSpentEvent struct {
	UserID   string `json:"user_id"`
	DancerID string `json:"dancer_id"`
	Cost     int    `json:"cost"`
	Balance  int    `json:"balance"`
}

type CreditsPurchasedEvent struct {
	UserID     string `json:"user_id"`
	PurchaseID string `json:"purchase_id"`
	PackageID  string `json:"package_id"`
	Credits    int    `json:"credits"`
	Balance    int    `json:"balance"`
}
