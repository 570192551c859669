package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Casting requests ---

const requestColumns = `id, user_id, name, email, phone, event_date, project_type, dancer_count,
	budget, ai_prompt, message, status, analyzed_tags, recommended_dancers, created_at, updated_at`

func scanRequest(row pgx.Row) (*CastingRequest, error) {
	r := &CastingRequest{}
	var tags []byte
	var recommended []string
	err := row.Scan(
		&r.ID, &r.UserID, &r.Name, &r.Email, &r.Phone, &r.EventDate, &r.ProjectType, &r.DancerCount,
		&r.Budget, &r.AIPrompt, &r.Message, &r.Status, &tags, &recommended, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tags != nil {
		if err := json.Unmarshal(tags, &r.AnalyzedTags); err != nil {
			return nil, fmt.Errorf("decode analyzed_tags: %w", err)
		}
	}
	for _, s := range recommended {
		if id, err := uuid.Parse(s); err == nil {
			r.RecommendedDancers = append(r.RecommendedDancers, id)
		}
	}
	return r, nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, r *CastingRequest) error {
	tags, err := encodeJSON("analyzed_tags", r.AnalyzedTags)
	if err != nil {
		return err
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO requests (user_id, name, email, phone, event_date, project_type, dancer_count,
			budget, ai_prompt, message, status, analyzed_tags, recommended_dancers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		r.UserID, r.Name, r.Email, r.Phone, r.EventDate, r.ProjectType, r.DancerCount,
		r.Budget, r.AIPrompt, r.Message, r.Status, tags, uuidStrings(r.RecommendedDancers),
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (s *PostgresStore) GetRequest(ctx context.Context, id uuid.UUID) (*CastingRequest, error) {
	r, err := scanRequest(s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *PostgresStore) ListRequests(ctx context.Context, filter RequestFilter) ([]*CastingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.UserID != nil {
		n++
		query += fmt.Sprintf(" AND user_id = $%d", n)
		args = append(args, *filter.UserID)
	}
	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CastingRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetRequestStatus(ctx context.Context, id uuid.UUID, status RequestStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE requests SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetRequestStats(ctx context.Context, userID uuid.UUID) (*RequestStats, error) {
	stats := &RequestStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected')
		FROM requests WHERE user_id = $1`, userID,
	).Scan(&stats.Pending, &stats.Approved, &stats.Rejected)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// --- Credits (transactional) ---

func (s *PostgresStore) UnlockContact(ctx context.Context, userID, dancerID uuid.UUID, cost int) (bool, int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1. Lock the user row so concurrent unlocks serialize on the balance
	var balance int
	err = tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err == pgx.ErrNoRows {
		return false, 0, ErrNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("lock user: %w", err)
	}

	// 2. Already unlocked: no charge
	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM contact_unlocks WHERE user_id = $1 AND dancer_id = $2)`,
		userID, dancerID,
	).Scan(&exists)
	if err != nil {
		return false, 0, fmt.Errorf("check unlock: %w", err)
	}
	if exists {
		return false, balance, nil
	}

	if balance < cost {
		return false, balance, ErrInsufficientCredits
	}

	// 3. Charge and record
	err = tx.QueryRow(ctx, `
		UPDATE users SET credits = credits - $2, updated_at = now()
		WHERE id = $1 RETURNING credits`, userID, cost,
	).Scan(&balance)
	if err != nil {
		return false, 0, fmt.Errorf("charge credits: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO contact_unlocks (user_id, dancer_id, cost) VALUES ($1, $2, $3)`,
		userID, dancerID, cost,
	); err != nil {
		return false, 0, fmt.Errorf("record unlock: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("commit: %w", err)
	}
	return true, balance, nil
}

func (s *PostgresStore) IsUnlocked(ctx context.Context, userID, dancerID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM contact_unlocks WHERE user_id = $1 AND dancer_id = $2)`,
		userID, dancerID,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) ListUnlocks(ctx context.Context, userID uuid.UUID) ([]*ContactUnlock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, dancer_id, cost, created_at
		FROM contact_unlocks WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ContactUnlock
	for rows.Next() {
		u := &ContactUnlock{}
		if err := rows.Scan(&u.UserID, &u.DancerID, &u.Cost, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const purchaseColumns = `id, user_id, package_id, credits, price_krw, method, external_id, status, created_at, completed_at`

func scanPurchase(row pgx.Row) (*CreditPurchase, error) {
	p := &CreditPurchase{}
	err := row.Scan(&p.ID, &p.UserID, &p.PackageID, &p.Credits, &p.PriceKRW, &p.Method,
		&p.ExternalID, &p.Status, &p.CreatedAt, &p.CompletedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreatePurchase(ctx context.Context, p *CreditPurchase) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO credit_purchases (user_id, package_id, credits, price_krw, method, external_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		p.UserID, p.PackageID, p.Credits, p.PriceKRW, p.Method, p.ExternalID, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
}

func (s *PostgresStore) GetPurchase(ctx context.Context, id uuid.UUID) (*CreditPurchase, error) {
	p, err := scanPurchase(s.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM credit_purchases WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *PostgresStore) SetPurchaseExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE credit_purchases SET external_id = $2 WHERE id = $1`, id, externalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CompletePurchase(ctx context.Context, id uuid.UUID) (bool, int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanPurchase(tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM credit_purchases WHERE id = $1 FOR UPDATE`, id))
	if err == pgx.ErrNoRows {
		return false, 0, ErrNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("lock purchase: %w", err)
	}

	var balance int
	if p.Status == PurchaseCompleted {
		err = tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, p.UserID).Scan(&balance)
		if err != nil {
			return false, 0, fmt.Errorf("read balance: %w", err)
		}
		return false, balance, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE credit_purchases SET status = 'completed', completed_at = now() WHERE id = $1`, id,
	); err != nil {
		return false, 0, fmt.Errorf("complete purchase: %w", err)
	}
	err = tx.QueryRow(ctx, `
		UPDATE users SET credits = credits + $2, updated_at = now()
		WHERE id = $1 RETURNING credits`, p.UserID, p.Credits,
	).Scan(&balance)
	if err != nil {
		return false, 0, fmt.Errorf("add credits: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("commit: %w", err)
	}
	return true, balance, nil
}

func (s *PostgresStore) ListPurchases(ctx context.Context, userID uuid.UUID) ([]*CreditPurchase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+purchaseColumns+` FROM credit_purchases
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CreditPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ExpirePendingPurchases(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE credit_purchases SET status = 'expired'
		WHERE status = 'pending' AND created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// --- Messages ---

const messageColumns = `id, sender_id, receiver_id, content, is_read, created_at`

func scanMessages(rows pgx.Rows) ([]*Message, error) {
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m *Message) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO messages (sender_id, receiver_id, content, is_read)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		m.SenderID, m.ReceiverID, m.Content, m.IsRead,
	).Scan(&m.ID, &m.CreatedAt)
}

func (s *PostgresStore) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	m := &Message{}
	err := s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id).
		Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) ListConversation(ctx context.Context, userID, partnerID uuid.UUID, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM messages
			WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY created_at DESC
			LIMIT $3
		) recent ORDER BY created_at ASC`,
		userID, partnerID, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (s *PostgresStore) ListMessagesForUser(ctx context.Context, userID uuid.UUID) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (s *PostgresStore) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkConversationRead(ctx context.Context, receiverID, senderID uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_read = true
		WHERE receiver_id = $1 AND sender_id = $2 AND is_read = false`, receiverID, senderID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CountUnread(ctx context.Context, receiverID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = false`, receiverID,
	).Scan(&n)
	return n, err
}
