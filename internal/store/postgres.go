package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

//go:embed schema.sql
var schemaSQL string

// Migrate applies the idempotent schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Users ---

const userColumns = `id, email, name, phone, role, credits, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, phone, role, credits)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, u.Phone, u.Role, u.Credits,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrConflict
	}
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *PostgresStore) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error) {
	out := make(map[uuid.UUID]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *User) error {
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET name = $2, phone = $3, role = $4, updated_at = now()
		WHERE id = $1
		RETURNING credits, updated_at`,
		u.ID, u.Name, u.Phone, u.Role,
	).Scan(&u.Credits, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) GetClientProfile(ctx context.Context, userID uuid.UUID) (*ClientProfile, error) {
	p := &ClientProfile{}
	var website, logo sql.NullString
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, company_name, website_url, logo_url, updated_at
		FROM clients WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.CompanyName, &website, &logo, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.WebsiteURL = website.String
	p.LogoURL = logo.String
	return p, nil
}

func (s *PostgresStore) UpsertClientProfile(ctx context.Context, p *ClientProfile) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO clients (user_id, company_name, website_url, logo_url)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (user_id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			website_url = EXCLUDED.website_url,
			logo_url = EXCLUDED.logo_url,
			updated_at = now()
		RETURNING updated_at`,
		p.UserID, p.CompanyName, p.WebsiteURL, p.LogoURL,
	).Scan(&p.UpdatedAt)
}

// --- Dancers ---

const dancerColumns = `id, user_id, name, name_en, phone, region, genres, specialty, bio,
	image_url, profile_images, gender, age, height_cm, weight_kg, body_frame, hair_colors,
	clothing_size, shoe_size, instagram_url, tiktok_url, youtube_url,
	vibe_tags, skills, price_per_hour, rating, is_premium, status,
	kids_friendly, sfx_makeup_ok, cosplay_experience, horror_ready, gamer_nerd,
	attributes, created_at, updated_at`

func scanDancer(row pgx.Row) (*Dancer, error) {
	d := &Dancer{}
	var attrs []byte
	var userID *uuid.UUID
	err := row.Scan(
		&d.ID, &userID, &d.Name, &d.NameEN, &d.Phone, &d.Region, &d.Genres, &d.Specialty, &d.Bio,
		&d.ImageURL, &d.ProfileImages, &d.Gender, &d.Age, &d.HeightCm, &d.WeightKg, &d.BodyFrame, &d.HairColors,
		&d.ClothingSize, &d.ShoeSize, &d.InstagramURL, &d.TiktokURL, &d.YoutubeURL,
		&d.VibeTags, &d.Skills, &d.PricePerHour, &d.Rating, &d.IsPremium, &d.Status,
		&d.KidsFriendly, &d.SFXMakeupOK, &d.CosplayExperience, &d.HorrorReady, &d.GamerNerd,
		&attrs, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		d.UserID = *userID
	}
	if attrs != nil {
		if err := json.Unmarshal(attrs, &d.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return d, nil
}

func scanDancers(rows pgx.Rows) ([]*Dancer, error) {
	defer rows.Close()
	var out []*Dancer
	for rows.Next() {
		d, err := scanDancer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertDancer inserts the dancer or replaces the profile owned by the same
// user. Dancers without an owning user are keyed by ID alone.
func (s *PostgresStore) UpsertDancer(ctx context.Context, d *Dancer) error {
	attrs, err := encodeJSON("attributes", d.Attributes)
	if err != nil {
		return err
	}
	if d.ID == uuid.Nil && d.UserID != uuid.Nil {
		var existing uuid.UUID
		err := s.pool.QueryRow(ctx, `SELECT id FROM dancers WHERE user_id = $1`, d.UserID).Scan(&existing)
		switch {
		case err == nil:
			d.ID = existing
		case err != pgx.ErrNoRows:
			return fmt.Errorf("lookup dancer by user: %w", err)
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO dancers (id, user_id, name, name_en, phone, region, genres, specialty, bio,
			image_url, profile_images, gender, age, height_cm, weight_kg, body_frame, hair_colors,
			clothing_size, shoe_size, instagram_url, tiktok_url, youtube_url,
			vibe_tags, skills, price_per_hour, rating, is_premium, status,
			kids_friendly, sfx_makeup_ok, cosplay_experience, horror_ready, gamer_nerd, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id, name = EXCLUDED.name, name_en = EXCLUDED.name_en, phone = EXCLUDED.phone,
			region = EXCLUDED.region, genres = EXCLUDED.genres, specialty = EXCLUDED.specialty,
			bio = EXCLUDED.bio, image_url = EXCLUDED.image_url, profile_images = EXCLUDED.profile_images,
			gender = EXCLUDED.gender, age = EXCLUDED.age, height_cm = EXCLUDED.height_cm,
			weight_kg = EXCLUDED.weight_kg, body_frame = EXCLUDED.body_frame, hair_colors = EXCLUDED.hair_colors,
			clothing_size = EXCLUDED.clothing_size, shoe_size = EXCLUDED.shoe_size,
			instagram_url = EXCLUDED.instagram_url, tiktok_url = EXCLUDED.tiktok_url, youtube_url = EXCLUDED.youtube_url,
			vibe_tags = EXCLUDED.vibe_tags, skills = EXCLUDED.skills, price_per_hour = EXCLUDED.price_per_hour,
			status = EXCLUDED.status,
			kids_friendly = EXCLUDED.kids_friendly, sfx_makeup_ok = EXCLUDED.sfx_makeup_ok,
			cosplay_experience = EXCLUDED.cosplay_experience, horror_ready = EXCLUDED.horror_ready,
			gamer_nerd = EXCLUDED.gamer_nerd, attributes = EXCLUDED.attributes,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		d.ID, nullUUID(d.UserID), d.Name, d.NameEN, d.Phone, d.Region, emptyIfNil(d.Genres), d.Specialty, d.Bio,
		d.ImageURL, emptyIfNil(d.ProfileImages), d.Gender, d.Age, d.HeightCm, d.WeightKg, d.BodyFrame, emptyIfNil(d.HairColors),
		d.ClothingSize, d.ShoeSize, d.InstagramURL, d.TiktokURL, d.YoutubeURL,
		emptyIfNil(d.VibeTags), emptyIfNil(d.Skills), d.PricePerHour, d.Rating, d.IsPremium, d.Status,
		d.KidsFriendly, d.SFXMakeupOK, d.CosplayExperience, d.HorrorReady, d.GamerNerd, attrs,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (s *PostgresStore) GetDancer(ctx context.Context, id uuid.UUID) (*Dancer, error) {
	d, err := scanDancer(s.pool.QueryRow(ctx, `SELECT `+dancerColumns+` FROM dancers WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *PostgresStore) GetDancerByUser(ctx context.Context, userID uuid.UUID) (*Dancer, error) {
	d, err := scanDancer(s.pool.QueryRow(ctx, `SELECT `+dancerColumns+` FROM dancers WHERE user_id = $1`, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *PostgresStore) ListDancers(ctx context.Context, filter DancerFilter) ([]*Dancer, error) {
	query := `SELECT ` + dancerColumns + ` FROM dancers WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}
	if filter.Genre != "" {
		n++
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM unnest(genres) g WHERE lower(g) = lower($%d))", n)
		args = append(args, filter.Genre)
	}

	query += " ORDER BY rating DESC, created_at DESC"

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
	return scanDancers(rows)
}

func (s *PostgresStore) SetDancerStatus(ctx context.Context, id uuid.UUID, status DancerStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE dancers SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeJSON(column string, v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", column, err)
	}
	return b, nil
}

func nullUUID(id uuid.UUID) interface{} {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
