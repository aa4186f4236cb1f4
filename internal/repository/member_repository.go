package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"closet-cast/internal/models"
	"closet-cast/pkg/database"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// MemberRepository provides data access for members
type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	Get(ctx context.Context, id int64) (*models.Member, error)
	GetByLoginID(ctx context.Context, loginID string) (*models.Member, error)
	List(ctx context.Context, limit, offset int) ([]*models.Member, error)
	Update(ctx context.Context, member *models.Member) error
	Delete(ctx context.Context, id int64) error
}

// memberRow is the stored shape of a member, with enum lists comma-joined
type memberRow struct {
	ID           int64     `db:"id"`
	LoginID      string    `db:"login_id"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Preferences  string    `db:"preferences"`
	Tendencies   string    `db:"tendencies"`
	Clothes      string    `db:"clothes"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row *memberRow) toMember() (*models.Member, error) {
	prefs, err := models.SplitEnums(row.Preferences, models.ParsePreference)
	if err != nil {
		return nil, fmt.Errorf("member %d has invalid preferences: %w", row.ID, err)
	}
	tendencies, err := models.SplitEnums(row.Tendencies, models.ParseTendency)
	if err != nil {
		return nil, fmt.Errorf("member %d has invalid tendencies: %w", row.ID, err)
	}
	clothes, err := models.SplitEnums(row.Clothes, models.ParseCloth)
	if err != nil {
		return nil, fmt.Errorf("member %d has invalid clothes: %w", row.ID, err)
	}

	return &models.Member{
		ID:           row.ID,
		LoginID:      row.LoginID,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		Preferences:  prefs,
		Tendencies:   tendencies,
		Clothes:      clothes,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

const memberColumns = `id, login_id, name, password_hash, preferences, tendencies, clothes, created_at, updated_at`

// memberRepository implements MemberRepository
type memberRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) MemberRepository {
	return &memberRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Create inserts a new member and fills in its ID and timestamps
func (r *memberRepository) Create(ctx context.Context, member *models.Member) error {
	query := `
		INSERT INTO members (login_id, name, password_hash, preferences, tendencies, clothes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	now := time.Now().UTC()
	var id int64
	err := r.db.GetContext(ctx, "insert_member", &id, query,
		member.LoginID,
		member.Name,
		member.PasswordHash,
		models.JoinEnums(member.Preferences),
		models.JoinEnums(member.Tendencies),
		models.JoinEnums(member.Clothes),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &models.ConflictError{Resource: "member", Key: member.LoginID}
		}
		return fmt.Errorf("failed to create member: %w", err)
	}

	member.ID = id
	member.CreatedAt = now
	member.UpdatedAt = now

	r.logger.Debug(ctx, "[REPO_CREATE_MEMBER] Member created", logging.Fields{
		"member_id": id,
		"login_id":  member.LoginID,
	})

	return nil
}

// Get retrieves a member by ID
func (r *memberRepository) Get(ctx context.Context, id int64) (*models.Member, error) {
	return r.getOne(ctx, "get_member", `SELECT `+memberColumns+` FROM members WHERE id = ?`, strconv.FormatInt(id, 10), id)
}

// GetByLoginID retrieves a member by login ID
func (r *memberRepository) GetByLoginID(ctx context.Context, loginID string) (*models.Member, error) {
	return r.getOne(ctx, "get_member_by_login", `SELECT `+memberColumns+` FROM members WHERE login_id = ?`, loginID, loginID)
}

func (r *memberRepository) getOne(ctx context.Context, queryType, query, key string, arg interface{}) (*models.Member, error) {
	var row memberRow
	err := r.db.GetContext(ctx, queryType, &row, query, arg)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "member",
			ID:       key,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return row.toMember()
}

// List retrieves members ordered by ID with pagination
func (r *memberRepository) List(ctx context.Context, limit, offset int) ([]*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY id LIMIT ? OFFSET ?`

	var rows []memberRow
	if err := r.db.SelectContext(ctx, "list_members", &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	members := make([]*models.Member, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toMember()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return members, nil
}

// Update overwrites the mutable fields of an existing member
func (r *memberRepository) Update(ctx context.Context, member *models.Member) error {
	query := `
		UPDATE members SET
			name = ?,
			password_hash = ?,
			preferences = ?,
			tendencies = ?,
			clothes = ?,
			updated_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, "update_member", query,
		member.Name,
		member.PasswordHash,
		models.JoinEnums(member.Preferences),
		models.JoinEnums(member.Tendencies),
		models.JoinEnums(member.Clothes),
		now,
		member.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}

	if err := requireAffected(result, member.ID); err != nil {
		return err
	}

	member.UpdatedAt = now
	return nil
}

// Delete removes a member by ID
func (r *memberRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "delete_member", `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	if err := requireAffected(result, id); err != nil {
		return err
	}

	r.logger.Info(ctx, "[REPO_DELETE_MEMBER] Member deleted", logging.Fields{
		"member_id": id,
	})

	return nil
}

func requireAffected(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{Resource: "member", ID: strconv.FormatInt(id, 10)}
	}
	return nil
}
