package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"closet-cast/internal/auth"
	"closet-cast/internal/models"
	"closet-cast/internal/repository"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// SignUpInput holds the fields of a new account
type SignUpInput struct {
	Name        string
	LoginID     string
	Password    string
	Preferences []string
	Tendencies  []string
}

// UpdateInput holds optional changes to a member. Nil fields are left unchanged.
type UpdateInput struct {
	Password    string
	NewPassword *string
	Preferences []string
	Tendencies  []string
	Clothes     []string
}

// SignInResult is returned after a successful sign-in
type SignInResult struct {
	MemberID  int64     `json:"memberId"`
	Name      string    `json:"name"`
	LoginID   string    `json:"loginId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MemberService handles member accounts
type MemberService struct {
	repo    repository.MemberRepository
	tokens  *auth.TokenIssuer
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewMemberService creates a new member service
func NewMemberService(repo repository.MemberRepository, tokens *auth.TokenIssuer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *MemberService {
	return &MemberService{
		repo:    repo,
		tokens:  tokens,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// SignUp registers a new member
func (s *MemberService) SignUp(ctx context.Context, in SignUpInput) (*models.Member, error) {
	prefs, err := parseAll(in.Preferences, models.ParsePreference)
	if err != nil {
		return nil, err
	}
	tendencies, err := parseAll(in.Tendencies, models.ParseTendency)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByLoginID(ctx, in.LoginID); err == nil {
		return nil, &models.ConflictError{Resource: "member", Key: in.LoginID}
	} else if !isNotFound(err) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	member := &models.Member{
		LoginID:      in.LoginID,
		Name:         in.Name,
		PasswordHash: hash,
		Preferences:  prefs,
		Tendencies:   tendencies,
		Clothes:      make([]models.Cloth, 0),
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[MEMBER_SIGNUP] Member registered", logging.Fields{
		"member_id": member.ID,
		"login_id":  member.LoginID,
	})

	return member, nil
}

// SignIn checks credentials and issues a bearer token
func (s *MemberService) SignIn(ctx context.Context, loginID, password string) (*SignInResult, error) {
	invalid := &models.AuthError{Message: "invalid login id or password"}

	member, err := s.repo.GetByLoginID(ctx, loginID)
	if err != nil {
		if isNotFound(err) {
			return nil, invalid
		}
		return nil, err
	}

	if !auth.CheckPassword(member.PasswordHash, password) {
		s.logger.Warn(ctx, "[MEMBER_SIGNIN] Password mismatch", logging.Fields{
			"login_id": loginID,
		})
		return nil, invalid
	}

	token, expiresAt, err := s.tokens.Issue(member.ID, member.LoginID)
	if err != nil {
		return nil, err
	}

	return &SignInResult{
		MemberID:  member.ID,
		Name:      member.Name,
		LoginID:   member.LoginID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Get returns a member by ID
func (s *MemberService) Get(ctx context.Context, id int64) (*models.Member, error) {
	return s.repo.Get(ctx, id)
}

// List returns members ordered by ID
func (s *MemberService) List(ctx context.Context, limit, offset int) ([]*models.Member, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update applies the non-nil fields of in to a member.
// Changing the password requires the current one. Clothes must cover outer, top and bottom.
func (s *MemberService) Update(ctx context.Context, id int64, in UpdateInput) (*models.Member, error) {
	member, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.NewPassword != nil {
		if !auth.CheckPassword(member.PasswordHash, in.Password) {
			return nil, &models.AuthError{Message: "invalid login id or password"}
		}
		hash, err := auth.HashPassword(*in.NewPassword)
		if err != nil {
			return nil, err
		}
		member.PasswordHash = hash
	}

	if in.Preferences != nil {
		if member.Preferences, err = parseAll(in.Preferences, models.ParsePreference); err != nil {
			return nil, err
		}
	}
	if in.Tendencies != nil {
		if member.Tendencies, err = parseAll(in.Tendencies, models.ParseTendency); err != nil {
			return nil, err
		}
	}
	if in.Clothes != nil {
		clothes, err := parseAll(in.Clothes, models.ParseCloth)
		if err != nil {
			return nil, err
		}
		if err := models.ValidateWardrobe(clothes); err != nil {
			return nil, err
		}
		member.Clothes = clothes
	}

	if err := s.repo.Update(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to update member %d: %w", id, err)
	}

	return member, nil
}

// Delete removes a member and returns what was deleted
func (s *MemberService) Delete(ctx context.Context, id int64) (*models.Member, error) {
	member, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return member, nil
}

func parseAll[T ~string](names []string, parse func(string) (T, error)) ([]T, error) {
	out := make([]T, 0, len(names))
	for _, n := range names {
		v, err := parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func isNotFound(err error) bool {
	var nf *repository.NotFoundError
	return errors.As(err, &nf)
}
