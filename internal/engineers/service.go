package engineers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/engineerhub/engineerhub/internal/shared"
)

// Listing bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// MsgMissingFields is returned when any engineer field is blank.
const MsgMissingFields = "Missing required fields"

// RepositoryPort defines data access methods for engineers.
type RepositoryPort interface {
	Insert(ctx context.Context, e Engineer) (Engineer, error)
	List(ctx context.Context, limit int) ([]Engineer, error)
}

// Service handles engineer business logic.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new engineer on behalf of createdBy.
func (s *Service) Create(ctx context.Context, createdBy string, in CreateInput) (Engineer, error) {
	e := Engineer{
		Name:          strings.TrimSpace(in.Name),
		Surname:       strings.TrimSpace(in.Surname),
		City:          strings.TrimSpace(in.City),
		ContactNumber: strings.TrimSpace(in.ContactNumber),
		CreatedBy:     createdBy,
	}
	if e.Name == "" || e.Surname == "" || e.City == "" || e.ContactNumber == "" {
		return Engineer{}, fmt.Errorf("%w: %s", shared.ErrValidation, MsgMissingFields)
	}
	for _, v := range []string{e.Name, e.Surname, e.City, e.ContactNumber} {
		if len([]rune(v)) > MaxFieldLength {
			return Engineer{}, fmt.Errorf("%w: fields must be at most %d characters", shared.ErrValidation, MaxFieldLength)
		}
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return Engineer{}, oops.Code("ENGINEER_ID_FAILED").Wrap(err)
	}
	e.ID = id.String()
	e.CreatedAt = s.now().UTC()

	created, err := s.repo.Insert(ctx, e)
	if err != nil {
		return Engineer{}, oops.Code("ENGINEER_CREATE_FAILED").With("created_by", createdBy).Wrap(err)
	}
	return created, nil
}

// List returns the newest engineers. Limits outside 1..MaxListLimit fall back
// to the nearest bound or the default.
func (s *Service) List(ctx context.Context, limit int) ([]Engineer, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	list, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, oops.Code("ENGINEER_LIST_FAILED").Wrap(err)
	}
	return list, nil
}
