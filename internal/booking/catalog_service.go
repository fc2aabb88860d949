package booking

import (
	"context"

	"github.com/piotrusio02/reservation-system-api/internal/clock"
	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

type CatalogRepository interface {
	InsertService(ctx context.Context, svc domain.Service) error
	GetService(ctx context.Context, serviceID string) (domain.Service, error)
	ListServices(ctx context.Context, companyID string) ([]domain.Service, error)
}

// CatalogService registers bookable services and their scheduling policies.
type CatalogService struct {
	repo     CatalogRepository
	clock    clock.Clock
	defaults domain.Policy
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock, defaults domain.Policy) *CatalogService {
	return &CatalogService{
		repo:     repo,
		clock:    clk,
		defaults: defaults,
	}
}

type RegisterServiceInput struct {
	CompanyID       string
	Name            string
	DurationMinutes int
	// Policy overrides the configured defaults when non-nil.
	Policy *domain.Policy
}

func (s *CatalogService) RegisterService(ctx context.Context, in RegisterServiceInput) (domain.Service, error) {
	policy := s.defaults
	if in.Policy != nil {
		policy = *in.Policy
	}

	svc, err := domain.NewService(in.CompanyID, in.Name, in.DurationMinutes, policy)
	if err != nil {
		return domain.Service{}, err
	}
	svc.ID = newID()
	svc.CreatedAt = s.clock.Now()

	if err := s.repo.InsertService(ctx, svc); err != nil {
		return domain.Service{}, err
	}
	return svc, nil
}

func (s *CatalogService) GetService(ctx context.Context, serviceID string) (domain.Service, error) {
	if serviceID == "" {
		return domain.Service{}, domain.ErrInvalidID
	}
	return s.repo.GetService(ctx, serviceID)
}

func (s *CatalogService) ListServices(ctx context.Context, companyID string) ([]domain.Service, error) {
	return s.repo.ListServices(ctx, companyID)
}
