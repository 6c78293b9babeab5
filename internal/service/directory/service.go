package directory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/repository"
)

const (
	defaultCacheTTL     = 5 * time.Minute
	defaultCacheCleanup = 15 * time.Minute
)

// Service fronts the practice directory with a short-lived read cache.
// Directory records change rarely compared to how often the ledger resolves
// them, so stale reads within the TTL are acceptable.
type Service struct {
	repo  repository.DirectoryRepository
	cache *cache.Cache
}

func NewService(repo repository.DirectoryRepository) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(defaultCacheTTL, defaultCacheCleanup),
	}
}

func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	key := "client:" + id.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.Client), nil
	}

	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, client)
	return client, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	key := "patient:" + id.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.Patient), nil
	}

	patient, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, patient)
	return patient, nil
}

func (s *Service) GetPractitioner(ctx context.Context, id uuid.UUID) (*model.Practitioner, error) {
	key := "practitioner:" + id.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.Practitioner), nil
	}

	practitioner, err := s.repo.GetPractitioner(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, practitioner)
	return practitioner, nil
}

func (s *Service) GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	key := "resource:" + id.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.Resource), nil
	}

	resource, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, resource)
	return resource, nil
}
