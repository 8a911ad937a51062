package catalog

import (
	"context"
	"time"

	"dinner-house/internal/domain"
	"dinner-house/internal/logger"
)

// DinnerDetail bundles everything a client needs to configure one dinner.
type DinnerDetail struct {
	Dinner       domain.DinnerType          `json:"dinner"`
	Styles       []domain.ServingStyle      `json:"styles"`
	DefaultItems []domain.DinnerDefaultItem `json:"default_items"`
	Options      []domain.DinnerOption      `json:"options"`
}

type Service struct {
	repo  *Repository
	cache *Cache
	log   *logger.Logger
}

func NewService(repo *Repository, cache *Cache, log *logger.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

func (s *Service) Repo() *Repository { return s.repo }

func (s *Service) MenuItems(ctx context.Context) ([]domain.MenuItem, error) {
	var items []domain.MenuItem
	if s.cache.get(ctx, keyMenuItems, &items) {
		return items, nil
	}
	items, err := s.repo.ListItems(ctx, 0, true)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, keyMenuItems, items)
	return items, nil
}

func (s *Service) Dinners(ctx context.Context) ([]domain.DinnerType, error) {
	var dinners []domain.DinnerType
	if s.cache.get(ctx, keyDinners, &dinners) {
		return dinners, nil
	}
	dinners, err := s.repo.ListDinners(ctx, true)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, keyDinners, dinners)
	return dinners, nil
}

func (s *Service) DinnerDetail(ctx context.Context, code string) (*DinnerDetail, error) {
	key := keyDinnerPref + code
	var detail DinnerDetail
	if s.cache.get(ctx, key, &detail) {
		return &detail, nil
	}

	dinner, err := s.repo.GetDinnerByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	styles, err := s.repo.AllowedStyles(ctx, dinner.ID)
	if err != nil {
		return nil, err
	}
	defaults, err := s.repo.DefaultItems(ctx, dinner.ID)
	if err != nil {
		return nil, err
	}
	options, err := s.repo.DinnerOptionGroups(ctx, dinner.ID)
	if err != nil {
		return nil, err
	}

	detail = DinnerDetail{Dinner: *dinner, Styles: styles, DefaultItems: defaults, Options: options}
	s.cache.set(ctx, key, detail)
	return &detail, nil
}

// AddonCandidates lists items a customer may add to the given dinner: active
// addons not bundled in, filtered to those available at the requested time.
// The unfiltered set is cached; availability depends on `at` and is not.
func (s *Service) AddonCandidates(ctx context.Context, dinnerCode string, at time.Time) ([]domain.MenuItem, error) {
	dinner, err := s.repo.GetDinnerByCode(ctx, dinnerCode)
	if err != nil {
		return nil, err
	}

	key := keyAddonsPref + dinnerCode
	var items []domain.MenuItem
	if !s.cache.get(ctx, key, &items) {
		items, err = s.repo.AddonItems(ctx, dinner.ID)
		if err != nil {
			return nil, err
		}
		s.cache.set(ctx, key, items)
	}

	out := make([]domain.MenuItem, 0, len(items))
	for _, item := range items {
		windows, err := s.repo.ItemAvailability(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if AvailableAt(windows, at) {
			out = append(out, item)
		}
	}
	return out, nil
}
