package promotion

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/virtual-office/internal/common"
	"github.com/noah-isme/virtual-office/internal/lock"
	"github.com/noah-isme/virtual-office/internal/obs"
)

// Input is the create/edit form. Users holds the raw comma or newline
// separated username list.
type Input struct {
	Code         string          `json:"code" validate:"required"`
	Description  string          `json:"description" validate:"max=200"`
	Type         Type            `json:"type" validate:"required,oneof=PERCENT FIXED"`
	Value        decimal.Decimal `json:"value"`
	Start        string          `json:"start"`
	End          string          `json:"end"`
	MaxUses      int             `json:"maxUses" validate:"gte=0"`
	Active       *bool           `json:"active"`
	Users        string          `json:"users"`
	NewUsersOnly bool            `json:"newUsersOnly"`
	MinSpend     decimal.Decimal `json:"minSpendGBP"`
}

// ListResult is one page of promotions.
type ListResult struct {
	Items      []Promo
	Pagination common.Pagination
}

// Service manages promotions. Mutations hold a lock so concurrent admins do
// not overwrite each other.
type Service struct {
	Repo   Repository
	Locker lock.Locker
	Log    zerolog.Logger
	Now    func() time.Time
	NewID  func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) mutate(ctx context.Context, action string, fn func([]Promo) ([]Promo, error)) error {
	err := s.Locker.WithLock(ctx, "promotions", func(ctx context.Context) error {
		promos, err := s.Repo.Load(ctx)
		if err != nil {
			return err
		}
		next, err := fn(promos)
		if err != nil {
			return err
		}
		return s.Repo.Save(ctx, next)
	})
	if err == nil && obs.PromotionChangesTotal != nil {
		obs.PromotionChangesTotal.WithLabelValues(action).Inc()
	}
	return err
}

func (s *Service) draft(in Input) Promo {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	minSpend := in.MinSpend
	if minSpend.IsNegative() {
		minSpend = decimal.Zero
	}
	return Promo{
		Code:         strings.ToUpper(strings.TrimSpace(in.Code)),
		Description:  strings.TrimSpace(in.Description),
		Type:         in.Type,
		Value:        in.Value,
		Start:        strings.TrimSpace(in.Start),
		End:          strings.TrimSpace(in.End),
		MaxUses:      in.MaxUses,
		Active:       active,
		AllowedUsers: ParseUsers(in.Users),
		NewUsersOnly: in.NewUsersOnly,
		MinSpend:     minSpend,
	}
}

// Create validates and prepends a new promotion.
func (s *Service) Create(ctx context.Context, in Input) (Promo, error) {
	p := s.draft(in)
	p.ID = s.newID()
	p.CreatedAt = s.now()
	err := s.mutate(ctx, "create", func(promos []Promo) ([]Promo, error) {
		if err := Validate(p, promos); err != nil {
			return nil, err
		}
		return append([]Promo{p}, promos...), nil
	})
	if err != nil {
		return Promo{}, err
	}
	s.Log.Info().Str("promotion_id", p.ID).Str("code", p.Code).Msg("promotion created")
	return p, nil
}

// Update replaces an existing promotion, keeping its id, creation time and
// usage count.
func (s *Service) Update(ctx context.Context, id string, in Input) (Promo, error) {
	p := s.draft(in)
	p.ID = id
	err := s.mutate(ctx, "update", func(promos []Promo) ([]Promo, error) {
		idx := indexOf(promos, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		if err := Validate(p, promos); err != nil {
			return nil, err
		}
		p.CreatedAt = promos[idx].CreatedAt
		p.Used = promos[idx].Used
		promos[idx] = p
		return promos, nil
	})
	if err != nil {
		return Promo{}, err
	}
	return p, nil
}

// Remove deletes a promotion.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, "remove", func(promos []Promo) ([]Promo, error) {
		idx := indexOf(promos, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		return append(promos[:idx], promos[idx+1:]...), nil
	})
}

// ToggleActive flips the active flag and returns the updated promotion.
func (s *Service) ToggleActive(ctx context.Context, id string) (Promo, error) {
	var out Promo
	err := s.mutate(ctx, "toggle", func(promos []Promo) ([]Promo, error) {
		idx := indexOf(promos, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		promos[idx].Active = !promos[idx].Active
		out = promos[idx]
		return promos, nil
	})
	return out, err
}

// List searches code and description and returns the requested page.
func (s *Service) List(ctx context.Context, query string, page, perPage int) (ListResult, error) {
	promos, err := s.Repo.Load(ctx)
	if err != nil {
		return ListResult{}, err
	}
	term := strings.ToLower(strings.TrimSpace(query))
	filtered := make([]Promo, 0, len(promos))
	for _, p := range promos {
		if term == "" || strings.Contains(strings.ToLower(p.Code), term) || strings.Contains(strings.ToLower(p.Description), term) {
			filtered = append(filtered, p)
		}
	}
	start, end, meta := common.Paginate(len(filtered), page, perPage)
	return ListResult{Items: filtered[start:end], Pagination: meta}, nil
}

// Preview finds a promotion by code and evaluates it for an audience and
// amount.
func (s *Service) Preview(ctx context.Context, code string, a Audience, amount decimal.Decimal) (Promo, decimal.Decimal, error) {
	promos, err := s.Repo.Load(ctx)
	if err != nil {
		return Promo{}, decimal.Zero, err
	}
	code = strings.TrimSpace(code)
	for _, p := range promos {
		if !strings.EqualFold(p.Code, code) {
			continue
		}
		if err := p.Check(s.now(), a); err != nil {
			return p, decimal.Zero, err
		}
		return p, p.Discount(amount), nil
	}
	return Promo{}, decimal.Zero, ErrNotFound
}

func indexOf(promos []Promo, id string) int {
	for i, p := range promos {
		if p.ID == id {
			return i
		}
	}
	return -1
}
