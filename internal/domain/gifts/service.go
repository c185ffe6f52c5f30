package gifts

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/singleflight"

	"github.com/nanopets/giftbot/internal/domain/auth"
	"github.com/nanopets/giftbot/internal/domain/errs"
)

// Classify maps a store error onto the error taxonomy. Missing records become
// NotFound with the given message; everything else is an upstream failure.
func Classify(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var classified *errs.Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return errs.NotFound("%s", notFound)
	}
	return errs.Upstream(err, "store unavailable")
}

type Service struct {
	store Store
	group singleflight.Group
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ResolvePrincipal returns the user record for a verified identity, creating
// it on first sight. Concurrent resolutions of one platform ID share a call.
func (s *Service) ResolvePrincipal(ctx context.Context, identity *auth.Identity) (*User, error) {
	if identity == nil || identity.ID == 0 {
		return nil, errs.AuthFailure("invalid authentication")
	}

	key := strconv.FormatInt(identity.ID, 10)
	// the flight outlives any single caller, so it runs detached from ctx
	flight := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.store.Users().FindOrCreate(flight, identity.ID, identity.Username)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, Classify(ctx.Err(), "user not found")
	case res = <-ch:
	}
	if err := res.Err; err != nil {
		slog.Error("Failed to resolve principal",
			slog.String("type", "db"),
			slog.Int64("platform_id", identity.ID),
			slog.Any("error", err))
		return nil, Classify(err, "user not found")
	}

	// callers sharing the flight must not share the record
	user := *res.Val.(*User)
	return &user, nil
}

func (s *Service) ListGifts(ctx context.Context, user *User) ([]*Gift, error) {
	list, err := s.store.Gifts().ListOwned(ctx, user.ID)
	if err != nil {
		return nil, Classify(err, "gifts not found")
	}
	return list, nil
}

func (s *Service) GetGift(ctx context.Context, user *User, giftID string) (*Gift, error) {
	if giftID == "" {
		return nil, errs.InvalidInput("missing gift id")
	}
	gift, err := s.store.Gifts().GetOwned(ctx, giftID, user.ID)
	if err != nil {
		return nil, Classify(err, "gift not found")
	}
	return gift, nil
}

func (s *Service) GetStyle(ctx context.Context, user *User) (Style, error) {
	fresh, err := s.store.Users().GetByID(ctx, user.ID)
	if err != nil {
		return "", Classify(err, "user not found")
	}
	return fresh.Style, nil
}

func (s *Service) SetStyle(ctx context.Context, user *User, style Style) (Style, error) {
	if !style.Valid() {
		if suggestion := suggestStyle(string(style)); suggestion != "" {
			return "", errs.InvalidInput("invalid style %q, did you mean %q?", style, suggestion)
		}
		return "", errs.InvalidInput("invalid style %q", style)
	}

	if err := s.store.Users().SetStyle(ctx, user.ID, style); err != nil {
		return "", Classify(err, "user not found")
	}
	user.Style = style
	return style, nil
}

func suggestStyle(input string) string {
	if input == "" {
		return ""
	}
	names := make([]string, len(Styles))
	for i, s := range Styles {
		names[i] = string(s)
	}
	matches := fuzzy.Find(input, names)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
