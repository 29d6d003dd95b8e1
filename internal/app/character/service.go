package character

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rpg-server/internal/domain/character"
	"rpg-server/internal/platform/mq"
	"rpg-server/internal/store"
)

var (
	ErrNameRequired = errors.New("character name is required")
	ErrNameTaken    = errors.New("character name already in use")
	ErrNotFound     = errors.New("character not found")
	ErrForbidden    = errors.New("forbidden")
)

// Store is the slice of the persistence layer the character lifecycle
// needs. The database's unique index on name arbitrates creation races.
type Store interface {
	Create(ctx context.Context, accountID int64, name string) (character.Character, error)
	FindByID(ctx context.Context, id int64) (character.Character, error)
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	store    Store
	cache    *redis.Client
	cacheTTL time.Duration
	bus      mq.Bus
}

func NewService(st Store, cache *redis.Client, cacheTTL time.Duration, bus mq.Bus) *Service {
	return &Service{store: st, cache: cache, cacheTTL: cacheTTL, bus: bus}
}

// Create stores a new character owned by accountID with the default stats
// and empty inventory/equipment. Only the new id is returned.
func (s *Service) Create(ctx context.Context, accountID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrNameRequired
	}
	c, err := s.store.Create(ctx, accountID, name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, ErrNameTaken
		}
		return 0, fmt.Errorf("create character: %w", err)
	}
	s.publish(ctx, "game.character.created", map[string]any{"character_id": c.ID, "account_id": c.AccountID, "name": c.Name})
	return c.ID, nil
}

// Get returns the caller-appropriate projection: name/health/power for
// everyone, money only when the caller owns the character.
func (s *Service) Get(ctx context.Context, callerAccountID, characterID int64) (character.View, error) {
	c, err := s.fetch(ctx, characterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return character.View{}, ErrNotFound
		}
		return character.View{}, fmt.Errorf("get character: %w", err)
	}
	return c.ViewFor(callerAccountID), nil
}

// Delete removes the character if and only if accountID owns it. A second
// delete of the same id reports not-found, never a silent success.
func (s *Service) Delete(ctx context.Context, accountID, characterID int64) error {
	c, err := s.store.FindByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get character: %w", err)
	}
	if !c.OwnedBy(accountID) {
		return ErrForbidden
	}
	if err := s.store.Delete(ctx, characterID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete character: %w", err)
	}
	s.invalidate(ctx, characterID)
	s.publish(ctx, "game.character.deleted", map[string]any{"character_id": characterID, "account_id": accountID})
	return nil
}

// fetch is cache-aside over the full record; the projection is applied
// per caller afterwards so the cache never decides who sees money.
func (s *Service) fetch(ctx context.Context, characterID int64) (character.Character, error) {
	key := s.cacheKey(characterID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			var c character.Character
			if uErr := json.Unmarshal([]byte(cached), &c); uErr == nil {
				return c, nil
			}
		}
	}
	c, err := s.store.FindByID(ctx, characterID)
	if err != nil {
		return character.Character{}, err
	}
	if s.cache != nil {
		if b, err := json.Marshal(c); err == nil {
			_ = s.cache.Set(ctx, key, b, s.cacheTTL).Err()
		}
	}
	return c, nil
}

func (s *Service) cacheKey(characterID int64) string {
	return "character:" + strconv.FormatInt(characterID, 10)
}

func (s *Service) invalidate(ctx context.Context, characterID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, s.cacheKey(characterID)).Err()
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = s.bus.Publish(ctx, subject, b)
}
