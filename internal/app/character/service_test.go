package character

import (
	"context"
	"errors"
	"testing"
	"time"

	"rpg-server/internal/domain/character"
	"rpg-server/internal/store"
)

type fakeCharacters struct {
	nextID int64
	byID   map[int64]character.Character
	byName map[string]int64
}

func newFakeCharacters() *fakeCharacters {
	return &fakeCharacters{byID: make(map[int64]character.Character), byName: make(map[string]int64)}
}

func (f *fakeCharacters) Create(_ context.Context, accountID int64, name string) (character.Character, error) {
	if _, ok := f.byName[name]; ok {
		return character.Character{}, store.ErrDuplicate
	}
	f.nextID++
	c := character.Character{
		ID:        f.nextID,
		AccountID: accountID,
		Name:      name,
		Health:    character.DefaultHealth,
		Power:     character.DefaultPower,
		Money:     character.DefaultMoney,
		CreatedAt: time.Now(),
	}
	f.byID[c.ID] = c
	f.byName[name] = c.ID
	return c, nil
}

func (f *fakeCharacters) FindByID(_ context.Context, id int64) (character.Character, error) {
	c, ok := f.byID[id]
	if !ok {
		return character.Character{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeCharacters) Delete(_ context.Context, id int64) error {
	c, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(f.byID, id)
	delete(f.byName, c.Name)
	return nil
}

func TestCreateUniqueName(t *testing.T) {
	s := NewService(newFakeCharacters(), nil, 0, nil)
	ctx := context.Background()

	id, err := s.Create(ctx, 1, "Hero")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero character id")
	}
	// Name uniqueness is global, not per account.
	if _, err := s.Create(ctx, 2, "Hero"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if _, err := s.Create(ctx, 1, "  "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestGetProjection(t *testing.T) {
	s := NewService(newFakeCharacters(), nil, 0, nil)
	ctx := context.Background()

	id, err := s.Create(ctx, 1, "Hero")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	owner, err := s.Get(ctx, 1, id)
	if err != nil {
		t.Fatalf("Get owner err: %v", err)
	}
	if owner.Name != "Hero" || owner.Health != 400 || owner.Power != 100 {
		t.Fatalf("unexpected owner view: %+v", owner)
	}
	if owner.Money == nil || *owner.Money != 10000 {
		t.Fatalf("expected owner view to include money=10000, got %+v", owner.Money)
	}

	public, err := s.Get(ctx, 2, id)
	if err != nil {
		t.Fatalf("Get non-owner err: %v", err)
	}
	if public.Money != nil {
		t.Fatalf("expected no money in non-owner view, got %d", *public.Money)
	}

	anon, err := s.Get(ctx, 0, id)
	if err != nil {
		t.Fatalf("Get anonymous err: %v", err)
	}
	if anon.Money != nil {
		t.Fatal("expected no money in anonymous view")
	}

	if _, err := s.Get(ctx, 1, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteOwnership(t *testing.T) {
	s := NewService(newFakeCharacters(), nil, 0, nil)
	ctx := context.Background()

	id, err := s.Create(ctx, 1, "Hero")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	if err := s.Delete(ctx, 2, id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner delete, got %v", err)
	}
	if _, err := s.Get(ctx, 1, id); err != nil {
		t.Fatalf("character should survive forbidden delete, got %v", err)
	}

	if err := s.Delete(ctx, 1, id); err != nil {
		t.Fatalf("owner delete err: %v", err)
	}
	if _, err := s.Get(ctx, 1, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// Second delete reports not-found, never a silent success.
	if err := s.Delete(ctx, 1, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}
