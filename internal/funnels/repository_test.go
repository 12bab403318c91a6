package funnels

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-funnels/internal/common/config"
	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/docstore"
	"quiz-funnels/internal/flagstore"
	"quiz-funnels/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() Config {
	return Config{
		Collection: "funnels",
		Timeout:    time.Second,
		Migration: config.MigrationConfig{
			FlagKey:         "hasMigratedToFirestore",
			LegacyQuestions: "quizQuestions",
			LegacyLinks:     "affiliateLinks",
			MigratedName:    "Migrated Funnel (from LocalStorage)",
		},
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *recordingPublisher) Publish(event models.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) actions() []models.ChangeAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ChangeAction, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

// flakyStore wraps a MemoryStore and fails the selected operations.
type flakyStore struct {
	*docstore.MemoryStore
	failAdd  bool
	failAll  bool
	addCalls int
}

var errUnreachable = errors.New("dial tcp: connection refused")

func (s *flakyStore) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	s.addCalls++
	if s.failAdd || s.failAll {
		return "", errUnreachable
	}
	return s.MemoryStore.Add(ctx, collection, fields)
}

func (s *flakyStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if s.failAll {
		return nil, errUnreachable
	}
	return s.MemoryStore.Get(ctx, collection, id)
}

func (s *flakyStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	if s.failAll {
		return nil, errUnreachable
	}
	return s.MemoryStore.List(ctx, collection)
}

func (s *flakyStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if s.failAll {
		return errUnreachable
	}
	return s.MemoryStore.Update(ctx, collection, id, fields)
}

func (s *flakyStore) Delete(ctx context.Context, collection, id string) error {
	if s.failAll {
		return errUnreachable
	}
	return s.MemoryStore.Delete(ctx, collection, id)
}

func newTestRepository(t *testing.T, flags flagstore.Store) (*Repository, *flakyStore, *recordingPublisher) {
	store := &flakyStore{MemoryStore: docstore.NewMemoryStore()}
	pub := &recordingPublisher{}
	repo := NewRepository(createTestConfig(), store, flags, pub, logger.NewTestLogger(t))
	return repo, store, pub
}

func seedLegacy(t *testing.T, flags flagstore.Store, questions, links string) {
	ctx := context.Background()
	if questions != "" {
		require.NoError(t, flags.Set(ctx, "quizQuestions", questions))
	}
	if links != "" {
		require.NoError(t, flags.Set(ctx, "affiliateLinks", links))
	}
}

const legacyQuestions = `[
	{"id":"q1","title":"Favourite colour?","type":"single-choice","answers":[{"id":"a1","text":"Red"},{"id":"a2","text":"Blue"}]},
	{"title":"No id here","answers":[{"text":"Yes"}]}
]`

// ==========================
// CRUD Tests
// ==========================

func TestRepository_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo, _, pub := newTestRepository(t, nil)

	created, err := repo.Create(ctx, "Spring Sale")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Spring Sale", created.Name)
	assert.Equal(t, models.DefaultFunnelData(), created.Data)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)

	data := got.Data.Clone()
	data.FinalRedirectLink = "https://x.com/page"
	data.Tracking = "utm=1"
	require.NoError(t, repo.Update(ctx, created.ID, data))

	got, err = repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spring Sale", got.Name, "update leaves the name untouched")
	assert.Equal(t, "https://x.com/page", got.Data.FinalRedirectLink)
	assert.Equal(t, "utm=1", got.Data.Tracking)

	require.NoError(t, repo.Delete(ctx, created.ID))
	require.NoError(t, repo.Delete(ctx, created.ID), "delete is idempotent")

	_, err = repo.Get(ctx, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	assert.Equal(t, []models.ChangeAction{
		models.ChangeCreated, models.ChangeUpdated, models.ChangeDeleted, models.ChangeDeleted,
	}, pub.actions())
}

func TestRepository_CreateRejectsBlankName(t *testing.T) {
	repo, store, _ := newTestRepository(t, nil)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := repo.Create(context.Background(), name)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation), "name %q", name)
	}
	assert.Zero(t, store.addCalls)
}

func TestRepository_UpdateMissingFunnel(t *testing.T) {
	repo, _, pub := newTestRepository(t, nil)

	err := repo.Update(context.Background(), "missing", models.DefaultFunnelData())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	assert.Empty(t, pub.actions())
}

func TestRepository_ListMergesDefaults(t *testing.T) {
	ctx := context.Background()
	repo, store, _ := newTestRepository(t, nil)
	defaults := models.DefaultFunnelData()

	_, err := store.MemoryStore.Add(ctx, "funnels", map[string]interface{}{
		"name": "Old funnel",
		"data": map[string]interface{}{
			"questions":         nil,
			"finalRedirectLink": "https://old.example.com",
		},
	})
	require.NoError(t, err)
	_, err = store.MemoryStore.Add(ctx, "funnels", map[string]interface{}{"name": "No data at all"})
	require.NoError(t, err)
	_, err = store.MemoryStore.Add(ctx, "funnels", map[string]interface{}{"name": "Corrupt", "data": "not an object"})
	require.NoError(t, err)

	funnels, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, funnels, 3)

	old := funnels[0]
	assert.Equal(t, "https://old.example.com", old.Data.FinalRedirectLink)
	assert.Equal(t, []models.Question{}, old.Data.Questions)
	assert.Equal(t, defaults.PrimaryColor, old.Data.PrimaryColor)
	assert.Equal(t, defaults.ButtonColor, old.Data.ButtonColor)
	assert.Equal(t, defaults.BackgroundColor, old.Data.BackgroundColor)
	assert.Equal(t, defaults.TextColor, old.Data.TextColor)
	assert.Equal(t, defaults.ConversionGoal, old.Data.ConversionGoal)

	assert.Equal(t, defaults, funnels[1].Data)
	assert.Equal(t, defaults, funnels[2].Data)
}

func TestRepository_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	repo, store, _ := newTestRepository(t, nil)
	store.failAll = true

	_, err := repo.List(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStoreUnavailable))
	assert.ErrorIs(t, err, errUnreachable)

	_, err = repo.Get(ctx, "x")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStoreUnavailable))

	_, err = repo.Create(ctx, "name")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStoreUnavailable))

	err = repo.Update(ctx, "x", models.DefaultFunnelData())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStoreUnavailable))

	err = repo.Delete(ctx, "x")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStoreUnavailable))
}

// ==========================
// Legacy Migration Tests
// ==========================

func TestRepository_MigratesLegacyDataOnce(t *testing.T) {
	ctx := context.Background()
	flags := flagstore.NewMemoryStore()
	seedLegacy(t, flags, legacyQuestions, `{"finalRedirectLink":"https://shop.example.com","tracking":"","conversionGoal":"Newsletter"}`)

	repo, store, pub := newTestRepository(t, flags)

	funnels, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, funnels, 1, "the list is reloaded after migrating")

	migrated := funnels[0]
	assert.Equal(t, "Migrated Funnel (from LocalStorage)", migrated.Name)
	assert.Equal(t, "https://shop.example.com", migrated.Data.FinalRedirectLink)
	assert.Equal(t, "", migrated.Data.Tracking)
	assert.Equal(t, "Newsletter", migrated.Data.ConversionGoal)
	assert.Equal(t, models.DefaultFunnelData().PrimaryColor, migrated.Data.PrimaryColor)

	require.Len(t, migrated.Data.Questions, 2)
	assert.Equal(t, "q1", migrated.Data.Questions[0].ID)
	assert.NotEmpty(t, migrated.Data.Questions[1].ID)
	assert.Equal(t, models.QuestionTypeSingleChoice, migrated.Data.Questions[1].Type)
	assert.NotEmpty(t, migrated.Data.Questions[1].Answers[0].ID)

	flag, ok, err := flags.Get(ctx, "hasMigratedToFirestore")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", flag)

	assert.Contains(t, pub.actions(), models.ChangeReload)

	funnels, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, funnels, 1)
	assert.Equal(t, 1, store.addCalls, "migration runs at most once")

	// a new process sees the flag and skips
	again := NewRepository(createTestConfig(), store, flags, nil, logger.NewNoOpLogger())
	funnels, err = again.List(ctx)
	require.NoError(t, err)
	assert.Len(t, funnels, 1)
	assert.Equal(t, 1, store.addCalls)
}

func TestRepository_MigrationSkipped(t *testing.T) {
	tests := []struct {
		name      string
		flag      string
		questions string
		links     string
	}{
		{"flag already set", "true", legacyQuestions, `{}`},
		{"no legacy links", "", legacyQuestions, ""},
		{"no legacy questions", "", "", `{}`},
		{"empty legacy question list", "", `[]`, `{}`},
		{"malformed legacy questions", "", `[{"title":`, `{}`},
		{"malformed legacy links", "", legacyQuestions, `{"finalRedirectLink"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			flags := flagstore.NewMemoryStore()
			if tt.flag != "" {
				require.NoError(t, flags.Set(ctx, "hasMigratedToFirestore", tt.flag))
			}
			seedLegacy(t, flags, tt.questions, tt.links)

			repo, store, pub := newTestRepository(t, flags)

			funnels, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, funnels)
			assert.Zero(t, store.addCalls)
			assert.Empty(t, pub.actions())
		})
	}
}

func TestRepository_MigrationEmptyLegacyLinksUseDefaults(t *testing.T) {
	ctx := context.Background()
	flags := flagstore.NewMemoryStore()
	seedLegacy(t, flags, legacyQuestions, `{}`)

	repo, _, _ := newTestRepository(t, flags)

	funnels, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, funnels, 1)
	assert.Equal(t, "", funnels[0].Data.FinalRedirectLink)
	assert.Equal(t, "Product Purchase", funnels[0].Data.ConversionGoal)
}

func TestRepository_MigrationFailureDoesNotFailList(t *testing.T) {
	ctx := context.Background()
	flags := flagstore.NewMemoryStore()
	seedLegacy(t, flags, legacyQuestions, `{}`)

	repo, store, _ := newTestRepository(t, flags)
	store.failAdd = true

	funnels, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, funnels)

	_, ok, err := flags.Get(ctx, "hasMigratedToFirestore")
	require.NoError(t, err)
	assert.False(t, ok, "flag stays unset so a later process can retry")
}

func TestRepository_MigrationWaitsForSuccessfulList(t *testing.T) {
	ctx := context.Background()
	flags := flagstore.NewMemoryStore()
	seedLegacy(t, flags, legacyQuestions, `{}`)

	repo, store, _ := newTestRepository(t, flags)
	store.failAll = true

	_, err := repo.List(ctx)
	require.Error(t, err)

	store.failAll = false
	funnels, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, funnels, 1)
}
