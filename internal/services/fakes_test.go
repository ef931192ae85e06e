package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/vecmath"
	"github.com/temcen/newsrank/pkg/models"
)

var errStoreDown = errors.New("store unavailable")

// memoryStore is an in-memory Store. Setting an err field makes the
// corresponding call fail.
type memoryStore struct {
	mu           sync.Mutex
	articles     []models.Article
	users        map[uuid.UUID]*models.User
	interactions []models.Interaction
	upserts      int

	errGetUser      error
	errInteractions error
	errArticles     error
	errNearest      error
	errUpsert       error
	errInsert       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[uuid.UUID]*models.User)}
}

func (m *memoryStore) addArticle(a models.Article) models.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.articles = append(m.articles, a)
	return a
}

func (m *memoryStore) addInteraction(userID, articleID uuid.UUID, kind string, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, models.Interaction{
		ID: uuid.New(), UserID: userID, ArticleID: articleID, Kind: kind, Timestamp: ts,
	})
}

func (m *memoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errGetUser != nil {
		return nil, m.errGetUser
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memoryStore) UpsertUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errUpsert != nil {
		return m.errUpsert
	}
	cp := *user
	m.users[user.ID] = &cp
	m.upserts++
	return nil
}

func (m *memoryStore) GetInteractions(_ context.Context, userID uuid.UUID) ([]models.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errInteractions != nil {
		return nil, m.errInteractions
	}
	var out []models.Interaction
	for _, in := range m.interactions {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memoryStore) InsertInteraction(_ context.Context, in *models.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errInsert != nil {
		return m.errInsert
	}
	m.interactions = append(m.interactions, *in)
	return nil
}

func (m *memoryStore) GetArticlesByIDs(_ context.Context, ids []uuid.UUID) ([]models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errArticles != nil {
		return nil, m.errArticles
	}
	want := idSet(ids)
	var out []models.Article
	for _, a := range m.articles {
		if _, ok := want[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) newestFirst(exclude []uuid.UUID, keep func(models.Article) bool, limit int) []models.Article {
	excluded := idSet(exclude)
	var out []models.Article
	for _, a := range m.articles {
		if _, skip := excluded[a.ID]; skip || !keep(a) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memoryStore) GetArticlesNewestFirst(_ context.Context, exclude []uuid.UUID, limit int) ([]models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errArticles != nil {
		return nil, m.errArticles
	}
	return m.newestFirst(exclude, func(models.Article) bool { return true }, limit), nil
}

func (m *memoryStore) GetArticlesSince(_ context.Context, since time.Time, exclude []uuid.UUID, limit int) ([]models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errArticles != nil {
		return nil, m.errArticles
	}
	return m.newestFirst(exclude, func(a models.Article) bool { return !a.PublishedAt.Before(since) }, limit), nil
}

func (m *memoryStore) GetArticlesNearestTo(_ context.Context, vector []float32, exclude []uuid.UUID, limit int) ([]models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errNearest != nil {
		return nil, m.errNearest
	}
	excluded := idSet(exclude)
	type scored struct {
		article models.Article
		sim     float64
	}
	var pool []scored
	for _, a := range m.articles {
		if _, skip := excluded[a.ID]; skip || !a.HasEmbedding() {
			continue
		}
		sim, err := vecmath.Cosine(vector, a.Embedding)
		if err != nil {
			continue
		}
		pool = append(pool, scored{a, sim})
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].sim > pool[j].sim })
	out := make([]models.Article, 0, len(pool))
	for i := 0; i < len(pool) && i < limit; i++ {
		out = append(out, pool[i].article)
	}
	return out, nil
}

func (m *memoryStore) InsertArticles(_ context.Context, articles []models.Article) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errInsert != nil {
		return 0, m.errInsert
	}
	stored := 0
	for _, a := range articles {
		dup := false
		for _, existing := range m.articles {
			if existing.Link == a.Link {
				dup = true
				break
			}
		}
		if !dup {
			m.articles = append(m.articles, a)
			stored++
		}
	}
	return stored, nil
}

func (m *memoryStore) ExistingLinks(_ context.Context, links []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := make(map[string]bool)
	for _, link := range links {
		for _, a := range m.articles {
			if a.Link == link {
				existing[link] = true
			}
		}
	}
	return existing, nil
}

func (m *memoryStore) ArticlesMissingEmbedding(_ context.Context, limit int) ([]models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errArticles != nil {
		return nil, m.errArticles
	}
	return m.newestFirst(nil, func(a models.Article) bool { return !a.HasEmbedding() }, limit), nil
}

func (m *memoryStore) SetArticleEmbedding(_ context.Context, id uuid.UUID, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.articles {
		if m.articles[i].ID == id {
			m.articles[i].Embedding = embedding
			return nil
		}
	}
	return errors.New("article not found")
}

func (m *memoryStore) article(id uuid.UUID) models.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.articles {
		if a.ID == id {
			return a
		}
	}
	return models.Article{}
}

// stubEmbedder returns a fixed vector per text, or err.
type stubEmbedder struct {
	dim   int
	err   error
	calls int
}

func (e *stubEmbedder) Dimension() int { return e.dim }

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, e.dim)
		v[i%e.dim] = 1
		out[i] = v
	}
	return out, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testRankingConfig() *config.RankingConfig {
	return &config.Default().Ranking
}
