package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

type memoryRecord struct {
	sub        models.Subscription
	sourceHash string
}

// InMemoryRepository is a Repository for local runs and tests. It applies the same
// matching rules as the PostgreSQL query.
type InMemoryRepository struct {
	records map[int64]*memoryRecord
	nextID  int64
	mu      sync.RWMutex
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[int64]*memoryRecord),
		nextID:  1,
	}
}

func (r *InMemoryRepository) FindSubscription(ctx context.Context, sub *models.Subscription, sourceHash string) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.sorted() {
		s := rec.sub
		if s.Consumer == sub.Consumer &&
			s.EndPoint == sub.EndPoint &&
			s.ResourceFilter == sub.ResourceFilter &&
			rec.sourceHash == sourceHash &&
			s.SubjectFilter == sub.SubjectFilter &&
			s.TypeFilter == sub.TypeFilter {
			return copyOf(rec), nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (r *InMemoryRepository) CreateSubscription(ctx context.Context, sub *models.Subscription, sourceHash string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &memoryRecord{sub: *sub, sourceHash: sourceHash}
	rec.sub.ID = r.nextID
	rec.sub.Created = time.Now().UTC()
	rec.sub.Validated = false
	rec.sub.AlternativeSubjectFilter = ""
	r.records[rec.sub.ID] = rec
	r.nextID++

	return copyOf(rec), nil
}

func (r *InMemoryRepository) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return nil, ErrSubscriptionNotFound
	}
	return copyOf(rec), nil
}

func (r *InMemoryRepository) GetSubscriptionsByConsumer(ctx context.Context, consumer string, includeUnvalidated bool) ([]*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]*models.Subscription, 0)
	recs := r.sorted()
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		if rec.sub.Consumer != consumer {
			continue
		}
		if !rec.sub.Validated && !includeUnvalidated {
			continue
		}
		subs = append(subs, copyOf(rec))
	}
	return subs, nil
}

func (r *InMemoryRepository) DeleteSubscription(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return ErrSubscriptionNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *InMemoryRepository) SetValidSubscription(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return ErrSubscriptionNotFound
	}
	rec.sub.Validated = true
	return nil
}

func (r *InMemoryRepository) GetSubscriptions(ctx context.Context, q models.MatchQuery) ([]*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]*models.Subscription, 0)
	for _, rec := range r.sorted() {
		if matches(&rec.sub, q) {
			subs = append(subs, copyOf(rec))
		}
	}
	return subs, nil
}

func (r *InMemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *InMemoryRepository) Close() error {
	return nil
}

// sorted returns records by ascending id. Callers hold the lock.
func (r *InMemoryRepository) sorted() []*memoryRecord {
	recs := make([]*memoryRecord, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].sub.ID < recs[j].sub.ID })
	return recs
}

func matches(s *models.Subscription, q models.MatchQuery) bool {
	if !s.Validated {
		return false
	}

	sourceOK := s.SourceFilter != "" && (s.SourceFilter == q.SourceKey || like(q.SourceKey, s.SourceFilter))
	if s.SourceFilter == "" {
		sourceOK = s.ResourceFilter != "" && s.ResourceFilter == q.Resource
	}
	if !sourceOK {
		return false
	}

	if q.Resource != "" && s.ResourceFilter != "" && s.ResourceFilter != q.Resource {
		return false
	}
	if s.SubjectFilter != "" && s.SubjectFilter != q.Subject {
		return false
	}
	if s.TypeFilter != "" && s.TypeFilter != q.Type {
		return false
	}
	return true
}

// like reports whether s matches a SQL LIKE pattern, where % matches any run of
// characters and _ matches exactly one.
func like(s, pattern string) bool {
	str, pat := []rune(s), []rune(pattern)
	si, pi := 0, 0
	starPi, starSi := -1, 0

	for si < len(str) {
		switch {
		case pi < len(pat) && pat[pi] == '%':
			starPi, starSi = pi, si
			pi++
		case pi < len(pat) && (pat[pi] == '_' || pat[pi] == str[si]):
			si++
			pi++
		case starPi >= 0:
			starSi++
			si = starSi
			pi = starPi + 1
		default:
			return false
		}
	}
	for pi < len(pat) && pat[pi] == '%' {
		pi++
	}
	return pi == len(pat)
}

func copyOf(rec *memoryRecord) *models.Subscription {
	sub := rec.sub
	return &sub
}
