package training

import (
	"context"
	"sort"
	"sync"

	"github.com/kapu/opening-trainer/internal/domain"
)

// memrepo is a development-only in-memory repository implementation used when no DB is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	completionsByAttempt map[string]*domain.DrillCompletion // attemptUUID -> completion
	completionsByTrainee map[string][]*domain.DrillCompletion

	profiles map[string]*domain.TrainerProfile // traineeHash -> profile
}

func NewMemoryRepository() Repository {
	return &memrepo{
		completionsByAttempt: make(map[string]*domain.DrillCompletion),
		completionsByTrainee: make(map[string][]*domain.DrillCompletion),
		profiles:             make(map[string]*domain.TrainerProfile),
	}
}

func (m *memrepo) InsertCompletion(ctx context.Context, c *domain.DrillCompletion) (int64, error) {
	if c == nil {
		return 0, ErrDuplicateCompletion
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.completionsByAttempt[c.AttemptUUID]; exists {
		return 0, ErrDuplicateCompletion
	}

	m.nextID++
	copy := *c
	copy.ID = m.nextID

	m.completionsByAttempt[c.AttemptUUID] = &copy
	m.completionsByTrainee[c.TraineeHash] = append(m.completionsByTrainee[c.TraineeHash], &copy)

	return copy.ID, nil
}

func (m *memrepo) RecentCompletions(ctx context.Context, traineeHash string, limit int) ([]*domain.DrillCompletion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.completionsByTrainee[traineeHash]
	if len(list) == 0 {
		return []*domain.DrillCompletion{}, nil
	}
	items := append([]*domain.DrillCompletion(nil), list...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CompletedAt.Equal(items[j].CompletedAt) {
			return items[i].CompletedAt.After(items[j].CompletedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) SucceededVariations(ctx context.Context, traineeHash, openingID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, c := range m.completionsByTrainee[traineeHash] {
		if c.OpeningID == openingID && c.Success {
			seen[c.VariationName] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memrepo) GetProfile(ctx context.Context, traineeHash string) (*domain.TrainerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[traineeHash]; ok && p != nil {
		copy := *p
		return &copy, nil
	}
	return nil, nil
}

func (m *memrepo) UpsertProfile(ctx context.Context, profile *domain.TrainerProfile) error {
	if profile == nil {
		return nil
	}
	m.mu.Lock()
	copy := *profile
	m.profiles[profile.TraineeHash] = &copy
	m.mu.Unlock()
	return nil
}

func (m *memrepo) TopProfiles(ctx context.Context, limit int) ([]*domain.TrainerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*domain.TrainerProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		copy := *p
		items = append(items, &copy)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].TotalXP != items[j].TotalXP {
			return items[i].TotalXP > items[j].TotalXP
		}
		return items[i].DrillsCompleted > items[j].DrillsCompleted
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
