package memory

import (
	"context"
	"strings"
	"sync"

	"study-service/internal/domain"
)

// StudyRepository keeps studies in a map. Values are cloned on the way in and
// out so callers never share slices with the store.
type StudyRepository struct {
	mu      sync.RWMutex
	studies map[string]domain.Study
}

func NewStudyRepository() *StudyRepository {
	return &StudyRepository{studies: make(map[string]domain.Study)}
}

func (r *StudyRepository) Create(_ context.Context, study *domain.Study) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.studies[study.ID] = study.Clone()
	return nil
}

func (r *StudyRepository) Get(_ context.Context, userID, id string) (domain.Study, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	study, ok := r.studies[id]
	if !ok || study.UserID != userID {
		return domain.Study{}, domain.ErrStudyNotFound
	}
	return study.Clone(), nil
}

func (r *StudyRepository) List(_ context.Context, userID string) ([]domain.Study, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Study
	for _, s := range r.studies {
		if s.UserID == userID {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *StudyRepository) Update(_ context.Context, study *domain.Study) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.studies[study.ID]
	if !ok || current.UserID != study.UserID {
		return domain.ErrStudyNotFound
	}
	r.studies[study.ID] = study.Clone()
	return nil
}

// UserRepository keeps accounts in memory, indexed by id and lowercased email.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	email := strings.ToLower(user.Email)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[email]; taken {
		return domain.ErrEmailTaken
	}
	r.byID[user.ID] = *user
	r.byEmail[email] = user.ID
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.byID[id], nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}
