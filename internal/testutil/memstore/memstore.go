// Package memstore is an in-memory credential store for tests. It
// implements every repository interface of the service package plus a
// Transactor that restores a snapshot when the transaction function fails.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/learning-api/internal/model"
	"github.com/iliyamo/learning-api/internal/repository"
	"github.com/iliyamo/learning-api/internal/service"
)

type state struct {
	users    map[string]model.User
	refresh  map[string]model.RefreshToken       // by hash
	reset    map[string]model.PasswordResetToken // by hash
	grants   map[[2]string]model.UserProduct
	products map[string]model.Product
}

func (s state) clone() state {
	c := state{
		users:    make(map[string]model.User, len(s.users)),
		refresh:  make(map[string]model.RefreshToken, len(s.refresh)),
		reset:    make(map[string]model.PasswordResetToken, len(s.reset)),
		grants:   make(map[[2]string]model.UserProduct, len(s.grants)),
		products: make(map[string]model.Product, len(s.products)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.refresh {
		c.refresh[k] = v
	}
	for k, v := range s.reset {
		c.reset[k] = v
	}
	for k, v := range s.grants {
		c.grants[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	return c
}

// Store holds all tables. The zero value is not usable; call New.
type Store struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	st    state
	fail  map[string]error
	calls map[string]int
}

func New() *Store {
	return &Store{
		st:    state{}.clone(),
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

// FailOn makes the named operation (e.g. "refresh.DeleteAllForUser")
// return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Calls reports how many times op ran.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter locks the store and records op. The returned error is the
// injected failure, if any; the lock is held either way.
func (s *Store) enter(op string) error {
	s.mu.Lock()
	s.calls[op]++
	return s.fail[op]
}

func (s *Store) Users() *Users           { return &Users{s} }
func (s *Store) RefreshTokens() *Refresh { return &Refresh{s} }
func (s *Store) ResetTokens() *Reset     { return &Reset{s} }
func (s *Store) Grants() *Grants         { return &Grants{s} }
func (s *Store) Products() *Products     { return &Products{s} }

func (s *Store) Repositories() service.Repositories {
	return service.Repositories{Users: s.Users(), RefreshTokens: s.RefreshTokens(), ResetTokens: s.ResetTokens()}
}

// WithTx runs fn against the same store and restores the pre-call state
// if fn returns an error. Transactions are serialized.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos service.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()

	if err := fn(ctx, s.Repositories()); err != nil {
		s.mu.Lock()
		s.st = snap
		s.mu.Unlock()
		return err
	}
	return nil
}

// RefreshCount returns the number of stored refresh tokens for userID.
func (s *Store) RefreshCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.st.refresh {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// ResetCount returns the number of stored reset tokens.
func (s *Store) ResetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.reset)
}

// ExpireRefreshTokens moves every refresh token's expiry to at.
func (s *Store) ExpireRefreshTokens(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.st.refresh {
		t.ExpiresAt = at
		s.st.refresh[k] = t
	}
}

// ExpireResetTokens moves every reset token's expiry to at.
func (s *Store) ExpireResetTokens(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.st.reset {
		t.ExpiresAt = at
		s.st.reset[k] = t
	}
}

type Users struct{ s *Store }

func (r *Users) Create(ctx context.Context, u *model.User) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.Create"); err != nil {
		return err
	}
	u.Email = repository.NormalizeEmail(u.Email)
	for _, existing := range r.s.st.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.st.users[u.ID] = *u
	return nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (model.User, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.GetByEmail"); err != nil {
		return model.User{}, err
	}
	email = repository.NormalizeEmail(email)
	for _, u := range r.s.st.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (r *Users) GetByID(ctx context.Context, id string) (model.User, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.GetByID"); err != nil {
		return model.User{}, err
	}
	u, ok := r.s.st.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *Users) UpdatePassword(ctx context.Context, id, hash string) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.UpdatePassword"); err != nil {
		return err
	}
	u, ok := r.s.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	r.s.st.users[id] = u
	return nil
}

func (r *Users) UpdateName(ctx context.Context, id, name string) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.UpdateName"); err != nil {
		return err
	}
	u, ok := r.s.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Name = name
	r.s.st.users[id] = u
	return nil
}

func (r *Users) UpdateRole(ctx context.Context, id string, role model.Role) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.UpdateRole"); err != nil {
		return err
	}
	u, ok := r.s.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	r.s.st.users[id] = u
	return nil
}

// Delete removes the user and cascades to tokens and grants.
func (r *Users) Delete(ctx context.Context, id string) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.st.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.st.users, id)
	for k, t := range r.s.st.refresh {
		if t.UserID == id {
			delete(r.s.st.refresh, k)
		}
	}
	for k, t := range r.s.st.reset {
		if t.UserID == id {
			delete(r.s.st.reset, k)
		}
	}
	for k := range r.s.st.grants {
		if k[0] == id {
			delete(r.s.st.grants, k)
		}
	}
	return nil
}

type Refresh struct{ s *Store }

func (r *Refresh) StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("refresh.StoreRefresh"); err != nil {
		return err
	}
	if _, ok := r.s.st.refresh[tokenHash]; ok {
		return repository.ErrDuplicate
	}
	r.s.st.refresh[tokenHash] = model.RefreshToken{
		ID: uuid.NewString(), UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *Refresh) FindRefresh(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("refresh.FindRefresh"); err != nil {
		return model.RefreshToken{}, err
	}
	t, ok := r.s.st.refresh[tokenHash]
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return t, nil
}

func (r *Refresh) DeleteRefresh(ctx context.Context, tokenHash string) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("refresh.DeleteRefresh"); err != nil {
		return err
	}
	delete(r.s.st.refresh, tokenHash)
	return nil
}

func (r *Refresh) DeleteRefreshForUser(ctx context.Context, tokenHash, userID string) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("refresh.DeleteRefreshForUser"); err != nil {
		return err
	}
	if t, ok := r.s.st.refresh[tokenHash]; ok && t.UserID == userID {
		delete(r.s.st.refresh, tokenHash)
	}
	return nil
}

func (r *Refresh) DeleteAllForUser(ctx context.Context, userID string) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("refresh.DeleteAllForUser"); err != nil {
		return err
	}
	for k, t := range r.s.st.refresh {
		if t.UserID == userID {
			delete(r.s.st.refresh, k)
		}
	}
	return nil
}

func (r *Refresh) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("refresh.DeleteExpired"); err != nil {
		return 0, err
	}
	var n int64
	for k, t := range r.s.st.refresh {
		if t.Expired(now) {
			delete(r.s.st.refresh, k)
			n++
		}
	}
	return n, nil
}

type Reset struct{ s *Store }

func (r *Reset) Create(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("reset.Create"); err != nil {
		return err
	}
	r.s.st.reset[tokenHash] = model.PasswordResetToken{
		ID: uuid.NewString(), UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *Reset) FindByHash(ctx context.Context, tokenHash string) (model.PasswordResetToken, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("reset.FindByHash"); err != nil {
		return model.PasswordResetToken{}, err
	}
	t, ok := r.s.st.reset[tokenHash]
	if !ok {
		return model.PasswordResetToken{}, repository.ErrNotFound
	}
	return t, nil
}

func (r *Reset) Delete(ctx context.Context, id string) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("reset.Delete"); err != nil {
		return err
	}
	for k, t := range r.s.st.reset {
		if t.ID == id {
			delete(r.s.st.reset, k)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *Reset) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("reset.DeleteExpired"); err != nil {
		return 0, err
	}
	var n int64
	for k, t := range r.s.st.reset {
		if t.Expired(now) {
			delete(r.s.st.reset, k)
			n++
		}
	}
	return n, nil
}

type Grants struct{ s *Store }

func (r *Grants) Grant(ctx context.Context, userID, productID string) (model.UserProduct, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("grants.Grant"); err != nil {
		return model.UserProduct{}, err
	}
	if _, ok := r.s.st.users[userID]; !ok {
		return model.UserProduct{}, repository.ErrReferenceMissing
	}
	if _, ok := r.s.st.products[productID]; !ok {
		return model.UserProduct{}, repository.ErrReferenceMissing
	}
	key := [2]string{userID, productID}
	if _, ok := r.s.st.grants[key]; ok {
		return model.UserProduct{}, repository.ErrDuplicate
	}
	up := model.UserProduct{UserID: userID, ProductID: productID, CreatedAt: time.Now().UTC()}
	r.s.st.grants[key] = up
	return up, nil
}

func (r *Grants) Revoke(ctx context.Context, userID, productID string) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("grants.Revoke"); err != nil {
		return err
	}
	key := [2]string{userID, productID}
	if _, ok := r.s.st.grants[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.st.grants, key)
	return nil
}

func (r *Grants) Exists(ctx context.Context, userID, productID string) (bool, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("grants.Exists"); err != nil {
		return false, err
	}
	_, ok := r.s.st.grants[[2]string{userID, productID}]
	return ok, nil
}

func (r *Grants) ListByUser(ctx context.Context, userID string) ([]model.Product, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("grants.ListByUser"); err != nil {
		return nil, err
	}
	out := []model.Product{}
	for k := range r.s.st.grants {
		if k[0] == userID {
			out = append(out, r.s.st.products[k[1]])
		}
	}
	return out, nil
}

type Products struct{ s *Store }

func (r *Products) Create(ctx context.Context, p *model.Product) error {
	defer r.s.mu.Unlock()
	if err := r.s.enter("products.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.st.products {
		if existing.Slug == p.Slug {
			return repository.ErrDuplicate
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.s.st.products[p.ID] = *p
	return nil
}

func (r *Products) GetByID(ctx context.Context, id string) (model.Product, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("products.GetByID"); err != nil {
		return model.Product{}, err
	}
	p, ok := r.s.st.products[id]
	if !ok {
		return model.Product{}, repository.ErrNotFound
	}
	return p, nil
}

// ListActive returns active products, newest first.
func (r *Products) ListActive(ctx context.Context) ([]model.Product, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("products.ListActive"); err != nil {
		return nil, err
	}
	out := []model.Product{}
	for _, p := range r.s.st.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
