package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub stores
// ---------------------------------------------------------------------------

type stubAccountRepo struct {
	byID      map[string]*domain.Account
	createErr error
	findErr   error
	updateErr error
	deleteErr error
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{byID: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Roles = append([]string(nil), a.Roles...)
	return &clone
}

func (r *stubAccountRepo) Create(_ context.Context, a *domain.Account) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if existing.NormalizedEmail == a.NormalizedEmail || existing.NormalizedUsername == a.NormalizedUsername {
			return domain.ErrUserExists
		}
	}
	r.byID[a.ID] = cloneAccount(a)
	return nil
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, a := range r.byID {
		if a.NormalizedEmail == domain.NormalizeEmail(email) {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAccountRepo) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, a := range r.byID {
		if a.NormalizedUsername == domain.NormalizeUsername(username) {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAccountRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	a, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (r *stubAccountRepo) Delete(_ context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.byID[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byID, id)
	return nil
}

type stubRoleRepo struct {
	accounts  *stubAccountRepo
	byName    map[string]*domain.Role
	creates   int
	existsErr error
	createErr error
	assignErr error
}

func newStubRoleRepo(accounts *stubAccountRepo) *stubRoleRepo {
	return &stubRoleRepo{accounts: accounts, byName: make(map[string]*domain.Role)}
}

func (r *stubRoleRepo) Exists(_ context.Context, name string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, ok := r.byName[domain.NormalizeRoleName(name)]
	return ok, nil
}

func (r *stubRoleRepo) Create(_ context.Context, role *domain.Role) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byName[role.NormalizedName]; ok {
		return domain.ErrRoleExists
	}
	r.creates++
	clone := *role
	r.byName[role.NormalizedName] = &clone
	return nil
}

func (r *stubRoleRepo) AssignToAccount(_ context.Context, accountID, roleName string) error {
	if r.assignErr != nil {
		return r.assignErr
	}
	a, ok := r.accounts.byID[accountID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if !a.HasRole(roleName) {
		a.Roles = append(a.Roles, roleName)
	}
	return nil
}

// stubIssuer hands out opaque tokens that embed the account id and roles.
type stubIssuer struct {
	issued []ports.IssuedToken
	err    error
}

func (i *stubIssuer) Issue(a *domain.Account) (*ports.IssuedToken, error) {
	if i.err != nil {
		return nil, i.err
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	tok := ports.IssuedToken{
		Token:     fmt.Sprintf("%s|%s|%s", id, a.ID, strings.Join(a.Roles, ",")),
		ID:        id,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	i.issued = append(i.issued, tok)
	return &tok, nil
}

func (i *stubIssuer) Parse(token string) (*ports.TokenClaims, error) {
	parts := strings.SplitN(token, "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed token")
	}
	return &ports.TokenClaims{TokenID: parts[0], AccountID: parts[1], Roles: strings.Split(parts[2], ",")}, nil
}

type stubTokenStore struct {
	tracked   map[string][]string
	revoked   map[string]bool
	revokeErr error
}

func newStubTokenStore() *stubTokenStore {
	return &stubTokenStore{tracked: make(map[string][]string), revoked: make(map[string]bool)}
}

func (s *stubTokenStore) Track(_ context.Context, accountID string, t *ports.IssuedToken) error {
	s.tracked[accountID] = append(s.tracked[accountID], t.ID)
	return nil
}

func (s *stubTokenStore) RevokeAll(_ context.Context, accountID string) error {
	if s.revokeErr != nil {
		return s.revokeErr
	}
	for _, id := range s.tracked[accountID] {
		s.revoked[id] = true
	}
	delete(s.tracked, accountID)
	return nil
}

func (s *stubTokenStore) IsRevoked(_ context.Context, id string) (bool, error) {
	return s.revoked[id], nil
}

type stubThrottle struct {
	max      int
	failures map[string]int
	resets   int
}

func newStubThrottle(max int) *stubThrottle {
	return &stubThrottle{max: max, failures: make(map[string]int)}
}

func (t *stubThrottle) IsLocked(_ context.Context, key string) (bool, error) {
	return t.failures[key] >= t.max, nil
}

func (t *stubThrottle) RecordFailure(_ context.Context, key string) (bool, error) {
	t.failures[key]++
	return t.failures[key] >= t.max, nil
}

func (t *stubThrottle) Reset(_ context.Context, key string) error {
	t.resets++
	delete(t.failures, key)
	return nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAudit) Record(e domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) types() []domain.AuditEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	svc      *IdentityService
	accounts *stubAccountRepo
	roles    *stubRoleRepo
	issuer   *stubIssuer
	tokens   *stubTokenStore
	throttle *stubThrottle
	audit    *recordingAudit
}

const strongPassword = "Passw0rd!"

func newFixture() *fixture {
	accounts := newStubAccountRepo()
	f := &fixture{
		accounts: accounts,
		roles:    newStubRoleRepo(accounts),
		issuer:   &stubIssuer{},
		tokens:   newStubTokenStore(),
		throttle: newStubThrottle(3),
		audit:    &recordingAudit{},
	}
	f.svc = NewIdentityService(IdentityDeps{
		Accounts: f.accounts,
		Roles:    f.roles,
		Issuer:   f.issuer,
		Tokens:   f.tokens,
		Throttle: f.throttle,
		Hasher:   NewBcryptHasher(bcrypt.MinCost),
		Audit:    f.audit,
		Policy:   DefaultPasswordPolicy(),
	}, zerolog.Nop())
	return f
}

func (f *fixture) mustRegister(email, password string, roles ...string) *ports.RegisterResult {
	res, err := f.svc.Register(context.Background(), ports.RegisterInput{
		Email:    email,
		FullName: "Test User",
		Password: password,
		Roles:    roles,
	})
	if err != nil {
		panic(fmt.Sprintf("register %s: %v", email, err))
	}
	if !res.Success {
		panic(fmt.Sprintf("register %s: %s", email, res.Message))
	}
	return res
}
