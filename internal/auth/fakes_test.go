package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/polkassembly/governance/internal/config"
	"github.com/polkassembly/governance/internal/logging"
)

type memUsers struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]*User
}

func newMemUsers() *memUsers {
	return &memUsers{rows: map[int]*User{}}
}

func (m *memUsers) Create(_ context.Context, nu NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Username == nu.Username {
			return nil, errors.New("duplicate username")
		}
	}
	m.nextID++
	u := &User{
		ID:           m.nextID,
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Web3Signup:   nu.Web3Signup,
		CreatedAt:    time.Now(),
	}
	m.rows[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) find(match func(*User) bool) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id int) (*User, error) {
	return m.find(func(u *User) bool { return u.ID == id }), nil
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*User, error) {
	return m.find(func(u *User) bool { return u.Username == username }), nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	return m.find(func(u *User) bool { return u.Email != "" && strings.EqualFold(u.Email, email) }), nil
}

func (m *memUsers) update(id int, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return errors.New("no such user")
	}
	fn(u)
	return nil
}

func (m *memUsers) UpdateUsername(_ context.Context, id int, username string) error {
	return m.update(id, func(u *User) { u.Username = username })
}

func (m *memUsers) UpdatePassword(_ context.Context, id int, hash string) error {
	return m.update(id, func(u *User) { u.PasswordHash = hash })
}

func (m *memUsers) UpdateEmail(_ context.Context, id int, email string, verified bool) error {
	return m.update(id, func(u *User) { u.Email, u.EmailVerified = email, verified })
}

func (m *memUsers) SetEmailVerified(_ context.Context, id int) error {
	return m.update(id, func(u *User) { u.EmailVerified = true })
}

func (m *memUsers) SetTwoFactor(_ context.Context, id int, secret *string, enabled bool) error {
	return m.update(id, func(u *User) { u.TFASecret, u.TFAEnabled = secret, enabled })
}

func (m *memUsers) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type memAddresses struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]*Address
}

func newMemAddresses() *memAddresses {
	return &memAddresses{rows: map[int]*Address{}}
}

// verifiedElsewhere mirrors the unique index on verified addresses.
func (m *memAddresses) verifiedElsewhere(id int, address string) bool {
	for _, a := range m.rows {
		if a.ID != id && a.Address == address && a.Verified {
			return true
		}
	}
	return false
}

func (m *memAddresses) Create(_ context.Context, a Address) (*Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Verified && m.verifiedElsewhere(0, a.Address) {
		return nil, ErrAddressTaken
	}
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	m.rows[a.ID] = &a
	cp := a
	return &cp, nil
}

func (m *memAddresses) FindByID(_ context.Context, id int) (*Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAddresses) sorted() []*Address {
	out := make([]*Address, 0, len(m.rows))
	for _, a := range m.rows {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memAddresses) FindForUser(_ context.Context, userID int, network Network, address string) (*Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.sorted() {
		if a.UserID == userID && a.Network == network && a.Address == address {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAddresses) FindVerified(_ context.Context, address string) (*Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.sorted() {
		if a.Address == address && a.Verified {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAddresses) ListByUser(_ context.Context, userID int) ([]Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Address
	for _, a := range m.sorted() {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAddresses) SetSignMessage(_ context.Context, id int, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[id]; ok {
		a.SignMessage = &msg
	}
	return nil
}

func (m *memAddresses) MarkVerified(_ context.Context, id int, signMessage string, makeDefault bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || a.SignMessage == nil || *a.SignMessage != signMessage {
		return false, nil
	}
	if m.verifiedElsewhere(id, a.Address) {
		return false, ErrAddressTaken
	}
	a.Verified = true
	a.SignMessage = nil
	a.Default = a.Default || makeDefault
	return true, nil
}

func (m *memAddresses) SetDefault(_ context.Context, userID int, network Network, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.rows[id]
	if !ok || target.UserID != userID {
		return errors.New("not owned")
	}
	for _, a := range m.rows {
		if a.UserID == userID && a.Network == network {
			a.Default = false
		}
	}
	target.Default = true
	return nil
}

func (m *memAddresses) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type memUndoTokens struct {
	mu   sync.Mutex
	rows []*UndoEmailChangeToken
}

func (m *memUndoTokens) Create(_ context.Context, userID int, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, &UndoEmailChangeToken{
		ID:     len(m.rows) + 1,
		UserID: userID,
		Email:  email,
		Token:  token,
		Valid:  true,
	})
	return nil
}

func (m *memUndoTokens) Find(_ context.Context, token string) (*UndoEmailChangeToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUndoTokens) Invalidate(_ context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if t.ID == id && t.Valid {
			t.Valid = false
			return true, nil
		}
	}
	return false, nil
}

type memReports struct {
	mu   sync.Mutex
	rows []ContentReport
}

func (m *memReports) Create(_ context.Context, r ContentReport) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.Network == r.Network && e.Type == r.Type && e.ContentID == r.ContentID && e.UserID == r.UserID {
			return false, nil
		}
	}
	m.rows = append(m.rows, r)
	return true, nil
}

type sentMail struct {
	Kind  string
	To    string
	Token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (r *recordingMailer) add(m sentMail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
}

func (r *recordingMailer) SendVerification(_ context.Context, u *User, token string) {
	r.add(sentMail{Kind: "verify", To: u.Email, Token: token})
}

func (r *recordingMailer) SendPasswordReset(_ context.Context, u *User, token string) {
	r.add(sentMail{Kind: "reset", To: u.Email, Token: token})
}

func (r *recordingMailer) SendUndoEmailChange(_ context.Context, _ *User, oldEmail, token string) {
	r.add(sentMail{Kind: "undo", To: oldEmail, Token: token})
}

func (r *recordingMailer) SendContentReport(_ context.Context, rep ContentReport, _ *User) {
	r.add(sentMail{Kind: "report", Token: rep.ContentID})
}

func (r *recordingMailer) last(kind string) (sentMail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Kind == kind {
			return r.sent[i], true
		}
	}
	return sentMail{}, false
}

// stubVerifier accepts exactly the listed (message, address, signature)
// triples.
type stubVerifier struct {
	valid map[[3]string]bool
}

func (v stubVerifier) Verify(message, address, sig string) bool {
	return v.valid[[3]string{message, address, sig}]
}

type stubTOTP struct {
	code string
}

func (s stubTOTP) Verify(secret, code string) bool {
	return secret != "" && code == s.code
}

func (s stubTOTP) Generate(account string) (TwoFactorSetup, error) {
	return TwoFactorSetup{Secret: "SECRET-" + account, URL: "otpauth://totp/" + account}, nil
}

type harness struct {
	svc       *Service
	users     *memUsers
	addresses *memAddresses
	undo      *memUndoTokens
	reports   *memReports
	mail      *recordingMailer
	redis     *miniredis.Miniredis
	verifier  stubVerifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	issuer, err := NewTokenIssuer(config.JWTConfig{Secret: "test-secret", Issuer: "polkassembly", TTL: time.Hour}, BotRoles{})
	require.NoError(t, err)

	h := &harness{
		users:     newMemUsers(),
		addresses: newMemAddresses(),
		undo:      &memUndoTokens{},
		reports:   &memReports{},
		mail:      &recordingMailer{},
		redis:     mr,
		verifier:  stubVerifier{valid: map[[3]string]bool{}},
	}
	h.svc = &Service{
		Users:      h.users,
		Addresses:  h.addresses,
		UndoTokens: h.undo,
		Reports:    h.reports,
		Tokens:     &TokenStore{Redis: rdb},
		Refresh:    &RefreshTokenStore{Redis: rdb},
		Limiter:    &RateLimiter{Redis: rdb},
		Audit:      &AuditLogger{Redis: rdb, MaxLen: 50},
		Issuer:     issuer,
		Hasher:     &BcryptHasher{Cost: bcrypt.MinCost},
		TOTP:       stubTOTP{code: "123456"},
		Verifier:   h.verifier,
		Mail:       h.mail,
		RefreshTTL: time.Hour,
		Logger:     logging.Discard(),
	}
	return h
}

func (h *harness) allow(message, address, sig string) {
	h.verifier.valid[[3]string{message, address, sig}] = true
}

func (h *harness) createUser(t *testing.T, username, email, password string) *User {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = h.svc.Hasher.Hash(password)
		require.NoError(t, err)
	}
	u, err := h.users.Create(context.Background(), NewUser{Username: username, Email: email, PasswordHash: hash})
	require.NoError(t, err)
	return u
}

func (h *harness) addAddress(t *testing.T, userID int, network Network, address string, verified bool) *Address {
	t.Helper()
	a, err := h.addresses.Create(context.Background(), Address{
		UserID:   userID,
		Network:  network,
		Address:  address,
		Verified: verified,
		Default:  verified,
	})
	require.NoError(t, err)
	return a
}

func requireKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error %v", err)
	require.Equal(t, msg, PublicMessage(err))
}
