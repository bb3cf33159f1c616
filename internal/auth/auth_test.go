package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/features/accounts"
)

const testSecret = "jwt-test-secret"

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=65536,t=3,p=2$")

	assert.True(t, VerifySecret("s3cret", hash))
	assert.False(t, VerifySecret("wrong", hash))
	assert.False(t, VerifySecret("s3cret", "not-a-hash"))
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := BearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "bearer abc")
	tok, ok := BearerToken(r)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	r.Header.Set("Authorization", "Basic abc")
	_, ok = BearerToken(r)
	assert.False(t, ok)
}

func TestCronGuard(t *testing.T) {
	hash, err := HashSecret("cron-key")
	require.NoError(t, err)
	g := NewCronGuard(hash)

	req := func(key string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/user/check-expirations", nil)
		if key != "" {
			r.Header.Set("Authorization", "Bearer "+key)
		}
		return r
	}

	assert.NoError(t, g.Check(req("cron-key")))
	assert.ErrorIs(t, g.Check(req("")), common.ErrInvalidCronKey)
	assert.ErrorIs(t, g.Check(req("nope")), common.ErrInvalidCronKey)
}

func TestCronGuard_LocksAfterFailures(t *testing.T) {
	hash, err := HashSecret("cron-key")
	require.NoError(t, err)
	g := NewCronGuard(hash)
	g.maxFailures = 2
	now := time.Now()
	g.now = func() time.Time { return now }

	r := func(key string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		return req
	}
	_ = g.Check(r("a"))
	_ = g.Check(r("b"))
	assert.ErrorIs(t, g.Check(r("cron-key")), common.ErrInvalidCronKey, "locked out")

	now = now.Add(2 * time.Hour)
	assert.NoError(t, g.Check(r("cron-key")))
}

func seedAccount(t *testing.T) (*accounts.MemoryStore, *accounts.Account) {
	store := accounts.NewMemoryStore()
	a := accounts.New(accounts.CategoryMasseuse, accounts.Profile{})
	require.NoError(t, store.Create(context.Background(), a))
	return store, a
}

func TestJWTResolver(t *testing.T) {
	store, a := seedAccount(t)
	res, err := NewJWTResolver(testSecret, store)
	require.NoError(t, err)

	token, err := IssueToken(testSecret, a.ID, time.Hour)
	require.NoError(t, err)

	id, err := res.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, id.AccountID)
	assert.Equal(t, accounts.CategoryMasseuse, id.Category)
}

func TestJWTResolver_Rejects(t *testing.T) {
	store, a := seedAccount(t)
	res, err := NewJWTResolver(testSecret, store)
	require.NoError(t, err)

	wrongKey, _ := IssueToken("other-secret", a.ID, time.Hour)
	_, err = res.Resolve(context.Background(), wrongKey)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	expired, _ := IssueToken(testSecret, a.ID, -time.Minute)
	_, err = res.Resolve(context.Background(), expired)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	unknown, _ := IssueToken(testSecret, uuid.New(), time.Hour)
	_, err = res.Resolve(context.Background(), unknown)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: a.ID.String()})
	raw, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	_, err = res.Resolve(context.Background(), raw)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestJWTResolver_EmptySecret(t *testing.T) {
	store, a := seedAccount(t)

	_, err := NewJWTResolver("", store)
	require.Error(t, err)
	_, err = NewJWTResolver("  ", store)
	require.Error(t, err)
	_, err = IssueToken("", a.ID, time.Hour)
	require.Error(t, err)

	// a token signed with an empty key never resolves against a real secret
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: a.ID.String()}).SignedString([]byte{})
	require.NoError(t, err)
	res, err := NewJWTResolver(testSecret, store)
	require.NoError(t, err)
	_, err = res.Resolve(context.Background(), forged)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestRequire(t *testing.T) {
	store, a := seedAccount(t)
	res, err := NewJWTResolver(testSecret, store)
	require.NoError(t, err)
	mw := Require(res)

	var seen Identity
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _ := IssueToken(testSecret, a.ID, time.Hour)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, a.ID, seen.AccountID)
}
