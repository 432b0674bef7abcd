package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
	"paylink/internal/repositories"
	"paylink/internal/services/ledger"
	"paylink/internal/services/vault"
	"paylink/internal/testutil"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type fixture struct {
	auth      *Authenticator
	merchants repositories.MerchantRepository
	vault     *vault.Vault
	events    *repositories.EventRepository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	v, err := vault.New(vault.Config{HashCost: bcrypt.MinCost, EncryptionKey: testKey})
	require.NoError(t, err)

	merchants := repositories.NewMerchantRepository(db)
	events := repositories.NewEventRepository(db)
	a := NewAuthenticator(merchants, v, ledger.New(events, testutil.Logger()), nil, testutil.Logger())
	a.goFn = func(f func()) { f() }
	return &fixture{auth: a, merchants: merchants, vault: v, events: events}
}

func (f *fixture) addMerchant(t *testing.T, name, token string, mutate func(*models.Merchant)) *models.Merchant {
	t.Helper()
	mat, err := f.vault.Derive(token)
	require.NoError(t, err)
	m := &models.Merchant{
		Name:           name,
		IBAN:           "UA053220010000026001234567890",
		EDRPOU:         "12345678",
		Status:         models.MerchantStatusActive,
		TokenHash:      mat.Hash,
		TokenPrefix:    mat.Prefix,
		TokenPreview:   mat.Preview,
		TokenEncrypted: mat.Encrypted,
	}
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, f.merchants.Create(context.Background(), m))
	return m
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{"", "", apperrors.ErrAuthHeaderMissing},
		{"   ", "", apperrors.ErrAuthHeaderMissing},
		{"Bearer abc123", "abc123", nil},
		{"bearer abc123", "abc123", nil},
		{"Bearer    abc123 ", "abc123", nil},
		{"Bearer", "", apperrors.ErrInvalidAuthFormat},
		{"Bearer ", "", apperrors.ErrInvalidAuthFormat},
		{"Basic dXNlcjpwYXNz", "", apperrors.ErrInvalidAuthFormat},
		{"Bearer a b", "", apperrors.ErrInvalidAuthFormat},
		{"abc123", "", apperrors.ErrInvalidAuthFormat},
	}
	for _, tt := range tests {
		token, err := ParseBearer(tt.header)
		if tt.err != nil {
			assert.True(t, errors.Is(err, tt.err), "header %q: got %v", tt.header, err)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.token, token)
	}
}

func TestAuthenticate_SharedPrefixResolvesExactMerchant(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addMerchant(t, "first", "abcdefgh-token-one", nil)
	second := f.addMerchant(t, "second", "abcdefgh-token-two", nil)
	f.addMerchant(t, "third", "abcdefgh-token-three", nil)

	m, err := f.auth.Authenticate(ctx, "Bearer abcdefgh-token-two", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, second.ID, m.ID)
	assert.Equal(t, "second", m.Name)

	_, err = f.auth.Authenticate(ctx, "Bearer abcdefgh-token-four", "1.2.3.4")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestAuthenticate_MissingAndMalformed(t *testing.T) {
	f := setup(t)
	_, err := f.auth.Authenticate(context.Background(), "", "1.2.3.4")
	assert.True(t, errors.Is(err, apperrors.ErrAuthHeaderMissing))

	_, err = f.auth.Authenticate(context.Background(), "Token x", "1.2.3.4")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidAuthFormat))
}

func TestAuthenticate_IPAllowList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addMerchant(t, "restricted", "restrict-token-1", func(m *models.Merchant) {
		m.AllowedIPs = models.StringList{"10.0.0.1", "10.0.0.2"}
	})

	m, err := f.auth.Authenticate(ctx, "Bearer restrict-token-1", "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, "restricted", m.Name)

	_, err = f.auth.Authenticate(ctx, "Bearer restrict-token-1", "10.0.0.3")
	assert.True(t, errors.Is(err, apperrors.ErrIPNotAllowed))

	keys, err := f.events.GenerationKeys(ctx, m.ID, m.CreatedAt.AddDate(0, 0, -1), m.CreatedAt.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, keys, 1, "rejection is mirrored into the ledger")
}

func TestAuthenticate_DisabledCompany(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addMerchant(t, "disabled", "disabled-token", func(m *models.Merchant) {
		m.Status = models.MerchantStatusDisabled
	})

	_, err := f.auth.Authenticate(ctx, "Bearer disabled-token", "1.1.1.1")
	assert.True(t, errors.Is(err, apperrors.ErrCompanyDisabled))

	counts, err := f.events.CountByDedupKeys(ctx, []string{"row:1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["row:1"])
}

func TestAuthenticate_IPCheckedBeforeStatus(t *testing.T) {
	f := setup(t)
	f.addMerchant(t, "both", "both-bad-token", func(m *models.Merchant) {
		m.Status = models.MerchantStatusDisabled
		m.AllowedIPs = models.StringList{"10.0.0.1"}
	})
	_, err := f.auth.Authenticate(context.Background(), "Bearer both-bad-token", "9.9.9.9")
	assert.True(t, errors.Is(err, apperrors.ErrIPNotAllowed))
}

func TestAuthenticate_LegacyTokenIsBackfilled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	legacy := f.addMerchant(t, "legacy", "legacy-token-0001", func(m *models.Merchant) {
		m.TokenPrefix = ""
		m.TokenPreview = ""
		m.TokenEncrypted = ""
	})

	m, err := f.auth.Authenticate(ctx, "Bearer legacy-token-0001", "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, legacy.ID, m.ID)

	got, err := f.merchants.GetByID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, "legacy-t", got.TokenPrefix)
	assert.Equal(t, "lega...0001", got.TokenPreview)
	revealed, err := f.vault.Decrypt(got.TokenEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "legacy-token-0001", revealed)

	// still resolvable through the prefix index
	m, err = f.auth.Authenticate(ctx, "Bearer legacy-token-0001", "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, legacy.ID, m.ID)
}

func TestAuthenticate_RotatedTokenStopsWorking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.addMerchant(t, "rotating", "old-token-value-1", nil)

	mat, err := f.vault.Derive("new-token-value-2")
	require.NoError(t, err)
	require.NoError(t, f.merchants.ReplaceToken(ctx, m.ID, repositories.TokenState{
		Hash: mat.Hash, Prefix: mat.Prefix, Preview: mat.Preview, Encrypted: mat.Encrypted,
	}, m.CreatedAt))

	_, err = f.auth.Authenticate(ctx, "Bearer old-token-value-1", "1.1.1.1")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))

	got, err := f.auth.Authenticate(ctx, "Bearer new-token-value-2", "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
}
