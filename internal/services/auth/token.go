// Package auth resolves merchant bearer tokens and issues admin session JWTs.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "paylink/internal/errors"
	"paylink/internal/metrics"
	"paylink/internal/models"
	"paylink/internal/repositories"
	"paylink/internal/services/vault"
)

const backfillTimeout = 5 * time.Second

// MerchantFinder is the slice of the merchant repository the authenticator needs.
type MerchantFinder interface {
	FindByTokenPrefix(ctx context.Context, prefix string) ([]models.Merchant, error)
	BackfillToken(ctx context.Context, id uint, expectedHash string, state repositories.TokenState) error
}

// RejectionRecorder mirrors post-authentication rejections into the audit ledger.
type RejectionRecorder interface {
	RecordRejectedAuth(ctx context.Context, m *models.Merchant, clientIP string, cause error)
}

type Authenticator struct {
	merchants  MerchantFinder
	vault      *vault.Vault
	rejections RejectionRecorder
	metrics    metrics.Collector
	log        *logrus.Logger
	// goFn runs the backfill; tests swap it for a synchronous call.
	goFn func(func())
}

func NewAuthenticator(merchants MerchantFinder, v *vault.Vault, rejections RejectionRecorder, m metrics.Collector, log *logrus.Logger) *Authenticator {
	if m == nil {
		m = metrics.NoopCollector{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Authenticator{
		merchants:  merchants,
		vault:      v,
		rejections: rejections,
		metrics:    m,
		log:        log,
		goFn:       func(f func()) { go f() },
	}
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperrors.ErrAuthHeaderMissing
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", apperrors.ErrInvalidAuthFormat
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", apperrors.ErrInvalidAuthFormat
	}
	return token, nil
}

// Authenticate resolves header to an active merchant allowed to call from clientIP.
func (a *Authenticator) Authenticate(ctx context.Context, header, clientIP string) (*models.Merchant, error) {
	token, err := ParseBearer(header)
	if err != nil {
		a.metrics.RecordAuthFailure(apperrors.CodeOf(err))
		return nil, err
	}

	merchant, err := a.resolve(ctx, token)
	if err != nil {
		a.metrics.RecordAuthFailure(apperrors.CodeOf(err))
		return nil, err
	}

	entry := a.log.WithFields(logrus.Fields{"merchant_id": merchant.ID, "client_ip": clientIP})
	if !merchant.IPAllowed(clientIP) {
		entry.Warn("merchant token used from a non allow-listed IP")
		a.reject(ctx, merchant, clientIP, apperrors.ErrIPNotAllowed)
		return nil, apperrors.ErrIPNotAllowed
	}
	if !merchant.IsActive() {
		entry.Warn("token presented for a disabled merchant")
		a.reject(ctx, merchant, clientIP, apperrors.ErrCompanyDisabled)
		return nil, apperrors.ErrCompanyDisabled
	}

	a.maybeBackfill(merchant, token)
	return merchant, nil
}

// resolve narrows candidates by prefix and verifies each hash until one matches.
func (a *Authenticator) resolve(ctx context.Context, token string) (*models.Merchant, error) {
	candidates, err := a.merchants.FindByTokenPrefix(ctx, vault.Prefix(token))
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	for i := range candidates {
		if a.vault.Verify(candidates[i].TokenHash, token) {
			return &candidates[i], nil
		}
	}
	return nil, apperrors.ErrInvalidToken
}

func (a *Authenticator) reject(ctx context.Context, m *models.Merchant, clientIP string, cause error) {
	a.metrics.RecordAuthFailure(apperrors.CodeOf(cause))
	if a.rejections != nil {
		a.rejections.RecordRejectedAuth(ctx, m, clientIP, cause)
	}
}

// maybeBackfill fills prefix, preview and encrypted copy for tokens issued before those
// columns existed. The request never waits on it.
func (a *Authenticator) maybeBackfill(m *models.Merchant, token string) {
	state := repositories.TokenState{}
	if m.TokenPrefix == "" {
		state.Prefix = vault.Prefix(token)
	}
	if m.TokenPreview == "" {
		state.Preview = vault.PreviewOf(token)
	}
	needsBlob := m.TokenEncrypted == "" && a.vault.CanEncrypt()
	if state.Prefix == "" && state.Preview == "" && !needsBlob {
		return
	}

	id, hash := m.ID, m.TokenHash
	a.goFn(func() {
		entry := a.log.WithField("merchant_id", id)
		if needsBlob {
			blob, err := a.vault.EncryptForReveal(token)
			if err != nil {
				entry.WithError(err).Warn("token backfill: encryption failed")
			} else {
				state.Encrypted = blob
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), backfillTimeout)
		defer cancel()
		if err := a.merchants.BackfillToken(ctx, id, hash, state); err != nil {
			entry.WithError(err).Warn("token backfill failed")
			return
		}
		entry.Info("backfilled legacy token index")
	})
}
