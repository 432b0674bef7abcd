// Package merchant covers merchant registration, configuration updates and token lifecycle.
package merchant

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
	"paylink/internal/repositories"
	"paylink/internal/services/ledger"
	"paylink/internal/services/vault"
	"paylink/internal/validation"
)

// Repricer re-prices pending links after a commission change.
type Repricer interface {
	RepriceOutstandingLinks(ctx context.Context, merchant *models.Merchant) (int, error)
}

// StatsSource reports issuance duplicates.
type StatsSource interface {
	GenerationStats(ctx context.Context, merchantID uint, from, to time.Time) (ledger.Stats, error)
}

type Service struct {
	merchants repositories.MerchantRepository
	vault     *vault.Vault
	repricer  Repricer
	stats     StatsSource
	cfg       Config
	log       *logrus.Logger
	now       func() time.Time
}

func NewService(
	merchants repositories.MerchantRepository,
	v *vault.Vault,
	repricer Repricer,
	stats StatsSource,
	cfg Config,
	log *logrus.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		merchants: merchants,
		vault:     v,
		repricer:  repricer,
		stats:     stats,
		cfg:       cfg,
		log:       log,
		now:       now,
	}
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Merchant, error) {
	return s.merchants.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Merchant, int64, error) {
	return s.merchants.List(ctx, limit, offset)
}

// Register creates a merchant and issues its first token.
func (s *Service) Register(ctx context.Context, in validation.MerchantInput) (*Registered, error) {
	v := validation.New()
	v.Merchant(&in, true)
	if err := v.Err(); err != nil {
		return nil, err
	}

	m := &models.Merchant{Status: models.MerchantStatusActive}
	if err := apply(m, &in); err != nil {
		return nil, err
	}

	mat, err := s.vault.Mint()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	m.TokenHash = mat.Hash
	m.TokenPrefix = mat.Prefix
	m.TokenPreview = mat.Preview
	m.TokenEncrypted = mat.Encrypted
	m.TokenRotatedAt = &now

	if err := s.merchants.Create(ctx, m); err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	s.log.WithFields(logrus.Fields{"merchant_id": m.ID, "token_prefix": m.TokenPrefix}).Info("merchant registered")
	return &Registered{Merchant: m, Token: s.tokenResult(mat)}, nil
}

// Update applies in to the merchant and re-prices its pending links when the
// commission configuration changed. A re-pricing failure does not fail the update;
// Repriced then holds the links changed before the error.
func (s *Service) Update(ctx context.Context, id uint, in validation.MerchantInput) (*Updated, error) {
	v := validation.New()
	v.Merchant(&in, false)
	if err := v.Err(); err != nil {
		return nil, err
	}

	m, err := s.merchants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := commissionConfig(m)
	if err := apply(m, &in); err != nil {
		return nil, err
	}
	if err := s.merchants.Update(ctx, m); err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}

	out := &Updated{Merchant: m}
	if commissionConfig(m) != before && s.repricer != nil {
		n, err := s.repricer.RepriceOutstandingLinks(ctx, m)
		if err != nil {
			// The merchant row is already saved; links left unpriced keep their old amounts.
			s.log.WithError(err).WithFields(logrus.Fields{"merchant_id": m.ID, "repriced": n}).
				Error("re-pricing pending links stopped early")
		}
		out.Repriced = n
	}
	s.log.WithFields(logrus.Fields{"merchant_id": m.ID, "repriced": out.Repriced}).Info("merchant updated")
	return out, nil
}

// RotateToken replaces every stored token form at once. The old token stops working on commit.
func (s *Service) RotateToken(ctx context.Context, id uint) (*TokenResult, error) {
	if _, err := s.merchants.GetByID(ctx, id); err != nil {
		return nil, err
	}
	mat, err := s.vault.Mint()
	if err != nil {
		return nil, err
	}
	state := repositories.TokenState{
		Hash:      mat.Hash,
		Prefix:    mat.Prefix,
		Preview:   mat.Preview,
		Encrypted: mat.Encrypted,
	}
	if err := s.merchants.ReplaceToken(ctx, id, state, s.now().UTC()); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"merchant_id": id, "token_prefix": mat.Prefix}).Info("merchant token rotated")
	res := s.tokenResult(mat)
	return &res, nil
}

func (s *Service) Preview(ctx context.Context, id uint) (string, error) {
	m, err := s.merchants.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return m.TokenPreview, nil
}

// Reveal decrypts the stored token copy. Off unless enabled; in production only admins may use it.
func (s *Service) Reveal(ctx context.Context, id uint, claims *models.AdminClaims) (string, error) {
	if !s.cfg.RevealEnabled {
		return "", apperrors.ErrRevealDisabled
	}
	if s.cfg.Production && (claims == nil || claims.Role != models.RoleAdmin) {
		return "", apperrors.ErrForbidden
	}
	m, err := s.merchants.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if m.TokenEncrypted == "" {
		return "", apperrors.ErrDecryptionFailed.WithMessage("no encrypted token stored for merchant")
	}
	plaintext, err := s.vault.Decrypt(m.TokenEncrypted)
	if err != nil {
		return "", err
	}
	entry := s.log.WithField("merchant_id", id)
	if claims != nil {
		entry = entry.WithField("admin_id", claims.AdminID)
	}
	entry.Warn("merchant token revealed")
	return plaintext, nil
}

func (s *Service) GenerationStats(ctx context.Context, id uint, from, to time.Time) (ledger.Stats, error) {
	if _, err := s.merchants.GetByID(ctx, id); err != nil {
		return ledger.Stats{}, err
	}
	return s.stats.GenerationStats(ctx, id, from, to)
}

func (s *Service) tokenResult(mat *vault.Material) TokenResult {
	res := TokenResult{Preview: mat.Preview}
	if s.cfg.ExposeTokens {
		res.Token = mat.Plaintext
	}
	return res
}

type commissionSettings struct {
	percentRate float64
	fixedFee    float64
	usePercent  bool
	useFixed    bool
}

func commissionConfig(m *models.Merchant) commissionSettings {
	return commissionSettings{
		percentRate: m.PercentRate,
		fixedFee:    m.FixedFee,
		usePercent:  m.UsePercentCommission,
		useFixed:    m.UseFixedCommission,
	}
}

// apply copies set fields of in onto m, checking bank identifiers with distinct errors.
func apply(m *models.Merchant, in *validation.MerchantInput) error {
	if in.IBAN != nil {
		iban := validation.NormalizeIban(*in.IBAN)
		if !validation.IsValidIban(iban) {
			return apperrors.ErrIBANInvalid
		}
		m.IBAN = iban
	}
	if in.EDRPOU != nil {
		if !validation.IsValidEdrpo(*in.EDRPOU) {
			return apperrors.ErrEDRPOInvalid
		}
		m.EDRPOU = *in.EDRPOU
	}
	if in.Name != nil {
		m.Name = *in.Name
	}
	if in.ContactName != nil {
		m.ContactName = *in.ContactName
	}
	if in.ContactEmail != nil {
		m.ContactEmail = *in.ContactEmail
	}
	if in.ContactPhone != nil {
		m.ContactPhone = *in.ContactPhone
	}
	if in.PercentRate != nil {
		m.PercentRate = *in.PercentRate
	}
	if in.FixedFee != nil {
		m.FixedFee = *in.FixedFee
	}
	if in.UsePercentCommission != nil {
		m.UsePercentCommission = *in.UsePercentCommission
	}
	if in.UseFixedCommission != nil {
		m.UseFixedCommission = *in.UseFixedCommission
	}
	if in.DailyLimit != nil {
		m.DailyLimit = *in.DailyLimit
	}
	if in.UseDailyLimit != nil {
		m.UseDailyLimit = *in.UseDailyLimit
	}
	if in.Status != nil {
		m.Status = *in.Status
	}
	if in.AllowedIPs != nil {
		m.AllowedIPs = models.StringList(in.AllowedIPs)
	}
	return nil
}
