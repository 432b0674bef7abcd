// Package payment runs the issuance pipeline (quota, commission, encoding, persistence, ledger)
// and the public resolution and telemetry paths of payment links.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "paylink/internal/errors"
	"paylink/internal/metrics"
	"paylink/internal/models"
	"paylink/internal/repositories"
	"paylink/internal/repositories/cache"
	"paylink/internal/services/commission"
	"paylink/internal/services/ledger"
	"paylink/internal/services/qr"
	"paylink/internal/validation"
)

type service struct {
	links   repositories.PaymentLinkRepository
	ledger  Ledger
	cache   cache.LinkCache
	metrics metrics.Collector
	log     *logrus.Logger
	cfg     Config
	now     func() time.Time
}

// NewService creates a new payment service
func NewService(
	links repositories.PaymentLinkRepository,
	ledger Ledger,
	linkCache cache.LinkCache,
	m metrics.Collector,
	log *logrus.Logger,
	cfg Config,
	now func() time.Time,
) Service {
	if linkCache == nil {
		linkCache = cache.NoopLinkCache{}
	}
	if m == nil {
		m = metrics.NoopCollector{}
	}
	if now == nil {
		now = time.Now
	}
	if cfg.QuotaLocation == nil {
		cfg.QuotaLocation = time.Local
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 24 * time.Hour
	}
	return &service{
		links:   links,
		ledger:  ledger,
		cache:   linkCache,
		metrics: m,
		log:     log,
		cfg:     cfg,
		now:     now,
	}
}

// Generate issues a link for merchant. Every failure after this point is mirrored into the ledger.
func (s *service) Generate(ctx context.Context, merchant *models.Merchant, in validation.PaymentInput, meta Meta) (*Issued, error) {
	in.Purpose = strings.TrimSpace(in.Purpose)
	ev := s.newEvent(merchant, meta)
	ev.TokenHash = ledger.Fingerprint(merchant.ID, in.Amount, in.Purpose)
	ev.Amount = in.Amount
	ev.Purpose = in.Purpose

	issued, err := s.generate(ctx, merchant, in, ev)
	if err != nil {
		s.fail(ctx, ev, meta, err)
		return nil, err
	}

	s.metrics.RecordIssuance(meta.Source, "OK")
	ev.Success = true
	if err := s.ledger.RecordGeneration(ctx, ev); err != nil {
		s.log.WithError(err).WithField("link_id", issued.Link.LinkID).Error("failed to record generation")
	}
	if err := s.cache.SetLink(ctx, issued.Link, s.cfg.LinkTTL); err != nil {
		s.log.WithError(err).WithField("link_id", issued.Link.LinkID).Warn("link cache write failed")
	}
	s.log.WithFields(logrus.Fields{
		"merchant_id": merchant.ID,
		"link_id":     issued.Link.LinkID,
		"source":      meta.Source,
	}).Info("payment link generated")
	return issued, nil
}

// RejectRequest records an issuance attempt whose body never reached the pipeline.
func (s *service) RejectRequest(ctx context.Context, merchant *models.Merchant, meta Meta, cause error) {
	s.fail(ctx, s.newEvent(merchant, meta), meta, cause)
}

func (s *service) newEvent(merchant *models.Merchant, meta Meta) *models.GenerationEvent {
	merchantID := merchant.ID
	return &models.GenerationEvent{
		MerchantID:   &merchantID,
		MerchantName: merchant.Name,
		Source:       meta.Source,
		ClientIP:     meta.ClientIP,
		CreatedAt:    s.now().UTC(),
	}
}

func (s *service) fail(ctx context.Context, ev *models.GenerationEvent, meta Meta, err error) {
	code := apperrors.CodeOf(err)
	s.metrics.RecordIssuance(meta.Source, code)
	s.ledger.RecordFailure(ctx, ev, err)
	s.log.WithFields(logrus.Fields{
		"merchant_id": *ev.MerchantID,
		"client_ip":   meta.ClientIP,
		"code":        code,
	}).Warn("payment link generation rejected")
}

func (s *service) generate(ctx context.Context, merchant *models.Merchant, in validation.PaymentInput, ev *models.GenerationEvent) (*Issued, error) {
	v := validation.New()
	v.Payment(&in)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if !merchant.IsActive() {
		return nil, apperrors.ErrCompanyDisabled
	}
	if !validation.IsValidIban(merchant.IBAN) {
		return nil, apperrors.ErrIBANInvalid
	}
	if !validation.IsValidEdrpo(merchant.EDRPOU) {
		return nil, apperrors.ErrEDRPOInvalid
	}

	now := s.now()
	if commission.QuotaEnforced(merchant) {
		start, end := commission.DayWindow(now, s.cfg.QuotaLocation)
		count, err := s.links.CountCreatedBetween(ctx, merchant.ID, start, end)
		if err != nil {
			return nil, apperrors.ErrInternal.Wrap(err)
		}
		if err := commission.CheckDailyQuota(merchant, count); err != nil {
			return nil, err
		}
	}

	price := commission.CalculateCommission(merchant, in.Amount)
	ev.FinalAmount = price.FinalAmount
	ev.Details = ledger.Snapshot(map[string]interface{}{
		"percent_rate":           merchant.PercentRate,
		"fixed_fee":              merchant.FixedFee,
		"use_percent_commission": merchant.UsePercentCommission,
		"use_fixed_commission":   merchant.UseFixedCommission,
		"daily_limit":            merchant.DailyLimit,
		"use_daily_limit":        merchant.UseDailyLimit,
		"commission_percent":     price.PercentAmount,
		"commission_fixed":       price.FixedAmount,
	})

	payload, err := qr.Encode(qr.PaymentData{
		Name:    merchant.Name,
		IBAN:    merchant.IBAN,
		Amount:  price.FinalAmount,
		EDRPOU:  merchant.EDRPOU,
		Purpose: in.Purpose,
	})
	if err != nil {
		return nil, err
	}

	link := &models.PaymentLink{
		LinkID:                  uuid.NewString(),
		MerchantID:              merchant.ID,
		RecipientName:           merchant.Name,
		IBAN:                    merchant.IBAN,
		EDRPOU:                  merchant.EDRPOU,
		Purpose:                 in.Purpose,
		Amount:                  in.Amount,
		CommissionPercentAmount: price.PercentAmount,
		CommissionFixedAmount:   price.FixedAmount,
		FinalAmount:             price.FinalAmount,
		Payload:                 payload,
		Status:                  models.LinkStatusPending,
		CreatedAt:               now.UTC(),
		ExpiresAt:               now.Add(s.cfg.LinkTTL).UTC(),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	ev.LinkID = link.LinkID

	return &Issued{
		Link:    link,
		PageURL: s.pageURL(link.LinkID),
		QRLink:  qr.Link(s.cfg.QRLinkBase, payload),
	}, nil
}

func (s *service) pageURL(linkID string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/payment/" + linkID
}

// live returns an unexpired link, reading through the cache. Missing and expired look the same.
func (s *service) live(ctx context.Context, linkID string) (*models.PaymentLink, error) {
	if _, err := uuid.Parse(linkID); err != nil {
		return nil, apperrors.ErrPaymentNotFound
	}
	now := s.now()

	link, err := s.cache.GetLink(ctx, linkID)
	if err != nil {
		s.log.WithError(err).WithField("link_id", linkID).Warn("link cache read failed")
		link = nil
	}
	s.metrics.RecordCacheResult(link != nil)

	if link == nil {
		link, err = s.links.GetByLinkID(ctx, linkID)
		if err != nil {
			if errors.Is(err, apperrors.ErrPaymentNotFound) {
				return nil, err
			}
			return nil, apperrors.ErrInternal.Wrap(err)
		}
		if ttl := link.ExpiresAt.Sub(now); ttl > 0 {
			if err := s.cache.SetLink(ctx, link, ttl); err != nil {
				s.log.WithError(err).WithField("link_id", linkID).Warn("link cache write failed")
			}
		}
	}
	if link.Expired(now) {
		return nil, apperrors.ErrPaymentNotFound
	}
	return link, nil
}

// Resolve returns the public view of a live link and counts the view.
func (s *service) Resolve(ctx context.Context, linkID string) (*Resolved, error) {
	link, err := s.live(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := s.links.RecordView(ctx, linkID); err != nil {
		s.log.WithError(err).WithField("link_id", linkID).Warn("failed to count link view")
	}
	return &Resolved{
		LinkID:            link.LinkID,
		RecipientName:     link.RecipientName,
		IBAN:              link.IBAN,
		EDRPOU:            link.EDRPOU,
		Purpose:           link.Purpose,
		OriginalAmount:    link.Amount,
		CommissionPercent: link.CommissionPercentAmount,
		CommissionFixed:   link.CommissionFixedAmount,
		FinalAmount:       link.FinalAmount,
		Status:            link.Status,
		ExpiresAt:         link.ExpiresAt,
		Payload:           link.Payload,
		QRLink:            qr.Link(s.cfg.QRLinkBase, link.Payload),
	}, nil
}

func (s *service) QRImage(ctx context.Context, linkID string, size int) ([]byte, error) {
	link, err := s.live(ctx, linkID)
	if err != nil {
		return nil, err
	}
	return qr.PNG(qr.Link(s.cfg.QRLinkBase, link.Payload), size)
}

// RecordScan appends a scan event and moves a pending link to delivered.
func (s *service) RecordScan(ctx context.Context, linkID string, meta Meta) error {
	link, err := s.live(ctx, linkID)
	if err != nil {
		return err
	}
	ev := &models.ScanEvent{
		LinkID:     link.LinkID,
		MerchantID: link.MerchantID,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		CreatedAt:  s.now().UTC(),
	}
	entry := s.log.WithFields(logrus.Fields{"link_id": link.LinkID, "client_ip": meta.ClientIP})
	if err := s.ledger.RecordScan(ctx, ev); err != nil {
		entry.WithError(err).Error("failed to record scan")
	}
	changed, err := s.links.MarkDelivered(ctx, link.LinkID)
	if err != nil {
		entry.WithError(err).Error("failed to mark link delivered")
	} else if changed {
		if err := s.cache.InvalidateLink(ctx, link.LinkID); err != nil {
			entry.WithError(err).Warn("link cache invalidation failed")
		}
	}
	return nil
}

func (s *service) RecordBankHandoff(ctx context.Context, linkID string, handoff BankHandoff, meta Meta) error {
	link, err := s.live(ctx, linkID)
	if err != nil {
		return err
	}
	ev := &models.BankHandoffEvent{
		LinkID:      link.LinkID,
		MerchantID:  link.MerchantID,
		Bank:        truncate(handoff.Bank, 128),
		PackageName: truncate(handoff.PackageName, 255),
		ClientIP:    meta.ClientIP,
		UserAgent:   meta.UserAgent,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.ledger.RecordBankHandoff(ctx, ev); err != nil {
		s.log.WithError(err).WithField("link_id", link.LinkID).Error("failed to record bank handoff")
	}
	return nil
}

// RepriceOutstandingLinks recomputes commission and payload of the merchant's pending,
// unexpired links with its current configuration. Delivered or expired links keep their price.
func (s *service) RepriceOutstandingLinks(ctx context.Context, merchant *models.Merchant) (int, error) {
	links, err := s.links.ListOutstanding(ctx, merchant.ID, s.now())
	if err != nil {
		return 0, apperrors.ErrInternal.Wrap(err)
	}

	repriced := 0
	for i := range links {
		link := &links[i]
		price := commission.CalculateCommission(merchant, link.Amount)
		payload, err := qr.Encode(qr.PaymentData{
			Name:    link.RecipientName,
			IBAN:    link.IBAN,
			Amount:  price.FinalAmount,
			EDRPOU:  link.EDRPOU,
			Purpose: link.Purpose,
		})
		if err != nil {
			s.log.WithError(err).WithField("link_id", link.LinkID).Warn("skipping reprice of link")
			continue
		}
		link.CommissionPercentAmount = price.PercentAmount
		link.CommissionFixedAmount = price.FixedAmount
		link.FinalAmount = price.FinalAmount
		link.Payload = payload
		if err := s.links.UpdatePricing(ctx, link); err != nil {
			return repriced, apperrors.ErrInternal.Wrap(err)
		}
		if err := s.cache.InvalidateLink(ctx, link.LinkID); err != nil {
			s.log.WithError(err).WithField("link_id", link.LinkID).Warn("link cache invalidation failed")
		}
		repriced++
	}
	if repriced > 0 {
		s.log.WithFields(logrus.Fields{"merchant_id": merchant.ID, "count": repriced}).Info("repriced outstanding links")
	}
	return repriced, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
