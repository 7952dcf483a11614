package service

import (
	"context"
	"net/mail"
	"strings"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/payments"
	"reservas-backend/internal/repository"
)

type paymentMethodService struct {
	methods        repository.PaymentMethodRepository
	reconciliation repository.ReconciliationRepository
	processor      payments.Processor
	emailSvc       EmailService
}

func NewPaymentMethodService(
	methods repository.PaymentMethodRepository,
	reconciliation repository.ReconciliationRepository,
	processor payments.Processor,
	emailSvc EmailService,
) PaymentMethodService {
	return &paymentMethodService{
		methods:        methods,
		reconciliation: reconciliation,
		processor:      processor,
		emailSvc:       emailSvc,
	}
}

// customerIdempotencyKey collapses concurrent saves for one user onto a single
// remote customer.
func customerIdempotencyKey(userID string) string {
	return "customer:" + userID
}

// SaveMethod attaches the one-time token to the user's processor customer and
// stores the resulting card reference. The token itself is never persisted.
func (s *paymentMethodService) SaveMethod(ctx context.Context, req SaveMethodRequest) (*domain.PaymentMethodRecord, error) {
	if err := validateSaveMethodRequest(&req); err != nil {
		return nil, err
	}
	logger.EnterMethod("paymentMethodService.SaveMethod", "userID", req.UserID)

	existing, err := s.methods.GetByUserID(ctx, req.UserID)
	if err != nil && !domain.IsNotFound(err) {
		logger.ExitMethodWithError("paymentMethodService.SaveMethod", err, "userID", req.UserID)
		return nil, err
	}

	customerID, err := s.resolveCustomer(ctx, req, existing)
	if err != nil {
		logger.ExitMethodWithError("paymentMethodService.SaveMethod", err, "userID", req.UserID)
		return nil, err
	}

	card, err := s.processor.AttachCard(ctx, customerID, req.Token)
	if err != nil {
		logger.ExitMethodWithError("paymentMethodService.SaveMethod", err, "userID", req.UserID, "customerID", customerID)
		return nil, err
	}

	rec := &domain.PaymentMethodRecord{
		UserID:             req.UserID,
		ProviderCustomerID: customerID,
		ProviderCardID:     card.ID,
		Brand:              card.Brand,
		Last4:              card.Last4,
		ExpiryMonth:        card.ExpiryMonth,
		ExpiryYear:         card.ExpiryYear,
		TaxID:              req.TaxID,
	}
	if rec.TaxID == nil && existing != nil {
		rec.TaxID = existing.TaxID
	}

	if err := s.methods.Upsert(ctx, rec); err != nil {
		pf := &domain.PartialFailureError{
			Operation: "save_payment_method",
			UserID:    req.UserID,
			Step:      "persist",
			Err:       err,
		}
		logger.Error("reconciliation required",
			"userID", req.UserID,
			"customerID", customerID,
			"cardID", card.ID,
			"step", pf.Step,
			"error", err,
		)
		fileReconciliationItem(ctx, s.reconciliation, s.emailSvc, &domain.ReconciliationItem{
			Kind:        domain.ReconciliationVaultNotSaved,
			UserID:      &pf.UserID,
			ProviderRef: customerID + "/" + card.ID,
			Step:        pf.Step,
			Detail:      pf.Error(),
		})
		return nil, pf
	}

	logger.ExitMethod("paymentMethodService.SaveMethod", "userID", req.UserID, "brand", rec.Brand, "last4", rec.Last4)
	return rec, nil
}

// resolveCustomer prefers the locally known customer, then an existing remote
// customer with the same email, and only then creates one.
func (s *paymentMethodService) resolveCustomer(ctx context.Context, req SaveMethodRequest, existing *domain.PaymentMethodRecord) (string, error) {
	if existing != nil && existing.ProviderCustomerID != "" {
		return existing.ProviderCustomerID, nil
	}

	id, found, err := s.processor.FindCustomerByEmail(ctx, req.Email)
	if err != nil {
		return "", err
	}
	if found {
		logger.Info("Adopting existing processor customer", "userID", req.UserID, "customerID", id)
		return id, nil
	}

	return s.processor.CreateCustomer(ctx, payments.CustomerParams{
		UserID:         req.UserID,
		Email:          req.Email,
		TaxID:          req.TaxID,
		IdempotencyKey: customerIdempotencyKey(req.UserID),
	})
}

func validateSaveMethodRequest(req *SaveMethodRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Token = strings.TrimSpace(req.Token)
	req.Email = strings.TrimSpace(req.Email)

	if req.UserID == "" {
		return domain.NewValidationError("user_id", "is required")
	}
	if req.Token == "" {
		return domain.NewValidationError("token", "is required")
	}
	if req.Email == "" {
		return domain.NewValidationError("email", "is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return domain.NewValidationError("email", "is not a valid address")
	}
	if req.TaxID != nil {
		taxID := strings.TrimSpace(*req.TaxID)
		if taxID == "" {
			req.TaxID = nil
		} else {
			req.TaxID = &taxID
		}
	}
	return nil
}
