package billing

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/skybooking/internal/clients"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/obs"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBalanceTimeout = 5 * time.Second
	defaultConfirmTimeout = 3 * time.Second
	defaultLockTTL        = 30 * time.Second
)

type BillingUseCase interface {
	CreateBill(ctx context.Context, input CreateBillInput) (*domain.Bill, error)
	GetBill(ctx context.Context, id string) (*domain.Bill, error)
	ListBills(ctx context.Context, customerID string) ([]domain.Bill, error)
	PayBill(ctx context.Context, billID, customerID string) (*domain.Bill, error)
}

type BalanceDebiter interface {
	Debit(ctx context.Context, userID string, amountCents int64) (*clients.DebitResult, error)
}

type ResourceConfirmer interface {
	ConfirmPayment(ctx context.Context, serviceName, serviceReferenceID, customerID string) error
}

// PaymentLocker lets a second payer of a bill fail fast while a payment is
// running. The storage lock taken by PayBill serializes payments without it.
type PaymentLocker interface {
	AcquireBillLock(ctx context.Context, billID string, ttl time.Duration) (token string, acquired bool, err error)
	ReleaseBillLock(ctx context.Context, billID, token string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type CreateBillInput struct {
	CustomerID         string
	ServiceName        domain.ServiceName
	ServiceReferenceID string
	Description        string
	AmountCents        int64
}

type BillingService struct {
	tx             repository.Transactor
	bills          repository.BillRepository
	balance        BalanceDebiter
	confirmer      ResourceConfirmer
	locker         PaymentLocker
	lockTTL        time.Duration
	balanceTimeout time.Duration
	confirmTimeout time.Duration
	producer       Producer
	topic          string
	logger         *logrus.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

type BillingServiceOption func(*BillingService)

func WithLocker(locker PaymentLocker, ttl time.Duration) BillingServiceOption {
	return func(s *BillingService) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithTimeouts(balance, confirm time.Duration) BillingServiceOption {
	return func(s *BillingService) {
		if balance > 0 {
			s.balanceTimeout = balance
		}
		if confirm > 0 {
			s.confirmTimeout = confirm
		}
	}
}

func WithProducer(producer Producer, topic string) BillingServiceOption {
	return func(s *BillingService) {
		s.producer = producer
		s.topic = topic
	}
}

func WithClock(now func() time.Time) BillingServiceOption {
	return func(s *BillingService) {
		s.now = now
	}
}

func NewBillingService(
	tx repository.Transactor,
	bills repository.BillRepository,
	balance BalanceDebiter,
	confirmer ResourceConfirmer,
	logger *logrus.Logger,
	opts ...BillingServiceOption,
) *BillingService {
	service := &BillingService{
		tx:             tx,
		bills:          bills,
		balance:        balance,
		confirmer:      confirmer,
		lockTTL:        defaultLockTTL,
		balanceTimeout: defaultBalanceTimeout,
		confirmTimeout: defaultConfirmTimeout,
		logger:         logger,
		tracer:         obs.Tracer(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BillingService) CreateBill(ctx context.Context, input CreateBillInput) (*domain.Bill, error) {
	if input.CustomerID == "" {
		return nil, domain.Validationf("customer is required")
	}
	if !input.ServiceName.Known() {
		return nil, domain.Validationf("unknown service name %q", input.ServiceName)
	}
	if input.ServiceReferenceID == "" {
		return nil, domain.Validationf("service reference is required")
	}
	if input.AmountCents <= 0 {
		return nil, domain.Validationf("bill amount must be positive")
	}

	bill := &domain.Bill{
		ID:                 uuid.NewString(),
		CustomerID:         input.CustomerID,
		ServiceName:        input.ServiceName,
		ServiceReferenceID: input.ServiceReferenceID,
		Description:        input.Description,
		AmountCents:        input.AmountCents,
		Status:             domain.BillStatusUnpaid,
	}
	if err := s.bills.Create(ctx, bill); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"bill_id":   bill.ID,
		"customer":  bill.CustomerID,
		"service":   bill.ServiceName,
		"reference": bill.ServiceReferenceID,
	}).Info("bill created")
	return bill, nil
}

func (s *BillingService) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *BillingService) ListBills(ctx context.Context, customerID string) ([]domain.Bill, error) {
	if customerID == "" {
		return nil, domain.Validationf("customer is required")
	}
	return s.bills.ListByCustomer(ctx, customerID)
}

// PayBill debits the customer's balance and marks the bill paid. Marking the
// bill paid is the commit point: the resource confirmation that follows is
// best effort and never fails the payment.
func (s *BillingService) PayBill(ctx context.Context, billID, customerID string) (*domain.Bill, error) {
	ctx, span := s.tracer.Start(ctx, "billing.PayBill", trace.WithAttributes(attribute.String("bill_id", billID)))
	defer span.End()

	if s.locker != nil {
		token, acquired, err := s.locker.AcquireBillLock(ctx, billID, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, domain.Statef("payment of bill %s already in progress", billID)
		}
		defer func() {
			if err := s.locker.ReleaseBillLock(context.WithoutCancel(ctx), billID, token); err != nil {
				s.logger.WithError(err).WithField("bill_id", billID).Warn("release bill lock failed")
			}
		}()
	}

	var (
		bill   *domain.Bill
		result *clients.DebitResult
	)
	// Once started, a payment runs to the end even if the caller goes away,
	// so a debited bill is never left unpaid by a cancelled request.
	err := s.tx.WithinTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, billLockKey(billID)); err != nil {
			return err
		}
		var err error
		bill, err = s.bills.GetByID(ctx, billID)
		if err != nil {
			return err
		}
		if bill.Status != domain.BillStatusUnpaid {
			return domain.Statef("bill %s is %s", billID, bill.Status)
		}
		if bill.CustomerID != customerID {
			return domain.Authorizationf("bill %s does not belong to customer %s", billID, customerID)
		}

		debitCtx, cancel := context.WithTimeout(ctx, s.balanceTimeout)
		result, err = s.balance.Debit(debitCtx, customerID, bill.AmountCents)
		cancel()
		if err != nil {
			return domain.Upstreamf(err, "debit balance for bill %s", billID)
		}

		paidAt := s.now()
		if err := s.bills.MarkPaid(ctx, billID, paidAt); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"bill_id":  billID,
				"customer": customerID,
				"amount":   bill.AmountCents,
			}).Error("balance debited but bill not marked paid")
			if errors.Is(err, domain.ErrConflict) {
				return domain.Statef("bill %s is no longer unpaid", billID)
			}
			return err
		}
		bill.Status = domain.BillStatusPaid
		bill.PaymentTimestamp = &paidAt
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.confirm(ctx, bill)
	s.publish(ctx, bill)

	s.logger.WithFields(logrus.Fields{
		"bill_id":     billID,
		"customer":    customerID,
		"new_balance": result.NewBalance,
	}).Info("bill paid")
	return bill, nil
}

func (s *BillingService) confirm(ctx context.Context, bill *domain.Bill) {
	if s.confirmer == nil {
		return
	}
	confirmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.confirmTimeout)
	defer cancel()
	if err := s.confirmer.ConfirmPayment(confirmCtx, string(bill.ServiceName), bill.ServiceReferenceID, bill.CustomerID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"bill_id":   bill.ID,
			"service":   bill.ServiceName,
			"reference": bill.ServiceReferenceID,
		}).Warn("resource confirmation failed")
	}
}

func (s *BillingService) publish(ctx context.Context, bill *domain.Bill) {
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.BillEvent{
		Type:               kafka.EventBillPaid,
		BillID:             bill.ID,
		CustomerID:         bill.CustomerID,
		ServiceName:        string(bill.ServiceName),
		ServiceReferenceID: bill.ServiceReferenceID,
		AmountCents:        bill.AmountCents,
		OccurredAt:         s.now(),
	}
	if err := s.producer.Publish(ctx, s.topic, bill.ID, event); err != nil {
		s.logger.WithError(err).WithField("bill_id", bill.ID).Warn("publish bill event failed")
	}
}

func billLockKey(billID string) string {
	return "bill:" + billID
}

var _ BillingUseCase = (*BillingService)(nil)
