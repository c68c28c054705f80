package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// ReceiptOptions is the letterhead printed on receipts.
type ReceiptOptions struct {
	SchoolName    string
	SchoolAddress string
}

type BillingService struct {
	billings ports.Repository[domain.Billing]
	students ports.Repository[domain.Student]
	branches ports.Repository[domain.Branch]
	settings *SettingsService
	renderer ports.ReceiptRenderer
	receipts ports.ObjectStore
	opts     ReceiptOptions
	logger   *logrus.Logger
	now      Clock
}

func NewBillingService(
	billings ports.Repository[domain.Billing],
	students ports.Repository[domain.Student],
	branches ports.Repository[domain.Branch],
	settings *SettingsService,
	renderer ports.ReceiptRenderer,
	receipts ports.ObjectStore,
	opts ReceiptOptions,
	logger *logrus.Logger,
) *BillingService {
	return &BillingService{
		billings: billings,
		students: students,
		branches: branches,
		settings: settings,
		renderer: renderer,
		receipts: receipts,
		opts:     opts,
		logger:   logger,
		now:      systemClock,
	}
}

type BillingFilter struct {
	StudentID string
	BranchID  string
	Status    string
}

// List returns billings newest first. Parents only see their linked
// students.
func (s *BillingService) List(ctx context.Context, actor *domain.User, f BillingFilter) ([]*domain.Billing, error) {
	q := ports.Query{}.OrderBy("created_at", true)
	switch {
	case actor.IsParent():
		if f.StudentID != "" && !actor.HasStudent(f.StudentID) {
			return nil, forbiddenf("student is not linked to your account")
		}
		ids := actor.StudentIDs
		if f.StudentID != "" {
			ids = []string{f.StudentID}
		}
		if len(ids) == 0 {
			return []*domain.Billing{}, nil
		}
		q = q.And(ports.In("student_id", ids))
	default:
		if !actor.IsAdmin() {
			if f.BranchID != "" && f.BranchID != actor.BranchID {
				return nil, forbiddenf("branch %s is outside your scope", f.BranchID)
			}
			f.BranchID = actor.BranchID
		}
		if f.StudentID != "" {
			q = q.And(ports.Eq("student_id", f.StudentID))
		}
		if f.BranchID != "" {
			q = q.And(ports.Eq("branch_id", f.BranchID))
		}
	}
	if f.Status != "" {
		if !domain.PaymentStatus(f.Status).Valid() {
			return nil, validationf("unknown status %q", f.Status)
		}
		q = q.And(ports.Eq("status", f.Status))
	}
	return s.billings.Find(ctx, q)
}

type BillingInput struct {
	StudentID    string              `json:"student_id" validate:"required"`
	FeeStructure domain.FeeStructure `json:"fee_structure" validate:"required"`
	Status       string              `json:"status"`
}

func (s *BillingService) Create(ctx context.Context, actor *domain.User, in BillingInput) (*domain.Billing, error) {
	if strings.TrimSpace(in.FeeStructure.Name) == "" {
		return nil, validationf("fee_structure.name is required")
	}
	if in.FeeStructure.Amount < 0 {
		return nil, validationf("fee_structure.amount must not be negative")
	}
	status := domain.PaymentPending
	if in.Status != "" {
		status = domain.PaymentStatus(in.Status)
		if !status.Valid() || status == domain.PaymentPaid {
			return nil, validationf("invalid initial status %q", in.Status)
		}
	}
	st, err := s.students.Get(ctx, in.StudentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, validationf("unknown student: %s", in.StudentID)
		}
		return nil, err
	}
	if err := checkStaffBranch(actor, st.BranchID); err != nil {
		return nil, err
	}

	now := s.now()
	b := &domain.Billing{
		ID:           newID(),
		StudentID:    st.ID,
		BranchID:     st.BranchID,
		FeeStructure: in.FeeStructure,
		Status:       status,
		PaymentMode:  domain.PaymentModeCash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.billings.Insert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Pay marks the billing paid and then tries to attach a receipt. A receipt
// failure is logged; the payment stands.
func (s *BillingService) Pay(ctx context.Context, actor *domain.User, id string, p domain.Payment) (*domain.Billing, error) {
	b, err := s.billings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkStaffBranch(actor, b.BranchID); err != nil {
		return nil, err
	}
	if b.Status == domain.PaymentPaid {
		return nil, conflictf("billing %s is already paid", id)
	}
	if err := b.Pay(p, s.now()); err != nil {
		return nil, err
	}
	if err := s.billings.Save(ctx, b); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"billing_id": b.ID, "amount": b.AmountPaid, "mode": b.PaymentMode}).Info("billing paid")

	if err := s.attachReceipt(ctx, b); err != nil {
		s.logger.WithError(err).WithField("billing_id", b.ID).Warn("receipt generation failed")
	}
	return b, nil
}

// RegenerateReceipt renders and stores a fresh receipt for a paid billing.
func (s *BillingService) RegenerateReceipt(ctx context.Context, actor *domain.User, id string) (*domain.Billing, error) {
	b, err := s.billings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkStaffBranch(actor, b.BranchID); err != nil {
		return nil, err
	}
	if b.Status != domain.PaymentPaid {
		return nil, validationf("receipts exist only for paid billings")
	}
	if err := s.attachReceipt(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DownloadReceipt renders the receipt on the fly.
func (s *BillingService) DownloadReceipt(ctx context.Context, actor *domain.User, id string) ([]byte, string, error) {
	b, err := s.billings.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if actor.IsParent() {
		if !actor.HasStudent(b.StudentID) {
			return nil, "", forbiddenf("student is not linked to your account")
		}
	} else if err := checkStaffBranch(actor, b.BranchID); err != nil {
		return nil, "", err
	}
	if b.Status != domain.PaymentPaid {
		return nil, "", validationf("receipts exist only for paid billings")
	}
	data, err := s.render(ctx, b)
	if err != nil {
		return nil, "", err
	}
	return data, "receipt-" + domain.ReceiptNumber(b.ID) + ".pdf", nil
}

// ReceiptContext assembles what the renderer prints.
func (s *BillingService) ReceiptContext(ctx context.Context, b *domain.Billing) (domain.ReceiptContext, error) {
	rc := domain.ReceiptContext{
		SchoolName:    s.opts.SchoolName,
		SchoolAddress: s.opts.SchoolAddress,
		ReceiptNumber: domain.ReceiptNumber(b.ID),
		Date:          s.now(),
		Total:         b.AmountPaid,
		AmountInWords: domain.AmountInWords(b.AmountPaid),
		PaymentMode:   strings.ToUpper(b.PaymentMode),
		TransactionNo: b.TransactionNumber,
	}
	if b.PaidAt != nil {
		rc.Date = *b.PaidAt
	}

	if st, err := s.students.Get(ctx, b.StudentID); err == nil {
		rc.StudentName = st.FullName
		rc.AdmissionNumber = st.AdmissionNumber
		rc.ClassName = st.ClassName
	} else if !errors.Is(err, domain.ErrNotFound) {
		return rc, err
	}
	if br, err := s.branches.Get(ctx, b.BranchID); err == nil {
		rc.BranchName = br.Name
	} else if !errors.Is(err, domain.ErrNotFound) {
		return rc, err
	}

	st, err := s.settings.Get(ctx)
	if err != nil {
		return rc, err
	}
	template := domain.FindTemplate(st.FeeStructures, b.FeeStructure.Name)
	rc.Components = domain.Apportion(template, b.AmountPaid, b.FeeStructure.Name)
	return rc, nil
}

func (s *BillingService) render(ctx context.Context, b *domain.Billing) ([]byte, error) {
	rc, err := s.ReceiptContext(ctx, b)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.Render(b, rc)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.Join(domain.ErrUnavailable, errors.New("receipt could not be rendered"))
	}
	return data, nil
}

func (s *BillingService) attachReceipt(ctx context.Context, b *domain.Billing) error {
	data, err := s.render(ctx, b)
	if err != nil {
		return err
	}
	key := domain.ObjectKey("receipts", "pdf", b.BranchID, b.StudentID)
	url, err := s.receipts.Put(ctx, key, data, "application/pdf")
	if err != nil {
		return errors.Join(domain.ErrUnavailable, err)
	}

	previous := b.ReceiptKey
	b.ReceiptKey, b.ReceiptURL = key, url
	b.UpdatedAt = s.now()
	if err := s.billings.Save(ctx, b); err != nil {
		return err
	}
	if previous != "" && previous != key {
		if err := s.receipts.Delete(ctx, previous); err != nil {
			s.logger.WithError(err).WithField("key", previous).Warn("could not delete previous receipt")
		}
	}
	return nil
}
