package approval

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Observer は状態遷移を外部 (メトリクス等) に通知します。
type Observer interface {
	ObserveTransition(from, to Status)
}

const (
	defaultListLimit = 200
	maxListLimit     = 500
	defaultRuleName  = "Approval Rule"
)

// Service は経費申請ワークフローのユースケースをまとめます。
type Service struct {
	repo     Repository
	rules    RuleRepository
	clock    Clock
	tx       TransactionManager
	logger   *zap.Logger
	observer Observer
}

// UseCase は経費申請ユースケースの公開インターフェースです。
type UseCase interface {
	Submit(ctx context.Context, in SubmitInput) (*Approval, error)
	Decide(ctx context.Context, in DecideInput) (*Approval, error)
	Escalate(ctx context.Context, in EscalateInput) (*Approval, error)
	Get(ctx context.Context, id string) (*Approval, error)
	List(ctx context.Context, in ListInput) ([]*Approval, error)
	ListByRequestor(ctx context.Context, email string, in ListInput) ([]*Approval, error)
	ListByApprover(ctx context.Context, email string, in ListInput) ([]*Approval, error)
	ListByRequestors(ctx context.Context, emails []string, in ListInput) ([]*Approval, error)
	CreateRule(ctx context.Context, in CreateRuleInput) (*Rule, error)
	ListRules(ctx context.Context) ([]*Rule, error)
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithLogger は状態遷移の警告を出力するロガーを設定します。
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver は状態遷移の通知先を設定します。
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// WithTransactionManager はトランザクション制御を設定します。
func WithTransactionManager(tx TransactionManager) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, rules RuleRepository, clock Clock, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	s := &Service{
		repo:   repo,
		rules:  rules,
		clock:  clock,
		tx:     noopTransactionManager{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput は経費申請時の入力です。
type SubmitInput struct {
	RequestorEmail  string
	Description     string
	Category        string
	Amount          *decimal.Decimal
	Currency        *string
	ReceiptFilename *string
}

// DecideInput は承認・却下時の入力です。
type DecideInput struct {
	ID            string
	ApproverEmail string
	Action        string
	Comments      string
}

// EscalateInput はエスカレーション時の入力です。
type EscalateInput struct {
	ID            string
	ApproverEmail string
	Comments      string
}

// ListInput は一覧取得時の入力です。Limit が 0 以下の場合は既定値を使います。
type ListInput struct {
	Status *Status
	Limit  int
}

// CreateRuleInput は承認ルール作成時の入力です。
type CreateRuleInput struct {
	Name              string
	MinAmount         *decimal.Decimal
	MaxAmount         *decimal.Decimal
	Category          string
	RequiredApprovers int
}

// Submit は新しい経費申請を Pending 状態で作成します。
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Approval, error) {
	requestor, err := normalizeEmail(in.RequestorEmail)
	if err != nil {
		return nil, fmt.Errorf("requestor: %w", ErrInvalidRequestor)
	}

	now := s.clock.Now()
	return s.repo.Create(ctx, &Approval{
		RequestorEmail:  requestor,
		Description:     strings.TrimSpace(in.Description),
		Category:        strings.TrimSpace(in.Category),
		Amount:          in.Amount,
		Currency:        normalizeCurrency(in.Currency),
		Status:          StatusPending,
		ReceiptFilename: optionalString(in.ReceiptFilename),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

// Decide は申請を承認または却下します。現在の状態に関わらず上書きします。
func (s *Service) Decide(ctx context.Context, in DecideInput) (*Approval, error) {
	action, err := ParseAction(in.Action)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, in.ID, in.ApproverEmail, in.Comments, action.status())
}

// Escalate は申請を Escalated 状態にします。
func (s *Service) Escalate(ctx context.Context, in EscalateInput) (*Approval, error) {
	return s.transition(ctx, in.ID, in.ApproverEmail, in.Comments, StatusEscalated)
}

func (s *Service) transition(ctx context.Context, rawID, rawApprover, comments string, to Status) (*Approval, error) {
	id := strings.TrimSpace(rawID)
	if id == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	approver, err := normalizeEmail(rawApprover)
	if err != nil {
		return nil, fmt.Errorf("approver: %w", ErrInvalidApprover)
	}

	var (
		updated *Approval
		from    Status
	)
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		from = current.Status

		result, err := s.repo.UpdateDecision(txCtx, id, Decision{
			Status:        to,
			ApproverEmail: approver,
			Comments:      optionalString(&comments),
			UpdatedAt:     s.clock.Now(),
		})
		if err != nil {
			return err
		}
		updated = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	if from.Terminal() {
		s.logger.Warn("approval re-disposed",
			zap.String("approval_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("approver", approver),
		)
	}
	if s.observer != nil {
		s.observer.ObserveTransition(from, to)
	}

	return updated, nil
}

// Get は ID で申請を取得します。
func (s *Service) Get(ctx context.Context, id string) (*Approval, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	return s.repo.FindByID(ctx, strings.TrimSpace(id))
}

// List は全申請を新しい順に取得します。
func (s *Service) List(ctx context.Context, in ListInput) ([]*Approval, error) {
	filter, err := buildFilter(in)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// ListByRequestor は指定された申請者の申請を新しい順に取得します。
func (s *Service) ListByRequestor(ctx context.Context, email string, in ListInput) ([]*Approval, error) {
	requestor, err := normalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("requestor: %w", ErrInvalidRequestor)
	}
	return s.ListByRequestors(ctx, []string{requestor}, in)
}

// ListByApprover は指定された承認者が処理した申請を新しい順に取得します。
func (s *Service) ListByApprover(ctx context.Context, email string, in ListInput) ([]*Approval, error) {
	approver, err := normalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("approver: %w", ErrInvalidApprover)
	}
	filter, err := buildFilter(in)
	if err != nil {
		return nil, err
	}
	filter.ApproverEmail = &approver
	return s.repo.List(ctx, filter)
}

// ListByRequestors は複数の申請者の申請をまとめて取得します。申請者が空の場合は空の結果を返します。
func (s *Service) ListByRequestors(ctx context.Context, emails []string, in ListInput) ([]*Approval, error) {
	filter, err := buildFilter(in)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(emails))
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		email, err := normalizeEmail(e)
		if err != nil {
			return nil, fmt.Errorf("requestor: %w", ErrInvalidRequestor)
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		normalized = append(normalized, email)
	}
	if len(normalized) == 0 {
		return []*Approval{}, nil
	}

	filter.RequestorEmails = normalized
	return s.repo.List(ctx, filter)
}

// CreateRule は承認ルールを作成します。
func (s *Service) CreateRule(ctx context.Context, in CreateRuleInput) (*Rule, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = defaultRuleName
	}

	required := in.RequiredApprovers
	switch {
	case required == 0:
		required = 1
	case required < 0:
		return nil, ErrInvalidRequiredApprovers
	}

	if (in.MinAmount != nil && in.MinAmount.IsNegative()) || (in.MaxAmount != nil && in.MaxAmount.IsNegative()) {
		return nil, ErrInvalidAmountRange
	}
	if in.MinAmount != nil && in.MaxAmount != nil && in.MinAmount.GreaterThan(*in.MaxAmount) {
		return nil, ErrInvalidAmountRange
	}

	category := strings.TrimSpace(in.Category)
	return s.rules.CreateRule(ctx, &Rule{
		Name:              name,
		MinAmount:         in.MinAmount,
		MaxAmount:         in.MaxAmount,
		Category:          optionalString(&category),
		RequiredApprovers: required,
		CreatedAt:         s.clock.Now(),
	})
}

// ListRules は承認ルールを作成順に取得します。
func (s *Service) ListRules(ctx context.Context) ([]*Rule, error) {
	return s.rules.ListRules(ctx)
}

func buildFilter(in ListInput) (ListFilter, error) {
	limit, err := normalizeLimit(in.Limit)
	if err != nil {
		return ListFilter{}, err
	}

	var statusPtr *Status
	if in.Status != nil {
		status, err := ParseStatus(string(*in.Status))
		if err != nil {
			return ListFilter{}, err
		}
		statusPtr = &status
	}

	return ListFilter{Status: statusPtr, Limit: limit}, nil
}

func normalizeLimit(limit int) (int, error) {
	if limit <= 0 {
		return defaultListLimit, nil
	}
	if limit > maxListLimit {
		return 0, ErrInvalidLimit
	}
	return limit, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidRequestor
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Address), nil
}

func normalizeCurrency(raw *string) *string {
	if raw == nil {
		return nil
	}
	code := strings.ToUpper(strings.TrimSpace(*raw))
	if code == "" {
		return nil
	}
	return &code
}

func optionalString(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
