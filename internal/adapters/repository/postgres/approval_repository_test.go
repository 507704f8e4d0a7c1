package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
)

var approvalColumnNames = []string{
	"id", "requestor_email", "username", "description", "category", "amount", "currency", "status",
	"approver_email", "approver_comments", "receipt_filename", "created_at", "updated_at",
}

func TestScanApproval_Success(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	row := stubRow{scanFn: func(dest ...interface{}) error {
		if len(dest) != 13 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "appr-1"
		*(dest[1].(*string)) = "emp@example.com"
		*(dest[2].(*sql.NullString)) = sql.NullString{String: "emp", Valid: true}
		*(dest[3].(*string)) = "Taxi"
		*(dest[4].(*string)) = "Travel"
		*(dest[5].(*decimal.NullDecimal)) = decimal.NullDecimal{Decimal: decimal.RequireFromString("12.50"), Valid: true}
		*(dest[6].(*sql.NullString)) = sql.NullString{String: "EUR", Valid: true}
		*(dest[7].(*string)) = "Pending"
		*(dest[11].(*time.Time)) = now
		*(dest[12].(*time.Time)) = now
		return nil
	}}

	a, err := scanApproval(row)
	if err != nil {
		t.Fatalf("scanApproval returned error: %v", err)
	}
	if a.Amount == nil || !a.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected amount %v", a.Amount)
	}
	if a.Status != approval.StatusPending || a.RequestorName == nil || *a.RequestorName != "emp" {
		t.Fatalf("unexpected approval %+v", a)
	}
	if a.ApproverEmail != nil || a.ReceiptFilename != nil {
		t.Fatalf("expected nil optional fields")
	}
}

func TestScanApproval_NoRows(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		return pgx.ErrNoRows
	}}

	if _, err := scanApproval(row); !errors.Is(err, approval.ErrApprovalNotFound) {
		t.Fatalf("expected ErrApprovalNotFound, got %v", err)
	}
}

func TestTranslateApprovalPgError(t *testing.T) {
	t.Parallel()

	if !errors.Is(translateApprovalPgError(&pgconn.PgError{Code: invalidTextRepresCode}), approval.ErrApprovalNotFound) {
		t.Fatal("expected malformed id to map to ErrApprovalNotFound")
	}
	if !errors.Is(translateApprovalPgError(&pgconn.PgError{Code: numericOutOfRangeCode}), approval.ErrAmountOutOfRange) {
		t.Fatal("expected numeric overflow to map to ErrAmountOutOfRange")
	}
	if !errors.Is(translateApprovalPgError(&pgconn.PgError{Code: stringTooLongCode}), approval.ErrCurrencyTooLong) {
		t.Fatal("expected oversized currency to map to ErrCurrencyTooLong")
	}
	if !errors.Is(translateApprovalPgError(&pgconn.PgError{Code: checkViolationCode, ConstraintName: "approval_rules_amount_range_check"}), approval.ErrInvalidAmountRange) {
		t.Fatal("expected range check to map to ErrInvalidAmountRange")
	}
	if !errors.Is(translateApprovalPgError(&pgconn.PgError{Code: checkViolationCode, ConstraintName: "approvals_status_check"}), approval.ErrInvalidStatus) {
		t.Fatal("expected status check to map to ErrInvalidStatus")
	}
}

func TestApprovalRepository_List_ByRequestorsAndStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	status := approval.StatusPending
	emails := []string{"a@example.com", "b@example.com"}

	rows := pgxmock.NewRows(approvalColumnNames).
		AddRow("appr-2", "b@example.com", nil, "Hotel", "Travel", "80.00", "USD", "Pending", nil, nil, nil, now, now).
		AddRow("appr-1", "a@example.com", "alice", "Lunch", "Meals", nil, nil, "Pending", nil, nil, nil, now.Add(-time.Hour), now)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE a.status = $1 AND a.requestor_email = ANY($2) ORDER BY a.created_at DESC, a.id DESC LIMIT $3`)).
		WithArgs("Pending", emails, 200).
		WillReturnRows(rows)

	list, err := NewApprovalRepository(mock).List(context.Background(), approval.ListFilter{
		Status:          &status,
		RequestorEmails: emails,
		Limit:           200,
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 approvals, got %d", len(list))
	}
	if list[0].Amount == nil || list[0].Amount.String() != "80" {
		t.Fatalf("unexpected amount %v", list[0].Amount)
	}
	if list[1].Amount != nil || list[1].RequestorName == nil {
		t.Fatalf("unexpected second approval %+v", list[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovalRepository_List_ByApprover(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	approver := "mgr@example.com"
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE a.approver_email = $1 ORDER BY`)).
		WithArgs(approver, 50).
		WillReturnRows(pgxmock.NewRows(approvalColumnNames))

	list, err := NewApprovalRepository(mock).List(context.Background(), approval.ListFilter{ApproverEmail: &approver, Limit: 50})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovalRepository_UpdateDecision_NotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	comments := "ok"
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE approvals SET status = $1`)).
		WithArgs("Approved", "mgr@example.com", &comments, pgxmock.AnyArg(), "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewApprovalRepository(mock).UpdateDecision(context.Background(), "missing", approval.Decision{
		Status:        approval.StatusApproved,
		ApproverEmail: "mgr@example.com",
		Comments:      &comments,
		UpdatedAt:     time.Now(),
	})
	if !errors.Is(err, approval.ErrApprovalNotFound) {
		t.Fatalf("expected ErrApprovalNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNullableDecimal(t *testing.T) {
	t.Parallel()

	if nullableDecimal(nil) != nil {
		t.Fatal("expected nil for missing amount")
	}
	d := decimal.RequireFromString("1.50")
	if got := nullableDecimal(&d); got != "1.5" {
		t.Fatalf("unexpected value %v", got)
	}
}
