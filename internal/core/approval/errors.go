package approval

import "errors"

var (
	// ErrApprovalNotFound は申請が存在しない場合に返却されます。
	ErrApprovalNotFound = errors.New("approval not found")
	// ErrInvalidID はIDが不正な場合に返却されます。
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidRequestor は申請者のメールアドレスが不正な場合に返却されます。
	ErrInvalidRequestor = errors.New("invalid requestor email")
	// ErrInvalidApprover は承認者のメールアドレスが不正な場合に返却されます。
	ErrInvalidApprover = errors.New("invalid approver email")
	// ErrInvalidAction は承認・却下以外の判断が指定された場合に返却されます。
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidStatus は状態が不正な場合に返却されます。
	ErrInvalidStatus = errors.New("invalid status")
	// ErrAmountOutOfRange は金額が保存可能な桁数を超える場合に返却されます。
	ErrAmountOutOfRange = errors.New("amount out of range")
	// ErrCurrencyTooLong は通貨コードが保存可能な長さを超える場合に返却されます。
	ErrCurrencyTooLong = errors.New("currency too long")
	// ErrInvalidLimit は取得件数が上限を超える場合に返却されます。
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrInvalidAmountRange は承認ルールの金額帯が不正な場合に返却されます。
	ErrInvalidAmountRange = errors.New("invalid amount range")
	// ErrInvalidRequiredApprovers は必要承認者数が不正な場合に返却されます。
	ErrInvalidRequiredApprovers = errors.New("invalid required approvers")
)
