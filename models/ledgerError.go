package models

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindBusiness   ErrorKind = "business"
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindIntegrity  ErrorKind = "integrity"
	ErrorKindUnexpected ErrorKind = "unexpected"
)

// LedgerError is returned by every ledger operation that fails for a known reason.
// Fields carries per-field messages for validation errors.
type LedgerError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *LedgerError) Error() string {
	if e.Err != nil && e.Kind == ErrorKindIntegrity {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func NewValidationError(message string, fields map[string]string) *LedgerError {
	return &LedgerError{Kind: ErrorKindValidation, Message: message, Fields: fields}
}

func NewFieldError(field string, message string) *LedgerError {
	return NewValidationError(field+" "+message, map[string]string{field: message})
}

func NewBusinessError(format string, args ...any) *LedgerError {
	return &LedgerError{Kind: ErrorKindBusiness, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(what string) *LedgerError {
	return &LedgerError{Kind: ErrorKindNotFound, Message: what + " not found", Err: utils.ErrorRecordNotFound}
}

func NewIntegrityError(message string, err error) *LedgerError {
	return &LedgerError{Kind: ErrorKindIntegrity, Message: message, Err: err}
}

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
)

type InsufficientStockError struct {
	ProductId   int
	ProductName string
	UnitName    string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %s %s, requested %s",
		e.ProductName, e.Available.String(), e.UnitName, e.Requested.String())
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type CurrencyMismatchError struct {
	Expected Currency
	Got      Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("payment currency %s does not match invoice currency %s", e.Got, e.Expected)
}

func (e *CurrencyMismatchError) Unwrap() error {
	return ErrCurrencyMismatch
}

// KindOf classifies err for the HTTP layer.
func KindOf(err error) ErrorKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrCurrencyMismatch) {
		return ErrorKindBusiness
	}
	if errors.Is(err, utils.ErrorRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorKindNotFound
	}
	if utils.IsDuplicateKeyErr(err) {
		return ErrorKindIntegrity
	}
	return ErrorKindUnexpected
}

// FieldsOf returns per-field validation messages, if any.
func FieldsOf(err error) map[string]string {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Fields
	}
	return nil
}

// notFoundAs turns a missing-record error into a typed not-found error.
func notFoundAs(err error, what string) error {
	if errors.Is(err, utils.ErrorRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError(what)
	}
	return err
}

// validateInput runs struct-tag validation and wraps failures as field errors.
func validateInput(input any) error {
	if err := utils.ValidateStruct(input); err != nil {
		return NewValidationError("invalid input", utils.ProcessValidationErrors(err))
	}
	return nil
}
