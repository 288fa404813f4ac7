package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents different categories of LDAP errors.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryLimit          ErrorCategory = "limit"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// LDAPError provides enhanced error information for LDAP operations.
type LDAPError struct {
	Operation string        // The operation that failed
	Category  ErrorCategory // Error category
	LDAPCode  uint16        // LDAP result code
	Message   string        // Human-readable message
	ServerMsg string        // Server-provided message
	DN        string        // Search root or entry involved, if any
	Retryable bool          // Whether the error is retryable
	Cause     error         // Underlying error
}

func (e *LDAPError) Error() string {
	var parts []string

	if e.LDAPCode > 0 {
		parts = append(parts, fmt.Sprintf("LDAP %s failed (code %d)", e.Operation, e.LDAPCode))
	} else {
		parts = append(parts, fmt.Sprintf("LDAP %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		parts = append(parts, fmt.Sprintf("server: %s", e.ServerMsg))
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	return strings.Join(parts, " - ")
}

func (e *LDAPError) IsRetryable() bool {
	return e.Retryable
}

func (e *LDAPError) Unwrap() error {
	return e.Cause
}

// GetCategory returns the error category.
func (e *LDAPError) GetCategory() ErrorCategory {
	return e.Category
}

// GetLDAPCode returns the LDAP result code.
func (e *LDAPError) GetLDAPCode() uint16 {
	return e.LDAPCode
}

// NewLDAPError creates a new LDAP error.
func NewLDAPError(operation string, err error) *LDAPError {
	if err == nil {
		return nil
	}

	ldapErr := &LDAPError{
		Operation: operation,
		Cause:     err,
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		ldapErr.LDAPCode = resultErr.ResultCode
		if resultErr.Err != nil {
			ldapErr.ServerMsg = resultErr.Err.Error()
		}
		ldapErr.setDN(resultErr.MatchedDN)
		ldapErr.Category = categorizeError(resultErr.ResultCode)
		ldapErr.Retryable = isLDAPCodeRetryable(resultErr.ResultCode)
		ldapErr.Message = getLDAPCodeMessage(resultErr.ResultCode)
	} else {
		ldapErr.Category = categorizeGenericError(err)
		ldapErr.Retryable = isGenericErrorRetryable(err)
		ldapErr.Message = err.Error()
	}

	return ldapErr
}

// setDN records dn unless a DN is already set.
func (e *LDAPError) setDN(dn string) {
	if e.DN == "" {
		e.DN = dn
	}
}

// categorizeError categorizes an error based on LDAP result code.
func categorizeError(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired,
		ldap.LDAPResultAuthMethodNotSupported:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform,
		ldap.LDAPResultConfidentialityRequired:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultFilterError,
		ldap.LDAPResultInappropriateMatching,
		ldap.LDAPResultUnavailableCriticalExtension:
		return ErrorCategoryValidation

	case ldap.LDAPResultSizeLimitExceeded,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryLimit

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultOperationsError:
		return ErrorCategoryServer

	case ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError,
		ldap.ErrorNetwork:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

// categorizeGenericError categorizes non-LDAP errors.
func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "broken pipe") {
		return ErrorCategoryConnection
	}

	if strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "credentials") ||
		strings.Contains(errStr, "kerberos") {
		return ErrorCategoryAuthentication
	}

	if strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "denied") {
		return ErrorCategoryPermission
	}

	return ErrorCategoryUnknown
}

// isLDAPCodeRetryable determines if an LDAP error code indicates a retryable condition.
func isLDAPCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultConnectError,
		ldap.ErrorNetwork:
		return true
	default:
		return false
	}
}

// isGenericErrorRetryable determines if a generic error is retryable.
func isGenericErrorRetryable(err error) bool {
	errStr := strings.ToLower(err.Error())

	retryablePatterns := []string{
		"connection reset",
		"connection refused",
		"connection closed",
		"timeout",
		"network",
		"broken pipe",
		"temporary failure",
		"bind must be completed",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

var ldapCodeMessages = map[uint16]string{
	ldap.LDAPResultOperationsError:              "LDAP operations error",
	ldap.LDAPResultProtocolError:                "LDAP protocol error",
	ldap.LDAPResultTimeLimitExceeded:            "LDAP time limit exceeded",
	ldap.LDAPResultSizeLimitExceeded:            "LDAP size limit exceeded",
	ldap.LDAPResultAuthMethodNotSupported:       "Authentication method not supported",
	ldap.LDAPResultStrongAuthRequired:           "Strong authentication required",
	ldap.LDAPResultReferral:                     "LDAP referral",
	ldap.LDAPResultAdminLimitExceeded:           "Administrative limit exceeded",
	ldap.LDAPResultUnavailableCriticalExtension: "Critical extension unavailable",
	ldap.LDAPResultConfidentialityRequired:      "Confidentiality required",
	ldap.LDAPResultNoSuchAttribute:              "Requested attribute does not exist",
	ldap.LDAPResultUndefinedAttributeType:       "Attribute type is not defined",
	ldap.LDAPResultInappropriateMatching:        "Inappropriate matching rule",
	ldap.LDAPResultNoSuchObject:                 "Search root does not exist",
	ldap.LDAPResultInvalidDNSyntax:              "Invalid DN syntax",
	ldap.LDAPResultInappropriateAuthentication:  "Inappropriate authentication method",
	ldap.LDAPResultInvalidCredentials:           "Invalid credentials",
	ldap.LDAPResultInsufficientAccessRights:     "Insufficient access rights",
	ldap.LDAPResultBusy:                         "Server is busy",
	ldap.LDAPResultUnavailable:                  "Server is unavailable",
	ldap.LDAPResultUnwillingToPerform:           "Server is unwilling to perform the operation",
	ldap.LDAPResultServerDown:                   "Server is down",
	ldap.LDAPResultTimeout:                      "Operation timed out",
	ldap.LDAPResultFilterError:                  "Invalid search filter",
	ldap.LDAPResultConnectError:                 "Connection error",
	ldap.ErrorNetwork:                           "Network error",
	ldap.LDAPResultNotSupported:                 "Operation not supported",
	ldap.LDAPResultControlNotFound:              "Control not found",
	ldap.LDAPResultNoResultsReturned:            "No results returned",
}

// getLDAPCodeMessage returns a human-readable message for an LDAP result code.
func getLDAPCodeMessage(code uint16) string {
	if msg, ok := ldapCodeMessages[code]; ok {
		return msg
	}
	if text, ok := ldap.LDAPResultCodeMap[code]; ok {
		return text
	}
	return fmt.Sprintf("Unknown LDAP error (code %d)", code)
}

// WrapError wraps an error with operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		if ldapErr.Operation == "" {
			ldapErr.Operation = operation
		}
		return err
	}

	return NewLDAPError(operation, err)
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return isLDAPCodeRetryable(resultErr.ResultCode)
	}

	return isGenericErrorRetryable(err)
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		return ldapErr.GetCategory()
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return categorizeError(resultErr.ResultCode)
	}

	return categorizeGenericError(err)
}

// IsNotFoundError checks if an error indicates a "not found" condition.
func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

// IsAuthenticationError checks if an error indicates an authentication problem.
func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsPermissionError checks if an error indicates a permission problem.
func IsPermissionError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryPermission
}

// IsSizeLimitExceeded reports whether the server stopped a search at its
// size limit. Searches sent with a size limit end this way when more entries
// match.
func IsSizeLimitExceeded(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded)
}
