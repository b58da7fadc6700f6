// Package errors provides structured application errors with codes shared by the HTTP
// control API, the gRPC surface, and the translation backends.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Domain identifies this service in gRPC ErrorInfo details.
const Domain = "polyglot"

// Code classifies an AppError.
type Code int32

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	NotFound
	Unavailable
	Timeout
	Cancelled
	CaptureFailed
	ExtractionFailed
	Unauthorized
	QuotaExceeded
	UnsupportedLanguage
	BackendError
	OverlayRejected
	ConfigInvalid
)

var codeNames = map[Code]string{
	Unknown:             "UNKNOWN",
	Internal:            "INTERNAL",
	InvalidArgument:     "INVALID_ARGUMENT",
	NotFound:            "NOT_FOUND",
	Unavailable:         "UNAVAILABLE",
	Timeout:             "TIMEOUT",
	Cancelled:           "CANCELLED",
	CaptureFailed:       "CAPTURE_FAILED",
	ExtractionFailed:    "EXTRACTION_FAILED",
	Unauthorized:        "UNAUTHORIZED",
	QuotaExceeded:       "QUOTA_EXCEEDED",
	UnsupportedLanguage: "UNSUPPORTED_LANGUAGE",
	BackendError:        "BACKEND_ERROR",
	OverlayRejected:     "OVERLAY_REJECTED",
	ConfigInvalid:       "CONFIG_INVALID",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CODE(%d)", int32(c))
}

// grpcCodeMap maps Code to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:             codes.Unknown,
	Internal:            codes.Internal,
	InvalidArgument:     codes.InvalidArgument,
	NotFound:            codes.NotFound,
	Unavailable:         codes.Unavailable,
	Timeout:             codes.DeadlineExceeded,
	Cancelled:           codes.Canceled,
	CaptureFailed:       codes.Unavailable,
	ExtractionFailed:    codes.Internal,
	Unauthorized:        codes.PermissionDenied,
	QuotaExceeded:       codes.ResourceExhausted,
	UnsupportedLanguage: codes.InvalidArgument,
	BackendError:        codes.Internal,
	OverlayRejected:     codes.FailedPrecondition,
	ConfigInvalid:       codes.InvalidArgument,
}

// httpStatusMap maps Code to HTTP status codes for the control API.
var httpStatusMap = map[Code]int{
	InvalidArgument:     http.StatusBadRequest,
	UnsupportedLanguage: http.StatusBadRequest,
	ConfigInvalid:       http.StatusBadRequest,
	NotFound:            http.StatusNotFound,
	Unauthorized:        http.StatusForbidden,
	QuotaExceeded:       http.StatusTooManyRequests,
	Unavailable:         http.StatusServiceUnavailable,
	CaptureFailed:       http.StatusServiceUnavailable,
	Timeout:             http.StatusGatewayTimeout,
	OverlayRejected:     http.StatusConflict,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code       Code
	Message    string
	Metadata   map[string]string
	Cause      error
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// HTTPStatus returns the HTTP status used by the control API.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatusMap[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// GRPCStatus returns a gRPC status carrying ErrorInfo, plus RetryInfo when RetryAfter is set.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	info := &errdetails.ErrorInfo{Reason: e.Code.String(), Domain: Domain, Metadata: e.Metadata}
	if e.RetryAfter > 0 {
		if withDetails, err := st.WithDetails(info, &errdetails.RetryInfo{RetryDelay: durationpb.New(e.RetryAfter)}); err == nil {
			return withDetails
		}
		return st
	}
	if withDetails, err := st.WithDetails(info); err == nil {
		return withDetails
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// WithRetryAfter records a server-suggested retry delay.
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	e.RetryAfter = d
	return e
}

// FromGRPCError extracts AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}

	appErr := &AppError{Code: grpcToCode(st.Code()), Message: st.Message()}
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			if d.GetDomain() != Domain {
				continue
			}
			if c, ok := codeFromName(d.GetReason()); ok {
				appErr.Code = c
			}
			appErr.Metadata = d.GetMetadata()
		case *errdetails.RetryInfo:
			appErr.RetryAfter = d.GetRetryDelay().AsDuration()
		}
	}
	return appErr
}

func codeFromName(name string) (Code, bool) {
	for c, n := range codeNames {
		if n == name {
			return c, true
		}
	}
	return Unknown, false
}

// grpcToCode maps gRPC codes back to our error codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.NotFound:
		return NotFound
	case codes.Unavailable:
		return Unavailable
	case codes.DeadlineExceeded:
		return Timeout
	case codes.Canceled:
		return Cancelled
	case codes.Internal:
		return Internal
	case codes.PermissionDenied, codes.Unauthenticated:
		return Unauthorized
	case codes.ResourceExhausted:
		return QuotaExceeded
	case codes.FailedPrecondition:
		return ConfigInvalid
	default:
		return Unknown
	}
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or Unknown.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case Unavailable, Timeout, QuotaExceeded:
		return true
	default:
		return false
	}
}
