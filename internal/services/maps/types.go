package maps

import (
	"context"
	"errors"
	"strings"
)

// Page is the narrow browser surface the agents drive. browser.Session is
// the production implementation, tests substitute a scripted fake.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Eval(ctx context.Context, expr string, out interface{}) error
	Type(ctx context.Context, sel, text string) error
	PressEnter(ctx context.Context, sel string) error
	Drag(ctx context.Context, fromX, fromY, toX, toY float64) error
}

// CaptchaError - the service demanded human verification. Never fatal:
// tasks land in WAITCAPTCHA, enrichment cools down and retries.
type CaptchaError struct {
	Msg string
}

func (e *CaptchaError) Error() string {
	return e.Msg
}

// PageStructureError - an expected element or parameter was not found
// within its timeout. Retryable.
type PageStructureError struct {
	Msg string
}

func (e *PageStructureError) Error() string {
	return e.Msg
}

// IsCaptchaError reports whether err is a captcha detection
func IsCaptchaError(err error) bool {
	var ce *CaptchaError
	return errors.As(err, &ce)
}

// IsStructureError reports whether err is a page-structure failure
func IsStructureError(err error) bool {
	var pe *PageStructureError
	return errors.As(err, &pe)
}

// IsTimeoutError reports whether err looks like a navigation or evaluation
// deadline. These get a shorter cooldown than captchas and do not force
// session recreation.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}
