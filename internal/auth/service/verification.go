package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

const (
	DefaultCodeTTL     = 15 * time.Minute
	VerificationDigits = 6
)

// Purpose binds a code to the flow that issued it, so an email verification
// code cannot be replayed as a password reset.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// Verification outcomes reported to a VerificationObserver.
const (
	OutcomeIssued       = "issued"
	OutcomeVerified     = "verified"
	OutcomeExpired      = "expired"
	OutcomeInvalidCode  = "invalid_code"
	OutcomeInvalidToken = "invalid_token"
)

// CodePayload is the plaintext sealed inside an encrypted code. ExpiresAt is
// unix milliseconds.
type CodePayload struct {
	Code      string  `json:"code"`
	Email     string  `json:"email"`
	Purpose   Purpose `json:"purpose"`
	ExpiresAt int64   `json:"expiresAt"`
}

// Mailer delivers a code to its owner. Dispatch itself lives outside this
// service.
type Mailer interface {
	SendCode(ctx context.Context, email, code string, purpose Purpose) error
}

// LogMailer writes codes to the request logger. Development only.
type LogMailer struct{}

func (LogMailer) SendCode(ctx context.Context, email, code string, purpose Purpose) error {
	slogx.FromContext(ctx).Info("verification code issued",
		slog.String("email", email),
		slog.String("purpose", string(purpose)),
		slog.String("code", code),
	)
	return nil
}

type VerificationObserver interface {
	ObserveVerification(outcome string)
}

// VerificationService issues and checks short-lived codes without storing
// them. The encrypted code handed to the client is the only copy.
type VerificationService struct {
	Codec    *cryptox.SecretCodec
	Mailer   Mailer
	TTL      time.Duration
	Observer VerificationObserver

	// Now and GenerateCode are replaceable in tests.
	Now          func() time.Time
	GenerateCode func() (string, error)
}

func (s *VerificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *VerificationService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultCodeTTL
}

func (s *VerificationService) code() (string, error) {
	if s.GenerateCode != nil {
		return s.GenerateCode()
	}
	return cryptox.GenerateNumericCode(VerificationDigits)
}

func (s *VerificationService) observe(outcome string) {
	if s.Observer != nil {
		s.Observer.ObserveVerification(outcome)
	}
}

// Issue mails a fresh code to email and returns its encrypted form.
func (s *VerificationService) Issue(ctx context.Context, email string) (string, error) {
	return s.issue(ctx, email, PurposeVerify, true)
}

func (s *VerificationService) issue(ctx context.Context, email string, purpose Purpose, deliver bool) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}

	code, err := s.code()
	if err != nil {
		return "", err
	}

	token, err := s.Codec.Encode(CodePayload{
		Code:      code,
		Email:     email,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.ttl()).UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("seal code: %w", err)
	}

	if deliver && s.Mailer != nil {
		if err := s.Mailer.SendCode(ctx, email, code, purpose); err != nil {
			return "", fmt.Errorf("deliver code: %w", err)
		}
	}

	s.observe(OutcomeIssued)
	return token, nil
}

// Verify checks a submitted code against an encrypted code issued by Issue.
// It returns cryptox.ErrInvalidToken, ErrExpiredSecret or ErrInvalidCode.
func (s *VerificationService) Verify(ctx context.Context, code, token string) (CodePayload, error) {
	return s.VerifyFor(ctx, code, token, PurposeVerify, "")
}

// VerifyFor is Verify with the payload additionally bound to purpose and,
// when email is not empty, to that address.
func (s *VerificationService) VerifyFor(ctx context.Context, code, token string, purpose Purpose, email string) (CodePayload, error) {
	l := slogx.FromContext(ctx)

	var p CodePayload
	if err := s.Codec.Decode(token, &p); err != nil {
		l.Warn("verification rejected: undecodable code", slog.Any("error", err))
		s.observe(OutcomeInvalidToken)
		return CodePayload{}, cryptox.ErrInvalidToken
	}

	if s.now().UnixMilli() > p.ExpiresAt {
		l.Warn("verification rejected: expired", slog.String("email", p.Email))
		s.observe(OutcomeExpired)
		return CodePayload{}, ErrExpiredSecret
	}

	if p.Purpose != purpose || (email != "" && !strings.EqualFold(p.Email, strings.TrimSpace(email))) {
		l.Warn("verification rejected: code issued for another flow", slog.String("purpose", string(purpose)))
		s.observe(OutcomeInvalidCode)
		return CodePayload{}, ErrInvalidCode
	}

	if code == "" || subtle.ConstantTimeCompare([]byte(code), []byte(p.Code)) != 1 {
		l.Warn("verification rejected: code mismatch", slog.String("email", p.Email))
		s.observe(OutcomeInvalidCode)
		return CodePayload{}, ErrInvalidCode
	}

	s.observe(OutcomeVerified)
	return p, nil
}

// IsVerificationFailure reports whether err is one of the errors a caller
// should answer with the generic "invalid or expired code".
func IsVerificationFailure(err error) bool {
	return errors.Is(err, cryptox.ErrInvalidToken) ||
		errors.Is(err, ErrExpiredSecret) ||
		errors.Is(err, ErrInvalidCode)
}
