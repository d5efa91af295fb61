package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one of these so
// callers can branch with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrExternalService     = errors.New("external service error")
	ErrStorage             = errors.New("storage error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrRateLimited         = errors.New("too many requests")
)

var (
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired refresh token", ErrUnauthorized)
	ErrAccountSuspended   = fmt.Errorf("%w: account suspended", ErrUnauthorized)
	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrEmailNotVerified   = fmt.Errorf("%w: email not verified", ErrForbidden)
	ErrInvalidCode        = fmt.Errorf("%w: invalid or expired code", ErrValidation)
	ErrAlreadyVerified    = fmt.Errorf("%w: email already verified", ErrConflict)
	ErrCodeRecentlySent   = fmt.Errorf("%w: a code was sent recently, try again later", ErrRateLimited)
	ErrNoPassword         = fmt.Errorf("%w: account uses Google sign-in", ErrValidation)
	ErrPhoneTaken         = fmt.Errorf("%w: phone number already in use", ErrConflict)

	ErrArticleNotFound      = fmt.Errorf("%w: article not found", ErrNotFound)
	ErrAlreadyRewardedToday = fmt.Errorf("%w: article already read today", ErrConflict)
	ErrDailyLimitReached    = fmt.Errorf("%w: daily reading limit reached", ErrConflict)

	ErrInvalidReferralCode  = fmt.Errorf("%w: invalid referral code", ErrConflict)
	ErrDuplicateReferral    = fmt.Errorf("%w: user already referred", ErrConflict)
	ErrReferralNotFound     = fmt.Errorf("%w: referral not found", ErrNotFound)
	ErrReferrerBonusGranted = fmt.Errorf("%w: referrer bonus already granted", ErrConflict)

	ErrGiftCardNotFound      = fmt.Errorf("%w: gift card not found", ErrNotFound)
	ErrRedeemRequestNotFound = fmt.Errorf("%w: redeem request not found", ErrNotFound)
	ErrInvalidStatus         = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrRedeemFinalized       = fmt.Errorf("%w: redeem request already finalized", ErrConflict)
	ErrRedeemChanged         = fmt.Errorf("%w: redeem request changed concurrently", ErrConflict)
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
