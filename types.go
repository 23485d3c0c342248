package authd

import (
	"context"
	"time"

	"github.com/MrEthical07/authd/internal/security"
	"github.com/MrEthical07/authd/jwt"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus uint8

const (
	// AccountPendingVerification accounts exist but cannot log in.
	AccountPendingVerification AccountStatus = iota
	// AccountActive accounts have confirmed their email.
	AccountActive
)

func (s AccountStatus) String() string {
	switch s {
	case AccountActive:
		return "active"
	case AccountPendingVerification:
		return "pending_verification"
	default:
		return "unknown"
	}
}

// UserRecord is what the engine reads from and hands to a [UserProvider].
type UserRecord struct {
	SubjectID    string
	Email        string
	PasswordHash string
	Status       AccountStatus
	CreatedAt    time.Time
}

// UserProvider is the user profile store. The engine never writes account fields directly;
// it only calls these methods.
//
// Lookups return [ErrUserNotFound] when nothing matches. CreatePendingUser returns
// [ErrProviderDuplicateIdentifier] when the email is taken. Any other error is treated as a
// backend failure.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, subjectID string) (UserRecord, error)
	CreatePendingUser(ctx context.Context, user UserRecord) error
	ConfirmUser(ctx context.Context, subjectID string) error
	UpdatePasswordHash(ctx context.Context, subjectID, hash string) error
	DeleteUser(ctx context.Context, subjectID string) error
	PurgeUnverified(ctx context.Context, createdBefore time.Time) (int64, error)
}

// VerificationEmail is one message queued on the email worker.
type VerificationEmail struct {
	To   string
	Code string
	Link string
}

// Mailer delivers verification emails. The engine calls it from a single rate-limited worker
// with batches of at most Workers.VerifyEmail.QueueDepth messages.
type Mailer interface {
	SendVerification(ctx context.Context, batch []VerificationEmail) error
}

// AuthStatus classifies the credentials of one request.
type AuthStatus uint8

const (
	// Unauthorized means neither cookie held a valid token for its slot.
	Unauthorized AuthStatus = iota
	// Authorized means the access cookie held a valid, unexpired access token.
	Authorized
	// RefreshActive means there is no usable access token but the refresh cookie holds a
	// valid, unexpired refresh token.
	RefreshActive
)

func (s AuthStatus) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case RefreshActive:
		return "refresh_active"
	default:
		return "unauthorized"
	}
}

// AuthInfo is the resolver's verdict for one request. Access holds only claims with access
// usage and Refresh only claims with refresh usage.
type AuthInfo struct {
	Status  AuthStatus
	Access  *jwt.Claims
	Refresh *jwt.Claims
}

// SubjectID returns the subject of whichever token is present, access first.
func (a AuthInfo) SubjectID() string {
	switch {
	case a.Access != nil:
		return a.Access.SubjectID
	case a.Refresh != nil:
		return a.Refresh.SubjectID
	default:
		return ""
	}
}

// SecurityReport is the hardening summary returned by [Engine.SecurityReport].
type SecurityReport = security.Report
