package security

import "time"

// recommendedMemoryKB is the OWASP Argon2id memory floor (19 MiB).
const recommendedMemoryKB = 19 * 1024

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report is a read-only summary of how an engine is hardened.
type Report struct {
	SigningAlgorithm      string
	VerifyOnly            bool
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Argon2                PasswordReport
	HashUpgradeOnLogin    bool
	CookieSecure          bool
	CookieDomain          string
	LoginThrottleActive   bool
	IPThrottleActive      bool
	RefreshThrottleActive bool
	EmailDeliveryActive   bool
}

type ReportInput struct {
	CanSign               bool
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Password              PasswordReport
	UpgradeHashOnLogin    bool
	CookieSecure          bool
	CookieDomain          string
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
	EnableRefreshThrottle bool
	MailerConfigured      bool
}

func BuildReport(input ReportInput) Report {
	loginThrottle := input.MaxLoginAttempts > 0 && input.LoginCooldownDuration > 0

	return Report{
		SigningAlgorithm:      "ES256",
		VerifyOnly:            !input.CanSign,
		AccessTTL:             input.AccessTTL,
		RefreshTTL:            input.RefreshTTL,
		Argon2:                input.Password,
		HashUpgradeOnLogin:    input.UpgradeHashOnLogin,
		CookieSecure:          input.CookieSecure,
		CookieDomain:          input.CookieDomain,
		LoginThrottleActive:   loginThrottle,
		IPThrottleActive:      loginThrottle && input.EnableIPThrottle,
		RefreshThrottleActive: input.EnableRefreshThrottle,
		EmailDeliveryActive:   input.MailerConfigured,
	}
}

// Warnings lists settings that are acceptable in development but weak in production.
func (r Report) Warnings() []string {
	var out []string
	if !r.CookieSecure {
		out = append(out, "session cookies are sent without the Secure attribute")
	}
	if r.VerifyOnly {
		out = append(out, "no signing key: logins and refreshes will fail")
	}
	if !r.LoginThrottleActive {
		out = append(out, "login throttling is disabled")
	}
	if !r.RefreshThrottleActive {
		out = append(out, "refresh throttling is disabled")
	}
	if r.Argon2.Memory < recommendedMemoryKB {
		out = append(out, "argon2id memory is below 19 MiB")
	}
	if !r.EmailDeliveryActive {
		out = append(out, "no mailer: verification emails are dropped")
	}
	return out
}
