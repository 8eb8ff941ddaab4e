// Package passkey holds the WebAuthn relying-party configuration.
package passkey

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Config controls WebAuthn relying party settings. The ceremony timeout is
// advisory metadata sent to the client; ChallengeTTL bounds how long the
// stored server-side challenge stays redeemable.
type Config struct {
	RPDisplayName string        `env:"KEYFORT_WEBAUTHN_RP_DISPLAY_NAME" envDefault:"KeyFort Local"`
	RPID          string        `env:"KEYFORT_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string      `env:"KEYFORT_WEBAUTHN_RP_ORIGINS"      envSeparator:","`
	Timeout       time.Duration `env:"KEYFORT_WEBAUTHN_TIMEOUT"         envDefault:"30s"`
	ChallengeTTL  time.Duration `env:"KEYFORT_WEBAUTHN_CHALLENGE_TTL"   envDefault:"5m"`
}

// LoadConfigFromEnv returns passkey configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return defaults()
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = "KeyFort Local"
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	return cfg
}

func defaults() Config {
	return Config{
		RPDisplayName: "KeyFort Local",
		RPID:          "localhost",
		RPOrigins:     []string{"http://localhost:3000"},
		Timeout:       30 * time.Second,
		ChallengeTTL:  5 * time.Minute,
	}
}

// NewWebAuthn builds the relying-party ceremony engine. Attestation is not
// requested (conveyance "none") and the client-facing timeout is enforced
// for both ceremonies.
func (c Config) NewWebAuthn() (*webauthn.WebAuthn, error) {
	return webauthn.New(&webauthn.Config{
		RPDisplayName:         c.RPDisplayName,
		RPID:                  c.RPID,
		RPOrigins:             c.RPOrigins,
		AttestationPreference: protocol.PreferNoAttestation,
		Timeouts: webauthn.TimeoutsConfig{
			Registration: webauthn.TimeoutConfig{
				Enforce: true,
				Timeout: c.Timeout,
			},
			Login: webauthn.TimeoutConfig{
				Enforce: true,
				Timeout: c.Timeout,
			},
		},
	})
}
