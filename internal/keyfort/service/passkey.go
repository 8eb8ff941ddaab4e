package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/keyfortlabs/keyfort/internal/keyfort/domain"
	"github.com/keyfortlabs/keyfort/internal/keyfort/store"
)

var (
	ErrVerificationFailed = errors.New("passkey verification failed")
	ErrNoCredential       = errors.New("no passkey enrolled for this user")
)

// ceremonyProvider is the subset of *webauthn.WebAuthn the service needs.
// Narrowing it to an interface lets tests substitute a fake verifier.
type ceremonyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

type credentialParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type protocolParser struct{}

func (protocolParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (protocolParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

type PasskeyService struct {
	Store        store.Store
	Provider     ceremonyProvider
	Parser       credentialParser
	ChallengeTTL time.Duration
}

// NewPasskeyService wires the relying-party engine with the default
// protocol parser.
func NewPasskeyService(st store.Store, w *webauthn.WebAuthn, challengeTTL time.Duration) *PasskeyService {
	return &PasskeyService{
		Store:        st,
		Provider:     w,
		Parser:       protocolParser{},
		ChallengeTTL: challengeTTL,
	}
}

// BeginRegistration produces the credential creation options for the client
// and stores the ceremony challenge keyed by (user, registration). Reissuing
// overwrites any outstanding registration challenge for the user.
func (s *PasskeyService) BeginRegistration(ctx context.Context, username string) (*protocol.CredentialCreation, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	wu, err := s.loadWebauthnUser(ctx, u)
	if err != nil {
		return nil, err
	}

	opts := []webauthn.RegistrationOption{}
	if len(wu.credentials) > 0 {
		opts = append(opts, webauthn.WithExclusions(
			webauthn.Credentials(wu.credentials).CredentialDescriptors()))
	}

	creation, session, err := s.Provider.BeginRegistration(wu, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registration ceremony: %w", err)
	}

	if err := s.storeChallenge(ctx, u.ID, domain.ChallengeKindRegistration, session); err != nil {
		return nil, err
	}
	return creation, nil
}

// FinishRegistration verifies the attestation response against the stored
// challenge. The challenge is consumed by this attempt whether or not
// verification succeeds; a replayed or reissued-over response fails with
// ErrVerificationFailed. On success the credential is persisted and
// two-factor is enabled atomically.
func (s *PasskeyService) FinishRegistration(ctx context.Context, username string, credentialJSON []byte) error {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}

	session, err := s.consumeChallenge(ctx, u.ID, domain.ChallengeKindRegistration)
	if err != nil {
		return err
	}

	parsed, err := s.Parser.ParseCredentialCreationResponseBytes(credentialJSON)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	wu, err := s.loadWebauthnUser(ctx, u)
	if err != nil {
		return err
	}

	credential, err := s.Provider.CreateCredential(wu, *session, parsed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.PasskeyCredentials().Upsert(ctx, credentialFromWebauthn(u.ID, credential)); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
		if err := tx.Users().EnableTwoFA(ctx, u.ID); err != nil {
			return fmt.Errorf("failed to enable two-factor: %w", err)
		}
		return nil
	})
}

// BeginLogin produces the assertion options for the client and stores the
// ceremony challenge keyed by (user, login). Fails with ErrNoCredential when
// no passkey is enrolled.
func (s *PasskeyService) BeginLogin(ctx context.Context, username string) (*protocol.CredentialAssertion, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	wu, err := s.loadWebauthnUser(ctx, u)
	if err != nil {
		return nil, err
	}
	if len(wu.credentials) == 0 {
		return nil, ErrNoCredential
	}

	assertion, session, err := s.Provider.BeginLogin(wu)
	if err != nil {
		return nil, fmt.Errorf("failed to begin login ceremony: %w", err)
	}

	if err := s.storeChallenge(ctx, u.ID, domain.ChallengeKindLogin, session); err != nil {
		return nil, err
	}
	return assertion, nil
}

// FinishLogin verifies the assertion response against the stored challenge
// and the enrolled credential. The missing-credential check runs before any
// cryptographic work. On success the authenticator signature counter is
// persisted so a later counter regression (cloned authenticator) is
// detected and rejected.
func (s *PasskeyService) FinishLogin(ctx context.Context, username string, credentialJSON []byte) error {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}

	wu, err := s.loadWebauthnUser(ctx, u)
	if err != nil {
		return err
	}
	if len(wu.credentials) == 0 {
		return ErrNoCredential
	}

	session, err := s.consumeChallenge(ctx, u.ID, domain.ChallengeKindLogin)
	if err != nil {
		return err
	}

	parsed, err := s.Parser.ParseCredentialRequestResponseBytes(credentialJSON)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	credential, err := s.Provider.ValidateLogin(wu, *session, parsed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if credential.Authenticator.CloneWarning {
		return fmt.Errorf("%w: signature counter regression", ErrVerificationFailed)
	}

	if err := s.Store.PasskeyCredentials().UpdateSignCount(ctx, u.ID, credential.Authenticator.SignCount); err != nil {
		return fmt.Errorf("failed to persist signature counter: %w", err)
	}
	return nil
}

func (s *PasskeyService) storeChallenge(ctx context.Context, userID string, kind domain.ChallengeKind, session *webauthn.SessionData) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode ceremony session: %w", err)
	}
	ch := domain.Challenge{
		UserID:      userID,
		Kind:        kind,
		SessionData: payload,
		ExpiresAt:   time.Now().UTC().Add(s.ChallengeTTL),
	}
	if err := s.Store.Challenges().Put(ctx, ch); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// consumeChallenge loads the outstanding challenge for (user, kind) and
// deletes it. One finish attempt consumes the challenge regardless of the
// verification outcome.
func (s *PasskeyService) consumeChallenge(ctx context.Context, userID string, kind domain.ChallengeKind) (*webauthn.SessionData, error) {
	ch, err := s.Store.Challenges().Get(ctx, userID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no outstanding challenge", ErrVerificationFailed)
		}
		return nil, err
	}
	if err := s.Store.Challenges().Delete(ctx, userID, kind); err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	var session webauthn.SessionData
	if err := json.Unmarshal(ch.SessionData, &session); err != nil {
		return nil, fmt.Errorf("failed to decode ceremony session: %w", err)
	}
	return &session, nil
}

// loadWebauthnUser adapts a domain user and their enrolled credential (if
// any) into the shape the ceremony engine expects.
func (s *PasskeyService) loadWebauthnUser(ctx context.Context, u domain.User) (*webauthnUser, error) {
	wu := &webauthnUser{user: u}

	cred, err := s.Store.PasskeyCredentials().GetByUserID(ctx, u.ID)
	switch {
	case err == nil:
		wu.credentials = []webauthn.Credential{credentialToWebauthn(cred)}
	case errors.Is(err, store.ErrNotFound):
		// no enrollment yet
	default:
		return nil, err
	}
	return wu, nil
}

// webauthnUser implements webauthn.User over a domain identity.
type webauthnUser struct {
	user        domain.User
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte                         { return []byte(u.user.ID) }
func (u *webauthnUser) WebAuthnName() string                       { return u.user.Username }
func (u *webauthnUser) WebAuthnDisplayName() string                { return u.user.Username }
func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

func credentialFromWebauthn(userID string, c *webauthn.Credential) domain.PasskeyCredential {
	transports := make([]string, 0, len(c.Transport))
	for _, t := range c.Transport {
		transports = append(transports, string(t))
	}
	return domain.PasskeyCredential{
		UserID:          userID,
		CredentialID:    c.ID,
		PublicKey:       c.PublicKey,
		SignCount:       c.Authenticator.SignCount,
		Transports:      transports,
		AttestationType: c.AttestationType,
		AAGUID:          c.Authenticator.AAGUID,
		BackupEligible:  c.Flags.BackupEligible,
		BackupState:     c.Flags.BackupState,
	}
}

func credentialToWebauthn(c domain.PasskeyCredential) webauthn.Credential {
	transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
	for _, t := range c.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}
