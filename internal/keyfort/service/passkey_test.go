package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/keyfortlabs/keyfort/internal/keyfort/domain"
	"github.com/keyfortlabs/keyfort/internal/keyfort/store"
	"github.com/stretchr/testify/require"
)

// fakeCeremony scripts the relying-party engine so tests can drive both
// ceremonies without real authenticator hardware.
type fakeCeremony struct {
	session     webauthn.SessionData
	credential  webauthn.Credential
	createErr   error
	validateErr error

	beginRegistrations int
	beginLogins        int
}

func (f *fakeCeremony) BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	f.beginRegistrations++
	session := f.session
	return &protocol.CredentialCreation{}, &session, nil
}

func (f *fakeCeremony) CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	credential := f.credential
	return &credential, nil
}

func (f *fakeCeremony) BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	f.beginLogins++
	session := f.session
	return &protocol.CredentialAssertion{}, &session, nil
}

func (f *fakeCeremony) ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	credential := f.credential
	return &credential, nil
}

// fakeParser accepts any payload; parse failures are scripted via err.
type fakeParser struct {
	err error
}

func (f *fakeParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.ParsedCredentialCreationData{}, nil
}

func (f *fakeParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.ParsedCredentialAssertionData{}, nil
}

func newPasskeyFixture(t *testing.T) (store.Store, *fakeCeremony, *PasskeyService) {
	t.Helper()

	st := newTestStore(t)
	ceremony := &fakeCeremony{
		session: webauthn.SessionData{Challenge: "test-challenge"},
		credential: webauthn.Credential{
			ID:        []byte("credential-id"),
			PublicKey: []byte("public-key"),
			Authenticator: webauthn.Authenticator{
				SignCount: 1,
			},
		},
	}
	svc := &PasskeyService{
		Store:        st,
		Provider:     ceremony,
		Parser:       &fakeParser{},
		ChallengeTTL: 5 * time.Minute,
	}
	return st, ceremony, svc
}

func registerTestUser(t *testing.T, st store.Store, username string) domain.User {
	t.Helper()
	users := &UserService{Store: st}
	u, err := users.Register(context.Background(), username, username+"@example.com", "pw")
	require.NoError(t, err)
	return u
}

func TestPasskeyRegistrationCeremony(t *testing.T) {
	ctx := context.Background()
	st, _, svc := newPasskeyFixture(t)
	u := registerTestUser(t, st, "frank")

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.BeginRegistration(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("begin stores a keyed challenge", func(t *testing.T) {
		creation, err := svc.BeginRegistration(ctx, "frank")
		require.NoError(t, err)
		require.NotNil(t, creation)

		ch, err := st.Challenges().Get(ctx, u.ID, domain.ChallengeKindRegistration)
		require.NoError(t, err)
		require.NotEmpty(t, ch.SessionData)
	})

	t.Run("finish persists credential and enables two-factor", func(t *testing.T) {
		require.NoError(t, svc.FinishRegistration(ctx, "frank", []byte(`{}`)))

		cred, err := st.PasskeyCredentials().GetByUserID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, []byte("credential-id"), cred.CredentialID)
		require.Equal(t, []byte("public-key"), cred.PublicKey)
		require.Equal(t, uint32(1), cred.SignCount)

		refreshed, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, refreshed.HasTwoFA())
	})

	t.Run("finish consumed the challenge", func(t *testing.T) {
		_, err := st.Challenges().Get(ctx, u.ID, domain.ChallengeKindRegistration)
		require.ErrorIs(t, err, store.ErrNotFound)

		err = svc.FinishRegistration(ctx, "frank", []byte(`{}`))
		require.ErrorIs(t, err, ErrVerificationFailed)
	})
}

func TestPasskeyRegistrationFailureConsumesChallenge(t *testing.T) {
	ctx := context.Background()
	st, ceremony, svc := newPasskeyFixture(t)
	u := registerTestUser(t, st, "grace")

	_, err := svc.BeginRegistration(ctx, "grace")
	require.NoError(t, err)

	// First attempt fails verification. The challenge is burned by the
	// attempt, so a second try cannot reuse it even though the engine
	// would now accept it.
	ceremony.createErr = errors.New("attestation rejected")
	err = svc.FinishRegistration(ctx, "grace", []byte(`{}`))
	require.ErrorIs(t, err, ErrVerificationFailed)

	ceremony.createErr = nil
	err = svc.FinishRegistration(ctx, "grace", []byte(`{}`))
	require.ErrorIs(t, err, ErrVerificationFailed)

	// Nothing was persisted for the failed ceremony.
	_, err = st.PasskeyCredentials().GetByUserID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	refreshed, err := st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, refreshed.HasTwoFA())
}

func TestPasskeyReissueOverwritesChallenge(t *testing.T) {
	ctx := context.Background()
	st, ceremony, svc := newPasskeyFixture(t)
	u := registerTestUser(t, st, "heidi")

	_, err := svc.BeginRegistration(ctx, "heidi")
	require.NoError(t, err)

	// Reissue with a different challenge. The first one must be gone.
	ceremony.session = webauthn.SessionData{Challenge: "second-challenge"}
	_, err = svc.BeginRegistration(ctx, "heidi")
	require.NoError(t, err)
	require.Equal(t, 2, ceremony.beginRegistrations)

	ch, err := st.Challenges().Get(ctx, u.ID, domain.ChallengeKindRegistration)
	require.NoError(t, err)
	require.Contains(t, string(ch.SessionData), "second-challenge")
}

func TestPasskeyLoginCeremony(t *testing.T) {
	ctx := context.Background()
	st, ceremony, svc := newPasskeyFixture(t)
	u := registerTestUser(t, st, "ivan")

	t.Run("no credential enrolled", func(t *testing.T) {
		_, err := svc.BeginLogin(ctx, "ivan")
		require.ErrorIs(t, err, ErrNoCredential)

		err = svc.FinishLogin(ctx, "ivan", []byte(`{}`))
		require.ErrorIs(t, err, ErrNoCredential)
	})

	// Enroll through the registration ceremony.
	_, err := svc.BeginRegistration(ctx, "ivan")
	require.NoError(t, err)
	require.NoError(t, svc.FinishRegistration(ctx, "ivan", []byte(`{}`)))

	t.Run("assertion verifies and persists the signature counter", func(t *testing.T) {
		_, err := svc.BeginLogin(ctx, "ivan")
		require.NoError(t, err)

		ceremony.credential.Authenticator.SignCount = 7
		require.NoError(t, svc.FinishLogin(ctx, "ivan", []byte(`{}`)))

		cred, err := st.PasskeyCredentials().GetByUserID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, uint32(7), cred.SignCount)
	})

	t.Run("finish without an outstanding challenge", func(t *testing.T) {
		err := svc.FinishLogin(ctx, "ivan", []byte(`{}`))
		require.ErrorIs(t, err, ErrVerificationFailed)
	})

	t.Run("rejected assertion", func(t *testing.T) {
		_, err := svc.BeginLogin(ctx, "ivan")
		require.NoError(t, err)

		ceremony.validateErr = errors.New("signature mismatch")
		err = svc.FinishLogin(ctx, "ivan", []byte(`{}`))
		require.ErrorIs(t, err, ErrVerificationFailed)
		ceremony.validateErr = nil

		// Counter unchanged by the failed attempt.
		cred, err := st.PasskeyCredentials().GetByUserID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, uint32(7), cred.SignCount)
	})

	t.Run("clone warning rejected", func(t *testing.T) {
		_, err := svc.BeginLogin(ctx, "ivan")
		require.NoError(t, err)

		ceremony.credential.Authenticator.CloneWarning = true
		err = svc.FinishLogin(ctx, "ivan", []byte(`{}`))
		require.ErrorIs(t, err, ErrVerificationFailed)
		ceremony.credential.Authenticator.CloneWarning = false
	})
}

func TestPasskeyChallengeExpiry(t *testing.T) {
	ctx := context.Background()
	st, _, svc := newPasskeyFixture(t)
	registerTestUser(t, st, "judy")

	// A TTL in the past makes every stored challenge immediately stale.
	svc.ChallengeTTL = -time.Minute

	_, err := svc.BeginRegistration(ctx, "judy")
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, "judy", []byte(`{}`))
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestPasskeyMalformedCredentialPayload(t *testing.T) {
	ctx := context.Background()
	st, _, svc := newPasskeyFixture(t)
	registerTestUser(t, st, "karl")
	svc.Parser = &fakeParser{err: errors.New("truncated payload")}

	_, err := svc.BeginRegistration(ctx, "karl")
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, "karl", []byte(`not-json`))
	require.ErrorIs(t, err, ErrVerificationFailed)
}
