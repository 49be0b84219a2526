package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip13"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostrid/internal/crypto"
	"nostrid/internal/domain"
	"nostrid/internal/services/identity"
)

const testLogN = 4

// memStore is an in-memory SettingsStore. Saves block on gate when it is
// set, and fail with saveErr when it is set.
type memStore struct {
	mu       sync.Mutex
	settings domain.Settings
	saves    int
	loadErr  error
	saveErr  error
	gate     chan struct{}
	waiting  int
}

func (m *memStore) LoadSettings(context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.Settings{}, m.loadErr
	}
	return m.settings, nil
}

func (m *memStore) SaveSettings(_ context.Context, s domain.Settings) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		m.mu.Lock()
		m.waiting++
		m.mu.Unlock()
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.settings = s
	m.saves++
	return nil
}

func (m *memStore) blocked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

func (m *memStore) snapshot() (domain.Settings, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, m.saves
}

func newCustodian(t *testing.T, store domain.SettingsStore) (*identity.Custodian, *identity.StatusBoard, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	board := identity.NewStatusBoard()
	c := identity.New(store, identity.Options{
		LogN:   testLogN,
		Status: board,
		Logger: logrus.NewEntry(logger),
	})
	t.Cleanup(c.Close)
	return c, board, hook
}

// lockedStore returns a store holding an identity encrypted under password.
func lockedStore(t *testing.T, password string) (*memStore, *crypto.PrivateKey) {
	t.Helper()
	k, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	epk, err := k.Encrypt(password, testLogN)
	require.NoError(t, err)

	pub := k.PublicKey()
	blob := epk.String()
	return &memStore{settings: domain.Settings{PublicKey: &pub, EncryptedPrivateKey: &blob}}, k
}

func blobVersion(t *testing.T, s domain.Settings) int {
	t.Helper()
	require.NotNil(t, s.EncryptedPrivateKey)
	v, err := crypto.EncryptedPrivateKey(*s.EncryptedPrivateKey).Version()
	require.NoError(t, err)
	return v
}

func TestCustodian_StartsEmpty(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	c.LoadFromSettings(context.Background())

	assert.Equal(t, identity.StateEmpty, c.State())
	assert.False(t, c.IsLoaded())
	assert.False(t, c.IsReady())
	assert.Nil(t, c.PublicKey())
	assert.Nil(t, c.EncryptedPrivateKey())
	_, ok := c.KeySecurity()
	assert.False(t, ok)
}

func TestCustodian_GenerateIsReady(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})

	require.NoError(t, c.Generate("hunter2"))

	assert.Equal(t, identity.StateUnlocked, c.State())
	assert.True(t, c.IsLoaded())
	assert.True(t, c.IsReady())
	require.NotNil(t, c.PublicKey())
	require.NotNil(t, c.EncryptedPrivateKey())

	sec, ok := c.KeySecurity()
	require.True(t, ok)
	assert.Equal(t, domain.KeySecurityMedium, sec)

	back, err := c.EncryptedPrivateKey().Decrypt("hunter2")
	require.NoError(t, err)
	assert.Equal(t, *c.PublicKey(), back.PublicKey())
}

func TestCustodian_SetPrivateKeyIsReady(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	k, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	require.NoError(t, c.SetPrivateKey(k, "pw"))

	assert.True(t, c.IsReady())
	assert.Equal(t, k.PublicKey(), *c.PublicKey())
}

func TestCustodian_SetPrivateKeyKeepsOwnCopy(t *testing.T) {
	store := &memStore{}
	c, _, _ := newCustodian(t, store)
	k, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, c.SetPrivateKey(k, "pw"))
	before := *c.EncryptedPrivateKey()

	// Exporting through the caller's handle leaves the held identity alone.
	_, err = k.HexString()
	require.NoError(t, err)
	assert.Equal(t, domain.KeySecurityWeak, k.Security())

	sec, ok := c.KeySecurity()
	require.True(t, ok)
	assert.Equal(t, domain.KeySecurityMedium, sec)
	assert.Equal(t, before, *c.EncryptedPrivateKey())

	require.NoError(t, c.Flush(context.Background()))
	stored, _ := store.snapshot()
	back, err := crypto.EncryptedPrivateKey(*stored.EncryptedPrivateKey).Decrypt("pw")
	require.NoError(t, err)
	assert.Equal(t, domain.KeySecurityMedium, back.Security())
}

func TestCustodian_WeakPassphraseRejectedByPolicy(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	c := identity.New(&memStore{}, identity.Options{
		LogN:                    testLogN,
		Logger:                  logrus.NewEntry(logger),
		RequireStrongPassphrase: true,
	})
	defer c.Close()

	assert.ErrorIs(t, c.Generate("short"), identity.ErrWeakPassphrase)
	assert.Equal(t, identity.StateEmpty, c.State())
	require.NoError(t, c.Generate("Correct-Horse-Battery-9"))
}

func TestCustodian_UnlockCorrectAndWrong(t *testing.T) {
	store, k := lockedStore(t, "right")
	c, _, _ := newCustodian(t, store)
	c.LoadFromSettings(context.Background())
	require.Equal(t, identity.StateLocked, c.State())

	err := c.Unlock("wrong")
	assert.ErrorIs(t, err, identity.ErrDecryption)
	assert.Equal(t, identity.StateLocked, c.State())
	assert.False(t, c.IsReady())

	require.NoError(t, c.Unlock("right"))
	assert.True(t, c.IsReady())
	assert.Equal(t, k.PublicKey(), *c.PublicKey())
}

func TestCustodian_UnlockWithoutKey(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	assert.ErrorIs(t, c.Unlock("pw"), identity.ErrNoPrivateKey)
}

func TestCustodian_UnlockIsIdempotent(t *testing.T) {
	store, _ := lockedStore(t, "pw")
	c, _, _ := newCustodian(t, store)
	c.LoadFromSettings(context.Background())

	require.NoError(t, c.Unlock("pw"))
	// A second unlock does not re-check the password.
	require.NoError(t, c.Unlock("anything"))
	assert.True(t, c.IsReady())
}

func TestCustodian_UnlockReplacesMismatchedPublicKey(t *testing.T) {
	store, k := lockedStore(t, "pw")
	other := domain.PublicKey{0x01}
	store.settings.PublicKey = &other

	c, _, _ := newCustodian(t, store)
	c.LoadFromSettings(context.Background())
	assert.Equal(t, other, *c.PublicKey())

	require.NoError(t, c.Unlock("pw"))
	assert.Equal(t, k.PublicKey(), *c.PublicKey())
}

func TestCustodian_SetPublicKeyPrecedence(t *testing.T) {
	c, board, _ := newCustodian(t, &memStore{})

	pk := domain.PublicKey{0xaa}
	c.SetPublicKey(pk)
	assert.Equal(t, identity.StatePublicOnly, c.State())
	assert.Equal(t, pk, *c.PublicKey())

	c.ClearPublicKey()
	assert.Nil(t, c.PublicKey())
	assert.Empty(t, board.History())

	require.NoError(t, c.Generate("pw"))
	own := *c.PublicKey()

	c.SetPublicKey(pk)
	assert.Equal(t, own, *c.PublicKey())
	assert.Equal(t, "Ignored setting of public key (private key supersedes)", board.Latest())

	c.ClearPublicKey()
	assert.Equal(t, own, *c.PublicKey())
	assert.Equal(t, "Ignored clearing of public key (private key supersedes)", board.Latest())
}

func TestCustodian_SetEncryptedPrivateKeyPrecedence(t *testing.T) {
	c, board, _ := newCustodian(t, &memStore{})

	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	foreign, err := other.Encrypt("pw", testLogN)
	require.NoError(t, err)

	// Locked or empty: accepted.
	c.SetEncryptedPrivateKey(foreign)
	assert.Equal(t, identity.StateLocked, c.State())
	assert.Equal(t, foreign, *c.EncryptedPrivateKey())

	require.NoError(t, c.Generate("pw"))
	own := *c.EncryptedPrivateKey()

	c.SetEncryptedPrivateKey(foreign)
	assert.Equal(t, own, *c.EncryptedPrivateKey())
	assert.Equal(t, "Ignored setting of encrypted private key (unlocked key supersedes)", board.Latest())
}

func TestCustodian_LegacyKeyMigratedOnUnlock(t *testing.T) {
	k, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	legacy, err := k.EncryptLegacy("pw")
	require.NoError(t, err)
	blob := legacy.String()

	gate := make(chan struct{})
	store := &memStore{settings: domain.Settings{EncryptedPrivateKey: &blob}, gate: gate}
	c, _, _ := newCustodian(t, store)
	c.LoadFromSettings(context.Background())

	// Unlock returns while the save is still held up.
	require.NoError(t, c.Unlock("pw"))
	require.NoError(t, c.Unlock("pw"))
	assert.True(t, c.IsReady())

	sec, ok := c.KeySecurity()
	require.True(t, ok)
	assert.Equal(t, domain.KeySecurityWeak, sec)

	stored, saves := store.snapshot()
	assert.Equal(t, 0, saves)
	assert.Equal(t, 1, blobVersion(t, stored))

	close(gate)
	require.NoError(t, c.Flush(context.Background()))

	stored, saves = store.snapshot()
	assert.Equal(t, 1, saves, "one migration for repeated unlocks")
	assert.Equal(t, crypto.CurrentVersion, blobVersion(t, stored))
	v, err := c.EncryptedPrivateKey().Version()
	require.NoError(t, err)
	assert.Equal(t, crypto.CurrentVersion, v)

	migrated, err := crypto.EncryptedPrivateKey(*stored.EncryptedPrivateKey).Decrypt("pw")
	require.NoError(t, err)
	assert.Equal(t, k.PublicKey(), migrated.PublicKey())
	assert.Equal(t, domain.KeySecurityWeak, migrated.Security())
}

func TestCustodian_MigrationSupersededByDelete(t *testing.T) {
	k, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	legacy, err := k.EncryptLegacy("pw")
	require.NoError(t, err)
	blob := legacy.String()

	gate := make(chan struct{})
	store := &memStore{settings: domain.Settings{EncryptedPrivateKey: &blob}, gate: gate}
	c, _, _ := newCustodian(t, store)
	c.LoadFromSettings(context.Background())

	// Park the worker in a save so the migration runs after the delete.
	saved := make(chan error, 1)
	go func() { saved <- c.SaveThroughSettings(context.Background()) }()
	require.Eventually(t, func() bool { return store.blocked() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Unlock("pw"))
	require.NoError(t, c.DeleteIdentity("pw"))
	close(gate)
	require.NoError(t, <-saved)
	require.NoError(t, c.Flush(context.Background()))

	stored, saves := store.snapshot()
	assert.Nil(t, stored.EncryptedPrivateKey)
	assert.Nil(t, stored.PublicKey)
	// The parked save and the delete. The superseded migration writes nothing.
	assert.Equal(t, 2, saves)
	assert.Equal(t, identity.StateEmpty, c.State())
}

func TestCustodian_ExportWrongPasswordLeavesStateAlone(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	require.NoError(t, c.Generate("pw"))
	before := *c.EncryptedPrivateKey()

	_, err := c.ExportHex("nope")
	assert.ErrorIs(t, err, identity.ErrDecryption)

	assert.Equal(t, before, *c.EncryptedPrivateKey())
	sec, _ := c.KeySecurity()
	assert.Equal(t, domain.KeySecurityMedium, sec)
}

func TestCustodian_ExportMarksWeak(t *testing.T) {
	store := &memStore{}
	c, _, _ := newCustodian(t, store)
	require.NoError(t, c.Generate("pw"))
	pub := *c.PublicKey()
	before := *c.EncryptedPrivateKey()

	out, err := c.ExportHex("pw")
	require.NoError(t, err)

	parsed, err := crypto.ParsePrivateKey(out)
	require.NoError(t, err)
	assert.Equal(t, pub, parsed.PublicKey())

	sec, ok := c.KeySecurity()
	require.True(t, ok)
	assert.Equal(t, domain.KeySecurityWeak, sec)
	assert.NotEqual(t, before, *c.EncryptedPrivateKey())

	require.NoError(t, c.Flush(context.Background()))
	stored, saves := store.snapshot()
	assert.Equal(t, 1, saves)
	back, err := crypto.EncryptedPrivateKey(*stored.EncryptedPrivateKey).Decrypt("pw")
	require.NoError(t, err)
	assert.Equal(t, domain.KeySecurityWeak, back.Security())
}

func TestCustodian_ExportBech32(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	require.NoError(t, c.Generate("pw"))

	out, err := c.ExportBech32("pw")
	require.NoError(t, err)
	assert.Regexp(t, `^nsec1`, out)

	parsed, err := crypto.ParsePrivateKey(out)
	require.NoError(t, err)
	assert.Equal(t, *c.PublicKey(), parsed.PublicKey())
}

func TestCustodian_ExportLockedNeedsOnlyPassword(t *testing.T) {
	store, k := lockedStore(t, "pw")
	c, _, _ := newCustodian(t, store)
	c.LoadFromSettings(context.Background())

	out, err := c.ExportHex("pw")
	require.NoError(t, err)
	parsed, err := crypto.ParsePrivateKey(out)
	require.NoError(t, err)
	assert.Equal(t, k.PublicKey(), parsed.PublicKey())
	assert.True(t, c.IsReady())
}

func TestCustodian_ExportWithoutKey(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	_, err := c.ExportHex("pw")
	assert.ErrorIs(t, err, identity.ErrNoPrivateKey)
}

func TestCustodian_DeleteWrongPasswordLeavesStateAlone(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	require.NoError(t, c.Generate("pw"))

	assert.ErrorIs(t, c.DeleteIdentity("nope"), identity.ErrDecryption)
	assert.Equal(t, identity.StateUnlocked, c.State())
	assert.NotNil(t, c.PublicKey())
}

func TestCustodian_DeleteClearsEverything(t *testing.T) {
	store := &memStore{}
	c, _, _ := newCustodian(t, store)
	require.NoError(t, c.Generate("pw"))
	require.NoError(t, c.SaveThroughSettings(context.Background()))

	require.NoError(t, c.DeleteIdentity("pw"))

	assert.Equal(t, identity.StateEmpty, c.State())
	assert.Nil(t, c.PublicKey())
	assert.Nil(t, c.EncryptedPrivateKey())
	assert.False(t, c.IsLoaded())

	require.NoError(t, c.Flush(context.Background()))
	stored, saves := store.snapshot()
	assert.Equal(t, 2, saves)
	assert.Equal(t, domain.Settings{}, stored)
}

func TestCustodian_SaveAndReload(t *testing.T) {
	store := &memStore{}
	c, _, _ := newCustodian(t, store)
	require.NoError(t, c.Generate("pw"))
	require.NoError(t, c.SaveThroughSettings(context.Background()))
	pub := *c.PublicKey()

	c.LoadFromSettings(context.Background())
	assert.Equal(t, identity.StateLocked, c.State())
	assert.Equal(t, pub, *c.PublicKey())

	require.NoError(t, c.Unlock("pw"))
	assert.True(t, c.IsReady())
}

func TestCustodian_SaveErrorIsReturned(t *testing.T) {
	boom := errors.New("disk full")
	c, _, _ := newCustodian(t, &memStore{saveErr: boom})
	require.NoError(t, c.Generate("pw"))

	err := c.SaveThroughSettings(context.Background())
	assert.ErrorIs(t, err, identity.ErrPersistence)
	assert.ErrorIs(t, err, boom)
}

func TestCustodian_BackgroundSaveFailureIsLogged(t *testing.T) {
	c, _, hook := newCustodian(t, &memStore{saveErr: errors.New("disk full")})
	require.NoError(t, c.Generate("pw"))

	_, err := c.ExportHex("pw")
	require.NoError(t, err)
	require.NoError(t, c.Flush(context.Background()))

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["operation"] == "export_save" {
			found = true
		}
	}
	assert.True(t, found, "expected logged save failure")
}

func TestCustodian_LoadFailureKeepsKeys(t *testing.T) {
	store := &memStore{}
	c, _, hook := newCustodian(t, store)
	require.NoError(t, c.Generate("pw"))
	pub := *c.PublicKey()

	store.mu.Lock()
	store.loadErr = errors.New("unreadable")
	store.mu.Unlock()

	c.LoadFromSettings(context.Background())
	assert.Equal(t, identity.StateLocked, c.State())
	assert.Equal(t, pub, *c.PublicKey())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestCustodian_SignRequiresUnlock(t *testing.T) {
	store, _ := lockedStore(t, "pw")
	c, _, _ := newCustodian(t, store)
	c.LoadFromSettings(context.Background())

	_, err := c.Sign(context.Background(), domain.PreEvent{Kind: 1}, nil)
	assert.ErrorIs(t, err, identity.ErrNoPrivateKey)
}

func TestCustodian_SignWithPoW(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	require.NoError(t, c.Generate("pw"))

	pow := uint8(8)
	evt, err := c.Sign(context.Background(), domain.PreEvent{
		CreatedAt: nostr.Now(),
		Kind:      1,
		Content:   "mined",
	}, &pow)
	require.NoError(t, err)

	assert.Equal(t, c.PublicKey().Hex(), evt.PubKey)
	assert.GreaterOrEqual(t, nip13.Difficulty(evt.ID), 8)
	ok, err := evt.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCustodian_SignCancelled(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	require.NoError(t, c.Generate("pw"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	pow := uint8(200)
	_, err := c.Sign(ctx, domain.PreEvent{Kind: 1}, &pow)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCustodian_SignEventSatisfiesNostrSigner(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	_, err := c.GetPublicKey(context.Background())
	assert.ErrorIs(t, err, identity.ErrNoPublicKey)

	require.NoError(t, c.Generate("pw"))
	pub, err := c.GetPublicKey(context.Background())
	require.NoError(t, err)

	evt := nostr.Event{Kind: 1, CreatedAt: nostr.Now(), Content: "hi", Tags: nostr.Tags{}}
	require.NoError(t, c.SignEvent(context.Background(), &evt))
	assert.Equal(t, pub, evt.PubKey)
	ok, err := evt.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCustodian_SignEventWithPresetPubKey(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	require.NoError(t, c.Generate("pw"))
	pub, err := c.GetPublicKey(context.Background())
	require.NoError(t, err)

	evt := nostr.Event{PubKey: pub, Kind: 1, CreatedAt: nostr.Now(), Content: "hi", Tags: nostr.Tags{}}
	require.NoError(t, c.SignEvent(context.Background(), &evt))
	ok, err := evt.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)

	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	foreign := nostr.Event{PubKey: other.PublicKey().Hex(), Kind: 1, CreatedAt: nostr.Now(), Tags: nostr.Tags{}}
	err = c.SignEvent(context.Background(), &foreign)
	assert.ErrorIs(t, err, crypto.ErrKeyMismatch)
	assert.Empty(t, foreign.Sig)

	bad := nostr.Event{PubKey: "not-hex", Kind: 1, Tags: nostr.Tags{}}
	assert.Error(t, c.SignEvent(context.Background(), &bad))
	assert.Empty(t, bad.Sig)
}

func TestCustodian_ClosedRejectsSave(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	c := identity.New(&memStore{}, identity.Options{LogN: testLogN, Logger: logrus.NewEntry(logger)})
	c.Close()

	assert.ErrorIs(t, c.SaveThroughSettings(context.Background()), identity.ErrClosed)
}

func TestCustodian_ConcurrentReaders(t *testing.T) {
	c, _, _ := newCustodian(t, &memStore{})
	require.NoError(t, c.Generate("pw"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = c.IsReady()
				_ = c.PublicKey()
				_, err := c.Sign(context.Background(), domain.PreEvent{Kind: 1}, nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "empty", identity.StateEmpty.String())
	assert.Equal(t, "public-only", identity.StatePublicOnly.String())
	assert.Equal(t, "locked", identity.StateLocked.String())
	assert.Equal(t, "unlocked", identity.StateUnlocked.String())
}
