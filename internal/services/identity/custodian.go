package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sirupsen/logrus"

	"nostrid/internal/crypto"
	"nostrid/internal/domain"
	"nostrid/internal/logging"
)

// State is the phase of the identity held by a Custodian.
type State int

const (
	// StateEmpty holds nothing.
	StateEmpty State = iota
	// StatePublicOnly knows a public key but has no key material.
	StatePublicOnly
	// StateLocked has an encrypted private key and no decrypted key.
	StateLocked
	// StateUnlocked has the decrypted private key and can sign.
	StateUnlocked
)

// String returns a lowercase label for the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePublicOnly:
		return "public-only"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status messages reported when a request is ignored.
const (
	msgIgnoredSetPublic    = "Ignored setting of public key (private key supersedes)"
	msgIgnoredClearPublic  = "Ignored clearing of public key (private key supersedes)"
	msgIgnoredSetEncrypted = "Ignored setting of encrypted private key (unlocked key supersedes)"
)

// Options tunes a Custodian. The zero value is usable.
type Options struct {
	// LogN is the scrypt cost for every blob the custodian writes.
	// Defaults to crypto.DefaultLogN.
	LogN uint8
	// Status receives ignored-request notices. Defaults to a new StatusBoard.
	Status domain.StatusReporter
	// Logger defaults to the "identity" package entry.
	Logger *logrus.Entry
	// RequireStrongPassphrase applies the passphrase policy to Generate and
	// SetPrivateKey.
	RequireStrongPassphrase bool
}

// keys is the identity triple. Every transition replaces it under
// Custodian.mu, so readers never see a partial update.
type keys struct {
	public    *domain.PublicKey
	encrypted *crypto.EncryptedPrivateKey
	private   *crypto.PrivateKey
}

func (k keys) state() State {
	switch {
	case k.private != nil:
		return StateUnlocked
	case k.encrypted != nil:
		return StateLocked
	case k.public != nil:
		return StatePublicOnly
	default:
		return StateEmpty
	}
}

// Custodian owns the process's identity. Create one with New at startup,
// call LoadFromSettings, and share the pointer.
type Custodian struct {
	store   domain.SettingsStore
	status  domain.StatusReporter
	log     *logrus.Entry
	logN    uint8
	policy  bool
	persist *persister

	mu   sync.RWMutex
	keys keys
}

// New returns an empty custodian backed by store. Call Close when done.
func New(store domain.SettingsStore, opts Options) *Custodian {
	if opts.LogN == 0 {
		opts.LogN = crypto.DefaultLogN
	}
	if opts.Status == nil {
		opts.Status = NewStatusBoard()
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("identity")
	}
	return &Custodian{
		store:   store,
		status:  opts.Status,
		log:     opts.Logger,
		logN:    opts.LogN,
		policy:  opts.RequireStrongPassphrase,
		persist: newPersister(opts.Logger.WithField("component", "persister")),
	}
}

// LoadFromSettings mirrors the stored public key and encrypted private key
// into memory and forgets any decrypted key. A store read failure is
// logged and leaves the public and encrypted keys as they were.
func (c *Custodian) LoadFromSettings(ctx context.Context) {
	settings, err := c.store.LoadSettings(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.keys.private = nil
	if err != nil {
		c.log.WithError(err).
			WithFields(logging.OperationFields("load", "failed")).
			Warn("could not read identity from settings")
		return
	}

	c.keys.public = nil
	if settings.PublicKey != nil {
		pk := *settings.PublicKey
		c.keys.public = &pk
	}
	c.keys.encrypted = nil
	if settings.EncryptedPrivateKey != nil {
		epk := crypto.EncryptedPrivateKey(*settings.EncryptedPrivateKey)
		c.keys.encrypted = &epk
	}
	c.log.WithFields(c.fields("load", "ok")).Debug("identity loaded from settings")
}

// SaveThroughSettings writes the public key and encrypted private key to
// the store. It runs after any background work already queued.
func (c *Custodian) SaveThroughSettings(ctx context.Context) error {
	return c.persist.submit(ctx, "save", c.persistSnapshot)
}

// SetPublicKey records pk unless a decrypted private key is held, which
// already determines the public key.
func (c *Custodian) SetPublicKey(pk domain.PublicKey) {
	c.mu.Lock()
	if c.keys.private != nil {
		c.mu.Unlock()
		c.ignored("set_public_key", msgIgnoredSetPublic)
		return
	}
	c.keys.public = &pk
	c.mu.Unlock()
}

// ClearPublicKey forgets the public key unless a decrypted private key is
// held.
func (c *Custodian) ClearPublicKey() {
	c.mu.Lock()
	if c.keys.private != nil {
		c.mu.Unlock()
		c.ignored("clear_public_key", msgIgnoredClearPublic)
		return
	}
	c.keys.public = nil
	c.mu.Unlock()
}

// SetEncryptedPrivateKey records epk unless the identity is already
// unlocked with an encrypted key of its own.
func (c *Custodian) SetEncryptedPrivateKey(epk crypto.EncryptedPrivateKey) {
	if _, err := epk.Version(); err != nil {
		c.log.WithError(err).Warn("accepting encrypted private key that does not parse")
	}

	c.mu.Lock()
	if c.keys.private != nil && c.keys.encrypted != nil {
		c.mu.Unlock()
		c.ignored("set_encrypted_private_key", msgIgnoredSetEncrypted)
		return
	}
	c.keys.encrypted = &epk
	c.mu.Unlock()
}

// SetPrivateKey encrypts pk under passphrase and installs it as the
// unlocked identity, replacing whatever was held.
func (c *Custodian) SetPrivateKey(pk *crypto.PrivateKey, passphrase string) error {
	if pk == nil {
		return fmt.Errorf("%w: nil private key", ErrCrypto)
	}
	if c.policy && !isSecurePassphrase(passphrase) {
		return ErrWeakPassphrase
	}
	// The caller keeps its handle; exporting it must not touch ours.
	owned, err := pk.Clone()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	epk, err := owned.Encrypt(passphrase, c.logN)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	c.install(owned, epk, "set_private_key")
	return nil
}

// Generate creates a new random identity encrypted under passphrase.
func (c *Custodian) Generate(passphrase string) error {
	if c.policy && !isSecurePassphrase(passphrase) {
		return ErrWeakPassphrase
	}
	pk, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	epk, err := pk.Encrypt(passphrase, c.logN)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	c.install(pk, epk, "generate")
	return nil
}

func (c *Custodian) install(pk *crypto.PrivateKey, epk crypto.EncryptedPrivateKey, op string) {
	pub := pk.PublicKey()

	c.mu.Lock()
	replaced := c.keys.encrypted != nil || c.keys.private != nil
	c.keys = keys{public: &pub, encrypted: &epk, private: pk}
	fields := c.fields(op, "ok")
	c.mu.Unlock()

	entry := c.log.WithFields(fields)
	if replaced {
		entry.Warn("replaced existing identity")
		return
	}
	entry.Info("identity installed")
}

// Unlock decrypts the encrypted private key with passphrase. It is a no-op
// when already unlocked. A key found under a weak key derivation is
// re-encrypted and saved in the background; Unlock does not wait for it.
func (c *Custodian) Unlock(passphrase string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keys.private != nil {
		return nil
	}
	if c.keys.encrypted == nil {
		return ErrNoPrivateKey
	}

	epk := *c.keys.encrypted
	pk, err := epk.Decrypt(passphrase)
	if err != nil {
		c.log.WithFields(c.fields("unlock", "rejected")).Info("unlock failed")
		return classifyDecrypt(err)
	}

	c.keys.private = pk
	pub := pk.PublicKey()
	if c.keys.public != nil && *c.keys.public != pub {
		c.log.WithFields(c.fields("unlock", "mismatch")).
			Warn("stored public key does not match private key, using private key")
	}
	c.keys.public = &pub

	if v, err := epk.Version(); err == nil && v < crypto.MinVersion {
		c.log.WithFields(c.fields("unlock", "weak")).
			WithField("version", v).
			Info("scheduling re-encryption of weakly protected key")
		c.scheduleMigration(epk, pk, passphrase)
	}

	c.log.WithFields(c.fields("unlock", "ok")).Info("identity unlocked")
	return nil
}

// scheduleMigration queues a re-encryption of pk at the current cost,
// followed by a save. It only lands if from is still the stored blob and
// pk is still the unlocked key when the job runs.
func (c *Custodian) scheduleMigration(from crypto.EncryptedPrivateKey, pk *crypto.PrivateKey, passphrase string) {
	sealed := sealPassphrase(passphrase)
	queued := c.persist.schedule("migrate", func(ctx context.Context) error {
		var epk crypto.EncryptedPrivateKey
		err := sealed.use(func(pw string) error {
			var err error
			epk, err = pk.Encrypt(pw, c.logN)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCrypto, err)
		}

		c.mu.Lock()
		current := c.keys.encrypted != nil && *c.keys.encrypted == from && c.keys.private == pk
		if current {
			c.keys.encrypted = &epk
		}
		c.mu.Unlock()

		if !current {
			c.log.WithFields(logging.OperationFields("migrate", "superseded")).
				Debug("identity changed before re-encryption finished")
			return nil
		}
		return c.persistSnapshot(ctx)
	})
	if !queued {
		c.log.WithFields(logging.OperationFields("migrate", "dropped")).
			Warn("custodian closed, weak key left unmigrated")
	}
}

// IsLoaded reports whether an identity exists, locked or not.
func (c *Custodian) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys.encrypted != nil || c.keys.private != nil
}

// IsReady reports whether the custodian can sign now.
func (c *Custodian) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys.private != nil
}

// State reports the phase of the held identity.
func (c *Custodian) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys.state()
}

// PublicKey returns a copy of the public key, or nil.
func (c *Custodian) PublicKey() *domain.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys.public == nil {
		return nil
	}
	pk := *c.keys.public
	return &pk
}

// EncryptedPrivateKey returns a copy of the encrypted private key, or nil.
func (c *Custodian) EncryptedPrivateKey() *crypto.EncryptedPrivateKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys.encrypted == nil {
		return nil
	}
	epk := *c.keys.encrypted
	return &epk
}

// KeySecurity reports how the unlocked key has been handled. ok is false
// while locked.
func (c *Custodian) KeySecurity() (sec domain.KeySecurity, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys.private == nil {
		return 0, false
	}
	return c.keys.private.Security(), true
}

// Sign signs pre with the unlocked key. With a non-zero pow the event id is
// mined to at least that many leading zero bits first; ctx bounds the
// search.
func (c *Custodian) Sign(ctx context.Context, pre domain.PreEvent, pow *uint8) (*nostr.Event, error) {
	c.mu.RLock()
	pk := c.keys.private
	c.mu.RUnlock()

	if pk == nil {
		return nil, ErrNoPrivateKey
	}
	evt, err := pk.SignEvent(ctx, pre, pow)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	return evt, nil
}

// GetPublicKey returns the hex public key.
func (c *Custodian) GetPublicKey(ctx context.Context) (string, error) {
	pk := c.PublicKey()
	if pk == nil {
		return "", ErrNoPublicKey
	}
	return pk.Hex(), nil
}

// SignEvent signs evt in place, setting PubKey, ID and Sig.
func (c *Custodian) SignEvent(ctx context.Context, evt *nostr.Event) error {
	pre := domain.PreEvent{
		CreatedAt: evt.CreatedAt,
		Kind:      evt.Kind,
		Tags:      evt.Tags,
		Content:   evt.Content,
	}
	if evt.PubKey != "" {
		pk, err := domain.PublicKeyFromHex(evt.PubKey)
		if err != nil {
			return err
		}
		pre.PubKey = pk
	}
	signed, err := c.Sign(ctx, pre, nil)
	if err != nil {
		return err
	}
	*evt = *signed
	return nil
}

// ExportHex returns the private key as hex. See Export.
func (c *Custodian) ExportHex(passphrase string) (string, error) {
	return c.Export(passphrase, domain.FormatHex)
}

// ExportBech32 returns the private key as an nsec. See Export.
func (c *Custodian) ExportBech32(passphrase string) (string, error) {
	return c.Export(passphrase, domain.FormatBech32)
}

// Export checks passphrase against the encrypted private key and returns
// the key in format. The exported key is now weak, so the encrypted key is
// rewritten at the current cost to record that, and saved in the
// background.
func (c *Custodian) Export(passphrase string, format domain.Format) (string, error) {
	if format != domain.FormatHex && format != domain.FormatBech32 {
		return "", fmt.Errorf("unknown export format %q", format)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keys.encrypted == nil {
		return "", ErrNoPrivateKey
	}
	pk, err := c.keys.encrypted.Decrypt(passphrase)
	if err != nil {
		c.log.WithFields(c.fields("export", "rejected")).Info("export refused")
		return "", classifyDecrypt(err)
	}

	out, err := pk.Export(format)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	epk, err := pk.Encrypt(passphrase, c.logN)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCrypto, err)
	}

	pub := pk.PublicKey()
	c.keys = keys{public: &pub, encrypted: &epk, private: pk}
	c.log.WithFields(c.fields("export", "ok")).WithField("format", format).Warn("private key exported")
	c.scheduleSave("export")
	return out, nil
}

// DeleteIdentity checks passphrase and then forgets all three keys. The
// empty identity is saved in the background.
func (c *Custodian) DeleteIdentity(passphrase string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keys.encrypted == nil {
		return ErrNoPrivateKey
	}
	if _, err := c.keys.encrypted.Decrypt(passphrase); err != nil {
		c.log.WithFields(c.fields("delete", "rejected")).Info("delete refused")
		return classifyDecrypt(err)
	}

	fields := c.fields("delete", "ok")
	c.keys = keys{}
	c.log.WithFields(fields).Warn("identity deleted")
	c.scheduleSave("delete")
	return nil
}

// Flush waits until every background job queued so far has finished.
func (c *Custodian) Flush(ctx context.Context) error {
	return c.persist.submit(ctx, "flush", func(context.Context) error { return nil })
}

// Close finishes queued background work and stops the worker.
func (c *Custodian) Close() {
	c.persist.close()
}

func (c *Custodian) scheduleSave(op string) {
	if !c.persist.schedule(op+"_save", c.persistSnapshot) {
		c.log.WithFields(logging.OperationFields(op+"_save", "dropped")).
			Warn("custodian closed, change not persisted")
	}
}

// persistSnapshot saves the identity as it is when the call runs.
func (c *Custodian) persistSnapshot(ctx context.Context) error {
	c.mu.RLock()
	var settings domain.Settings
	if c.keys.public != nil {
		pk := *c.keys.public
		settings.PublicKey = &pk
	}
	if c.keys.encrypted != nil {
		s := c.keys.encrypted.String()
		settings.EncryptedPrivateKey = &s
	}
	c.mu.RUnlock()

	if err := c.store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (c *Custodian) ignored(op, message string) {
	c.status.Report(message)
	c.log.WithFields(logging.OperationFields(op, "ignored")).Warn(message)
}

// fields describes the current identity for logs. Callers hold mu.
func (c *Custodian) fields(op, status string) logrus.Fields {
	f := logging.OperationFields(op, status, logrus.Fields{"state": c.keys.state().String()})
	if c.keys.public != nil {
		f["fingerprint"] = crypto.Fingerprint(*c.keys.public).String()
	}
	return f
}

// sealedPassphrase keeps a passphrase in a memguard enclave until a
// background job needs it.
type sealedPassphrase struct {
	enclave *memguard.Enclave
}

func sealPassphrase(passphrase string) sealedPassphrase {
	if passphrase == "" {
		return sealedPassphrase{}
	}
	return sealedPassphrase{enclave: memguard.NewEnclave([]byte(passphrase))}
}

func (s sealedPassphrase) use(fn func(passphrase string) error) error {
	if s.enclave == nil {
		return fn("")
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	defer buf.Destroy()
	return fn(string(buf.Bytes()))
}

// Compile-time assertion that Custodian implements domain.IdentityService.
var _ domain.IdentityService = (*Custodian)(nil)
