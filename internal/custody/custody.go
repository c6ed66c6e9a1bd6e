package custody

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/giftlink/backend/internal/errs"
	"github.com/xssnick/tonutils-go/ton/wallet"
)

// Keypair is a freshly issued escrow wallet. The private key leaves this
// package only in encrypted form.
type Keypair struct {
	PublicKey       string // hex
	Address         string // friendly wallet address
	EncryptedSecret string // iv:ciphertext, hex
}

// Vault encrypts and decrypts escrow secrets with a server-held AES-256 key.
type Vault struct {
	key []byte
}

// NewVault parses a hex-encoded 32-byte server secret.
func NewVault(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfiguration, "escrow encryption key is not valid hex", err)
	}
	if len(key) != 32 {
		return nil, errs.Newf(errs.CodeConfiguration, "escrow encryption key must be 32 bytes, got %d", len(key))
	}
	return &Vault{key: key}, nil
}

// Create generates a one-time escrow keypair and returns its public half
// plus the encrypted private seed. The plaintext seed is never retained.
func (v *Vault) Create() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	addr, err := wallet.AddressFromPubKey(pub, wallet.V4R2, wallet.DefaultSubwallet)
	if err != nil {
		return nil, err
	}

	encrypted, err := v.encrypt(priv.Seed())
	if err != nil {
		return nil, err
	}

	return &Keypair{
		PublicKey:       hex.EncodeToString(pub),
		Address:         addr.String(),
		EncryptedSecret: encrypted,
	}, nil
}

// Decrypt recovers the escrow private key from an iv:ciphertext record.
// Any malformed or tampered record yields a DecryptionError, which is fatal
// and non-retryable for that escrow.
func (v *Vault) Decrypt(record string) (ed25519.PrivateKey, error) {
	parts := strings.Split(record, ":")
	if len(parts) != 2 {
		return nil, errs.New(errs.CodeDecryption, "escrow secret is not in iv:ciphertext form")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, errs.Wrap(errs.CodeDecryption, "escrow secret iv is not valid hex", err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, errs.Wrap(errs.CodeDecryption, "escrow secret ciphertext is not valid hex", err)
	}

	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() {
		return nil, errs.Newf(errs.CodeDecryption, "escrow secret iv must be %d bytes, got %d", gcm.NonceSize(), len(iv))
	}

	seed, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDecryption, "escrow secret does not decrypt under the server key", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errs.Newf(errs.CodeDecryption, "decrypted seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	return ed25519.NewKeyFromSeed(seed), nil
}

func (v *Vault) encrypt(plaintext []byte) (string, error) {
	gcm, err := v.gcm()
	if err != nil {
		return "", err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, iv, plaintext, nil)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
