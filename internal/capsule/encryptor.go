package capsule

import "io"

// Encryptor handles at-rest encryption of capsule files before they reach the vault.
// Encryption uses the public key only. Decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext for the process lifetime.
//
// This protects stored blobs; it is not a time lock. Whether a file may be
// served is decided by the capsule's unlock date alone.
type Encryptor interface {
	// Setup performs one-time key generation. Called by `capsule keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the encryptor has what it needs to encrypt.
	IsConfigured() bool

	// Enabled reports whether stored files are transformed at all.
	Enabled() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
