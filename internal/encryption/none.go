package encryption

import (
	"fmt"
	"io"

	"capsule-go/internal/capsule"
)

// NoneEncryptor stores capsule files as plaintext.
type NoneEncryptor struct{}

var _ capsule.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(string) error {
	return fmt.Errorf("encryption is disabled; set encryption.type to \"age\" first")
}

// Encrypt copies r to w unchanged.
func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (NoneEncryptor) Unlock(string) (capsule.DecryptionContext, error) {
	return plaintextContext{}, nil
}

func (NoneEncryptor) IsConfigured() bool { return true }

func (NoneEncryptor) Enabled() bool { return false }

type plaintextContext struct{}

func (plaintextContext) Decrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}
