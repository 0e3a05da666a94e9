package encryption

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"capsule-go/internal/capsule"
)

// maskHeader marks blobs written by TestEncryptor.
var maskHeader = []byte("CAPMASK1")

const maskByte = 0x5a

// ErrWrongPassphrase is returned by TestEncryptor.Unlock when the passphrase
// does not match the one given to Setup.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// TestEncryptor masks content with a fixed byte instead of real crypto. Output
// is deterministic, differs from the plaintext byte for byte, and reverses
// cleanly. After Setup, Unlock only accepts the same passphrase.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase string
}

var _ capsule.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(maskHeader); err != nil {
		return fmt.Errorf("writing mask header: %w", err)
	}
	if err := mask(r, w); err != nil {
		return fmt.Errorf("masking data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (capsule.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return maskContext{}, nil
}

// IsConfigured is always true; the mask needs no key material.
func (e *TestEncryptor) IsConfigured() bool { return true }

func (e *TestEncryptor) Enabled() bool { return true }

type maskContext struct{}

func (maskContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(maskHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading mask header: %w", err)
	}
	if !bytes.Equal(header, maskHeader) {
		return fmt.Errorf("not a masked blob")
	}
	if err := mask(r, w); err != nil {
		return fmt.Errorf("unmasking data: %w", err)
	}
	return nil
}

func mask(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := bw.WriteByte(b ^ maskByte); err != nil {
			return err
		}
	}
	return bw.Flush()
}
