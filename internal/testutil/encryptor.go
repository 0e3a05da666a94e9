package testutil

import (
	"capsule-go/internal/capsule"
	"capsule-go/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}

// NewPlainEncryptor returns the pass-through encryptor used when encryption is off.
func NewPlainEncryptor() capsule.Encryptor {
	return encryption.NoneEncryptor{}
}
