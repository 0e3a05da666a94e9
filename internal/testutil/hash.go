package testutil

import (
	"crypto/sha256"
	"fmt"
)

// Checksum is the staging checksum of content, i.e. what an upload of
// content is keyed by in staging and the vault.
func Checksum(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}
