package domain

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"hash/crc32"
	"strings"
)

const selfAuthenticatingSuffix = 0x02

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// PrincipalFromBytes renders raw principal bytes in textual form: base32 of a
// CRC32 checksum followed by the bytes, lowercased, in dash-separated groups of five.
func PrincipalFromBytes(raw []byte) Principal {
	buf := make([]byte, 4, 4+len(raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(raw))
	buf = append(buf, raw...)

	enc := strings.ToLower(principalEncoding.EncodeToString(buf))

	var b strings.Builder
	for i := 0; i < len(enc); i += 5 {
		if i > 0 {
			b.WriteByte('-')
		}
		end := i + 5
		if end > len(enc) {
			end = len(enc)
		}
		b.WriteString(enc[i:end])
	}
	return Principal(b.String())
}

// SelfAuthenticatingPrincipal derives the principal owned by a DER-encoded public key.
func SelfAuthenticatingPrincipal(derPublicKey []byte) Principal {
	sum := sha256.Sum224(derPublicKey)
	raw := append(sum[:], selfAuthenticatingSuffix)
	return PrincipalFromBytes(raw)
}
