// Package vault encrypts wallet key material at rest and checks passwords.
//
// Blobs use PBKDF2-HMAC-SHA256 key derivation, AES-256-CBC with PKCS#7
// padding and an HMAC-SHA256 tag over iv || ciphertext. The tag is always
// verified before any decryption is attempted.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
)

// Vault constants.
const (
	SaltSize   = 16
	IVSize     = aes.BlockSize
	MACSize    = sha256.Size
	KeySize    = 32
	Iterations = 10000
)

// errInvalidPassword is returned for every failed decryption so callers
// cannot tell a wrong password from a corrupted blob.
var errInvalidPassword = errs.New(errs.IntegrityFailure, "invalid password")

// EncryptedBlob is an encrypted payload with its authentication tag.
type EncryptedBlob struct {
	Salt       []byte
	IV         []byte
	Ciphertext []byte
	MAC        []byte
}

// String encodes the blob as base64(salt || iv || ciphertext || mac).
func (b *EncryptedBlob) String() string {
	raw := make([]byte, 0, len(b.Salt)+len(b.IV)+len(b.Ciphertext)+len(b.MAC))
	raw = append(raw, b.Salt...)
	raw = append(raw, b.IV...)
	raw = append(raw, b.Ciphertext...)
	raw = append(raw, b.MAC...)
	return base64.StdEncoding.EncodeToString(raw)
}

// ParseBlob decodes a blob produced by EncryptedBlob.String.
func ParseBlob(s string) (*EncryptedBlob, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.IntegrityFailure, err, "decode blob")
	}
	minSize := SaltSize + IVSize + aes.BlockSize + MACSize
	if len(raw) < minSize {
		return nil, errs.New(errs.IntegrityFailure, "blob too short: %d bytes, need at least %d", len(raw), minSize)
	}
	ctEnd := len(raw) - MACSize
	return &EncryptedBlob{
		Salt:       raw[:SaltSize],
		IV:         raw[SaltSize : SaltSize+IVSize],
		Ciphertext: raw[SaltSize+IVSize : ctEnd],
		MAC:        raw[ctEnd:],
	}, nil
}

// DeriveKey derives a KeySize key from password and salt. Deterministic.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New)
}

// blobKeys derives the cipher key and the MAC key for one blob.
func blobKeys(password, salt, iv []byte) (encKey, macKey []byte) {
	material := make([]byte, 0, len(salt)+len(iv))
	material = append(material, salt...)
	material = append(material, iv...)
	k := pbkdf2.Key(password, material, Iterations, 2*KeySize, sha256.New)
	return k[:KeySize], k[KeySize:]
}

func computeMAC(macKey, iv, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, macKey)
	h.Write(iv)
	h.Write(ciphertext)
	return h.Sum(nil)
}

// Encrypt encrypts plaintext under password with a fresh salt and iv.
func Encrypt(plaintext, password []byte) (*EncryptedBlob, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errs.Wrap(errs.KeyDerivationFailure, err, "generate salt")
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, errs.Wrap(errs.KeyDerivationFailure, err, "generate iv")
	}

	encKey, macKey := blobKeys(password, salt, iv)
	defer Zero(encKey)
	defer Zero(macKey)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	Zero(padded)

	return &EncryptedBlob{
		Salt:       salt,
		IV:         iv,
		Ciphertext: ciphertext,
		MAC:        computeMAC(macKey, iv, ciphertext),
	}, nil
}

// Decrypt authenticates and decrypts blob. Any failure, including a wrong
// password, is reported as an IntegrityFailure with the same message.
func Decrypt(blob *EncryptedBlob, password []byte) ([]byte, error) {
	if blob == nil || len(blob.MAC) != MACSize || len(blob.IV) != IVSize ||
		len(blob.Ciphertext) == 0 || len(blob.Ciphertext)%aes.BlockSize != 0 {
		return nil, errInvalidPassword
	}

	encKey, macKey := blobKeys(password, blob.Salt, blob.IV)
	defer Zero(encKey)
	defer Zero(macKey)

	expected := computeMAC(macKey, blob.IV, blob.Ciphertext)
	if subtle.ConstantTimeCompare(expected, blob.MAC) != 1 {
		return nil, errInvalidPassword
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, errInvalidPassword
	}
	padded := make([]byte, len(blob.Ciphertext))
	cipher.NewCBCDecrypter(block, blob.IV).CryptBlocks(padded, blob.Ciphertext)

	plaintext, ok := unpad(padded, aes.BlockSize)
	if !ok {
		Zero(padded)
		return nil, errInvalidPassword
	}
	return plaintext, nil
}

// DecryptString parses and decrypts a serialized blob.
func DecryptString(s string, password []byte) ([]byte, error) {
	blob, err := ParseBlob(s)
	if err != nil {
		return nil, errInvalidPassword
	}
	return Decrypt(blob, password)
}

// NewPassKey returns a hex password check value and the random salt it was
// derived with.
func NewPassKey(password []byte) (passKey string, salt []byte, err error) {
	salt = make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", nil, errs.Wrap(errs.KeyDerivationFailure, err, "generate salt")
	}
	return hex.EncodeToString(DeriveKey(password, salt)), salt, nil
}

// VerifyPassword reports whether password derives passKey under salt.
func VerifyPassword(password []byte, passKey string, salt []byte) bool {
	got := hex.EncodeToString(DeriveKey(password, salt))
	if len(got) != len(passKey) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(passKey)) == 1
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	copy(out[len(data):], bytes.Repeat([]byte{byte(n)}, n))
	return out
}

func unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
