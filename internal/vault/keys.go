package vault

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
)

// Keys is the secret material of one account. WalletWIF is always set and
// is the only field used for signing; Mnemonic is empty for imported keys.
type Keys struct {
	Mnemonic       string `json:"mnemonic,omitempty"`
	DerivationPath string `json:"derivationPath,omitempty"`
	WalletWIF      string `json:"walletWif"`
}

// SealKeys encrypts k under password and returns the serialized blob.
func SealKeys(k *Keys, password []byte) (string, error) {
	if k == nil || k.WalletWIF == "" {
		return "", errs.New(errs.NoKeyMaterial, "no key material to seal")
	}
	data, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("marshal keys: %w", err)
	}
	defer Zero(data)

	blob, err := Encrypt(data, password)
	if err != nil {
		return "", err
	}
	return blob.String(), nil
}

// OpenKeys decrypts a blob produced by SealKeys.
func OpenKeys(sealed string, password []byte) (*Keys, error) {
	data, err := DecryptString(sealed, password)
	if err != nil {
		return nil, err
	}
	defer Zero(data)

	var k Keys
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, errInvalidPassword
	}
	if k.WalletWIF == "" {
		return nil, errs.New(errs.NoKeyMaterial, "sealed keys carry no WIF")
	}
	return &k, nil
}
