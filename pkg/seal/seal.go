// Package seal encrypts session keys at rest with AES-256-GCM.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidMasterKey = errors.New("master key must be 32 bytes hex")
	ErrInvalidSealed    = errors.New("invalid sealed payload")
	ErrNullPlainText    = errors.New("plaintext must not be empty")
)

const hkdfInfo = "sweeper/session-key/v1"

// Sealer 持有派生后的 AEAD，可并发使用
type Sealer struct {
	aead cipher.AEAD
}

// New 从 hex 编码的 32 字节主密钥派生加密密钥
func New(masterKeyHex string) (*Sealer, error) {
	master, err := hex.DecodeString(strings.TrimPrefix(masterKeyHex, "0x"))
	if err != nil || len(master) != 32 {
		return nil, ErrInvalidMasterKey
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal 返回 base64(nonce || ciphertext || tag)
func (s *Sealer) Seal(plain string) (string, error) {
	if plain == "" {
		return "", ErrNullPlainText
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open 解密，被篡改或密钥不对时返回错误
func (s *Sealer) Open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrInvalidSealed
	}
	ns := s.aead.NonceSize()
	if len(data) < ns+s.aead.Overhead() {
		return "", ErrInvalidSealed
	}
	plain, err := s.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSealed, err)
	}
	return string(plain), nil
}

// SignerAddress 由 session key (hex 私钥) 推导出地址，只用于日志和关联
func SignerAddress(sessionKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(sessionKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse session key: %w", err)
	}
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return "", errors.New("error casting public key to ECDSA")
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
