package seal

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMaster = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	// anvil 默认账户 0
	testSessionKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

func TestSealOpen(t *testing.T) {
	s, err := New(testMaster)
	require.NoError(t, err)

	sealed, err := s.Seal(testSessionKey)
	require.NoError(t, err)
	assert.NotContains(t, sealed, testSessionKey)

	again, err := s.Seal(testSessionKey)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "每次 nonce 不同")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, testSessionKey, plain)
}

func TestOpen_Tampered(t *testing.T) {
	s, err := New(testMaster)
	require.NoError(t, err)
	sealed, err := s.Seal(testSessionKey)
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0x01
	_, err = s.Open(base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrInvalidSealed)

	_, err = s.Open("not base64!")
	assert.ErrorIs(t, err, ErrInvalidSealed)

	other, err := New(strings.Repeat("ff", 32))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrInvalidSealed)
}

func TestNew_InvalidKey(t *testing.T) {
	_, err := New("abcd")
	assert.ErrorIs(t, err, ErrInvalidMasterKey)
	_, err = New("zz")
	assert.ErrorIs(t, err, ErrInvalidMasterKey)
}

func TestSignerAddress(t *testing.T) {
	addr, err := SignerAddress("0x" + testSessionKey)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", addr)

	_, err = SignerAddress("nope")
	assert.Error(t, err)
}
