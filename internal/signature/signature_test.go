package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceKusama  = "HNZata7iMYWmk5RvZRTiAsSDhV8366zq2YGb3tLH5Upf74F"
	alicePubHex  = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	aliceGeneric = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
)

func TestDecodeKnownAddresses(t *testing.T) {
	t.Parallel()

	key, prefix, err := DecodeAddress(aliceKusama)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), prefix)
	assert.Equal(t, alicePubHex, hex.EncodeToString(key))

	key, prefix, err = DecodeAddress(aliceGeneric)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), prefix)
	assert.Equal(t, alicePubHex, hex.EncodeToString(key))
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := hex.DecodeString(alicePubHex)
	require.NoError(t, err)

	addr, err := EncodeAddress(key, 2)
	require.NoError(t, err)
	assert.Equal(t, aliceKusama, addr)

	for _, prefix := range []uint16{0, 42, 63, 64, 204, 1284, 16383} {
		addr, err := EncodeAddress(key, prefix)
		require.NoError(t, err)
		got, gotPrefix, err := DecodeAddress(addr)
		require.NoError(t, err, "prefix %d", prefix)
		assert.Equal(t, prefix, gotPrefix)
		assert.Equal(t, key, got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, addr := range []string{
		"",
		"not-base58-0OIl",
		"0x1234",
		aliceKusama[:len(aliceKusama)-1] + "G",
		"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQ",
	} {
		_, _, err := DecodeAddress(addr)
		assert.Error(t, err, addr)
	}
}

func TestPublicKeyHex(t *testing.T) {
	t.Parallel()

	got, err := PublicKeyHex(aliceKusama)
	require.NoError(t, err)
	assert.Equal(t, "0x"+alicePubHex, got)

	hexKey, _, err := DecodeAddress("0x" + alicePubHex)
	require.NoError(t, err)
	assert.Equal(t, alicePubHex, hex.EncodeToString(hexKey))
}

func sr25519Fixture(t *testing.T, message string) (string, string) {
	t.Helper()

	priv, pub, err := schnorrkel.GenerateKeypair()
	require.NoError(t, err)

	sig, err := priv.Sign(schnorrkel.NewSigningContext(signingContext, []byte(message)))
	require.NoError(t, err)

	pubBytes := pub.Encode()
	addr, err := EncodeAddress(pubBytes[:], 204)
	require.NoError(t, err)

	sigBytes := sig.Encode()
	return addr, "0x" + hex.EncodeToString(sigBytes[:])
}

func TestVerifySr25519(t *testing.T) {
	t.Parallel()

	const msg = "da194645-4daf-43b6-b023-6c6ce99ee709"
	addr, sig := sr25519Fixture(t, msg)

	assert.True(t, Verify(msg, addr, sig))
	assert.True(t, Substrate{}.Verify(msg, addr, sig))
	assert.False(t, Verify(msg+"x", addr, sig))

	tampered := []byte(sig)
	if tampered[10] == 'a' {
		tampered[10] = 'b'
	} else {
		tampered[10] = 'a'
	}
	assert.False(t, Verify(msg, addr, string(tampered)))

	other, _ := sr25519Fixture(t, msg)
	assert.False(t, Verify(msg, other, sig))
}

// Both signatures were produced by Alice's wallet over the same challenge.
func TestVerifyAliceWalletSignatures(t *testing.T) {
	t.Parallel()

	const msg = "da194645-4daf-43b6-b023-6c6ce99ee709"
	for _, sig := range []string{
		"0x048ffa02dd58557ab7f7ffb316ac75fa942d2bdb83f4480a6698a1f39d6fa1184dd85d95480bfab59f516de578b102a2b01b81ca0e69134f90e0cd08ada7ca88",
		"0x20ecf8208acc2e357ec98af1cde7d446b6458483c33c23a3da16e9a7bd5ec56ffeec92d0da02c53e71d164f6e8b69a29b58f47ab4ffb11db429f65b479b65189",
	} {
		assert.True(t, Verify(msg, aliceKusama, sig), sig)
		assert.False(t, Verify(msg+"x", aliceKusama, sig), sig)
	}

	assert.False(t, Verify(msg, aliceKusama, "0x"+strings.Repeat("0", 128)))
}

func TestVerifyWrappedBytes(t *testing.T) {
	t.Parallel()

	const msg = "5b3c2b86-0d48-4e0f-8a6c-bd1c4a1d0f11"
	addr, sig := sr25519Fixture(t, "<Bytes>"+msg+"</Bytes>")
	assert.True(t, Verify(msg, addr, sig))
}

func TestVerifyEd25519(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr, err := EncodeAddress(pub, 2)
	require.NoError(t, err)

	const msg = "challenge"
	sig := ed25519.Sign(priv, []byte(msg))

	assert.True(t, Verify(msg, addr, "0x"+hex.EncodeToString(sig)))
	assert.True(t, Verify(msg, addr, "0x00"+hex.EncodeToString(sig)))
	assert.False(t, Verify(msg, addr, "0x01"+hex.EncodeToString(sig)))
	assert.False(t, Verify("other", addr, "0x"+hex.EncodeToString(sig)))
}

func TestVerifyRejectsMalformed(t *testing.T) {
	t.Parallel()

	zero := "0x" + hex.EncodeToString(make([]byte, 64))
	assert.False(t, Verify("m", aliceKusama, zero))
	assert.False(t, Verify("m", aliceKusama, "deadbeef"))
	assert.False(t, Verify("m", aliceKusama, "0xzz"))
	assert.False(t, Verify("m", aliceKusama, "0x0102"))
	assert.False(t, Verify("m", "bogus", zero))
}
