package signature

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// GenericPrefix is the SS58 prefix of addresses not bound to one network.
const GenericPrefix uint16 = 42

const (
	publicKeySize = 32
	checksumSize  = 2
)

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrInvalidChecksum = errors.New("invalid address checksum")
	ssPrefix           = []byte("SS58PRE")
)

// DecodeAddress returns the 32-byte public key behind an SS58 address and
// the network prefix it was encoded with. A 0x-prefixed hex public key is
// accepted as-is and reported with prefix 42 (generic substrate).
func DecodeAddress(address string) ([]byte, uint16, error) {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "0x") {
		raw, err := hex.DecodeString(address[2:])
		if err != nil || len(raw) != publicKeySize {
			return nil, 0, ErrInvalidAddress
		}
		return raw, GenericPrefix, nil
	}

	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) == 0 {
		return nil, 0, ErrInvalidAddress
	}

	prefixLen := 1
	prefix := uint16(decoded[0])
	if decoded[0]&0x40 != 0 {
		if len(decoded) < 2 {
			return nil, 0, ErrInvalidAddress
		}
		prefixLen = 2
		prefix = uint16(decoded[0]&0x3f)<<2 | uint16(decoded[1]>>6) | uint16(decoded[1]&0x3f)<<8
	} else if decoded[0] >= 64 {
		return nil, 0, ErrInvalidAddress
	}

	if len(decoded) != prefixLen+publicKeySize+checksumSize {
		return nil, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(decoded))
	}

	body := decoded[:prefixLen+publicKeySize]
	sum := checksum(body)
	if !bytes.Equal(sum[:checksumSize], decoded[prefixLen+publicKeySize:]) {
		return nil, 0, ErrInvalidChecksum
	}

	key := make([]byte, publicKeySize)
	copy(key, decoded[prefixLen:prefixLen+publicKeySize])
	return key, prefix, nil
}

// EncodeAddress renders a public key for the given network prefix.
func EncodeAddress(publicKey []byte, prefix uint16) (string, error) {
	if len(publicKey) != publicKeySize {
		return "", fmt.Errorf("public key must be %d bytes, got %d", publicKeySize, len(publicKey))
	}
	if prefix > 16383 {
		return "", fmt.Errorf("prefix %d out of range", prefix)
	}

	var body []byte
	if prefix < 64 {
		body = append(body, byte(prefix))
	} else {
		body = append(body,
			byte((prefix&0xfc)>>2)|0x40,
			byte(prefix>>8)|byte(prefix&0x03)<<6,
		)
	}
	body = append(body, publicKey...)
	sum := checksum(body)
	body = append(body, sum[:checksumSize]...)
	return base58.Encode(body), nil
}

// PublicKeyHex is the 0x-prefixed hex form stored next to linked addresses.
func PublicKeyHex(address string) (string, error) {
	key, _, err := DecodeAddress(address)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(key), nil
}

func checksum(body []byte) [64]byte {
	return blake2b.Sum512(append(append([]byte{}, ssPrefix...), body...))
}
