package activitypub

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/deemkeen/loxodon/domain"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	kekSaltSize = 16
	kekInfo     = "loxodon signing key"
)

// GetSigningKey recovers an actor's private signing key by unsealing the
// stored key material with the user KEK. The raw key never crosses the queue,
// only the opaque KEK handle does.
func GetSigningKey(userKEK string, actor *domain.Actor) (*rsa.PrivateKey, error) {
	if len(actor.PrivKey) <= 24 || len(actor.PrivKeySalt) == 0 {
		return nil, fmt.Errorf("actor %s has no stored signing key", actor.Id)
	}

	key, err := deriveWrappingKey(userKEK, actor.PrivKeySalt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive wrapping key: %w", err)
	}

	var nonce [24]byte
	copy(nonce[:], actor.PrivKey[:24])

	opened, ok := secretbox.Open(nil, actor.PrivKey[24:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("failed to unseal signing key for %s", actor.Id)
	}

	return ParsePrivateKey(string(opened))
}

// WrapPrivateKey seals a PEM encoded private key with the user KEK for
// storage on the actor record
func WrapPrivateKey(userKEK string, privateKeyPem string) (sealed []byte, salt []byte, err error) {
	salt = make([]byte, kekSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}

	key, err := deriveWrappingKey(userKEK, salt)
	if err != nil {
		return nil, nil, err
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, nil, err
	}

	sealed = secretbox.Seal(nonce[:], []byte(privateKeyPem), &nonce, key)
	return sealed, salt, nil
}

func deriveWrappingKey(userKEK string, salt []byte) (*[32]byte, error) {
	reader := hkdf.New(sha256.New, []byte(userKEK), salt, []byte(kekInfo))
	var key [32]byte
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return nil, err
	}
	return &key, nil
}
