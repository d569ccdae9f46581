package encryption

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/crypto"

	"confidee-relayer/internal/config"
)

type fakeKMS struct {
	plaintext []byte
	err       error
	gotBlob   []byte
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.gotBlob = in.CiphertextBlob
	if f.err != nil {
		return nil, f.err
	}
	return &kms.DecryptOutput{Plaintext: f.plaintext, KeyId: aws.String("alias/relayer")}, nil
}

func testKeyHex(t *testing.T) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestLoadRelayerKeyFromHex(t *testing.T) {
	keyHex, addr := testKeyHex(t)

	for _, raw := range []string{keyHex, "0x" + keyHex, "  " + keyHex + "\n"} {
		km := NewKeyManager(config.RelayerConfig{PrivateKey: raw}, config.KMSConfig{}, nil)
		key, err := km.LoadRelayerKey(context.Background())
		if err != nil {
			t.Fatalf("LoadRelayerKey(%q): %v", raw, err)
		}
		if got := crypto.PubkeyToAddress(key.PublicKey).Hex(); got != addr {
			t.Fatalf("address = %s, want %s", got, addr)
		}
	}
}

func TestLoadRelayerKeyInvalidHex(t *testing.T) {
	km := NewKeyManager(config.RelayerConfig{PrivateKey: "zz"}, config.KMSConfig{}, nil)
	if _, err := km.LoadRelayerKey(context.Background()); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey", err)
	}
}

func TestLoadRelayerKeyNoneConfigured(t *testing.T) {
	km := NewKeyManager(config.RelayerConfig{}, config.KMSConfig{}, nil)
	key, err := km.LoadRelayerKey(context.Background())
	if err != nil || key != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", key, err)
	}
}

func TestLoadRelayerKeyViaKMS(t *testing.T) {
	keyHex, addr := testKeyHex(t)
	blob := []byte("opaque-ciphertext")
	fake := &fakeKMS{plaintext: []byte(keyHex)}

	km := NewKeyManager(
		config.RelayerConfig{PrivateKeyCiphertext: base64.StdEncoding.EncodeToString(blob)},
		config.KMSConfig{Enabled: true, Region: "us-east-1"},
		fake,
	)
	key, err := km.LoadRelayerKey(context.Background())
	if err != nil {
		t.Fatalf("LoadRelayerKey: %v", err)
	}
	if string(fake.gotBlob) != string(blob) {
		t.Fatalf("kms received %q, want %q", fake.gotBlob, blob)
	}
	if got := crypto.PubkeyToAddress(key.PublicKey).Hex(); got != addr {
		t.Fatalf("address = %s, want %s", got, addr)
	}
}

func TestLoadRelayerKeyKMSFailure(t *testing.T) {
	km := NewKeyManager(
		config.RelayerConfig{PrivateKeyCiphertext: base64.StdEncoding.EncodeToString([]byte("x"))},
		config.KMSConfig{Enabled: true},
		&fakeKMS{err: errors.New("access denied")},
	)
	if _, err := km.LoadRelayerKey(context.Background()); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("err = %v, want ErrDecryptionFailed", err)
	}
}

func TestLoadRelayerKeyLocalCiphertext(t *testing.T) {
	keyHex, addr := testKeyHex(t)
	km := NewKeyManager(
		config.RelayerConfig{PrivateKeyCiphertext: base64.StdEncoding.EncodeToString([]byte(keyHex))},
		config.KMSConfig{Enabled: false},
		nil,
	)
	key, err := km.LoadRelayerKey(context.Background())
	if err != nil {
		t.Fatalf("LoadRelayerKey: %v", err)
	}
	if got := crypto.PubkeyToAddress(key.PublicKey).Hex(); got != addr {
		t.Fatalf("address = %s, want %s", got, addr)
	}
}
