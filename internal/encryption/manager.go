package encryption

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"confidee-relayer/internal/config"
	"confidee-relayer/internal/util"
)

var (
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidKey       = errors.New("invalid relayer private key")
)

// Decrypter is the part of the KMS API used to unwrap the relayer key.
type Decrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KeyManager resolves the relayer signing key from configuration. The key
// is either given directly as hex or as a KMS-encrypted, base64-encoded
// ciphertext of that hex string.
type KeyManager struct {
	relayer   config.RelayerConfig
	kmsCfg    config.KMSConfig
	kmsClient Decrypter
}

func NewKeyManager(relayer config.RelayerConfig, kmsCfg config.KMSConfig, kmsClient Decrypter) *KeyManager {
	return &KeyManager{
		relayer:   relayer,
		kmsCfg:    kmsCfg,
		kmsClient: kmsClient,
	}
}

// NewKMSClient builds a KMS client from the default AWS credential chain.
func NewKMSClient(ctx context.Context, cfg config.KMSConfig) (*kms.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return kms.NewFromConfig(awsCfg), nil
}

// LoadRelayerKey returns (nil, nil) when no key material is configured so
// the service can start and refuse relays.
func (km *KeyManager) LoadRelayerKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	if raw := km.relayer.PrivateKey; raw != "" {
		return parseHexKey(raw)
	}

	if km.relayer.PrivateKeyCiphertext == "" {
		util.Warn("No relayer key configured, relays will be refused")
		return nil, nil
	}

	plaintext, err := km.decrypt(ctx, km.relayer.PrivateKeyCiphertext)
	if err != nil {
		return nil, err
	}
	return parseHexKey(string(plaintext))
}

func (km *KeyManager) decrypt(ctx context.Context, encoded string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not base64", ErrDecryptionFailed)
	}

	// Development: the "ciphertext" is just the base64 of the hex key.
	if !km.kmsCfg.Enabled {
		return blob, nil
	}
	if km.kmsClient == nil {
		return nil, fmt.Errorf("%w: kms client not initialized", ErrDecryptionFailed)
	}

	result, err := km.kmsClient.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	util.Info("Relayer key decrypted via KMS", zap.String("key_id", aws.ToString(result.KeyId)))
	return result.Plaintext, nil
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")

	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}
