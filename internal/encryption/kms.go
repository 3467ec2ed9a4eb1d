package encryption

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

type kmsAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// encryptionContext binds ciphertexts to this use so they cannot be
// decrypted for another purpose under the same key.
var encryptionContext = map[string]string{
	"Purpose": "checkin-notes",
	"Service": "socialworkboard",
}

// ciphertextPrefix tags stored notes that went through KMS. Notes written
// before a key was configured have no tag and are returned as stored.
const ciphertextPrefix = "kms:v1:"

// KMSNotes encrypts check-in notes with an AWS KMS key. Ciphertexts are
// stored base64 encoded behind ciphertextPrefix; empty notes stay empty.
type KMSNotes struct {
	client kmsAPI
	keyID  string
}

func NewKMSNotes(ctx context.Context, keyID string) (*KMSNotes, error) {
	if keyID == "" {
		return nil, errors.New("KMS key id is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &KMSNotes{client: kms.NewFromConfig(cfg), keyID: keyID}, nil
}

func (k *KMSNotes) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	out, err := k.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(k.keyID),
		Plaintext:         []byte(plaintext),
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return "", fmt.Errorf("encrypt note: %w", err)
	}
	return ciphertextPrefix + base64.StdEncoding.EncodeToString(out.CiphertextBlob), nil
}

func (k *KMSNotes) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(ciphertext, ciphertextPrefix)
	if !ok {
		return ciphertext, nil
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode note ciphertext: %w", err)
	}
	out, err := k.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    blob,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return "", fmt.Errorf("decrypt note: %w", err)
	}
	return string(out.Plaintext), nil
}
