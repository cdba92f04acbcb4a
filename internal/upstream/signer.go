// Package upstream - signer.go signs requests for SigV4-authenticated
// backends (Bedrock-style endpoints fronted by an OpenAI-compatible shim).
//
// Credentials come from the standard AWS chain (environment, shared config,
// IAM role) via aws-sdk-go-v2/config. One signer is cached per region.
package upstream

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const signingService = "bedrock"

// SigV4Signer signs HTTP requests with AWS Signature Version 4.
type SigV4Signer struct {
	credentials aws.CredentialsProvider
	region      string
	signer      *v4.Signer
}

// NewSigV4Signer loads credentials from the default chain for a region.
func NewSigV4Signer(region string) (*SigV4Signer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for region %s: %w", region, err)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		return nil, fmt.Errorf("no AWS credentials available for sigv4 auth: %w", err)
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, fmt.Errorf("AWS credentials are empty, cannot sign for region %s", region)
	}
	return &SigV4Signer{
		credentials: cfg.Credentials,
		region:      region,
		signer:      v4.NewSigner(),
	}, nil
}

// SignRequest signs req in place. body must be the exact request payload;
// its SHA256 becomes the signed payload hash.
func (s *SigV4Signer) SignRequest(ctx context.Context, req *http.Request, body []byte) error {
	creds, err := s.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}
	payloadHash := fmt.Sprintf("%x", sha256.Sum256(body))
	if err := s.signer.SignHTTP(ctx, creds, req, payloadHash, signingService, s.region, time.Now()); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	return nil
}

// signerCache holds one signer per region, created lazily so gateways with
// no sigv4 deployments never touch the AWS credential chain.
type signerCache struct {
	mu      sync.Mutex
	signers map[string]*SigV4Signer
}

func newSignerCache() *signerCache {
	return &signerCache{signers: make(map[string]*SigV4Signer)}
}

func (c *signerCache) get(region string) (*SigV4Signer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.signers[region]; ok {
		return s, nil
	}
	s, err := NewSigV4Signer(region)
	if err != nil {
		return nil, err
	}
	c.signers[region] = s
	return s, nil
}
