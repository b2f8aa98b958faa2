// Package provideradapter wraps each translator with the HTTP mechanics the
// translator itself never performs: credential resolution, transport
// invocation, header injection, and HTTP-status classification. Adapters
// hold no response state between calls.
package provideradapter

import (
	"os"
	"strings"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
)

// credentialMetadataKey is the AdapterContext.Metadata key an adapter reads
// a request-scoped API key override from.
const credentialMetadataKey = "api_key"

// resolveCredential implements the three-step precedence every adapter
// follows: an adapter-held key set at construction time, then a key carried
// on the per-call AdapterContext, then a named environment variable (when
// envFallback is enabled). It terminates at the first non-empty source.
func resolveCredential(held string, ctx canon.AdapterContext, envVar string, envFallback bool) (string, error) {
	if held != "" {
		return held, nil
	}
	if v, ok := ctx.MetadataValue(credentialMetadataKey); ok && strings.TrimSpace(v) != "" {
		return v, nil
	}
	if envFallback {
		if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
			return v, nil
		}
	}
	return "", missingCredentialsErr(envVar)
}

func missingCredentialsErr(envVar string) error {
	return &bridgeerrors.CredentialsMissing{EnvCandidates: []string{envVar}}
}

// withProvider stamps the provider onto a CredentialsMissing error built
// without it, since resolveCredential is provider-agnostic.
func withProvider(err error, provider canon.ProviderID) error {
	if err == nil {
		return nil
	}
	if missing, ok := err.(*bridgeerrors.CredentialsMissing); ok {
		missing.Provider = provider
		return missing
	}
	return err
}
