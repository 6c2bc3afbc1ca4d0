package domain

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
	vaultdomain "github.com/veilworld/veilworld/internal/services/vault/domain"
)

// Thresholds holds the minimum balances for each action kind on one token.
// A nil entry means the action is not offered for that token.
type Thresholds struct {
	Delete  *big.Int
	Promote *big.Int
}

// ThresholdPolicy resolves per-token minimum balances. Unconfigured pairs
// fail closed.
type ThresholdPolicy struct {
	tokens map[string]Thresholds
}

// NewThresholdPolicy builds a policy from a token-address map. Addresses are
// compared case-insensitively.
func NewThresholdPolicy(tokens map[string]Thresholds) *ThresholdPolicy {
	normalized := make(map[string]Thresholds, len(tokens))
	for address, thresholds := range tokens {
		normalized[strings.ToLower(strings.TrimSpace(address))] = thresholds
	}
	return &ThresholdPolicy{tokens: normalized}
}

// RequiredBalance returns the configured minimum for a token/action pair.
func (p *ThresholdPolicy) RequiredBalance(tokenAddress string, kind Kind) (*big.Int, error) {
	if p == nil {
		return nil, platformerrors.New(platformerrors.CodeThresholdNotConfigured, "threshold policy is not configured")
	}
	thresholds, ok := p.tokens[strings.ToLower(strings.TrimSpace(tokenAddress))]
	if !ok {
		return nil, platformerrors.New(platformerrors.CodeThresholdNotConfigured, "no thresholds configured for token")
	}
	var minimum *big.Int
	switch kind {
	case KindDelete:
		minimum = thresholds.Delete
	case KindPromote:
		minimum = thresholds.Promote
	}
	if minimum == nil {
		return nil, platformerrors.New(platformerrors.CodeThresholdNotConfigured, "action is not configured for token")
	}
	return minimum, nil
}

// Authorize reports whether the credential's verified claimed balance meets
// the minimum for the action. Unconfigured token/action pairs are always
// denied.
func (p *ThresholdPolicy) Authorize(credential vaultdomain.Credential, kind Kind) bool {
	minimum, err := p.RequiredBalance(credential.Metadata.TokenAddress, kind)
	if err != nil {
		return false
	}
	if credential.Metadata.Balance == nil {
		return false
	}
	return credential.Metadata.Balance.Cmp(minimum) >= 0
}

type thresholdsFile struct {
	Tokens map[string]struct {
		Delete  string `yaml:"delete"`
		Promote string `yaml:"promote"`
	} `yaml:"tokens"`
}

// LoadThresholds reads a threshold policy from a YAML file. Balances are
// decimal strings so token amounts beyond 64 bits survive parsing.
func LoadThresholds(path string) (*ThresholdPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds file: %w", err)
	}
	return ParseThresholds(raw)
}

// ParseThresholds parses YAML threshold configuration.
func ParseThresholds(raw []byte) (*ThresholdPolicy, error) {
	var file thresholdsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse thresholds yaml: %w", err)
	}
	tokens := make(map[string]Thresholds, len(file.Tokens))
	for address, entry := range file.Tokens {
		var thresholds Thresholds
		if strings.TrimSpace(entry.Delete) != "" {
			minimum, ok := new(big.Int).SetString(strings.TrimSpace(entry.Delete), 10)
			if !ok {
				return nil, fmt.Errorf("invalid delete threshold %q for token %s", entry.Delete, address)
			}
			thresholds.Delete = minimum
		}
		if strings.TrimSpace(entry.Promote) != "" {
			minimum, ok := new(big.Int).SetString(strings.TrimSpace(entry.Promote), 10)
			if !ok {
				return nil, fmt.Errorf("invalid promote threshold %q for token %s", entry.Promote, address)
			}
			thresholds.Promote = minimum
		}
		tokens[address] = thresholds
	}
	return NewThresholdPolicy(tokens), nil
}
