// Package secrets resolves credential secret references into plaintext
// passwords at run time. The database only ever stores the reference.
package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/ymakhno/confbak/internal/config"
)

// Resolver turns an opaque secret reference into the device password.
type Resolver interface {
	Resolve(ctx context.Context, secretRef string) (string, error)
}

// NewResolver constructs the appropriate resolver based on config.
// Called once at worker startup.
func NewResolver(ctx context.Context, cfg config.SecretsConfig) (Resolver, error) {
	switch cfg.Provider {
	case "aws":
		return NewAWSResolver(ctx)
	case "static":
		return NewStaticResolver(cfg.StaticSecrets), nil
	default:
		return nil, fmt.Errorf("unknown secrets provider %q: must be one of aws, static", cfg.Provider)
	}
}

// StaticResolver serves secrets from a fixed in-memory map. Development and
// tests only.
type StaticResolver struct {
	secrets map[string]string
}

// NewStaticResolver parses comma-separated "ref=password" pairs.
func NewStaticResolver(pairs string) *StaticResolver {
	secrets := make(map[string]string)
	for _, pair := range strings.Split(pairs, ",") {
		ref, password, ok := strings.Cut(pair, "=")
		if ok && ref != "" {
			secrets[ref] = password
		}
	}
	return &StaticResolver{secrets: secrets}
}

func (r *StaticResolver) Resolve(_ context.Context, secretRef string) (string, error) {
	password, ok := r.secrets[secretRef]
	if !ok {
		return "", fmt.Errorf("secret %q not found", secretRef)
	}
	return password, nil
}
