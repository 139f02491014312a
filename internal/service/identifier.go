package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/avatair-api/internal/models"
)

// IdentifierGenerator mints response identifiers that are unique within the
// artifact store.
type IdentifierGenerator struct {
	exists func(ctx context.Context, id string) (bool, error)
	token  func() string
}

// NewIdentifierGenerator checks candidates with exists before accepting them.
func NewIdentifierGenerator(exists func(ctx context.Context, id string) (bool, error)) *IdentifierGenerator {
	return &IdentifierGenerator{exists: exists, token: randomToken}
}

// Next returns a fresh identifier. Collisions are retried without bound; a
// failed lookup aborts instead of accepting an unchecked candidate.
func (g *IdentifierGenerator) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := models.ResponseIDPrefix + g.token()
		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check identifier: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
