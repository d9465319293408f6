package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	securityUseCase "github.com/zero71st/farmgate/internal/security/usecase"
)

// cliActor identifies key revocations performed from the command line.
const cliActor = "cli"

// RunRevokeKey revokes a single API key by ID. Revoking an already revoked
// key is reported rather than treated as an error.
//
// Requirements: Database must be migrated and accessible.
func RunRevokeKey(
	ctx context.Context,
	keyUseCase securityUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	keyIDStr string,
	format string,
) error {
	keyID, err := uuid.Parse(keyIDStr)
	if err != nil {
		return fmt.Errorf("invalid key ID: %w", err)
	}

	logger.Info("revoking api key", slog.String("key_id", keyID.String()))

	revoked, err := keyUseCase.Revoke(ctx, keyID, cliActor)
	if err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}

	if format == "json" {
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(map[string]interface{}{
			"id":      keyID.String(),
			"revoked": revoked,
		})
	} else {
		if revoked {
			_, _ = fmt.Fprintf(writer, "Key %s revoked.\n", keyID)
		} else {
			_, _ = fmt.Fprintf(writer, "Key %s was already revoked.\n", keyID)
		}
	}

	logger.Info("revoke completed",
		slog.String("key_id", keyID.String()),
		slog.Bool("revoked", revoked),
	)

	return nil
}
