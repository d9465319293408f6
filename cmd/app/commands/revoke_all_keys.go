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

// RunRevokeAllKeys revokes every active API key owned by a user in a single
// transaction and reports the number of keys revoked.
//
// Requirements: Database must be migrated and accessible.
func RunRevokeAllKeys(
	ctx context.Context,
	keyUseCase securityUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	userIDStr string,
	format string,
) error {
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	logger.Info("revoking all keys", slog.String("user_id", userID.String()))

	count, err := keyUseCase.RevokeAll(ctx, userID, cliActor)
	if err != nil {
		return fmt.Errorf("failed to revoke keys: %w", err)
	}

	if format == "json" {
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(map[string]interface{}{
			"user_id":       userID.String(),
			"revoked_count": count,
		})
	} else {
		_, _ = fmt.Fprintf(writer, "Revoked %d key(s) for user %s.\n", count, userID)
	}

	logger.Info("revoke all completed",
		slog.String("user_id", userID.String()),
		slog.Int("revoked_count", count),
	)

	return nil
}
