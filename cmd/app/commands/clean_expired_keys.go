package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	securityUseCase "github.com/zero71st/farmgate/internal/security/usecase"
)

// RunCleanExpiredKeys deactivates API keys that are past their expiry and
// reports the number of keys affected.
//
// Requirements: Database must be migrated and accessible.
func RunCleanExpiredKeys(
	ctx context.Context,
	keyUseCase securityUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("cleaning expired keys")

	count, err := keyUseCase.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired keys: %w", err)
	}

	if format == "json" {
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(map[string]interface{}{
			"deactivated_count": count,
		})
	} else {
		_, _ = fmt.Fprintf(writer, "Deactivated %d expired key(s).\n", count)
	}

	logger.Info("cleanup completed", slog.Int64("deactivated_count", count))

	return nil
}
