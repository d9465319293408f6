package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zero71st/farmgate/internal/security/domain"
	securityUseCase "github.com/zero71st/farmgate/internal/security/usecase"
)

// RunIssueKey issues a new API key for a user. The plain key is printed
// exactly once and is never retrievable afterwards.
//
// Requirements: Database must be migrated and accessible.
func RunIssueKey(
	ctx context.Context,
	keyUseCase securityUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	userIDStr string,
	label string,
	ttlHours int,
	format string,
) error {
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	if ttlHours < 0 {
		return fmt.Errorf("ttl-hours must be zero or positive, got: %d", ttlHours)
	}

	logger.Info("issuing api key",
		slog.String("user_id", userID.String()),
		slog.String("label", label),
		slog.Int("ttl_hours", ttlHours),
	)

	input := &domain.IssueKeyInput{
		UserID: userID,
		Label:  label,
		TTL:    time.Duration(ttlHours) * time.Hour,
	}

	output, err := keyUseCase.Issue(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to issue key: %w", err)
	}

	if format == "json" {
		outputIssueKeyJSON(output, writer)
	} else {
		outputIssueKeyText(output, writer)
	}

	logger.Info("api key issued",
		slog.String("key_id", output.Key.ID.String()),
		slog.String("user_id", userID.String()),
	)

	return nil
}

func outputIssueKeyJSON(output *domain.IssueKeyOutput, writer io.Writer) {
	result := map[string]interface{}{
		"id":      output.Key.ID.String(),
		"user_id": output.Key.UserID.String(),
		"label":   output.Key.Label,
		"role":    output.Key.Role,
		"key":     output.PlainKey,
	}
	if output.Key.ExpiresAt != nil {
		result["expires_at"] = output.Key.ExpiresAt.Format(time.RFC3339)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(result)
}

func outputIssueKeyText(output *domain.IssueKeyOutput, writer io.Writer) {
	_, _ = fmt.Fprintln(writer, "API key issued successfully!")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "Key ID:  %s\n", output.Key.ID)
	_, _ = fmt.Fprintf(writer, "User ID: %s\n", output.Key.UserID)
	_, _ = fmt.Fprintf(writer, "Label:   %s\n", output.Key.Label)
	_, _ = fmt.Fprintf(writer, "Role:    %s\n", output.Key.Role)
	if output.Key.ExpiresAt != nil {
		_, _ = fmt.Fprintf(writer, "Expires: %s\n", output.Key.ExpiresAt.Format(time.RFC3339))
	} else {
		_, _ = fmt.Fprintln(writer, "Expires: never")
	}
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "Key:     %s\n", output.PlainKey)
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "IMPORTANT: Store this key securely. It cannot be retrieved again.")
}
