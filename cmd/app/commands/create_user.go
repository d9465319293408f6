package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	userDomain "github.com/zero71st/farmgate/internal/user/domain"
	userUseCase "github.com/zero71st/farmgate/internal/user/usecase"
)

// RunCreateUser creates a new user account. The password is hashed before
// storage and never echoed back.
//
// Requirements: Database must be migrated and accessible.
func RunCreateUser(
	ctx context.Context,
	users userUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	username string,
	email string,
	name string,
	password string,
	role string,
	format string,
) error {
	logger.Info("creating new user", slog.String("username", username))

	input := userDomain.CreateUserInput{
		Username: username,
		Email:    email,
		Name:     name,
		Password: password,
		Role:     role,
	}

	user, err := users.Create(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if format == "json" {
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(map[string]interface{}{
			"id":       user.ID.String(),
			"username": user.Username,
			"email":    user.Email,
			"name":     user.Name,
			"role":     user.Role,
		})
	} else {
		_, _ = fmt.Fprintln(writer, "User created successfully!")
		_, _ = fmt.Fprintln(writer)
		_, _ = fmt.Fprintf(writer, "ID:       %s\n", user.ID)
		_, _ = fmt.Fprintf(writer, "Username: %s\n", user.Username)
		_, _ = fmt.Fprintf(writer, "Email:    %s\n", user.Email)
		_, _ = fmt.Fprintf(writer, "Name:     %s\n", user.Name)
		_, _ = fmt.Fprintf(writer, "Role:     %s\n", user.Role)
	}

	logger.Info("user created successfully",
		slog.String("user_id", user.ID.String()),
		slog.String("username", user.Username),
		slog.String("role", user.Role),
	)

	return nil
}
