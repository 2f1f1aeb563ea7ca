package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/config"
	"github.com/taskflow/taskflow-api/internal/service/auth"
)

// printServiceToken mints a service-role token for calling the job
// endpoints, e.g. from a platform cron.
func printServiceToken(ctx context.Context, cfg *config.Config, out io.Writer) error {
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	token, err := jwtService.GenerateToken(ctx, uuid.Nil, auth.RoleServiceRole)
	if err != nil {
		return fmt.Errorf("failed to generate service token: %w", err)
	}

	_, err = fmt.Fprintln(out, token)
	return err
}
