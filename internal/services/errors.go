package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate entry") ||
		strings.Contains(lower, "duplicate key")
}

// translateStoreError maps store failures onto the application error taxonomy.
// Errors that already carry an application code pass through unchanged.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.ErrTimeout.WithInternal(err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrNotFound.WithInternal(err)
	case isUniqueConstraintError(err):
		return apperrors.ErrConflict.WithInternal(err)
	}
	return err
}
