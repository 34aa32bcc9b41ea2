package repository

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"marketing-backend/internal/model"
	"marketing-backend/pkg/apierror"
)

const uniqueViolation = "23505"

func notFound(resource string, id string) error {
	return apierror.Wrap(model.ErrNotFound, "NOT_FOUND", resource+" not found", id, http.StatusNotFound)
}

func alreadyExists(resource string, key string) error {
	return apierror.Wrap(model.ErrAlreadyExists, "ALREADY_EXISTS", resource+" already exists", key, http.StatusConflict)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
