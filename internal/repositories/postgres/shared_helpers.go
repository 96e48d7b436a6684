package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// handleDBError wraps a database error with the failed operation and maps
// gorm sentinels to repository ones.
func handleDBError(err error, operation string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s failed: %w", operation, repositories.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%s failed: %w", operation, repositories.ErrDuplicate)
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}

// isUniqueViolation catches drivers that do not translate errors for gorm.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "UNIQUE constraint failed")
}

func pickDB(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

// applyPaginationAndSort orders by a whitelisted column and applies limit/offset.
// sortColumns maps API sort keys to SQL identifiers; unknown keys fall back to
// defaultColumn.
func applyPaginationAndSort(query *gorm.DB, sortColumns map[string]string, defaultColumn, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		order = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", column, order))

	return applyPagination(query, limit, offset)
}

func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	query = query.Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
