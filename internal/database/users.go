// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/herald/internal/models"
)

// GetUserByUsername returns a user by username, or ErrNotFound.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, COALESCE(department_id, 0), is_active, created_at
		 FROM users WHERE username = ?`, username))
}

// GetUserByID returns a user by ID, or ErrNotFound.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, COALESCE(department_id, 0), is_active, created_at
		 FROM users WHERE id = ?`, id))
}

func (db *DB) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DepartmentID, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user and assigns its ID.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	var deptID interface{}
	if u.DepartmentID != 0 {
		deptID = u.DepartmentID
	}
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, department_id, is_active)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		u.Username, u.PasswordHash, deptID, u.IsActive,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create user %q: %w", u.Username, err)
	}
	return nil
}

// ResolveExplicit filters the given user IDs down to those that exist and
// are active, in ascending order.
func (db *DB) ResolveExplicit(ctx context.Context, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT id FROM users WHERE is_active = TRUE AND id IN (%s) ORDER BY id`,
		placeholders(len(userIDs)))
	return db.queryIDs(ctx, query, int64Args(userIDs)...)
}

// ResolveByRoles returns the distinct active users holding any of the given
// roles, in ascending order.
func (db *DB) ResolveByRoles(ctx context.Context, roleIDs []int64) ([]int64, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT DISTINCT u.id FROM users u
		 JOIN user_roles ur ON ur.user_id = u.id
		 WHERE u.is_active = TRUE AND ur.role_id IN (%s)
		 ORDER BY u.id`,
		placeholders(len(roleIDs)))
	return db.queryIDs(ctx, query, int64Args(roleIDs)...)
}

// ResolveByDepartments returns the distinct active users belonging to any of
// the given departments, in ascending order.
func (db *DB) ResolveByDepartments(ctx context.Context, deptIDs []int64) ([]int64, error) {
	if len(deptIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT id FROM users
		 WHERE is_active = TRUE AND department_id IN (%s)
		 ORDER BY id`,
		placeholders(len(deptIDs)))
	return db.queryIDs(ctx, query, int64Args(deptIDs)...)
}

// AllActiveUserIDs returns every active user, in ascending order.
func (db *DB) AllActiveUserIDs(ctx context.Context) ([]int64, error) {
	return db.queryIDs(ctx, `SELECT id FROM users WHERE is_active = TRUE ORDER BY id`)
}

// CreateRole inserts a role and assigns its ID.
func (db *DB) CreateRole(ctx context.Context, r *models.Role) error {
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO roles (name) VALUES (?) RETURNING id`, r.Name).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create role %q: %w", r.Name, err)
	}
	return nil
}

// CreateDepartment inserts a department and assigns its ID.
func (db *DB) CreateDepartment(ctx context.Context, d *models.Department) error {
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO departments (name) VALUES (?) RETURNING id`, d.Name).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to create department %q: %w", d.Name, err)
	}
	return nil
}

// AssignRole links a user to a role. Assigning an existing link is a no-op.
func (db *DB) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		 ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign role %d to user %d: %w", roleID, userID, err)
	}
	return nil
}

// queryIDs runs a query whose result is a single BIGINT column.
func (db *DB) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer closeRows(rows)

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
