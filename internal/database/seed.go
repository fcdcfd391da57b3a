// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package database

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/models"
)

// SeedDemoData populates an empty directory with demo departments, roles,
// and users. This is intended for development and demo deployments only;
// production deployments manage the directory externally.
//
// The seed is idempotent: if any user already exists, nothing is inserted.
// All demo users share the password "herald-demo".
func (db *DB) SeedDemoData(ctx context.Context) error {
	var userCount int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&userCount); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if userCount > 0 {
		logging.Debug().Int("users", userCount).Msg("Directory already populated, skipping demo seed")
		return nil
	}

	logging.Info().Msg("Seeding directory with demo data")

	hash, err := bcrypt.GenerateFromPassword([]byte("herald-demo"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash demo password: %w", err)
	}

	departments := []*models.Department{
		{Name: "Engineering"},
		{Name: "Operations"},
		{Name: "Support"},
	}
	for _, d := range departments {
		if err := db.CreateDepartment(ctx, d); err != nil {
			return err
		}
	}

	roles := []*models.Role{
		{Name: "admin"},
		{Name: "manager"},
		{Name: "member"},
	}
	for _, r := range roles {
		if err := db.CreateRole(ctx, r); err != nil {
			return err
		}
	}

	users := []struct {
		username string
		dept     *models.Department
		roles    []*models.Role
		active   bool
	}{
		{"alice", departments[0], []*models.Role{roles[0], roles[2]}, true},
		{"bob", departments[0], []*models.Role{roles[2]}, true},
		{"carol", departments[1], []*models.Role{roles[1], roles[2]}, true},
		{"dave", departments[1], []*models.Role{roles[2]}, true},
		{"erin", departments[2], []*models.Role{roles[2]}, true},
		{"mallory", departments[2], []*models.Role{roles[2]}, false},
	}

	for _, spec := range users {
		u := &models.User{
			Username:     spec.username,
			PasswordHash: string(hash),
			DepartmentID: spec.dept.ID,
			IsActive:     spec.active,
		}
		if err := db.CreateUser(ctx, u); err != nil {
			return err
		}
		for _, r := range spec.roles {
			if err := db.AssignRole(ctx, u.ID, r.ID); err != nil {
				return err
			}
		}
	}

	logging.Info().
		Int("departments", len(departments)).
		Int("roles", len(roles)).
		Int("users", len(users)).
		Msg("Demo seed complete")

	return nil
}
