// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package models

import "time"

// User is a directory entry the dispatcher resolves recipients against.
// The admin surface that manages users lives outside this service; Herald
// only reads the directory (and verifies login credentials).
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	DepartmentID int64     `json:"department_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role groups users for by-role targeting.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Department groups users for by-department targeting.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
