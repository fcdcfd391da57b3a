// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/models"
)

// testDBSemaphore serializes test database lifecycles. Concurrent DuckDB
// CGO calls from parallel tests can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates a new in-memory test database. The semaphore is held
// for the entire test lifecycle and released via t.Cleanup.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

// seedDirectory inserts a small directory for recipient resolution tests:
//
//	dept 1 (Engineering): alice (roles admin,member), bob (member)
//	dept 2 (Operations):  carol (manager), inactive-ivan (member, inactive)
func seedDirectory(t *testing.T, db *DB) (users map[string]*models.User, roles map[string]*models.Role, depts map[string]*models.Department) {
	t.Helper()
	ctx := context.Background()

	depts = map[string]*models.Department{
		"eng": {Name: "Engineering"},
		"ops": {Name: "Operations"},
	}
	for _, d := range depts {
		if err := db.CreateDepartment(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	roles = map[string]*models.Role{
		"admin":   {Name: "admin"},
		"manager": {Name: "manager"},
		"member":  {Name: "member"},
	}
	for _, r := range roles {
		if err := db.CreateRole(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	users = map[string]*models.User{
		"alice": {Username: "alice", PasswordHash: "x", DepartmentID: depts["eng"].ID, IsActive: true},
		"bob":   {Username: "bob", PasswordHash: "x", DepartmentID: depts["eng"].ID, IsActive: true},
		"carol": {Username: "carol", PasswordHash: "x", DepartmentID: depts["ops"].ID, IsActive: true},
		"ivan":  {Username: "ivan", PasswordHash: "x", DepartmentID: depts["ops"].ID, IsActive: false},
	}
	for _, u := range users {
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	assign := []struct {
		user, role string
	}{
		{"alice", "admin"}, {"alice", "member"},
		{"bob", "member"},
		{"carol", "manager"},
		{"ivan", "member"},
	}
	for _, a := range assign {
		if err := db.AssignRole(ctx, users[a.user].ID, roles[a.role].ID); err != nil {
			t.Fatal(err)
		}
	}

	return users, roles, depts
}

func TestPingAndCheckpoint(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := db.Checkpoint(ctx); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
}

func TestInsertAndGetMessage(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	msg := &models.Message{
		Title:      "Maintenance window",
		Content:    "The service restarts at midnight.",
		TargetType: models.TargetAll,
		CreatorID:  1,
	}
	if err := db.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage failed: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("InsertMessage did not assign an ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("InsertMessage did not assign a timestamp")
	}

	got, err := db.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.Title != msg.Title || got.Content != msg.Content {
		t.Errorf("GetMessage returned %+v, want title/content of %+v", got, msg)
	}
	if got.TargetType != models.TargetAll {
		t.Errorf("TargetType = %v, want TargetAll", got.TargetType)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetMessage(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBulkInsertRecipientsAndUnread(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users, _, _ := seedDirectory(t, db)

	msg := &models.Message{Title: "t", Content: "c", TargetType: models.TargetUsers, CreatorID: users["alice"].ID}
	if err := db.InsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}

	ids := []int64{users["alice"].ID, users["bob"].ID}
	if err := db.BulkInsertRecipients(ctx, msg.ID, ids); err != nil {
		t.Fatalf("BulkInsertRecipients failed: %v", err)
	}

	// Idempotent: re-inserting the same links must not error or duplicate
	if err := db.BulkInsertRecipients(ctx, msg.ID, ids); err != nil {
		t.Fatalf("repeat BulkInsertRecipients failed: %v", err)
	}

	got, err := db.RecipientIDs(ctx, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("RecipientIDs = %v, want 2 entries", got)
	}

	count, err := db.UnreadCount(ctx, users["alice"].ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("UnreadCount = %d, want 1", count)
	}

	count, err = db.UnreadCount(ctx, users["carol"].ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("UnreadCount for non-recipient = %d, want 0", count)
	}
}

func TestMarkRead(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users, _, _ := seedDirectory(t, db)

	msg := &models.Message{Title: "t", Content: "c"}
	if err := db.InsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if err := db.BulkInsertRecipients(ctx, msg.ID, []int64{users["alice"].ID}); err != nil {
		t.Fatal(err)
	}

	if err := db.MarkRead(ctx, msg.ID, users["alice"].ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	count, err := db.UnreadCount(ctx, users["alice"].ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("UnreadCount after MarkRead = %d, want 0", count)
	}

	// Re-acknowledging is a no-op
	if err := db.MarkRead(ctx, msg.ID, users["alice"].ID); err != nil {
		t.Fatalf("repeat MarkRead failed: %v", err)
	}

	// Non-recipient acknowledgement is rejected
	err = db.MarkRead(ctx, msg.ID, users["bob"].ID)
	if !errors.Is(err, ErrNotRecipient) {
		t.Errorf("expected ErrNotRecipient for non-recipient, got %v", err)
	}
}

func TestListInbox(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users, _, _ := seedDirectory(t, db)
	alice := users["alice"].ID

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			Title:     "m",
			Content:   "c",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.InsertMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
		if err := db.BulkInsertRecipients(ctx, msg.ID, []int64{alice}); err != nil {
			t.Fatal(err)
		}
	}

	entries, total, err := db.ListInbox(ctx, alice, 3, 0)
	if err != nil {
		t.Fatalf("ListInbox failed: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(entries) != 3 {
		t.Fatalf("page size = %d, want 3", len(entries))
	}
	// Newest first
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Errorf("inbox not sorted newest first: %v before %v",
				entries[i-1].CreatedAt, entries[i].CreatedAt)
		}
	}
	if entries[0].IsRead {
		t.Error("fresh link should be unread")
	}

	// Second page
	entries, _, err = db.ListInbox(ctx, alice, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("second page size = %d, want 2", len(entries))
	}
}

func TestResolveExplicitFiltersInactiveAndMissing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users, _, _ := seedDirectory(t, db)

	ids, err := db.ResolveExplicit(ctx, []int64{
		users["alice"].ID, users["ivan"].ID, 424242,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != users["alice"].ID {
		t.Errorf("ResolveExplicit = %v, want only alice (%d)", ids, users["alice"].ID)
	}

	ids, err = db.ResolveExplicit(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("ResolveExplicit(nil) = %v, want empty", ids)
	}
}

func TestResolveByRoles(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users, roles, _ := seedDirectory(t, db)

	// member role covers alice, bob, and inactive ivan; ivan is filtered
	ids, err := db.ResolveByRoles(ctx, []int64{roles["member"].ID})
	if err != nil {
		t.Fatal(err)
	}
	want := map[int64]bool{users["alice"].ID: true, users["bob"].ID: true}
	if len(ids) != len(want) {
		t.Fatalf("ResolveByRoles = %v, want alice and bob", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected user %d in role resolution", id)
		}
	}

	// Overlapping roles yield distinct users
	ids, err = db.ResolveByRoles(ctx, []int64{roles["member"].ID, roles["admin"].ID})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int64]int{}
	for _, id := range ids {
		seen[id]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("user %d appears %d times, want distinct", id, n)
		}
	}
}

func TestResolveByDepartments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users, _, depts := seedDirectory(t, db)

	ids, err := db.ResolveByDepartments(ctx, []int64{depts["ops"].ID})
	if err != nil {
		t.Fatal(err)
	}
	// carol active, ivan inactive
	if len(ids) != 1 || ids[0] != users["carol"].ID {
		t.Errorf("ResolveByDepartments = %v, want only carol (%d)", ids, users["carol"].ID)
	}
}

func TestAllActiveUserIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedDirectory(t, db)

	ids, err := db.AllActiveUserIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Errorf("AllActiveUserIDs returned %d users, want 3 (inactive excluded)", len(ids))
	}
}

func TestGetUserByUsername(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users, _, _ := seedDirectory(t, db)

	u, err := db.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if u.ID != users["alice"].ID {
		t.Errorf("ID = %d, want %d", u.ID, users["alice"].ID)
	}
	if !u.IsActive {
		t.Error("alice should be active")
	}

	_, err = db.GetUserByUsername(ctx, "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSeedDemoDataIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.SeedDemoData(ctx); err != nil {
		t.Fatalf("SeedDemoData failed: %v", err)
	}
	first, err := db.AllActiveUserIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) == 0 {
		t.Fatal("seed created no active users")
	}

	if err := db.SeedDemoData(ctx); err != nil {
		t.Fatalf("second SeedDemoData failed: %v", err)
	}
	second, err := db.AllActiveUserIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != len(first) {
		t.Errorf("second seed changed user count: %d -> %d", len(first), len(second))
	}
}
