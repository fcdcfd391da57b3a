// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/database"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// testDBSemaphore serializes test database lifecycles. Concurrent DuckDB
// CGO calls from parallel tests can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"})
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

// seedUsers inserts active alice and bob plus inactive ivan, all in one
// department with one shared role. Returns users keyed by name.
func seedUsers(t *testing.T, db *database.DB) map[string]*models.User {
	t.Helper()
	ctx := context.Background()

	dept := &models.Department{Name: "Engineering"}
	if err := db.CreateDepartment(ctx, dept); err != nil {
		t.Fatal(err)
	}
	role := &models.Role{Name: "member"}
	if err := db.CreateRole(ctx, role); err != nil {
		t.Fatal(err)
	}

	users := map[string]*models.User{
		"alice": {Username: "alice", PasswordHash: "x", DepartmentID: dept.ID, IsActive: true},
		"bob":   {Username: "bob", PasswordHash: "x", DepartmentID: dept.ID, IsActive: true},
		"ivan":  {Username: "ivan", PasswordHash: "x", DepartmentID: dept.ID, IsActive: false},
	}
	for _, u := range users {
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
		if err := db.AssignRole(ctx, u.ID, role.ID); err != nil {
			t.Fatal(err)
		}
	}
	return users
}

// recordingLayer captures group sends for assertions.
type recordingLayer struct {
	mu    sync.Mutex
	sends map[string][]models.PushPayload
	sent  chan struct{}
}

func newRecordingLayer() *recordingLayer {
	return &recordingLayer{
		sends: make(map[string][]models.PushPayload),
		sent:  make(chan struct{}, 64),
	}
}

func (l *recordingLayer) GroupSend(_ context.Context, group string, payload []byte) error {
	var p models.PushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	l.mu.Lock()
	l.sends[group] = append(l.sends[group], p)
	l.mu.Unlock()
	l.sent <- struct{}{}
	return nil
}

// waitSends blocks until n sends were recorded or the deadline passes.
func (l *recordingLayer) waitSends(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-l.sent:
		case <-deadline:
			t.Fatalf("timed out waiting for send %d of %d", i+1, n)
		}
	}
}

func (l *recordingLayer) forGroup(group string) []models.PushPayload {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.PushPayload(nil), l.sends[group]...)
}

func TestPublishExplicitRecipients(t *testing.T) {
	db := setupTestDB(t)
	users := seedUsers(t, db)
	layer := newRecordingLayer()
	d := NewDispatcher(db, layer, &config.DispatchConfig{})
	ctx := context.Background()

	result, err := d.Publish(ctx, users["alice"].ID, &models.PublishRequest{
		Title:       "Deploy window",
		Content:     "Deploys freeze at 17:00",
		TargetType:  int(models.TargetUsers),
		TargetUsers: []int64{users["alice"].ID, users["bob"].ID},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if result.Recipients != 2 {
		t.Errorf("Recipients = %d, want 2", result.Recipients)
	}

	linked, err := db.RecipientIDs(ctx, result.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 2 {
		t.Errorf("linked recipients = %d, want 2", len(linked))
	}

	layer.waitSends(t, 2)
	for _, name := range []string{"alice", "bob"} {
		pushes := layer.forGroup(models.GroupName(users[name].ID))
		if len(pushes) != 1 {
			t.Fatalf("%s received %d pushes, want 1", name, len(pushes))
		}
		p := pushes[0]
		if p.Sender != "alice" || p.ContentType != models.ContentTypeInfo {
			t.Errorf("%s push = sender %q contentType %q, want alice/INFO", name, p.Sender, p.ContentType)
		}
		if p.MessageID != result.MessageID || p.Unread != 1 {
			t.Errorf("%s push = message %d unread %d, want %d/1", name, p.MessageID, p.Unread, result.MessageID)
		}
	}
}

func TestPublishBroadcastSkipsInactiveUsers(t *testing.T) {
	db := setupTestDB(t)
	users := seedUsers(t, db)
	layer := newRecordingLayer()
	d := NewDispatcher(db, layer, &config.DispatchConfig{})

	result, err := d.Publish(context.Background(), 0, &models.PublishRequest{
		Title:      "Maintenance",
		Content:    "Back in an hour",
		TargetType: int(models.TargetAll),
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if result.Recipients != 2 {
		t.Errorf("Recipients = %d, want 2 active users", result.Recipients)
	}

	layer.waitSends(t, 2)
	if pushes := layer.forGroup(models.GroupName(users["ivan"].ID)); len(pushes) != 0 {
		t.Errorf("inactive user received %d pushes, want 0", len(pushes))
	}
	if p := layer.forGroup(models.GroupName(users["alice"].ID)); len(p) != 1 || p[0].Sender != models.SystemSender {
		t.Errorf("alice pushes = %+v, want one system push", p)
	}
}

func TestPublishMergesFreshUnreadPerRecipient(t *testing.T) {
	db := setupTestDB(t)
	users := seedUsers(t, db)
	layer := newRecordingLayer()
	d := NewDispatcher(db, layer, &config.DispatchConfig{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := d.Publish(ctx, 0, &models.PublishRequest{
			Title:       "Ping",
			Content:     "ping",
			TargetType:  int(models.TargetUsers),
			TargetUsers: []int64{users["alice"].ID},
		}); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
		layer.waitSends(t, 1)
	}

	pushes := layer.forGroup(models.GroupName(users["alice"].ID))
	if len(pushes) != 2 {
		t.Fatalf("alice received %d pushes, want 2", len(pushes))
	}
	if pushes[0].Unread != 1 || pushes[1].Unread != 2 {
		t.Errorf("unread counts = %d, %d; want 1, 2", pushes[0].Unread, pushes[1].Unread)
	}
}

func TestPublishRejectsInvalidRequest(t *testing.T) {
	db := setupTestDB(t)
	layer := newRecordingLayer()
	d := NewDispatcher(db, layer, &config.DispatchConfig{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  *models.PublishRequest
	}{
		{"missing title", &models.PublishRequest{Content: "x", TargetType: 0}},
		{"missing content", &models.PublishRequest{Title: "x", TargetType: 0}},
		{"target type out of range", &models.PublishRequest{Title: "x", Content: "x", TargetType: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Publish(ctx, 0, tt.req); !errors.Is(err, ErrValidationFailed) {
				t.Errorf("Publish error = %v, want ErrValidationFailed", err)
			}
		})
	}

	var count int
	if err := db.Conn().QueryRow("SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("messages persisted = %d, want 0 after rejected requests", count)
	}
}

// failingLinkStore wraps the real store but rejects the recipient batch.
type failingLinkStore struct {
	Store
}

func (s *failingLinkStore) BulkInsertRecipients(context.Context, int64, []int64) error {
	return errors.New("batch rejected")
}

func TestPublishRecipientBatchFailureLeavesOrphanMessage(t *testing.T) {
	db := setupTestDB(t)
	users := seedUsers(t, db)
	layer := newRecordingLayer()
	d := NewDispatcher(&failingLinkStore{Store: db}, layer, &config.DispatchConfig{})
	ctx := context.Background()

	result, err := d.Publish(ctx, 0, &models.PublishRequest{
		Title:       "Orphan",
		Content:     "x",
		TargetType:  int(models.TargetUsers),
		TargetUsers: []int64{users["alice"].ID},
	})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Publish error = %v, want ErrValidationFailed", err)
	}
	if result == nil || result.MessageID == 0 {
		t.Fatal("expected the orphaned message ID in the result")
	}

	// The message row survives the failed batch.
	msg, err := db.GetMessage(ctx, result.MessageID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if msg.Title != "Orphan" {
		t.Errorf("Title = %q, want Orphan", msg.Title)
	}

	// And it has no recipients and produced no pushes.
	linked, err := db.RecipientIDs(ctx, result.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 0 {
		t.Errorf("linked recipients = %d, want 0", len(linked))
	}
	if pushes := layer.forGroup(models.GroupName(users["alice"].ID)); len(pushes) != 0 {
		t.Errorf("pushes = %d, want 0", len(pushes))
	}
}

func TestHandleReceiveRebroadcastsToStoredRecipients(t *testing.T) {
	db := setupTestDB(t)
	users := seedUsers(t, db)
	layer := newRecordingLayer()
	d := NewDispatcher(db, layer, &config.DispatchConfig{})
	ctx := context.Background()

	result, err := d.Publish(ctx, users["alice"].ID, &models.PublishRequest{
		Title:       "Standup",
		Content:     "moved to 10:00",
		TargetType:  int(models.TargetUsers),
		TargetUsers: []int64{users["alice"].ID, users["bob"].ID},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	layer.waitSends(t, 2)

	d.HandleReceive(ctx, users["bob"].ID, result.MessageID)
	layer.waitSends(t, 2)

	for _, name := range []string{"alice", "bob"} {
		pushes := layer.forGroup(models.GroupName(users[name].ID))
		if len(pushes) != 2 {
			t.Errorf("%s received %d pushes, want 2 after re-broadcast", name, len(pushes))
			continue
		}
		if pushes[1].MessageID != result.MessageID || pushes[1].Sender != "alice" {
			t.Errorf("%s re-broadcast = %+v, want message %d from alice", name, pushes[1], result.MessageID)
		}
	}
}

func TestHandleReceiveUnknownMessageIsNoop(t *testing.T) {
	db := setupTestDB(t)
	layer := newRecordingLayer()
	d := NewDispatcher(db, layer, &config.DispatchConfig{})

	d.HandleReceive(context.Background(), 1, 9999)

	select {
	case <-layer.sent:
		t.Error("unexpected push for unknown message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAdmissionNotice(t *testing.T) {
	db := setupTestDB(t)
	users := seedUsers(t, db)
	layer := newRecordingLayer()
	d := NewDispatcher(db, layer, &config.DispatchConfig{})
	ctx := context.Background()

	frame, err := d.AdmissionNotice(ctx, users["alice"].ID)
	if err != nil {
		t.Fatalf("AdmissionNotice failed: %v", err)
	}
	var p models.PushPayload
	if err := json.Unmarshal(frame, &p); err != nil {
		t.Fatal(err)
	}
	if p.Sender != models.SystemSender || p.ContentType != models.ContentTypeSystem {
		t.Errorf("notice = sender %q contentType %q, want system/SYSTEM", p.Sender, p.ContentType)
	}
	if p.Content != "online" || p.Unread != 0 {
		t.Errorf("notice = %+v, want online with unread 0", p)
	}

	if _, err := d.Publish(ctx, 0, &models.PublishRequest{
		Title:       "Ping",
		Content:     "ping",
		TargetType:  int(models.TargetUsers),
		TargetUsers: []int64{users["alice"].ID},
	}); err != nil {
		t.Fatal(err)
	}
	layer.waitSends(t, 1)

	frame, err = d.AdmissionNotice(ctx, users["alice"].ID)
	if err != nil {
		t.Fatalf("AdmissionNotice failed: %v", err)
	}
	if err := json.Unmarshal(frame, &p); err != nil {
		t.Fatal(err)
	}
	if p.Unread != 1 || p.Content != "You have 1 unread messages" {
		t.Errorf("notice = %+v, want unread reminder with count 1", p)
	}
}
