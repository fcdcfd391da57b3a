// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package dispatch implements the notification dispatcher: it persists a
// message, resolves its recipient set, links each recipient, and publishes
// one push per recipient group through the channel layer.
//
// Persistence is synchronous relative to the caller; push fan-out is
// best-effort and fire-and-forget. A failure while linking recipients leaves
// the already-persisted message with no recipients. That asymmetry is an
// intentional, observable property of the publish path, not a rollback bug.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/models"
)

// ErrValidationFailed is returned when a publish request or its recipient
// batch is rejected. Inspect the wrapping text to tell the stages apart: a
// message-stage failure writes nothing, a recipient-stage failure follows a
// successful message insert.
var ErrValidationFailed = errors.New("validation failed")

// Store is the persistence surface the dispatcher needs. *database.DB
// satisfies it.
type Store interface {
	InsertMessage(ctx context.Context, msg *models.Message) error
	BulkInsertRecipients(ctx context.Context, messageID int64, userIDs []int64) error
	RecipientIDs(ctx context.Context, messageID int64) ([]int64, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ResolveExplicit(ctx context.Context, userIDs []int64) ([]int64, error)
	ResolveByRoles(ctx context.Context, roleIDs []int64) ([]int64, error)
	ResolveByDepartments(ctx context.Context, deptIDs []int64) ([]int64, error)
	AllActiveUserIDs(ctx context.Context) ([]int64, error)
}

// Layer is the slice of the channel layer the dispatcher publishes through.
type Layer interface {
	GroupSend(ctx context.Context, group string, payload []byte) error
}

// Dispatcher persists and fans out notifications.
type Dispatcher struct {
	store    Store
	layer    Layer
	validate *validator.Validate
	limiter  *rate.Limiter
}

// NewDispatcher creates a dispatcher. A zero FanoutRate disables rate
// limiting of the push loop.
func NewDispatcher(store Store, layer Layer, cfg *config.DispatchConfig) *Dispatcher {
	var limiter *rate.Limiter
	if cfg != nil && cfg.FanoutRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.FanoutRate), cfg.FanoutBurst)
	}
	return &Dispatcher{
		store:    store,
		layer:    layer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  limiter,
	}
}

// Publish persists a message, links its resolved recipients, and pushes it
// to each recipient's group. senderID 0 attributes the message to the
// system. Fan-out runs in the background; the returned result reflects what
// was persisted, not what was delivered.
func (d *Dispatcher) Publish(ctx context.Context, senderID int64, req *models.PublishRequest) (*models.PublishResult, error) {
	start := time.Now()

	targetType := models.TargetType(req.TargetType)
	if err := d.validate.Struct(req); err != nil || !targetType.Valid() {
		metrics.RecordDispatchError("validate")
		logging.Warn().Err(err).Int("target_type", req.TargetType).Msg("publish request rejected")
		return nil, fmt.Errorf("publish request: %w", ErrValidationFailed)
	}

	msg := &models.Message{
		Title:      req.Title,
		Content:    req.Content,
		TargetType: targetType,
		CreatorID:  senderID,
	}
	if err := d.store.InsertMessage(ctx, msg); err != nil {
		metrics.RecordDispatchError("persist")
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	recipients, err := d.resolveRecipients(ctx, targetType, req)
	if err != nil {
		metrics.RecordDispatchError("resolve")
		return nil, fmt.Errorf("failed to resolve recipients for message %d: %w", msg.ID, err)
	}

	if err := d.store.BulkInsertRecipients(ctx, msg.ID, recipients); err != nil {
		// The message row already exists. Callers see an empty-delivery
		// outcome, not a rollback.
		metrics.RecordDispatchError("link")
		logging.Error().Err(err).
			Int64("message_id", msg.ID).
			Int("recipients", len(recipients)).
			Msg("recipient batch failed, message is orphaned")
		return &models.PublishResult{MessageID: msg.ID},
			fmt.Errorf("recipient batch for message %d: %w", msg.ID, ErrValidationFailed)
	}

	metrics.RecordDispatch(targetType.String(), len(recipients), time.Since(start))
	logging.Info().
		Int64("message_id", msg.ID).
		Str("target_type", targetType.String()).
		Int("recipients", len(recipients)).
		Msg("message published")

	go d.fanOut(context.WithoutCancel(ctx), msg, d.senderName(ctx, senderID), recipients)

	return &models.PublishResult{MessageID: msg.ID, Recipients: len(recipients)}, nil
}

// HandleReceive re-delivers a stored message to its recipient list. It is
// wired as the session receive handler: an inbound {message_id} frame from
// any connected client triggers it.
func (d *Dispatcher) HandleReceive(ctx context.Context, userID, messageID int64) {
	msg, err := d.store.GetMessage(ctx, messageID)
	if err != nil {
		logging.Warn().Err(err).
			Int64("user_id", userID).
			Int64("message_id", messageID).
			Msg("re-broadcast request for unknown message")
		return
	}

	recipients, err := d.store.RecipientIDs(ctx, messageID)
	if err != nil {
		metrics.RecordDispatchError("resolve")
		logging.Error().Err(err).Int64("message_id", messageID).Msg("failed to load recipient list")
		return
	}

	logging.Debug().
		Int64("user_id", userID).
		Int64("message_id", messageID).
		Int("recipients", len(recipients)).
		Msg("re-broadcasting message")

	d.fanOut(ctx, msg, d.senderName(ctx, msg.CreatorID), recipients)
}

// AdmissionNotice builds the system frame a session receives immediately
// after joining its group: "online" when the inbox is clean, otherwise an
// unread reminder carrying the count.
func (d *Dispatcher) AdmissionNotice(ctx context.Context, userID int64) ([]byte, error) {
	unread, err := d.store.UnreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages for user %d: %w", userID, err)
	}

	content := "online"
	if unread > 0 {
		content = fmt.Sprintf("You have %d unread messages", unread)
	}
	return json.Marshal(&models.PushPayload{
		Sender:      models.SystemSender,
		ContentType: models.ContentTypeSystem,
		Content:     content,
		Unread:      unread,
	})
}

// resolveRecipients maps a target type onto the matching store query. Every
// path returns only active users, already deduplicated and sorted.
func (d *Dispatcher) resolveRecipients(ctx context.Context, targetType models.TargetType, req *models.PublishRequest) ([]int64, error) {
	switch targetType {
	case models.TargetUsers:
		return d.store.ResolveExplicit(ctx, req.TargetUsers)
	case models.TargetRoles:
		return d.store.ResolveByRoles(ctx, req.TargetRoles)
	case models.TargetDepartments:
		return d.store.ResolveByDepartments(ctx, req.TargetDepartments)
	case models.TargetAll:
		return d.store.AllActiveUserIDs(ctx)
	default:
		return nil, fmt.Errorf("unknown target type %d", targetType)
	}
}

// fanOut pushes one frame per recipient. The unread count is recomputed per
// recipient at send time because concurrent dispatches may be adding links
// for the same users. Send failures are logged and skipped; delivery is
// at-most-once per push per session.
func (d *Dispatcher) fanOut(ctx context.Context, msg *models.Message, sender string, recipients []int64) {
	for _, userID := range recipients {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				logging.Warn().Err(err).Int64("message_id", msg.ID).Msg("fan-out canceled")
				return
			}
		}

		unread, err := d.store.UnreadCount(ctx, userID)
		if err != nil {
			metrics.RecordDispatchError("send")
			logging.Error().Err(err).
				Int64("message_id", msg.ID).
				Int64("user_id", userID).
				Msg("failed to count unread messages, skipping push")
			continue
		}

		payload, err := json.Marshal(&models.PushPayload{
			Sender:      sender,
			ContentType: models.ContentTypeInfo,
			Title:       msg.Title,
			Content:     msg.Content,
			MessageID:   msg.ID,
			Unread:      unread,
		})
		if err != nil {
			metrics.RecordDispatchError("send")
			logging.Error().Err(err).Int64("message_id", msg.ID).Msg("failed to encode push payload")
			continue
		}

		if err := d.layer.GroupSend(ctx, models.GroupName(userID), payload); err != nil {
			metrics.RecordDispatchError("send")
			logging.Warn().Err(err).
				Int64("message_id", msg.ID).
				Int64("user_id", userID).
				Msg("push failed")
		}
	}
}

// senderName resolves the display name attached to pushed frames. Unknown
// or system senders fall back to the system identity.
func (d *Dispatcher) senderName(ctx context.Context, senderID int64) string {
	if senderID <= 0 {
		return models.SystemSender
	}
	user, err := d.store.GetUserByID(ctx, senderID)
	if err != nil {
		logging.Debug().Err(err).Int64("sender_id", senderID).Msg("sender lookup failed")
		return models.SystemSender
	}
	return user.Username
}
