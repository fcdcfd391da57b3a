// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAdmission(t *testing.T) {
	before := testutil.ToFloat64(WSAdmissionsTotal.WithLabelValues("accepted"))
	RecordAdmission("accepted")
	after := testutil.ToFloat64(WSAdmissionsTotal.WithLabelValues("accepted"))
	if after != before+1 {
		t.Errorf("accepted admissions = %v, want %v", after, before+1)
	}
}

func TestRecordDispatch(t *testing.T) {
	beforeMsgs := testutil.ToFloat64(DispatchMessagesTotal.WithLabelValues("all"))
	beforeRcpts := testutil.ToFloat64(DispatchRecipientsTotal)

	RecordDispatch("all", 7, 25*time.Millisecond)

	if got := testutil.ToFloat64(DispatchMessagesTotal.WithLabelValues("all")); got != beforeMsgs+1 {
		t.Errorf("dispatch messages = %v, want %v", got, beforeMsgs+1)
	}
	if got := testutil.ToFloat64(DispatchRecipientsTotal); got != beforeRcpts+7 {
		t.Errorf("dispatch recipients = %v, want %v", got, beforeRcpts+7)
	}
}

func TestRecordChannelPublish(t *testing.T) {
	beforeOK := testutil.ToFloat64(ChannelPublishTotal.WithLabelValues("local", "ok"))
	beforeErr := testutil.ToFloat64(ChannelPublishTotal.WithLabelValues("nats", "error"))

	RecordChannelPublish("local", nil)
	RecordChannelPublish("nats", errors.New("timeout"))

	if got := testutil.ToFloat64(ChannelPublishTotal.WithLabelValues("local", "ok")); got != beforeOK+1 {
		t.Errorf("local ok publishes = %v, want %v", got, beforeOK+1)
	}
	if got := testutil.ToFloat64(ChannelPublishTotal.WithLabelValues("nats", "error")); got != beforeErr+1 {
		t.Errorf("nats error publishes = %v, want %v", got, beforeErr+1)
	}
}

func TestRecordDBQuery(t *testing.T) {
	beforeErrs := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert_message"))

	RecordDBQuery("insert_message", 5*time.Millisecond, nil)
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert_message")); got != beforeErrs {
		t.Errorf("error count changed on success: %v -> %v", beforeErrs, got)
	}

	RecordDBQuery("insert_message", 5*time.Millisecond, errors.New("constraint"))
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert_message")); got != beforeErrs+1 {
		t.Errorf("error count = %v, want %v", got, beforeErrs+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	after := testutil.ToFloat64(APIActiveRequests)
	if after != before+1 {
		t.Errorf("active requests = %v, want %v", after, before+1)
	}
}
