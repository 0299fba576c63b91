package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"cloudpico-climate/internal/config"
	"cloudpico-climate/internal/modules/measurement/types"
)

func newTestSubscriber(t *testing.T) *Subscriber {
	t.Helper()
	cfg := config.Config{
		MQTTBroker:   "localhost",
		MQTTPort:     1883,
		MQTTClientID: "test",
		MQTTTopic:    "climate/measurements",
	}
	return NewSubscriber(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCall bool
		want     types.Submission
	}{
		{
			name:     "valid submission",
			payload:  `{"humidity": 2.1, "temperature": 3.3, "date": "2021-01-01"}`,
			wantCall: true,
			want:     types.Submission{Humidity: 2.1, Temperature: 3.3, Date: "2021-01-01"},
		},
		{
			name:     "domain validation is left to the handler",
			payload:  `{"humidity": 150, "temperature": 1, "date": "nope"}`,
			wantCall: true,
			want:     types.Submission{Humidity: 150, Temperature: 1, Date: "nope"},
		},
		{name: "not json", payload: `hello`, wantCall: false},
		{name: "wrong field type", payload: `{"humidity": "wet"}`, wantCall: false},
		{name: "only date", payload: `{"date": "2023-01-01"}`, wantCall: false},
		{name: "null humidity", payload: `{"humidity": null, "temperature": 21.5, "date": "2023-01-01"}`, wantCall: false},
		{name: "unknown field", payload: `{"humidity": 1, "temperature": 1, "date": "2021-01-01", "wind": 3}`, wantCall: false},
		{name: "trailing data", payload: `{"humidity": 1, "temperature": 1, "date": "2021-01-01"} {}`, wantCall: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSubscriber(t)
			var got []types.Submission
			s.SetMessageHandler(func(ctx context.Context, sub types.Submission) error {
				if ctx == nil {
					t.Error("handler got nil context")
				}
				got = append(got, sub)
				return nil
			})

			s.handleMessage("climate/measurements", []byte(tt.payload))

			if !tt.wantCall {
				if len(got) != 0 {
					t.Fatalf("handler called with %+v, want no call", got)
				}
				return
			}
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("handler got %+v, want [%+v]", got, tt.want)
			}
		})
	}
}

func TestHandleMessage_HandlerErrorIsContained(t *testing.T) {
	s := newTestSubscriber(t)
	calls := 0
	s.SetMessageHandler(func(context.Context, types.Submission) error {
		calls++
		return errors.New("store down")
	})

	s.handleMessage("climate/measurements", []byte(`{"humidity": 1, "temperature": 1, "date": "2021-01-01"}`))
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestHandleMessage_NoHandler(t *testing.T) {
	s := newTestSubscriber(t)
	s.handleMessage("climate/measurements", []byte(`{"humidity": 1, "temperature": 1, "date": "2021-01-01"}`))
}

func TestDisconnect_Idempotent(t *testing.T) {
	s := newTestSubscriber(t)
	s.Disconnect()
	s.Disconnect()
	if s.IsConnected() {
		t.Error("IsConnected = true after Disconnect")
	}
	if err := s.Connect(context.Background()); err == nil {
		t.Error("Connect after Disconnect succeeded, want error")
	}
}

func TestPublisherPayloadAcceptedBySubscriber(t *testing.T) {
	want := types.Submission{Humidity: 47.5, Temperature: -3.25, Date: "2024-02-29"}
	payload, err := encodeSubmission(want)
	if err != nil {
		t.Fatalf("encodeSubmission: %v", err)
	}

	s := newTestSubscriber(t)
	var got types.Submission
	s.SetMessageHandler(func(_ context.Context, sub types.Submission) error {
		got = sub
		return nil
	})
	s.handleMessage("climate/measurements", payload)

	if got != want {
		t.Errorf("subscriber decoded %+v, want %+v", got, want)
	}
}

func TestPublishSubmission_NotConnected(t *testing.T) {
	p := NewPublisher(config.Config{
		MQTTBroker:   "localhost",
		MQTTPort:     1883,
		MQTTClientID: "test-pub",
		MQTTTopic:    "climate/measurements",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := p.PublishSubmission(types.Submission{Humidity: 1, Date: "2021-01-01"}); err == nil {
		t.Error("PublishSubmission without connection succeeded, want error")
	}
	p.Disconnect()
	if err := p.Connect(context.Background()); err == nil {
		t.Error("Connect after Disconnect succeeded, want error")
	}
}
