package eventbus

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/plm-sdk/pkg/logging"
)

type orderCreated struct {
	title string
}

type orderDeleted struct{}

func TestPublisher_Publish_NoMatch(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)

	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *orderCreated) {
		t.Error("should not be called")
	})
	publisher.Publish(&orderDeleted{})

	if output := logBuffer.String(); !strings.Contains(output, "no matching subscribers") {
		t.Errorf("should have logged a no-subscriber warning, got: %q", output)
	}
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	var got string
	publisher.Subscribe(func(e *orderCreated) {
		got = e.title
	})
	publisher.Publish(&orderCreated{title: "Revise bracket tolerance"})
	if got != "Revise bracket tolerance" {
		t.Errorf("expected handler to receive event, got: %q", got)
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	handler := func(e *orderCreated) {
		t.Error("should not be called after unsubscribe")
	}
	publisher.Subscribe(handler)
	publisher.Unsubscribe(handler)
	if publisher.SubscribersCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
}

func TestPublisher_PublishE_HandlerError(t *testing.T) {
	bus := NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel)).(*publisherImpl)
	wantErr := errors.New("delivery failed")
	bus.Subscribe(func(e *orderCreated) error {
		return wantErr
	})
	err := bus.PublishE(&orderCreated{})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected handler error, got: %v", err)
	}
}

func TestPublisher_PublishE_NoSubscribers(t *testing.T) {
	bus := NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel)).(*publisherImpl)
	if err := bus.PublishE(&orderCreated{}); !errors.Is(err, ErrNoSubscribers) {
		t.Errorf("expected ErrNoSubscribers, got: %v", err)
	}
}

func TestMatchSignature(t *testing.T) {
	if !MatchSignature(func(e *orderCreated) {}, []interface{}{&orderCreated{}}) {
		t.Error("expected true for exact match")
	}
	if MatchSignature(func(e *orderCreated) {}, []interface{}{&orderDeleted{}}) {
		t.Error("expected false for mismatched type")
	}
	if MatchSignature(func(e *orderCreated) {}, []interface{}{}) {
		t.Error("expected false for missing args")
	}
	if MatchSignature(func(e *orderCreated) {}, []interface{}{&orderCreated{}, &orderCreated{}}) {
		t.Error("expected false for extra args")
	}
}
