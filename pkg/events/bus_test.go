package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe("t", func(p any) { got = append(got, "a:"+p.(string)) })
	bus.Subscribe("t", func(p any) { got = append(got, "b:"+p.(string)) })
	bus.Subscribe("other", func(any) { t.Fatalf("unexpected delivery") })

	bus.Publish("t", "x")
	if diff := cmp.Diff([]string{"a:x", "b:x"}, got); diff != "" {
		t.Fatalf("delivery mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(TopicServerError, func(any) { calls++ })
	bus.PublishServerError(ServerError{Status: 500})
	unsubscribe()
	unsubscribe()
	bus.PublishServerError(ServerError{Status: 500})

	if calls != 1 {
		t.Fatalf("expected one delivery, got %d", calls)
	}
	if bus.Subscribers(TopicServerError) != 0 {
		t.Fatalf("expected no subscribers left")
	}
}
