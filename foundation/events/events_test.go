package events_test

import (
	"encoding/json"
	"testing"

	"github.com/ardanlabs/loans/foundation/events"
)

func Test_SendReceive(t *testing.T) {
	evts := events.New()
	defer evts.Shutdown()

	ch1 := evts.Acquire("one")
	ch2 := evts.Acquire("two")

	evts.Send("hello")

	for i, ch := range []chan string{ch1, ch2} {
		if msg := <-ch; msg != "hello" {
			t.Logf("got: %s", msg)
			t.Logf("exp: %s", "hello")
			t.Fatalf("Should receive the message on channel %d.", i)
		}
	}

	if err := evts.Release("one"); err != nil {
		t.Fatalf("Should be able to release a channel: %s", err)
	}

	if _, open := <-ch1; open {
		t.Fatalf("Should have closed the released channel.")
	}

	if err := evts.Release("one"); err == nil {
		t.Fatalf("Should not be able to release a channel twice.")
	}
}

func Test_Toast(t *testing.T) {
	evts := events.New()
	defer evts.Shutdown()

	ch := evts.Acquire("client")

	evts.Toast(events.Toast{
		Status:      events.StatusError,
		Title:       "Failed to send new block notification",
		Description: "Something went wrong",
	})

	var got struct {
		Type  string       `json:"type"`
		Toast events.Toast `json:"toast"`
	}
	if err := json.Unmarshal([]byte(<-ch), &got); err != nil {
		t.Fatalf("Should be able to decode the toast: %s", err)
	}

	if got.Type != "toast" {
		t.Logf("got: %s", got.Type)
		t.Logf("exp: %s", "toast")
		t.Fatalf("Should get back a toast envelope.")
	}

	if got.Toast.Description != "Something went wrong" {
		t.Logf("got: %s", got.Toast.Description)
		t.Fatalf("Should get back the toast description.")
	}
}

func Test_SendDoesNotBlock(t *testing.T) {
	evts := events.New()
	defer evts.Shutdown()

	evts.Acquire("slow")

	// The buffer is 100 messages, anything past that must be dropped.
	for i := 0; i < 500; i++ {
		evts.Send("msg")
	}
}
