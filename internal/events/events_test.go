package events

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
)

func TestPublisher_SendsJSONKeyedByExport(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, NewConfig())
	mp.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev ExportCompleted
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.ExportID != "exp-1" || ev.Items != 2 || ev.SHA256 != "abc" {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		return nil
	})

	p := NewWithProducer(nil, mp, "", 4)
	p.Publish(ExportCompleted{
		ExportID:   "exp-1",
		Collection: "op-test",
		Items:      2,
		Archive:    "/tmp/x.zip",
		SHA256:     "abc",
		At:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublisher_ProducerErrorsDoNotBlock(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, NewConfig())
	mp.ExpectInputAndFail(fmt.Errorf("broker down"))
	mp.ExpectInputAndSucceed()

	p := NewWithProducer(nil, mp, DefaultTopic, 4)
	p.Publish(ExportCompleted{ExportID: "a"})
	p.Publish(ExportCompleted{ExportID: "b"})

	done := make(chan error, 1)
	go func() { done <- p.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Close blocked")
	}
}
