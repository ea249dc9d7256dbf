package ble

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScanReportsWaitsForName(t *testing.T) {
	reports := newScanReports()

	if reports.first("AA:BB", "") {
		t.Error("report without a name should not count as an addition")
	}
	if !reports.first("AA:BB", "MODI Network A") {
		t.Error("first named report should count as an addition")
	}
	if reports.first("AA:BB", "MODI Network A") {
		t.Error("repeated report should not be added again")
	}
	if reports.first("AA:BB", "") {
		t.Error("nameless update of a known peripheral should not be added")
	}
	if !reports.first("CC:DD", "MODI Network B") {
		t.Error("a different peripheral should be added")
	}
}

func TestAwaitConnectReturnsResult(t *testing.T) {
	got, err := awaitConnect(context.Background(),
		func() (int, error) { return 7, nil },
		func(int) { t.Error("abandon called for an owned connection") },
	)
	if err != nil || got != 7 {
		t.Errorf("awaitConnect() = %d, %v, want 7, nil", got, err)
	}

	_, err = awaitConnect(context.Background(),
		func() (int, error) { return 0, errMock },
		func(int) { t.Error("abandon called for a failed connection") },
	)
	if !errors.Is(err, errMock) {
		t.Errorf("awaitConnect() error = %v, want errMock", err)
	}
}

func TestAwaitConnectAbandonsLateConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	abandoned := make(chan int, 1)

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := awaitConnect(ctx,
		func() (int, error) {
			<-release
			return 42, nil
		},
		func(v int) { abandoned <- v },
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("awaitConnect() error = %v, want context.Canceled", err)
	}

	close(release)
	select {
	case v := <-abandoned:
		if v != 42 {
			t.Errorf("abandoned %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("late connection was not abandoned")
	}
}

func TestAwaitConnectLateFailureNotAbandoned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release := make(chan struct{})
	finished := make(chan struct{})

	_, err := awaitConnect(ctx,
		func() (int, error) {
			defer close(finished)
			<-release
			return 0, errMock
		},
		func(int) { t.Error("abandon called for a failed connection") },
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("awaitConnect() error = %v, want context.Canceled", err)
	}
	close(release)
	<-finished
	// Give the drain goroutine a chance to run.
	time.Sleep(5 * time.Millisecond)
}
