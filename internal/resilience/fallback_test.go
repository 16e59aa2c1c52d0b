package resilience

import (
	"errors"
	"testing"
	"time"
)

type fakeBackend struct {
	name  string
	fail  bool
	calls int
}

func (f *fakeBackend) do() error {
	f.calls++
	if f.fail {
		return errBackend
	}
	return nil
}

func TestFallbackGroup_PrimarySucceeds(t *testing.T) {
	primary := &fakeBackend{name: "primary"}
	backup := &fakeBackend{name: "backup"}

	fg := NewFallbackGroup(primary, "primary", BreakerConfig{})
	fg.AddFallback("backup", backup)

	if err := fg.Execute(func(b *fakeBackend) error { return b.do() }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if primary.calls != 1 || backup.calls != 0 {
		t.Errorf("calls = %d/%d, want primary only", primary.calls, backup.calls)
	}
}

func TestFallbackGroup_FailsOverToBackup(t *testing.T) {
	primary := &fakeBackend{name: "primary", fail: true}
	backup := &fakeBackend{name: "backup"}

	fg := NewFallbackGroup(primary, "primary", BreakerConfig{})
	fg.AddFallback("backup", backup)

	if err := fg.Execute(func(b *fakeBackend) error { return b.do() }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if backup.calls != 1 {
		t.Errorf("backup.calls = %d, want 1", backup.calls)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := NewFallbackGroup(&fakeBackend{fail: true}, "primary", BreakerConfig{})
	fg.AddFallback("backup", &fakeBackend{fail: true})

	err := fg.Execute(func(b *fakeBackend) error { return b.do() })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &fakeBackend{name: "primary", fail: true}
	backup := &fakeBackend{name: "backup"}

	fg := NewFallbackGroup(primary, "primary", BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	fg.AddFallback("backup", backup)

	for i := 0; i < 3; i++ {
		if err := fg.Execute(func(b *fakeBackend) error { return b.do() }); err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
	}
	// Primary tripped after 2 failures; the third round must not touch it.
	if primary.calls != 2 {
		t.Errorf("primary.calls = %d, want 2 (breaker open)", primary.calls)
	}
	if backup.calls != 3 {
		t.Errorf("backup.calls = %d, want 3", backup.calls)
	}
}

func TestExecuteWithResult(t *testing.T) {
	primary := &fakeBackend{name: "primary", fail: true}
	fg := NewFallbackGroup(primary, "primary", BreakerConfig{})
	fg.AddFallback("backup", &fakeBackend{name: "backup"})

	got, err := ExecuteWithResult(fg, func(b *fakeBackend) (string, error) {
		if err := b.do(); err != nil {
			return "", err
		}
		return b.name, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "backup" {
		t.Errorf("result = %q, want %q", got, "backup")
	}
}

func TestInit_SubstitutesStubOnFailure(t *testing.T) {
	stub := &fakeBackend{name: "stub"}

	got, degraded := Init("stt", func() (*fakeBackend, error) {
		return nil, errBackend
	}, stub)
	if !degraded {
		t.Fatal("degraded = false, want true after failed build")
	}
	if got != stub {
		t.Error("expected the stub instance")
	}

	real := &fakeBackend{name: "real"}
	got, degraded = Init("stt", func() (*fakeBackend, error) {
		return real, nil
	}, stub)
	if degraded {
		t.Fatal("degraded = true, want false for successful build")
	}
	if got != real {
		t.Error("expected the built instance")
	}
}
