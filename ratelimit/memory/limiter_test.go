package memorylimiter

import (
	"testing"
	"time"
)

func TestAllowNamedDeniesOverLimit(t *testing.T) {
	l := New(map[string]Limit{
		"checkout_create": {Limit: 2, Window: time.Minute},
	})

	for i := 0; i < 2; i++ {
		ok, err := l.AllowNamed("checkout_create", "acct-1")
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := l.AllowNamed("checkout_create", "acct-1")
	if err != nil || ok {
		t.Fatalf("over-limit request allowed: ok=%v err=%v", ok, err)
	}

	// Other keys are independent.
	if ok, _ := l.AllowNamed("checkout_create", "acct-2"); !ok {
		t.Error("unrelated key denied")
	}
}

func TestAllowNamedFallsBackToDefault(t *testing.T) {
	l := New(map[string]Limit{
		"default": {Limit: 1, Window: time.Minute},
	})

	if ok, _ := l.AllowNamed("unconfigured", "k"); !ok {
		t.Fatal("first request denied")
	}
	if ok, _ := l.AllowNamed("unconfigured", "k"); ok {
		t.Fatal("default limit not applied")
	}
}

func TestAllowNamedWindowReset(t *testing.T) {
	l := New(map[string]Limit{
		"b": {Limit: 1, Window: 20 * time.Millisecond},
	})

	if ok, _ := l.AllowNamed("b", "k"); !ok {
		t.Fatal("first request denied")
	}
	if ok, _ := l.AllowNamed("b", "k"); ok {
		t.Fatal("second request in window allowed")
	}
	time.Sleep(25 * time.Millisecond)
	if ok, _ := l.AllowNamed("b", "k"); !ok {
		t.Fatal("request after window reset denied")
	}
}

func TestAllowNamedRequiresBucketAndKey(t *testing.T) {
	l := New(nil)
	if ok, err := l.AllowNamed("", "k"); err == nil || ok {
		t.Error("empty bucket accepted")
	}
	if ok, err := l.AllowNamed("b", ""); err == nil || ok {
		t.Error("empty key accepted")
	}
}
