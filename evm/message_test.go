package evm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestMessageFlags(t *testing.T) {
	m := &Message{}
	if m.IsStatic() {
		t.Fatal("zero message should not be static")
	}
	m.Flags |= StaticFlag
	if !m.IsStatic() {
		t.Fatal("static flag not reported")
	}
}

func TestMessageIsCreate(t *testing.T) {
	for _, kind := range []CallKind{Call, DelegateCall, CallCode} {
		if (&Message{Kind: kind}).IsCreate() {
			t.Fatalf("%v reported as create", kind)
		}
	}
	for _, kind := range []CallKind{Create, Create2} {
		if !(&Message{Kind: kind}).IsCreate() {
			t.Fatalf("%v not reported as create", kind)
		}
	}
}

func TestMessageValueOrZero(t *testing.T) {
	m := &Message{}
	if v := m.ValueOrZero(); !v.IsZero() {
		t.Fatalf("nil value should read as zero, got %v", v)
	}
	m.Value = uint256.NewInt(7)
	if v := m.ValueOrZero(); v.Uint64() != 7 {
		t.Fatalf("value = %v, want 7", v)
	}
}

func TestCallKindString(t *testing.T) {
	names := map[CallKind]string{
		Call:         "call",
		DelegateCall: "delegatecall",
		CallCode:     "callcode",
		Create:       "create",
		Create2:      "create2",
		CallKind(9):  "unknown",
	}
	for kind, want := range names {
		if got := kind.String(); got != want {
			t.Fatalf("CallKind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
