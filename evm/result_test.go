package evm

import "testing"

func TestStatusCodeFromInt(t *testing.T) {
	cases := []struct {
		code int
		want StatusCode
	}{
		{0, StatusSuccess},
		{2, StatusRevert},
		{10, StatusCallDepthExceeded},
		{16, StatusWasmTrap},
		{-1, StatusInternalError},
		{-3, StatusOutOfMemory},
	}
	for _, c := range cases {
		got, err := StatusCodeFromInt(c.code)
		if err != nil {
			t.Fatalf("StatusCodeFromInt(%d): %v", c.code, err)
		}
		if got != c.want {
			t.Fatalf("StatusCodeFromInt(%d) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestStatusCodeFromIntRejectsUnknown(t *testing.T) {
	for _, code := range []int{17, 99, -4, 1000} {
		if _, err := StatusCodeFromInt(code); err == nil {
			t.Fatalf("StatusCodeFromInt(%d): expected error", code)
		}
	}
}

func TestStatusCodeValid(t *testing.T) {
	if !StatusRejected.Valid() {
		t.Fatal("StatusRejected should be valid")
	}
	if StatusCode(42).Valid() {
		t.Fatal("status 42 should not be valid")
	}
}

func TestStatusCodeString(t *testing.T) {
	if got := StatusOutOfGas.String(); got != "out_of_gas" {
		t.Fatalf("String() = %q", got)
	}
	if got := StatusCode(42).String(); got != "status(42)" {
		t.Fatalf("String() = %q", got)
	}
}
