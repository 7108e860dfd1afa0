package otp

import (
	"strconv"
	"testing"
)

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := GenerateCode()
		if len(code) != 4 {
			t.Fatalf("code %q is not 4 digits", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("code %q not numeric: %v", code, err)
		}
		if n < 1000 || n > 9999 {
			t.Fatalf("code %d out of range", n)
		}
	}
}

func TestKey(t *testing.T) {
	if got := key("stu-1"); got != "campustrack:otp:stu-1" {
		t.Fatalf("got %q", got)
	}
}
