package bitrev

import "testing"

func TestByteInvolutive(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		if got := Byte(Byte(b)); got != b {
			t.Fatalf("reverse(reverse(0x%02x)) = 0x%02x, want 0x%02x", b, got, b)
		}
	}
}

func TestByteKnownValues(t *testing.T) {
	cases := map[byte]byte{
		0x00: 0x00,
		0xFF: 0xFF,
		0x01: 0x80,
		0x80: 0x01,
		0xAA: 0x55, // 10101010 -> 01010101
		0x55: 0xAA,
		0x0F: 0xF0,
	}
	for in, want := range cases {
		if got := Byte(in); got != want {
			t.Errorf("Byte(0x%02x) = 0x%02x, want 0x%02x", in, got, want)
		}
	}
}

func TestBytesInPlace(t *testing.T) {
	buf := []byte{0x01, 0x80, 0xAA}
	Bytes(buf)
	want := []byte{0x80, 0x01, 0x55}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("buf[%d] = 0x%02x, want 0x%02x", i, buf[i], want[i])
		}
	}
}

func TestReversedLeavesInputUntouched(t *testing.T) {
	in := []byte{0x01, 0x02, 0x03}
	orig := append([]byte(nil), in...)
	out := Reversed(in)
	for i := range in {
		if in[i] != orig[i] {
			t.Fatalf("Reversed mutated its input at index %d", i)
		}
	}
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
}
