package buffer

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNewRingBuffer(t *testing.T) {
	tests := []struct {
		capacity int
		want     int
	}{
		{100, 100},
		{0, 1},
		{-5, 1},
	}

	for _, tt := range tests {
		rb := NewRingBuffer(tt.capacity)
		if rb.Cap() != tt.want {
			t.Errorf("NewRingBuffer(%d): expected capacity %d, got %d", tt.capacity, tt.want, rb.Cap())
		}
		if rb.Len() != 0 {
			t.Errorf("expected length 0, got %d", rb.Len())
		}
	}
}

func TestRingBuffer_Wraparound(t *testing.T) {
	tests := []struct {
		name   string
		cap    int
		writes []string
		want   string
	}{
		{"fits", 10, []string{"hello", "world"}, "helloworld"},
		{"overflow", 10, []string{"0123456789", "abc"}, "3456789abc"},
		{"larger than capacity", 5, []string{"0123456789"}, "56789"},
		{"wraps twice", 4, []string{"ab", "cd", "ef", "g"}, "defg"},
		{"empty write", 10, []string{"hello", ""}, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(tt.cap)
			for _, w := range tt.writes {
				n, err := rb.Write([]byte(w))
				if err != nil || n != len(w) {
					t.Fatalf("Write(%q) = %d, %v", w, n, err)
				}
			}
			if got := rb.ReadAll(); string(got) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if rb.Len() != len(tt.want) {
				t.Errorf("expected length %d, got %d", len(tt.want), rb.Len())
			}
		})
	}
}

func TestRingBuffer_ReadAllCopies(t *testing.T) {
	rb := NewRingBuffer(10)
	if rb.ReadAll() != nil {
		t.Error("expected nil for empty buffer")
	}

	rb.Write([]byte("test"))
	data := rb.ReadAll()
	data[0] = 'X'
	if got := rb.ReadAll(); !bytes.Equal(got, []byte("test")) {
		t.Errorf("ReadAll should return a copy, got %q", got)
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte("hello"))
	rb.Clear()

	if rb.Len() != 0 || rb.ReadAll() != nil {
		t.Errorf("expected empty buffer after clear, got %q", rb.ReadAll())
	}
	if rb.Written() != 5 {
		t.Errorf("expected written counter to survive clear, got %d", rb.Written())
	}

	rb.Write([]byte("xyz"))
	if got := rb.ReadAll(); string(got) != "xyz" {
		t.Errorf("expected 'xyz', got %q", got)
	}
}

// The buffer always holds the last Cap() bytes of everything written.
func TestRingBuffer_SuffixProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("contents equal the tail of the concatenated writes", prop.ForAll(
		func(capacity int, writes []string) bool {
			rb := NewRingBuffer(capacity)
			var all []byte
			for _, w := range writes {
				rb.Write([]byte(w))
				all = append(all, w...)
			}
			want := all
			if len(want) > capacity {
				want = want[len(want)-capacity:]
			}
			return bytes.Equal(rb.ReadAll(), want) && rb.Written() == int64(len(all))
		},
		gen.IntRange(1, 32),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
