package cloner

import (
	"testing"

	"github.com/telemgr/telemgr/internal/config"
)

func TestTransform(t *testing.T) {
	tests := []struct {
		name string
		text string
		cfg  config.Config
		want string
	}{
		{
			name: "case insensitive substring replace",
			text: "Hello world, hello again",
			cfg: config.Config{
				FilterWords: true,
				Filters:     []config.Filter{{From: "hello", To: "hi"}},
			},
			want: "hi world, hi again",
		},
		{
			name: "replacement inserted verbatim",
			text: "say HELLO",
			cfg: config.Config{
				FilterWords: true,
				Filters:     []config.Filter{{From: "hello", To: "Goodbye"}},
			},
			want: "say Goodbye",
		},
		{
			name: "filters applied in list order",
			text: "aaa",
			cfg: config.Config{
				FilterWords: true,
				Filters: []config.Filter{
					{From: "aaa", To: "bbb"},
					{From: "bbb", To: "ccc"},
				},
			},
			want: "ccc",
		},
		{
			name: "metacharacters treated literally",
			text: "price is $5.00 (sale)",
			cfg: config.Config{
				FilterWords: true,
				Filters:     []config.Filter{{From: "$5.00 (sale)", To: "$6.00"}},
			},
			want: "price is $6.00",
		},
		{
			name: "filters disabled",
			text: "hello",
			cfg: config.Config{
				FilterWords: false,
				Filters:     []config.Filter{{From: "hello", To: "hi"}},
			},
			want: "hello",
		},
		{
			name: "signature appended",
			text: "Hello world",
			cfg: config.Config{
				FilterWords:  true,
				Filters:      []config.Filter{{From: "hello", To: "hi"}},
				AddSignature: true,
				Signature:    "—bot",
			},
			want: "hi world\n\n—bot",
		},
		{
			name: "no signature on empty text",
			text: "",
			cfg: config.Config{
				AddSignature: true,
				Signature:    "—bot",
			},
			want: "",
		},
		{
			name: "no signature when text filtered to empty",
			text: "hello",
			cfg: config.Config{
				FilterWords:  true,
				Filters:      []config.Filter{{From: "hello", To: ""}},
				AddSignature: true,
				Signature:    "—bot",
			},
			want: "",
		},
		{
			name: "empty signature never appended",
			text: "hello",
			cfg: config.Config{
				AddSignature: true,
				Signature:    "",
			},
			want: "hello",
		},
		{
			name: "signature disabled",
			text: "hello",
			cfg: config.Config{
				Signature: "—bot",
			},
			want: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transform(tt.text, tt.cfg); got != tt.want {
				t.Errorf("Transform(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestTransformIdempotence(t *testing.T) {
	// Without chained filters a second application changes nothing.
	cfg := config.Config{
		FilterWords: true,
		Filters:     []config.Filter{{From: "foo", To: "bar"}},
	}
	once := Transform("foo fighters", cfg)
	if twice := Transform(once, cfg); twice != once {
		t.Errorf("second application changed text: %q -> %q", once, twice)
	}

	// A filter whose output feeds another filter's input is not
	// idempotent; this is inherent to list-order application.
	chained := config.Config{
		FilterWords: true,
		Filters: []config.Filter{
			{From: "bar", To: "baz"},
			{From: "foo", To: "bar"},
		},
	}
	once = Transform("foo", chained)
	if twice := Transform(once, chained); twice == once {
		t.Errorf("chained filters unexpectedly idempotent: %q", once)
	}
}
