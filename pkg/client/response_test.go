package client

import (
	"errors"
	"net/http"
	"testing"
)

func TestResponse_TotalCount(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		set       bool
		want      int
		expectErr bool
		errIs     error
	}{
		{name: "valid", value: "2500", set: true, want: 2500},
		{name: "zero", value: "0", set: true, want: 0},
		{name: "padded", value: " 42 ", set: true, want: 42},
		{name: "missing", set: false, expectErr: true, errIs: ErrMissingHeader},
		{name: "not a number", value: "many", set: true, expectErr: true},
		{name: "negative", value: "-1", set: true, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.set {
				h.Set("x-total-count", tt.value)
			}
			r := &Response{Header: h}

			got, err := r.TotalCount()
			if tt.expectErr {
				if err == nil {
					t.Fatalf("TotalCount() expected error, got %d", got)
				}
				if tt.errIs != nil && !errors.Is(err, tt.errIs) {
					t.Errorf("TotalCount() error = %v, want %v", err, tt.errIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("TotalCount() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("TotalCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResponse_NextPageToken(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		h := http.Header{}
		h.Set("x-next-page-token", "NF0g5JGBlPMs")
		token, ok := (&Response{Header: h}).NextPageToken()
		if !ok || token != "NF0g5JGBlPMs" {
			t.Errorf("NextPageToken() = %q, %v", token, ok)
		}
	})

	t.Run("absent", func(t *testing.T) {
		token, ok := (&Response{Header: http.Header{}}).NextPageToken()
		if ok || token != "" {
			t.Errorf("NextPageToken() = %q, %v; want absent", token, ok)
		}
	})

	t.Run("empty value", func(t *testing.T) {
		h := http.Header{}
		h.Set("x-next-page-token", "")
		if _, ok := (&Response{Header: h}).NextPageToken(); ok {
			t.Error("Empty token should count as absent")
		}
	})
}
