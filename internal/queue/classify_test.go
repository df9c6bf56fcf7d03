package queue

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryOther},
		{"econnreset", errors.New("dial tcp: ECONNRESET"), CategoryNetwork},
		{"lowercase timeout", errors.New("request timeout talking to remote"), CategoryNetwork},
		{"mixed case connection", errors.New("Connection refused by host"), CategoryNetwork},
		{"reupload marker", errors.New("remote rejected: REUPLOAD_NEEDED stale node"), CategoryReuploadNeeded},
		{"quota", errors.New("remote rejected: quota exceeded"), CategoryOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}
