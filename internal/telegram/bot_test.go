package telegram

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

func TestNewAPIClientBoundsRequests(t *testing.T) {
	if c := newAPIClient(0); c.Timeout != defaultRequestTimeout {
		t.Errorf("zero config timeout = %v, want default %v", c.Timeout, defaultRequestTimeout)
	}
	if c := newAPIClient(3 * time.Second); c.Timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", c.Timeout)
	}
}

func TestDeletedAlready(t *testing.T) {
	gone := &tgbotapi.Error{Code: 400, Message: "Bad Request: message to delete not found"}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"message already gone", gone, true},
		{"wrapped api error", errors.Wrap(gone, "request failed"), true},
		{"other bad request", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, false},
		{"unauthorized", &tgbotapi.Error{Code: 401, Message: "Unauthorized"}, false},
		{"transport error", errors.New("connection reset by peer"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deletedAlready(tc.err); got != tc.want {
				t.Errorf("deletedAlready(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
