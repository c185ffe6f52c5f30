package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/nanopets/giftbot/internal/domain/gifts"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: gifts.ErrNotFound},
		{name: "already translated", err: gifts.ErrNotFound, want: gifts.ErrNotFound},
		{name: "other", err: errors.New("broken pipe"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate("op", tt.err)
			if got == nil {
				t.Fatal("translate() = nil")
			}
			if tt.want != nil && !errors.Is(got, tt.want) {
				t.Errorf("translate() = %v, want wrapping %v", got, tt.want)
			}
			if tt.want == nil && (errors.Is(got, gifts.ErrNotFound) || errors.Is(got, gifts.ErrConflict)) {
				t.Errorf("translate() = %v, want unclassified", got)
			}
		})
	}

	if translate("op", nil) != nil {
		t.Error("translate(nil) should be nil")
	}
}
