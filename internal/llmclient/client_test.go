package llmclient

import (
	"testing"

	"github.com/n4ar/sabi/internal/domain/entity"
)

func conv(messages ...entity.Message) []entity.Message { return messages }

func TestWindowKeepsAtMostOneSystemMessage(t *testing.T) {
	c := conv(
		entity.NewMessage(entity.RoleSystem, "preamble one"),
		entity.NewMessage(entity.RoleUser, "hi"),
		entity.NewMessage(entity.RoleSystem, "preamble two"),
	)
	windowed := Window(c, 10)
	systemCount := 0
	for _, m := range windowed {
		if m.IsSystem() {
			systemCount++
			if m.Content() != "preamble one" {
				t.Errorf("expected the first System message to win, got %q", m.Content())
			}
		}
	}
	if systemCount != 1 {
		t.Fatalf("expected exactly 1 system message, got %d", systemCount)
	}
}

func TestWindowTruncatesToMaxHistory(t *testing.T) {
	var c []entity.Message
	c = append(c, entity.NewMessage(entity.RoleSystem, "sys"))
	for i := 0; i < 10; i++ {
		c = append(c, entity.NewMessage(entity.RoleUser, "msg"))
	}
	windowed := Window(c, 3)
	nonSystem := 0
	for _, m := range windowed {
		if !m.IsSystem() {
			nonSystem++
		}
	}
	if nonSystem != 3 {
		t.Fatalf("expected 3 non-system messages, got %d", nonSystem)
	}
}

func TestWindowZeroMaxHistoryDisablesTruncation(t *testing.T) {
	c := conv(
		entity.NewMessage(entity.RoleUser, "a"),
		entity.NewMessage(entity.RoleModel, "b"),
		entity.NewMessage(entity.RoleUser, "c"),
	)
	windowed := Window(c, 0)
	if len(windowed) != 3 {
		t.Fatalf("expected all 3 messages kept, got %d", len(windowed))
	}
}

func TestWindowPreservesOrder(t *testing.T) {
	c := conv(
		entity.NewMessage(entity.RoleSystem, "sys"),
		entity.NewMessage(entity.RoleUser, "1"),
		entity.NewMessage(entity.RoleModel, "2"),
		entity.NewMessage(entity.RoleUser, "3"),
	)
	windowed := Window(c, 10)
	want := []string{"sys", "1", "2", "3"}
	if len(windowed) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(windowed))
	}
	for i, m := range windowed {
		if m.Content() != want[i] {
			t.Errorf("position %d: got %q, want %q", i, m.Content(), want[i])
		}
	}
}

func TestRoleMapping(t *testing.T) {
	if got := Role(entity.RoleUser, "assistant"); got != "user" {
		t.Errorf("User -> %q, want user", got)
	}
	if got := Role(entity.RoleModel, "assistant"); got != "assistant" {
		t.Errorf("Model -> %q, want assistant", got)
	}
	if got := Role(entity.RoleModel, "model"); got != "model" {
		t.Errorf("Model -> %q, want model", got)
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{NewMissingAPIKeyError(), "missing API key"},
		{NewRateLimitedError(), "rate limited"},
		{NewAPIError(500, "internal error"), "api error 500: internal error"},
		{NewEmptyResponseError(), "empty response from model"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("Error() = %q, want %q", got, c.want)
		}
	}
}
