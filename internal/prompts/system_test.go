package prompts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hearthd/hearth/internal/aliases"
	"github.com/hearthd/hearth/internal/entities"
	"github.com/hearthd/hearth/internal/homeassistant"
)

type staticSource []homeassistant.State

func (s staticSource) GetStates(ctx context.Context) ([]homeassistant.State, error) {
	return s, nil
}

func TestSystemPromptIncludesSummaries(t *testing.T) {
	cache := entities.NewCache(staticSource{
		{EntityID: "light.a", State: "on"},
		{EntityID: "light.b", State: "off"},
		{EntityID: "lock.front", State: "locked"},
	}, time.Hour, nil)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	known := []aliases.Alias{{Name: "the big lamp", EntityID: "light.a"}}
	prompt := SystemPrompt(cache.Snapshot(), known, time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"light: 2",
		"lock: 1",
		`"the big lamp" is light.a`,
		"Saturday, August 29, 2026",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSystemPromptDegradesWithoutSnapshot(t *testing.T) {
	prompt := SystemPrompt(nil, nil, time.Now())

	if !strings.Contains(prompt, "unavailable") {
		t.Error("prompt should note missing device data")
	}
	if strings.Contains(prompt, "taught you") {
		t.Error("prompt should omit alias section when empty")
	}
}
