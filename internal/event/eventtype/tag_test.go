package eventtype

import "testing"

func TestTag_IsValid(t *testing.T) {
	tests := []struct {
		tag      Tag
		expected bool
	}{
		{Tag("block"), true},
		{Tag("block.break"), true},
		{Tag("entity.damage.by_entity"), true},
		{Tag("plugin.anti-grief"), true},
		{Tag(""), false},
		{Tag(".block"), false},
		{Tag("block."), false},
		{Tag("block..break"), false},
		{Tag("Block.Break"), false},
		{Tag("block break"), false},
		{Tag("block.*"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			if got := tt.tag.IsValid(); got != tt.expected {
				t.Errorf("Tag(%q).IsValid() = %v, want %v", tt.tag, got, tt.expected)
			}
		})
	}
}

func TestTag_Base(t *testing.T) {
	tests := []struct {
		tag      Tag
		expected string
	}{
		{Tag("entity.damage.by_entity"), "by_entity"},
		{Tag("block"), "block"},
		{Tag(""), ""},
	}

	for _, tt := range tests {
		if got := tt.tag.Base(); got != tt.expected {
			t.Errorf("Tag(%q).Base() = %q, want %q", tt.tag, got, tt.expected)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := Join("player", "chat"); got != Tag("player.chat") {
		t.Errorf("Join() = %q, want %q", got, "player.chat")
	}
	if got := Join(); got != Tag("") {
		t.Errorf("Join() = %q, want empty", got)
	}
}
