package eventtype

import "strings"

// Tag identifies an event type node (e.g., "block.break", "player.chat").
type Tag string

// Separator is the character used to separate tag segments.
const Separator = "."

// String returns the tag as a string.
func (t Tag) String() string {
	return string(t)
}

// Segments returns the tag split by the separator.
func (t Tag) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Base returns the last segment of the tag.
//
// Example: "entity.damage.by_entity" -> "by_entity"
func (t Tag) Base() string {
	s := string(t)
	idx := strings.LastIndex(s, Separator)
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}

// IsValid returns true if the tag is valid.
// A valid tag:
//   - Is not empty
//   - Has no empty segments
//   - Contains only lowercase letters, digits, '_' and '-' in each segment
func (t Tag) IsValid() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.Segments() {
		if seg == "" {
			return false
		}
		for _, r := range seg {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= '0' && r <= '9':
			case r == '_' || r == '-':
			default:
				return false
			}
		}
	}
	return true
}

// Join joins multiple segments into a tag.
func Join(segments ...string) Tag {
	return Tag(strings.Join(segments, Separator))
}
