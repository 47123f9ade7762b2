// Package validation checks user-supplied identifiers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxTopicLength bounds a post topic.
const MaxTopicLength = 32

var topicRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

// NormalizeTopic lowercases and trims a topic, then checks its format. An
// empty topic is allowed and means the post is untagged.
func NormalizeTopic(raw string) (string, error) {
	topic := strings.ToLower(strings.TrimSpace(raw))
	if topic == "" {
		return "", nil
	}
	if len(topic) > MaxTopicLength {
		return "", fmt.Errorf("topic must be at most %d characters", MaxTopicLength)
	}
	if !topicRegex.MatchString(topic) {
		return "", fmt.Errorf("topic may only contain lowercase letters, numbers, and hyphens")
	}
	if strings.HasPrefix(topic, "-") || strings.HasSuffix(topic, "-") {
		return "", fmt.Errorf("topic cannot start or end with a hyphen")
	}
	return topic, nil
}
