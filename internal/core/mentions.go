package core

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// mentionRe matches "@agentname" tokens: lowercase, digits, and hyphens,
// the same alphabet GenerateAgentName produces.
var mentionRe = regexp.MustCompile(`@([a-z][a-z0-9]*(?:-[a-z0-9]+)*|all)`)

// ExtractMentions returns the ordered, deduplicated list of mention tokens
// found in body. If agentNames is non-nil, a token other than "all" is kept
// only when it names a known agent; pass nil to keep every syntactic match.
func ExtractMentions(body string, agentNames map[string]struct{}) []string {
	matches := mentionRe.FindAllStringSubmatchIndex(body, -1)
	seen := make(map[string]struct{}, len(matches))
	mentions := make([]string, 0, len(matches))

	for _, match := range matches {
		if len(match) < 4 {
			continue
		}
		start := match[0]
		if start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(body[:start])
			if isAlphaNum(prev) {
				continue
			}
		}

		name := body[match[2]:match[3]]
		if name != "all" && agentNames != nil {
			if _, ok := agentNames[name]; !ok {
				continue
			}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		mentions = append(mentions, name)
	}

	return mentions
}

// IsAllMention reports whether the mention token is the literal "all".
func IsAllMention(mention string) bool {
	return mention == "all"
}

func isAlphaNum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
