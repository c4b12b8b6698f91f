package core

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var simpleNameRe = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z][a-z0-9]*)*$`)

// IsValidAgentName reports whether name is a valid agentName: lowercase,
// hyphen-separated segments, no leading/trailing/double hyphens.
func IsValidAgentName(name string) bool {
	if name == "" {
		return false
	}
	return simpleNameRe.MatchString(name)
}

// NormalizeAgentRef strips a leading "@" from a mention token.
func NormalizeAgentRef(ref string) string {
	if strings.HasPrefix(ref, "@") {
		return ref[1:]
	}
	return ref
}

var (
	agentNameAdjectives = []string{
		"eager", "cosmic", "brave", "quiet", "swift", "curious", "bright",
		"gentle", "bold", "merry", "plucky", "silly", "wry", "lucky", "calm",
	}
	agentNameAnimals = []string{
		"beaver", "dolphin", "fox", "otter", "owl", "panda", "falcon",
		"tiger", "wolf", "sparrow", "narwhal", "heron", "lynx", "marmot",
	}
)

// agentNameExists checks whether agentName is already registered.
type agentNameExists func(db *sql.DB, name string) (bool, error)

// GenerateAgentName produces a quirky "{adjective}-{animal}" slug, drawing
// both words with crypto/rand on each attempt and retrying up to 10 times on
// collision before falling back to a "-2", "-3", ... suffix on the last pick.
// The result is random: the same attempt does not yield the same name twice.
func GenerateAgentName(db *sql.DB, exists agentNameExists) (string, error) {
	var last string
	for attempt := 0; attempt < 10; attempt++ {
		name, err := randomAgentName()
		if err != nil {
			return "", err
		}
		last = name
		taken, err := exists(db, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	for suffix := 2; ; suffix++ {
		candidate := fmt.Sprintf("%s-%d", last, suffix)
		taken, err := exists(db, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

func randomAgentName() (string, error) {
	adjIdx, err := randIndex(len(agentNameAdjectives))
	if err != nil {
		return "", err
	}
	animalIdx, err := randIndex(len(agentNameAnimals))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", agentNameAdjectives[adjIdx], agentNameAnimals[animalIdx]), nil
}

func randIndex(max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("invalid random range")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
