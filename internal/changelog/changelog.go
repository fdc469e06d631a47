// Public domain.

// Package changelog formats entries for the changelog block of a
// configuration file.
package changelog

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Tags are the valid entry tags.
var Tags = []string{"INIT", "READY_FOR", "ADD", "REMOVE", "BINARY", "NOISE", "CURATE", "NOTE", "TEST"}

// ErrNoUser is returned when git has no user.email.
var ErrNoUser = errors.New(`no git user.email; set one with git config --global user.email "you@example.org"`)

// Entry is one changelog line.
type Entry struct {
	Date time.Time
	User string
	Tag  string
	Note string
}

// ValidTag reports whether tag is one of Tags.
func ValidTag(tag string) bool {
	for _, t := range Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// New makes an entry dated now for the git user.
func New(tag, note string) (*Entry, error) {
	if !ValidTag(tag) {
		return nil, fmt.Errorf("%s is not a valid tag; valid tags are: %s", tag, strings.Join(Tags, ", "))
	}
	u, err := GitUser()
	if err != nil {
		return nil, err
	}
	return &Entry{Date: time.Now(), User: u, Tag: tag, Note: note}, nil
}

// GitUser returns the part of the git user.email before the @.
func GitUser() (string, error) {
	var out bytes.Buffer
	cmd := exec.Command("git", "config", "--get", "user.email")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return "", ErrNoUser
		}
		return "", err
	}
	u, _, _ := strings.Cut(strings.TrimSpace(out.String()), "@")
	if u == "" {
		return "", ErrNoUser
	}
	return u, nil
}

// String formats e as a YAML list item ready to paste.
func (e *Entry) String() string {
	return fmt.Sprintf("  - '%s %s %s: %s'", e.Date.Format("2006-01-02"), e.User, e.Tag, e.Note)
}
