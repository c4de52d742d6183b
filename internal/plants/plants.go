package plants

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// GuestUid identifies the local identity used when no backend accepts us.
	GuestUid   = "guest-user"
	dateLayout = "2006-01-02"
	nameMaxLen = 255
)

// ErrValidation is returned when a required form field is missing or
// malformed.
var ErrValidation = errors.New("validation error")

// Date is a calendar date in its ISO form, YYYY-MM-DD.
type Date string

// ImageRef is a self-contained image reference, in practice a base64 data
// URI.
type ImageRef string

// PlantShortDesc type encapsulates the short description of a plant: its
// identifier, name and species.
type PlantShortDesc struct {
	Id      string `json:"id"`
	Name    string `json:"name"`
	Species string `json:"species,omitempty"`
}

// Represents a plant by its name, its species, the day it was registered, its
// initial photo and its log entries, newest first.
type Plant struct {
	Id        string     `json:"id"`
	Name      string     `json:"name"`
	Species   string     `json:"species"`
	DateAdded Date       `json:"date_added"`
	Image     ImageRef   `json:"image,omitempty"`
	Logs      []LogEntry `json:"logs"`
}

// Represents a care event on a plant. Entries are never modified once
// created.
type LogEntry struct {
	Id         string   `json:"id"`
	Date       Date     `json:"date"`
	Note       string   `json:"note,omitempty"`
	Watered    bool     `json:"watered"`
	Fertilized bool     `json:"fertilized"`
	Image      ImageRef `json:"image,omitempty"`
}

// Today returns the current local date.
func Today() Date {
	return DateOf(time.Now())
}

// DateOf returns the calendar date of t.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Time parses d. Dates that cannot be parsed map to the zero time so that they
// order before every valid date.
func (d Date) Time() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err == nil {
		return t
	}
	t, err = time.Parse(time.RFC3339, string(d))
	if err == nil {
		return t
	}
	return time.Time{}
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// ShortDesc returns the list form of p.
func (p Plant) ShortDesc() PlantShortDesc {
	return PlantShortDesc{p.Id, p.Name, p.Species}
}

// WithLog returns a copy of p with e prepended to its logs. The logs of p are
// not modified.
func (p Plant) WithLog(e LogEntry) Plant {
	logs := make([]LogEntry, 0, len(p.Logs)+1)
	logs = append(logs, e)
	p.Logs = append(logs, p.Logs...)
	return p
}

// NewId returns a fresh time ordered identifier.
func NewId() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewLogEntry builds a log entry dated today with a fresh identifier.
func NewLogEntry(note string, watered, fertilized bool, image ImageRef) LogEntry {
	return LogEntry{
		Id:         "log-" + NewId(),
		Date:       Today(),
		Note:       strings.TrimSpace(note),
		Watered:    watered,
		Fertilized: fertilized,
		Image:      image,
	}
}

// SanitizeName checks that name is not empty after trim, not longer than 255
// bytes and valid utf8. The string returned is the trimmed version of name.
func SanitizeName(name string) (string, error) {
	s := strings.TrimSpace(name)
	if len(s) == 0 {
		return "", fmt.Errorf("%w: name is empty", ErrValidation)
	}
	if len(s) > nameMaxLen {
		return "", fmt.Errorf("%w: name length is greater than %d", ErrValidation, nameMaxLen)
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: name is not UTF-8", ErrValidation)
	}
	return s, nil
}

// SanitizeSpecies checks that species is not longer than 255 bytes after trim
// and is valid utf8. An empty species is allowed.
func SanitizeSpecies(species string) (string, error) {
	s := strings.TrimSpace(species)
	if len(s) > nameMaxLen {
		return "", fmt.Errorf("%w: species length is greater than %d", ErrValidation, nameMaxLen)
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: species is not UTF-8", ErrValidation)
	}
	return s, nil
}
