package listing

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	log "github.com/go-pkgz/lgr"
)

// Appender accepts submitted listings, implemented by Store
type Appender interface {
	Append(l JobListing) error
}

// Form keeps the draft listing and applies input events to it.
// Submit hands a copy of the draft to the Appender and resets the draft.
type Form struct {
	appender Appender

	mu          sync.Mutex
	draft       JobListing
	subscribers []func(JobListing)
}

// NewForm makes a Form with an empty draft
func NewForm(appender Appender) *Form {
	return &Form{appender: appender, draft: Empty()}
}

// Draft returns a copy of the current draft
func (f *Form) Draft() JobListing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Clone()
}

// Subscribe registers fn to be called with a copy of the draft after every change
func (f *Form) Subscribe(fn func(JobListing)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, fn)
}

// UpdateField sets the named field of the draft to value. Values are not validated.
// For isNew and isFeatured the value is the checkbox form value, see ParseFlag.
func (f *Form) UpdateField(name, value string) error {
	f.mu.Lock()
	switch name {
	case FieldLogoURL:
		f.draft.LogoURL = value
	case FieldCompanyName:
		f.draft.CompanyName = value
	case FieldPosition:
		f.draft.Position = value
	case FieldTime:
		f.draft.Time = value
	case FieldJobType:
		f.draft.JobType = value
	case FieldLocation:
		f.draft.Location = value
	case FieldIsNew:
		f.draft.IsNew = ParseFlag(value)
	case FieldIsFeatured:
		f.draft.IsFeatured = ParseFlag(value)
	default:
		f.mu.Unlock()
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	draft := f.draft.Clone()
	f.mu.Unlock()

	f.notify(draft)
	return nil
}

// SetFlag sets one of the boolean fields, isNew or isFeatured
func (f *Form) SetFlag(name string, checked bool) error {
	if name != FieldIsNew && name != FieldIsFeatured {
		return fmt.Errorf("%w %q, not a flag", ErrUnknownField, name)
	}
	val := "false"
	if checked {
		val = "true"
	}
	return f.UpdateField(name, val)
}

// ToggleSkill removes skill from the draft if present, adds it to the end otherwise.
// Returns the updated draft.
func (f *Form) ToggleSkill(skill string) JobListing {
	f.mu.Lock()
	if idx := slices.Index(f.draft.Skills, skill); idx >= 0 {
		f.draft.Skills = slices.Delete(f.draft.Skills, idx, idx+1)
	} else {
		f.draft.Skills = append(f.draft.Skills, skill)
	}
	draft := f.draft.Clone()
	f.mu.Unlock()

	f.notify(draft)
	return draft
}

// Submit moves a copy of the draft to the appender and resets the draft.
// There is no required field, so it never refuses. The returned error is the appender's
// persistence failure, the draft is reset regardless.
func (f *Form) Submit() (JobListing, error) {
	f.mu.Lock()
	submitted := f.draft.Clone()
	f.draft = Empty()
	f.mu.Unlock()

	f.notify(Empty())

	if f.appender == nil {
		log.Printf("[WARN] no appender set, submitted listing %q dropped", submitted.CompanyName)
		return submitted, nil
	}
	if err := f.appender.Append(submitted); err != nil {
		return submitted, fmt.Errorf("failed to append listing: %w", err)
	}
	log.Printf("[DEBUG] submitted listing %q / %q", submitted.CompanyName, submitted.Position)
	return submitted, nil
}

// Reset restores the draft defaults
func (f *Form) Reset() {
	f.mu.Lock()
	f.draft = Empty()
	f.mu.Unlock()
	f.notify(Empty())
}

func (f *Form) notify(draft JobListing) {
	f.mu.Lock()
	subs := slices.Clone(f.subscribers)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(draft.Clone())
	}
}

// ParseFlag converts a checkbox form value to bool. Browsers send "on" for a checked box and
// nothing for an unchecked one, so empty and the explicit negatives are false, anything else is true.
func ParseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "off", "0", "no":
		return false
	}
	return true
}
