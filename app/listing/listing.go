// Package listing implements the draft form state and the persisted collection of job listings.
//
// Form holds the in-progress listing and mutates it field by field, Store owns the ordered collection
// of submitted listings and writes it through to a Storage backend on every change.
package listing

import (
	"errors"
	"slices"
)

// ErrUnknownField returned by Form.UpdateField for a name not matching any listing field
var ErrUnknownField = errors.New("unknown field")

// field names, same as json keys of JobListing
const (
	FieldLogoURL     = "logoUrl"
	FieldCompanyName = "companyName"
	FieldIsNew       = "isNew"
	FieldIsFeatured  = "isFeatured"
	FieldPosition    = "position"
	FieldTime        = "time"
	FieldJobType     = "jobType"
	FieldLocation    = "location"
	FieldSkills      = "skills"
)

// JobListing is a single job card. The draft kept by Form has the same shape.
type JobListing struct {
	LogoURL     string   `json:"logoUrl"`
	CompanyName string   `json:"companyName"`
	IsNew       bool     `json:"isNew"`
	IsFeatured  bool     `json:"isFeatured"`
	Position    string   `json:"position"`
	Time        string   `json:"time"`
	JobType     string   `json:"jobType"`
	Location    string   `json:"location"`
	Skills      []string `json:"skills"`
}

// Empty returns a listing with all defaults. Skills is an empty slice, so it serializes as [] and not null.
func Empty() JobListing {
	return JobListing{Skills: []string{}}
}

// Clone makes a deep copy, the result never shares the skills backing array with the original
func (l JobListing) Clone() JobListing {
	res := l
	res.Skills = make([]string, len(l.Skills))
	copy(res.Skills, l.Skills)
	return res
}

// HasSkill checks if skill is in the listing's skills
func (l JobListing) HasSkill(skill string) bool {
	return slices.Contains(l.Skills, skill)
}

// Field returns the value of a text field by name, empty for unknown and boolean fields
func (l JobListing) Field(name string) string {
	switch name {
	case FieldLogoURL:
		return l.LogoURL
	case FieldCompanyName:
		return l.CompanyName
	case FieldPosition:
		return l.Position
	case FieldTime:
		return l.Time
	case FieldJobType:
		return l.JobType
	case FieldLocation:
		return l.Location
	}
	return ""
}

// Tags returns the display tags of the card: time, job type, location followed by skills
func (l JobListing) Tags() []string {
	res := make([]string, 0, 3+len(l.Skills))
	res = append(res, l.Time, l.JobType, l.Location)
	return append(res, l.Skills...)
}

// normalize makes sure skills is not nil and has no duplicates, keeping the first occurrence
func (l *JobListing) normalize() {
	if l.Skills == nil {
		l.Skills = []string{}
		return
	}
	seen := make(map[string]struct{}, len(l.Skills))
	res := l.Skills[:0]
	for _, s := range l.Skills {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		res = append(res, s)
	}
	l.Skills = res
}

// cloneAll deep copies a slice of listings, never returns nil
func cloneAll(src []JobListing) []JobListing {
	res := make([]JobListing, len(src))
	for i, l := range src {
		res[i] = l.Clone()
	}
	return res
}
