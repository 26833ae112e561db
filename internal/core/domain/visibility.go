package domain

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	maxTitleLen    = 120
	maxCategoryLen = 60
	maxImages      = 20
	maxTags        = 20
)

// ListParams are the raw listing filters supplied by a caller.
type ListParams struct {
	BBox      string
	Status    string
	Search    string
	Category  string
	MinRating string
	Offset    int
	Limit     int
}

// PinQuery is a resolved listing: the viewer's visibility scope plus the
// filters that narrow it. Filters are only ever applied inside the scope.
type PinQuery struct {
	// ViewerID widens the public-active scope with the viewer's own pins.
	ViewerID string
	// Unrestricted drops the scope entirely. Only the admin view sets it.
	Unrestricted bool

	Bounds    *Bounds
	Status    string
	IsPublic  *bool
	Terms     []string
	Category  string
	MinRating *float64

	// AdminSearch extends term matching to the owner username and pin id.
	AdminSearch bool

	Offset int
	Limit  int
}

// ScopeFor resolves what actor may list, then layers the caller filters on
// top. Malformed optional filters are dropped rather than reported.
func ScopeFor(actor Actor, p ListParams) PinQuery {
	q := PinQuery{ViewerID: actor.UserID}
	applyFilters(&q, p)
	return q
}

// AdminScope is the unrestricted listing used by staff.
func AdminScope(p ListParams, isPublic *bool) PinQuery {
	q := PinQuery{Unrestricted: true, IsPublic: isPublic, AdminSearch: true}
	applyFilters(&q, p)
	return q
}

func applyFilters(q *PinQuery, p ListParams) {
	if p.BBox != "" {
		if b, ok := ParseBBox(p.BBox); ok {
			q.Bounds = &b
		}
	}
	q.Status = strings.ToLower(strings.TrimSpace(p.Status))
	q.Terms = SearchTerms(p.Search)
	q.Category = strings.TrimSpace(p.Category)
	if p.MinRating != "" {
		if r, err := strconv.ParseFloat(strings.TrimSpace(p.MinRating), 64); err == nil && !math.IsNaN(r) && !math.IsInf(r, 0) {
			q.MinRating = &r
		}
	}
	q.Offset = p.Offset
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Limit = p.Limit
	if q.Limit <= 0 || q.Limit > MaxListLimit {
		q.Limit = DefaultListLimit
	}
}

// SearchTerms splits a search string on whitespace and commas.
func SearchTerms(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// Visible reports whether p falls inside the query's visibility scope,
// ignoring the narrowing filters.
func (q PinQuery) Visible(p *Pin) bool {
	if q.Unrestricted {
		return true
	}
	if p.Status == StatusActive && p.IsPublic {
		return true
	}
	return p.OwnedBy(q.ViewerID)
}

// Matches reports whether p is part of the query result: inside the scope
// and passing every filter.
func (q PinQuery) Matches(p *Pin) bool {
	if !q.Visible(p) {
		return false
	}
	if q.Status != "" && strings.ToLower(string(p.Status)) != q.Status {
		return false
	}
	if q.IsPublic != nil && p.IsPublic != *q.IsPublic {
		return false
	}
	if q.Bounds != nil && !q.Bounds.Contains(p.Lat, p.Lng) {
		return false
	}
	if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
		return false
	}
	if q.MinRating != nil && (p.Rating == nil || *p.Rating < *q.MinRating) {
		return false
	}
	for _, t := range q.Terms {
		t = strings.ToLower(t)
		hit := strings.Contains(strings.ToLower(p.Title), t) ||
			strings.Contains(strings.ToLower(p.Description), t)
		if q.AdminSearch && !hit {
			hit = strings.Contains(strings.ToLower(p.OwnerUsername), t) ||
				strings.Contains(strings.ToLower(p.ID), t)
		}
		if !hit {
			return false
		}
	}
	return true
}

// CanView reports whether actor may see p at all.
func CanView(actor Actor, p *Pin) bool {
	return PinQuery{ViewerID: actor.UserID}.Visible(p)
}

// ValidateInput checks the client-supplied fields of a new pin.
func ValidateInput(in PinInput) error {
	if in.Lat == nil || in.Lng == nil {
		return Invalid("coordinates", "lat and lng are required")
	}
	p := Pin{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Lat:         *in.Lat,
		Lng:         *in.Lng,
		Tags:        in.Tags,
		Rating:      in.Rating,
		Images:      in.Images,
	}
	return ValidatePin(&p)
}

// ValidatePin checks the content fields of a pin.
func ValidatePin(p *Pin) error {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return Invalid("title", "this field is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return Invalid("title", "must be at most 120 characters")
	}
	if utf8.RuneCountInString(p.Category) > maxCategoryLen {
		return Invalid("category", "must be at most 60 characters")
	}
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || !ValidCoordinates(p.Lat, p.Lng) {
		return Invalid("coordinates", "lat must be within [-90,90] and lng within [-180,180]")
	}
	if p.Rating != nil {
		r := *p.Rating
		if math.IsNaN(r) || r < 0 || r > 5 {
			return Invalid("rating", "must be between 0 and 5")
		}
	}
	if len(p.Tags) > maxTags {
		return Invalid("tags", "at most 20 tags are allowed")
	}
	if len(p.Images) > maxImages {
		return Invalid("images", "at most 20 images are allowed")
	}
	for _, raw := range p.Images {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Invalid("images", "each image must be an absolute http(s) URL")
		}
	}
	return nil
}

// NewPin applies the creation policy: every new pin starts pending and
// private, owned by the actor or by nobody. Caller-supplied values for those
// fields never reach this point.
func NewPin(in PinInput, actor Actor, now time.Time) Pin {
	p := Pin{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Tags:        in.Tags,
		Images:      in.Images,
		Status:      StatusPending,
		IsPublic:    false,
		CreatedAt:   now,
	}
	if in.Lat != nil {
		p.Lat = *in.Lat
	}
	if in.Lng != nil {
		p.Lng = *in.Lng
	}
	if in.Rating != nil {
		r := math.Round(*in.Rating*10) / 10
		p.Rating = &r
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if actor.Authenticated() {
		owner := actor.UserID
		p.OwnerID = &owner
	}
	return p
}
