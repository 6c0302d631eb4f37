package user

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Field names a searchable or filterable user attribute.
type Field string

const (
	FieldFirstName Field = "firstName"
	FieldLastName  Field = "lastName"
	FieldEmail     Field = "email"
	FieldLocation  Field = "location"
	FieldStatus    Field = "status"
)

// SearchFields are the attributes free-text search looks into.
var SearchFields = []Field{FieldFirstName, FieldLastName, FieldEmail, FieldLocation}

// Cond is a store-independent filter. Stores either evaluate it in memory
// (Match) or compile it to their own query language.
type Cond interface {
	cond()
}

// Contains matches when Field holds Term as a case-insensitive substring.
type Contains struct {
	Field Field
	Term  string
}

// Equals matches when Field is exactly Value.
type Equals struct {
	Field Field
	Value string
}

// AnyOf matches when at least one of its conditions matches.
type AnyOf []Cond

// AllOf matches when every one of its conditions matches.
type AllOf []Cond

func (Contains) cond() {}
func (Equals) cond()   {}
func (AnyOf) cond()    {}
func (AllOf) cond()    {}

// SearchAny builds the disjunction of Contains predicates for term over
// fields. It returns nil for an empty term, meaning "no constraint".
func SearchAny(term string, fields ...Field) Cond {
	if term == "" || len(fields) == 0 {
		return nil
	}
	or := make(AnyOf, 0, len(fields))
	for _, f := range fields {
		or = append(or, Contains{Field: f, Term: term})
	}
	return or
}

// BuildFilter conjoins the search disjunction with an optional exact status
// match. A nil result matches every record.
func BuildFilter(search string, status Status) Cond {
	var all AllOf
	if c := SearchAny(search, SearchFields...); c != nil {
		all = append(all, c)
	}
	if status != "" {
		all = append(all, Equals{Field: FieldStatus, Value: string(status)})
	}

	switch len(all) {
	case 0:
		return nil
	case 1:
		return all[0]
	default:
		return all
	}
}

// Match evaluates c against u. A nil condition matches.
func Match(c Cond, u User) bool {
	switch v := c.(type) {
	case nil:
		return true
	case Contains:
		return strings.Contains(strings.ToLower(u.field(v.Field)), strings.ToLower(v.Term))
	case Equals:
		return u.field(v.Field) == v.Value
	case AnyOf:
		for _, sub := range v {
			if Match(sub, u) {
				return true
			}
		}
		return false
	case AllOf:
		for _, sub := range v {
			if !Match(sub, u) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (u User) field(f Field) string {
	switch f {
	case FieldFirstName:
		return u.FirstName
	case FieldLastName:
		return u.LastName
	case FieldEmail:
		return u.Email
	case FieldLocation:
		return u.Location
	case FieldStatus:
		return string(u.Status)
	default:
		return ""
	}
}

// Query is what stores receive for a listing: a filter plus a window over
// the newest-first ordering. Limit <= 0 returns every match.
type Query struct {
	Filter Cond
	Offset int
	Limit  int
}

// ListParams are the coerced listing inputs.
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Status Status
}

// ParseListParams coerces raw query-string values. page and limit fall back
// to their defaults when missing, non-numeric or not positive. A status
// other than Active or InActive is rejected.
func ParseListParams(page, limit, search, status string) (ListParams, error) {
	p := ListParams{
		Page:   positiveOr(page, DefaultPage),
		Limit:  positiveOr(limit, DefaultLimit),
		Search: strings.TrimSpace(search),
	}

	status = strings.TrimSpace(status)
	if status != "" {
		s := Status(status)
		if !s.Valid() {
			return ListParams{}, &ValidationError{Messages: []string{"Status must be either Active or InActive"}}
		}
		p.Status = s
	}
	return p, nil
}

func positiveOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Filter returns the store condition for p.
func (p ListParams) Filter() Cond {
	return BuildFilter(p.Search, p.Status)
}

// Skip is the number of records before the requested page. It saturates at
// math.MaxInt instead of overflowing for huge page or limit values.
func (p ListParams) Skip() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Query returns the paginated store query for p.
func (p ListParams) Query() Query {
	return Query{Filter: p.Filter(), Offset: p.Skip(), Limit: p.Limit}
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

// NewPagination computes the page summary; totalPages is ceil(total/limit).
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		n := total / int64(limit)
		if total%int64(limit) != 0 {
			n++
		}
		pages = int(n)
	}
	return Pagination{
		CurrentPage:  page,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: limit,
	}
}

// Page is one window of a listing.
type Page struct {
	Users      []User
	Pagination Pagination
}
