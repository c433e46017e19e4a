package cities

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	defaultPageSize = 10
	maxPageSize     = 20

	maxNameLength        = 50
	maxDescriptionLength = 200
)

var ErrNotFound = errors.New("not found")

type City struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CityDetail struct {
	City
	NumberOfPointsOfInterest int               `json:"numberOfPointsOfInterest"`
	PointsOfInterest         []PointOfInterest `json:"pointsOfInterest"`
}

type PointOfInterest struct {
	ID          int64  `json:"id"`
	CityID      int64  `json:"-"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type PointOfInterestInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PointOfInterestPatch carries the fields a merge update touches. Absent
// fields keep their stored value.
type PointOfInterestPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (p PointOfInterestPatch) Apply(current PointOfInterest) PointOfInterestInput {
	input := PointOfInterestInput{Name: current.Name, Description: current.Description}
	if p.Name != nil {
		input.Name = *p.Name
	}
	if p.Description != nil {
		input.Description = *p.Description
	}
	return input
}

type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// Normalize trims the input and reports the first rule it breaks.
func (in PointOfInterestInput) Normalize() (PointOfInterestInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	switch {
	case in.Name == "":
		return in, ValidationError{Message: "name is required"}
	case !utf8.ValidString(in.Name) || utf8.RuneCountInString(in.Name) > maxNameLength:
		return in, ValidationError{Message: "name must be at most 50 characters"}
	case !utf8.ValidString(in.Description) || utf8.RuneCountInString(in.Description) > maxDescriptionLength:
		return in, ValidationError{Message: "description must be at most 200 characters"}
	case in.Name == in.Description:
		return in, ValidationError{Message: "the provided description should be different from the name"}
	}

	return in, nil
}

type ListQuery struct {
	Name        string
	SearchQuery string
	PageNumber  int
	PageSize    int
}

func (q ListQuery) offset() int {
	return (q.PageNumber - 1) * q.PageSize
}

type PaginationMetadata struct {
	TotalItemCount int `json:"totalItemCount"`
	TotalPageCount int `json:"totalPageCount"`
	PageSize       int `json:"pageSize"`
	CurrentPage    int `json:"currentPage"`
}

func NewPaginationMetadata(total, pageSize, currentPage int) PaginationMetadata {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return PaginationMetadata{
		TotalItemCount: total,
		TotalPageCount: pages,
		PageSize:       pageSize,
		CurrentPage:    currentPage,
	}
}
