package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Company identifies which business unit a product file belongs to
type Company string

const (
	CompanyUpThere Company = "UP THERE"
	CompanyUTA     Company = "UTA"
)

// Companies lists the selectable companies in display order
var Companies = []Company{CompanyUpThere, CompanyUTA}

// Valid reports whether c is one of the known companies
func (c Company) Valid() bool {
	for _, known := range Companies {
		if c == known {
			return true
		}
	}
	return false
}

// AllowedExtensions are the spreadsheet formats accepted by the upload form
var AllowedExtensions = []string{".xlsx", ".xls"}

// AcceptAttr returns the value for the file input's accept attribute
func AcceptAttr() string {
	return strings.Join(AllowedExtensions, ",")
}

// Form field names shared by the page and the remote upload API
const (
	FieldBrandName = "brand_name"
	FieldCompany   = "company"
	FieldSeason    = "season"
	FieldFile      = "file"
)

// Submission is one upload form payload: three text fields and a spreadsheet
type Submission struct {
	ID          string    `json:"id"`
	BrandName   string    `json:"brand_name"`
	Company     Company   `json:"company"`
	Season      string    `json:"season"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Content     []byte    `json:"-"` // Raw file bytes, never serialized
	CreatedAt   time.Time `json:"created_at"`
}

// ValidationError lists the form fields that failed validation
type ValidationError struct {
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("Missing required fields: %s", strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// Validate checks required fields, the company set and the file extension
func (s *Submission) Validate() error {
	var missing []string
	if strings.TrimSpace(s.BrandName) == "" {
		missing = append(missing, FieldBrandName)
	}
	if s.Company == "" {
		missing = append(missing, FieldCompany)
	}
	if strings.TrimSpace(s.Season) == "" {
		missing = append(missing, FieldSeason)
	}
	if s.FileName == "" || len(s.Content) == 0 {
		missing = append(missing, FieldFile)
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	if !s.Company.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("Unknown company: %s", s.Company)}
	}

	if !HasAllowedExtension(s.FileName) {
		return &ValidationError{Reason: fmt.Sprintf("File must be one of: %s", AcceptAttr())}
	}

	return nil
}

// Size returns the file size in bytes
func (s *Submission) Size() int64 {
	return int64(len(s.Content))
}

// HasAllowedExtension checks the file name against AllowedExtensions, ignoring case
func HasAllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
