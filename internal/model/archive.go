package model

import "time"

// Archive statuses. Only published items are visible to the public.
const (
	ArchivePublished = "published"
	ArchiveDraft     = "draft"
	ArchiveApproved  = "approved"
)

// ArchiveItem is the metadata of a file kept in the family archive. The file
// itself lives in object storage under StorageKey, or at an external FileURL.
type ArchiveItem struct {
	ID            string        `json:"id" db:"id"`
	Title         string        `json:"title" db:"title"`
	Description   *string       `json:"description" db:"description"`
	FileURL       *string       `json:"file_url" db:"file_url"`
	StorageKey    *string       `json:"storage_key,omitempty" db:"storage_key"`
	FileType      *string       `json:"file_type" db:"file_type"`
	FileSize      *int64        `json:"file_size" db:"file_size"`
	Category      *string       `json:"category" db:"category"`
	Tags          Tags          `json:"tags" db:"tags"`
	DateTaken     *string       `json:"date_taken" db:"date_taken"`
	Location      *string       `json:"location" db:"location"`
	PersonRelated *string       `json:"person_related" db:"person_related"`
	UploadedBy    *string       `json:"uploaded_by" db:"uploaded_by"`
	UploaderKind  PrincipalKind `json:"uploader_kind" db:"uploader_kind"`
	Status        string        `json:"status" db:"status"`
	ApprovedBy    *string       `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt    *time.Time    `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`

	UploadedByName *string `json:"uploaded_by_name,omitempty" db:"uploaded_by_name"`
}

// ArchiveInput holds the writable fields of an ArchiveItem.
type ArchiveInput struct {
	Title         string  `json:"title" validate:"required,max=200"`
	Description   *string `json:"description"`
	FileURL       *string `json:"file_url" validate:"omitempty,url"`
	StorageKey    *string `json:"storage_key"`
	FileType      *string `json:"file_type"`
	FileSize      *int64  `json:"file_size" validate:"omitempty,min=0"`
	Category      *string `json:"category" validate:"omitempty,max=100"`
	Tags          Tags    `json:"tags"`
	DateTaken     *string `json:"date_taken" validate:"omitempty,isodate"`
	Location      *string `json:"location"`
	PersonRelated *string `json:"person_related"`
	Status        string  `json:"status" validate:"omitempty,oneof=published draft approved"`
}

// ArchiveFilter narrows archive listings. Empty fields are ignored.
type ArchiveFilter struct {
	Category string
	Type     string // MIME prefix such as "image"
	Search   string
	Decade   string
}

// ArchiveStats summarizes the published archive.
type ArchiveStats struct {
	Documents    int     `json:"documents" db:"documents"`
	Photos       int     `json:"photos" db:"photos"`
	Videos       int     `json:"videos" db:"videos"`
	Audio        int     `json:"audio" db:"audio"`
	Total        int     `json:"total" db:"total"`
	EarliestDate *string `json:"earliest_date" db:"earliest_date"`
	LatestDate   *string `json:"latest_date" db:"latest_date"`
	YearsCovered int     `json:"years_covered" db:"-"`
}
