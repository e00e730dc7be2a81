package model

import "time"

// TimelineEvent is a dated event in the family history.
type TimelineEvent struct {
	ID                 string    `json:"id" db:"id"`
	Title              string    `json:"title" db:"title"`
	Description        *string   `json:"description" db:"description"`
	EventDate          string    `json:"event_date" db:"event_date"`
	EventType          *string   `json:"event_type" db:"event_type"`
	Location           *string   `json:"location" db:"location"`
	AssociatedMemberID *string   `json:"associated_member_id" db:"associated_member_id"`
	ImageURL           *string   `json:"image_url" db:"image_url"`
	CreatedBy          *string   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`

	MemberFirstName *string `json:"first_name,omitempty" db:"first_name"`
	MemberLastName  *string `json:"last_name,omitempty" db:"last_name"`
}

// TimelineInput holds the writable fields of a TimelineEvent.
type TimelineInput struct {
	Title              string  `json:"title" validate:"required,max=200"`
	Description        *string `json:"description"`
	EventDate          string  `json:"event_date" validate:"required,isodate"`
	EventType          *string `json:"event_type" validate:"omitempty,max=50"`
	Location           *string `json:"location"`
	AssociatedMemberID *string `json:"associated_member_id" validate:"omitempty,uuid"`
	ImageURL           *string `json:"image_url" validate:"omitempty,url"`
}
