package model

import (
	"encoding/json"
	"time"
)

// About is the singleton "about" section of the home page.
type About struct {
	ID           string   `json:"id,omitempty"`
	Description1 string   `json:"description1"`
	Description2 string   `json:"description2"`
	Image        ImageRef `json:"image"`
}

type Speaker struct {
	Name  string   `json:"name"`
	Role  string   `json:"role,omitempty"`
	Image ImageRef `json:"image"`
}

type Event struct {
	ID               string     `json:"id,omitempty"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Image            ImageRef   `json:"image"`
	Slug             string     `json:"slug,omitempty"`
	Date             *time.Time `json:"date,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	Status           string     `json:"status,omitempty"`
	Location         string     `json:"location,omitempty"`
	Category         string     `json:"category,omitempty"`
	RegistrationLink string     `json:"registrationLink,omitempty"`
	Speakers         []Speaker  `json:"speakers,omitempty"`
}

// Brand content sections are HTML fragments in CMS order.
type Brand struct {
	ID      string     `json:"id,omitempty"`
	Title   string     `json:"title"`
	Slug    string     `json:"slug"`
	Image   ImageRef   `json:"image"`
	Content []string   `json:"content,omitempty"`
	Gallery []ImageRef `json:"gallery,omitempty"`
}

type CatalogItem struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	Image       ImageRef   `json:"image"`
	Gallery     []ImageRef `json:"gallery,omitempty"`
}

// ContentBundle is the merged result of one aggregated fetch cycle.
// It is never mutated after it is built; a new cycle yields a new bundle.
type ContentBundle struct {
	About   *About        `json:"about"`
	Events  []Event       `json:"events"`
	Brands  []Brand       `json:"brands"`
	Catalog []CatalogItem `json:"catalog"`
}

// NewContentBundle returns the empty, fully shaped bundle.
func NewContentBundle() *ContentBundle {
	return &ContentBundle{
		Events:  []Event{},
		Brands:  []Brand{},
		Catalog: []CatalogItem{},
	}
}

// MarshalJSON keeps sequences as [] even if a caller built the bundle by hand.
func (b ContentBundle) MarshalJSON() ([]byte, error) {
	type alias ContentBundle
	a := alias(b)
	if a.Events == nil {
		a.Events = []Event{}
	}
	if a.Brands == nil {
		a.Brands = []Brand{}
	}
	if a.Catalog == nil {
		a.Catalog = []CatalogItem{}
	}
	return json.Marshal(a)
}

// Stats are the headline counters from the progress collection.
type Stats struct {
	DesignProjectsCompleted int     `json:"design_projects_completed"`
	ClientSatisfactionRate  float64 `json:"client_satisfaction_rate"`
	YearsOfExperience       int     `json:"years_of_experience"`
}

// Notification is a contact-form submission.
type Notification struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

const NotificationUnread = "unread"
