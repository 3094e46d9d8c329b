package types

import "time"

// Profile is the professional profile of a single user.
// A user has at most one profile; the owner reference never changes
// after creation.
type Profile struct {
	// ID is the unique identifier of the profile.
	ID string `json:"id" db:"id"`

	// UserID identifies the owning user.
	UserID string `json:"-" db:"user_id"`

	// User is the owner summary, joined in on reads.
	User *UserSummary `json:"user,omitempty" db:"-"`

	Company        string `json:"company,omitempty" db:"company"`
	Website        string `json:"website,omitempty" db:"website"`
	Location       string `json:"location,omitempty" db:"location"`
	Bio            string `json:"bio,omitempty" db:"bio"`
	GitHubUsername string `json:"githubusername,omitempty" db:"github_username"`

	// Status is the user's current professional status (e.g. "Developer").
	Status string `json:"status" db:"status"`

	// Skills is the ordered list of skills, as entered.
	Skills []string `json:"skills" db:"skills"`

	// Experience holds work history, newest entry first.
	Experience []Experience `json:"experience" db:"experience"`

	// Education holds education history, newest entry first.
	Education []Education `json:"education" db:"education"`

	// Social holds links to external social accounts.
	Social SocialLinks `json:"social" db:"social"`

	// CreatedAt is the timestamp when the profile was created.
	CreatedAt time.Time `json:"date" db:"created_at"`
}

// Experience is a single work-history entry of a profile.
type Experience struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location,omitempty"`
	From        time.Time  `json:"from"`
	To          *time.Time `json:"to,omitempty"`
	Current     bool       `json:"current"`
	Description string     `json:"description,omitempty"`
}

// Education is a single education entry of a profile.
type Education struct {
	ID           string     `json:"id"`
	School       string     `json:"school"`
	Degree       string     `json:"degree"`
	FieldOfStudy string     `json:"fieldofstudy"`
	From         time.Time  `json:"from"`
	To           *time.Time `json:"to,omitempty"`
	Current      bool       `json:"current"`
	Description  string     `json:"description,omitempty"`
}

// SocialLinks holds a profile's external social account URLs.
type SocialLinks struct {
	YouTube   string `json:"youtube,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}
