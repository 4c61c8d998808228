package remix

import "time"

// Status defines remix lifecycle states.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Remix is one copy attempt from a source repository into a destination
// repository. A row is created before the copy starts and moved to a
// terminal status exactly once.
type Remix struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	SourceRepo      string    `db:"source_repo" json:"source_repo"`
	DestinationRepo string    `db:"destination_repo" json:"destination_repo"`
	Status          Status    `db:"status" json:"status"`
	BlobsCopied     int       `db:"blobs_copied" json:"blobs_copied"`
	CommitSHA       *string   `db:"commit_sha" json:"commit_sha,omitempty"`
	ErrorMessage    *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
