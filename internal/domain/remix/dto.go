package remix

// CreateRemixRequest is the payload for starting a remix.
//
// GitHubToken must be able to read the source repository. When the
// destination lives in a different account, SameAccount is false and
// DestToken carries the destination credentials; otherwise GitHubToken is
// used for both sides.
type CreateRemixRequest struct {
	SourceRepo  string `json:"source_repo" validate:"required,github_url"`
	DestRepo    string `json:"dest_repo" validate:"required,github_url"`
	GitHubToken string `json:"github_token" validate:"required"`
	SameAccount bool   `json:"same_account"`
	DestToken   string `json:"dest_token" validate:"omitempty"`
}

// CreateRemixResponse is returned once a remix reaches a terminal status.
type CreateRemixResponse struct {
	Remix       *Remix `json:"remix"`
	BlobsCopied int    `json:"blobs_copied"`
	BlobsTotal  int    `json:"blobs_total"`
	CommitSHA   string `json:"commit_sha,omitempty"`
}
