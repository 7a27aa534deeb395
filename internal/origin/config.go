package origin

// Config carries the credentials and endpoints needed to talk to Origin.
type Config struct {
	APIKey     string
	APISecret  string
	UserID     string
	OrgID      string
	SessionURL string
	WebhookURL string

	// RootFolderID and RequireResolved mirror the orchestrator's
	// configuration constants. UploadFile does not read them; it takes
	// both from its UploadOptions argument.
	RootFolderID    string
	RequireResolved bool

	// EnableOriginUpload gates whether UploadFile is ever invoked; when
	// false the reconciler still performs the Object Store side of a sync
	// but never pushes content back to Origin.
	EnableOriginUpload bool
}
