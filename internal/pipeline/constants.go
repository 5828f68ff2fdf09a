package pipeline

// Default values for slip parsing.
const (
	// DefaultModelName is the Gemini model used when none is configured.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultMimeType is assumed when the slip's type cannot be detected.
	DefaultMimeType = "image/jpeg"
)
