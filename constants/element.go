package constants

// ElementType classifies a segmented document chunk.
type ElementType string

// Stable values (these exact strings appear in chunk payloads sent to
// extraction passes and in persisted artifacts).
const (
	ElementText  ElementType = "text"
	ElementTable ElementType = "table"
)

func (t ElementType) String() string {
	return string(t)
}
