package survey

import "context"

// Decoder port (raw upload -> table)
type Decoder interface {
	Decode(raw []byte) (Table, error)
}

// ArtifactStore port (archive of raw uploads)
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
