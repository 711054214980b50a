package config

// EmbeddedTMDBKey is an API key injected at build time via ldflags. It
// serves as a default and is overridden by configuration or environment.
//
// Build with:
//
//	go build -ldflags "-X 'github.com/gatherr/gatherr/internal/config.EmbeddedTMDBKey=xxx'"
var EmbeddedTMDBKey string
