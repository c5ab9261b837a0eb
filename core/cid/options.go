package cid

type config struct {
	permissive bool
}

// Option is an option configuring CID parsing.
type Option func(cfg *config)

// WithPermissive disables the known-tag checks on codec and multihash
// function codes, preserving unrecognized tags opaquely. Structural
// validation still applies.
func WithPermissive() Option {
	return func(cfg *config) {
		cfg.permissive = true
	}
}
