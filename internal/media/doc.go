// Package media defines the technical attribute model produced by metadata
// extraction and consumed by the rating engine. Broken files are ordinary
// values here, not errors: a file whose metadata cannot be read yields a
// BrokenResult instead of TechnicalAttributes.
package media
