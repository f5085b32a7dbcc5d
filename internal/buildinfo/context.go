// Package buildinfo contains build-time metadata kept apart from user configuration.
package buildinfo

import "fmt"

// UnknownValue stands in for metadata the build did not set.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/ocrwatch/frigate-ocr/internal/buildinfo.version=..."
var (
	version   string
	buildDate string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	version   string
	buildDate string
}

// NewContext creates a Context from explicit values.
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Current returns the metadata linked into this binary.
func Current() *Context {
	return NewContext(version, buildDate)
}

// Version returns the version tag or UnknownValue.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build date or UnknownValue.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

func (c *Context) String() string {
	return fmt.Sprintf("frigate-ocr %s (built %s)", c.Version(), c.BuildDate())
}
