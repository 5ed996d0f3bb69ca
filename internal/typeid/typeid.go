package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixObject   = "obj"
	PrefixDesign   = "dsgn"
	PrefixTemplate = "tmpl"
	PrefixSession  = "sess"
	PrefixOp       = "op"
	PrefixAsset    = "asset"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewObjectID() string   { return New(PrefixObject) }
func NewDesignID() string   { return New(PrefixDesign) }
func NewTemplateID() string { return New(PrefixTemplate) }
func NewSessionID() string  { return New(PrefixSession) }
func NewOpID() string       { return New(PrefixOp) }
func NewAssetID() string    { return New(PrefixAsset) }

// Validate checks that id parses and carries expectedPrefix.
func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
