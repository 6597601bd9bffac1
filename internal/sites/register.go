package sites

import "github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"

// Adapter type names as used in the targets file.
const (
	TypeJSONAPI  = "jsonapi"
	TypeFeed     = "feed"
	TypeFileDrop = "filedrop"
	TypeHTMLList = "htmllist"
	TypeBrowser  = "browser"
)

// Register adds every reference adapter to reg.
func Register(reg *adapter.Registry) {
	reg.Register(TypeJSONAPI, NewJSONAPI)
	reg.Register(TypeFeed, NewFeed)
	reg.Register(TypeFileDrop, NewFileDrop)
	reg.Register(TypeHTMLList, NewHTMLList)
	reg.Register(TypeBrowser, NewBrowser)
}

// NewRegistry returns a registry holding the reference adapters.
func NewRegistry() *adapter.Registry {
	reg := adapter.NewRegistry()
	Register(reg)
	return reg
}
