package filterlist

// ResourceType is a bit set of request types a rule applies to.
type ResourceType uint32

// TypeNone is an unknown request type. Only rules without positive type
// options apply to it.
const TypeNone ResourceType = 0

const (
	TypeScript ResourceType = 1 << iota
	TypeImage
	TypeStylesheet
	TypeObject
	TypeXMLHTTPRequest
	TypeSubdocument
	TypeDocument
	TypeFont
	TypeMedia
	TypeWebSocket
	TypePing
	TypePopup
	TypeOther
)

// defaultTypes is what a rule without type options applies to. Popups
// are only matched by rules that name them.
const defaultTypes = TypeScript | TypeImage | TypeStylesheet | TypeObject |
	TypeXMLHTTPRequest | TypeSubdocument | TypeDocument | TypeFont |
	TypeMedia | TypeWebSocket | TypePing | TypeOther

var typeOptions = map[string]ResourceType{
	"script":            TypeScript,
	"image":             TypeImage,
	"stylesheet":        TypeStylesheet,
	"css":               TypeStylesheet,
	"object":            TypeObject,
	"object-subrequest": TypeObject,
	"xmlhttprequest":    TypeXMLHTTPRequest,
	"xhr":               TypeXMLHTTPRequest,
	"subdocument":       TypeSubdocument,
	"frame":             TypeSubdocument,
	"document":          TypeDocument,
	"doc":               TypeDocument,
	"font":              TypeFont,
	"media":             TypeMedia,
	"websocket":         TypeWebSocket,
	"ping":              TypePing,
	"popup":             TypePopup,
	"other":             TypeOther,
}

// recordTypes are the resource type names of classification records,
// spelled as ad-block filter options. sub_frame is the one browser name
// translated. Every other name, main_frame and the browser's lower-case
// xmlhttprequest included, is matched as an untyped request.
var recordTypes = map[string]ResourceType{
	"script":           TypeScript,
	"image":            TypeImage,
	"stylesheet":       TypeStylesheet,
	"object":           TypeObject,
	"xmlHttpRequest":   TypeXMLHTTPRequest,
	"objectSubrequest": TypeObject,
	"subdocument":      TypeSubdocument,
	"sub_frame":        TypeSubdocument,
	"document":         TypeDocument,
	"other":            TypeOther,
	"ping":             TypePing,
	"popup":            TypePopup,
	"font":             TypeFont,
	"media":            TypeMedia,
	"websocket":        TypeWebSocket,
}

// ParseResourceType resolves the resource type of a classification record.
// "None" and any name it does not know give TypeNone.
func ParseResourceType(s string) ResourceType {
	return recordTypes[s]
}
