package models

import "strings"

// ContentType is a bitmask of request types
type ContentType uint32

// Content type bits, compatible with the values host applications send
const (
	ContentOther            ContentType = 1
	ContentScript           ContentType = 2
	ContentImage            ContentType = 4
	ContentStylesheet       ContentType = 8
	ContentObject           ContentType = 16
	ContentSubdocument      ContentType = 32
	ContentDocument         ContentType = 64
	ContentWebSocket        ContentType = 128
	ContentWebRTC           ContentType = 256
	ContentCSP              ContentType = 512
	ContentPing             ContentType = 1024
	ContentXMLHTTPRequest   ContentType = 2048
	ContentObjectSubrequest ContentType = 4096
	ContentMedia            ContentType = 16384
	ContentFont             ContentType = 32768
	ContentPopup            ContentType = 1 << 28
	ContentGenericBlock     ContentType = 1 << 29
	ContentElemHide         ContentType = 1 << 30
	ContentGenericHide      ContentType = 1 << 31
)

// ContentAll is every content type bit
const ContentAll ContentType = 0xFFFFFFFF

// DefaultContentTypes applies to filters without explicit type options
const DefaultContentTypes = ContentAll &^ (ContentDocument | ContentElemHide | ContentPopup |
	ContentGenericHide | ContentGenericBlock | ContentCSP)

var contentTypeNames = map[string]ContentType{
	"other":             ContentOther,
	"script":            ContentScript,
	"image":             ContentImage,
	"img":               ContentImage,
	"stylesheet":        ContentStylesheet,
	"css":               ContentStylesheet,
	"object":            ContentObject,
	"subdocument":       ContentSubdocument,
	"frame":             ContentSubdocument,
	"document":          ContentDocument,
	"doc":               ContentDocument,
	"websocket":         ContentWebSocket,
	"webrtc":            ContentWebRTC,
	"csp":               ContentCSP,
	"ping":              ContentPing,
	"beacon":            ContentPing,
	"xmlhttprequest":    ContentXMLHTTPRequest,
	"xhr":               ContentXMLHTTPRequest,
	"object-subrequest": ContentObjectSubrequest,
	"media":             ContentMedia,
	"font":              ContentFont,
	"popup":             ContentPopup,
	"genericblock":      ContentGenericBlock,
	"elemhide":          ContentElemHide,
	"generichide":       ContentGenericHide,
}

// ParseContentType maps an option name to its content type bit
func ParseContentType(name string) (ContentType, bool) {
	t, ok := contentTypeNames[strings.ToLower(strings.ReplaceAll(name, "_", "-"))]
	return t, ok
}

// ParseContentTypeMask parses a comma separated list of type names
func ParseContentTypeMask(names string) (ContentType, bool) {
	var mask ContentType
	for _, n := range strings.Split(names, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		t, ok := ParseContentType(n)
		if !ok {
			return 0, false
		}
		mask |= t
	}
	return mask, true
}

var contentTypeOrder = []struct {
	name string
	t    ContentType
}{
	{"other", ContentOther},
	{"script", ContentScript},
	{"image", ContentImage},
	{"stylesheet", ContentStylesheet},
	{"object", ContentObject},
	{"subdocument", ContentSubdocument},
	{"document", ContentDocument},
	{"websocket", ContentWebSocket},
	{"webrtc", ContentWebRTC},
	{"csp", ContentCSP},
	{"ping", ContentPing},
	{"xmlhttprequest", ContentXMLHTTPRequest},
	{"object-subrequest", ContentObjectSubrequest},
	{"media", ContentMedia},
	{"font", ContentFont},
	{"popup", ContentPopup},
	{"genericblock", ContentGenericBlock},
	{"elemhide", ContentElemHide},
	{"generichide", ContentGenericHide},
}

// String renders the mask as a comma separated list of type names
func (c ContentType) String() string {
	var names []string
	for _, e := range contentTypeOrder {
		if c&e.t != 0 {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, ",")
}
