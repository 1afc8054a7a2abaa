package browser

import (
	"strings"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/cvwatch/filterlist"
)

// blocker fails the requests of a tab that a filter list blocks, the way
// an ad-block extension would, without installing one.
type blocker struct {
	list    *filterlist.List
	domain  atomic.Value // string: host of the page being visited
	blocked atomic.Int64
	router  *rod.HijackRouter
}

func applyBlockList(page *rod.Page, list *filterlist.List) (*blocker, error) {
	b := &blocker{list: list}
	b.domain.Store("")

	router := page.HijackRequests()
	if err := router.Add("*", "", b.handle); err != nil {
		return nil, err
	}
	go router.Run()
	b.router = router
	return b, nil
}

func (b *blocker) handle(ctx *rod.Hijack) {
	typ := resourceType(ctx.Request.Type())
	if typ != filterlist.TypeDocument && b.list.Blocked(filterlist.Request{
		URL:    ctx.Request.URL().String(),
		Domain: b.domain.Load().(string),
		Type:   typ,
	}) {
		b.blocked.Add(1)
		ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		return
	}
	ctx.ContinueRequest(&proto.FetchContinueRequest{})
}

func (b *blocker) stop() error {
	if b.router == nil {
		return nil
	}
	return b.router.Stop()
}

// resourceType maps a CDP resource type onto a filter type. Top-level
// documents are never blocked.
func resourceType(t proto.NetworkResourceType) filterlist.ResourceType {
	switch strings.ToLower(string(t)) {
	case "document":
		return filterlist.TypeDocument
	case "stylesheet":
		return filterlist.TypeStylesheet
	case "image":
		return filterlist.TypeImage
	case "media":
		return filterlist.TypeMedia
	case "font":
		return filterlist.TypeFont
	case "script":
		return filterlist.TypeScript
	case "xhr", "fetch", "eventsource":
		return filterlist.TypeXMLHTTPRequest
	case "websocket":
		return filterlist.TypeWebSocket
	case "ping":
		return filterlist.TypePing
	}
	return filterlist.TypeOther
}
