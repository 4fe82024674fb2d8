package browser

import (
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/mirror/denylist"
)

// resourceTypes maps config names to protocol resource types. Images,
// stylesheets and fonts can be listed but blocking them would stop lazy
// references from materializing in the DOM.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
	"WebSocket":  proto.NetworkResourceTypeWebSocket,
	"Ping":       proto.NetworkResourceTypePing,
}

// setupHijack installs a request interceptor that fails requests of the
// blocked types and, when blockTrackers is set, requests to deny-listed
// hosts. It returns nil when there is nothing to block; otherwise the
// caller must Stop the router.
func setupHijack(page *rod.Page, blockedTypes []string, blockTrackers bool, list *denylist.List) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 && !blockTrackers {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(ctx.Request.Type(), ctx.Request.URL(), blocked, blockTrackers, list) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}

func shouldBlock(rt proto.NetworkResourceType, u *url.URL, blocked map[proto.NetworkResourceType]struct{}, blockTrackers bool, list *denylist.List) bool {
	if _, ok := blocked[rt]; ok {
		return true
	}
	if !blockTrackers || u == nil {
		return false
	}
	return list.BlockedHost(u.Hostname()) || list.IsTracker(u.String())
}
