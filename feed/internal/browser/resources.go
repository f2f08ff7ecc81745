// CLAUDE:SUMMARY Blocks heavy resource types (images, fonts, media, stylesheets) on the headless scrape page.
package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking hijacks every request on page and fails those whose
// resource type is listed in types. The chat list only needs the DOM, so
// the scrape surface skips images and fonts; the sign-in surface keeps them.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()

	err := router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, ctx.Request.Type()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return fmt.Errorf("browser: hijack: %w", err)
	}

	go router.Run()
	return nil
}

func shouldBlock(blockSet map[string]bool, resType proto.NetworkResourceType) bool {
	switch resType {
	case proto.NetworkResourceTypeImage:
		return blockSet["images"]
	case proto.NetworkResourceTypeFont:
		return blockSet["fonts"]
	case proto.NetworkResourceTypeMedia:
		return blockSet["media"]
	case proto.NetworkResourceTypeStylesheet:
		return blockSet["stylesheets"]
	}
	return blockSet[strings.ToLower(string(resType))]
}
